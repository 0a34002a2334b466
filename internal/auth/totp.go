package auth

import (
	"bytes"
	"encoding/base64"
	"image/png"

	"github.com/pquerna/otp/totp"
)

type TOTPVerifier interface {
	Verify(secret, code string) bool
	Generate(account string) (TwoFactorSetup, error)
}

// TwoFactorSetup is what a client needs to enrol an authenticator app.
type TwoFactorSetup struct {
	Secret string
	URL    string
	QR     string
}

type TOTPService struct {
	Issuer string
}

func NewTOTPService(issuer string) *TOTPService {
	return &TOTPService{Issuer: issuer}
}

func (t *TOTPService) Verify(secret, code string) bool {
	if secret == "" || code == "" {
		return false
	}
	return totp.Validate(code, secret)
}

func (t *TOTPService) Generate(account string) (TwoFactorSetup, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      t.Issuer,
		AccountName: account,
	})
	if err != nil {
		return TwoFactorSetup{}, err
	}

	setup := TwoFactorSetup{Secret: key.Secret(), URL: key.URL()}

	img, err := key.Image(200, 200)
	if err != nil {
		return setup, nil
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return setup, nil
	}
	setup.QR = "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
	return setup, nil
}
