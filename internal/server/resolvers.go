package server

import (
	"context"

	"github.com/polkassembly/governance/internal/auth"
)

type resolver struct {
	srv *Server
}

type userResponse struct {
	ID        int32
	Username  string
	Addresses []*addressResponse
}

type addressResponse struct {
	Network string
	Address string
	Default bool
}

type loginResponse struct {
	Token       *string
	UserID      int32
	TFARequired bool
	TFAToken    *string
}

type tokenResponse struct {
	Token *string
}

type messageResponse struct {
	Message *string
}

type changeResponse struct {
	Message *string
	Token   *string
}

type undoEmailChangeResponse struct {
	Message *string
	Email   *string
	Token   *string
}

type addressLinkResponse struct {
	Message     *string
	AddressID   *int32
	SignMessage *string
}

type addressLoginResponse struct {
	Message     *string
	SignMessage *string
}

type twoFactorSetupResponse struct {
	Secret string
	URL    string
	QR     *string
}

func str(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func message(m auth.MessageResult) *messageResponse {
	return &messageResponse{Message: str(m.Message)}
}

func change(t auth.TokenResult) *changeResponse {
	return &changeResponse{Message: str(t.Message), Token: str(t.Token)}
}

// session writes the refresh cookie and shapes the login payload.
func (r *resolver) session(ctx context.Context, s auth.Session) *loginResponse {
	if s.RefreshToken != "" {
		if info := requestFromContext(ctx); info.w != nil {
			auth.SetRefreshCookie(info.w, s.RefreshToken, r.srv.Auth.RefreshTTL, r.srv.secure())
		}
	}
	return &loginResponse{
		Token:       str(s.Token),
		UserID:      int32(s.UserID),
		TFARequired: s.TFARequired,
		TFAToken:    str(s.TFAToken),
	}
}

func (r *resolver) fail(ctx context.Context, op string, err error) error {
	return r.srv.publicError(ctx, op, err)
}

func (r *resolver) User(ctx context.Context, args struct{ ID int32 }) (*userResponse, error) {
	p, err := r.srv.Auth.User(ctx, int(args.ID))
	if err != nil {
		return nil, r.fail(ctx, "user", err)
	}
	if p == nil {
		return nil, nil
	}
	out := &userResponse{ID: int32(p.ID), Username: p.Username, Addresses: []*addressResponse{}}
	for _, a := range p.Addresses {
		out.Addresses = append(out.Addresses, &addressResponse{Network: string(a.Network), Address: a.Address, Default: a.Default})
	}
	return out, nil
}

func (r *resolver) Token(ctx context.Context) (*tokenResponse, error) {
	info := requestFromContext(ctx)
	refresh := ""
	if info.r != nil {
		refresh = auth.RefreshTokenFromRequest(info.r)
	}
	token, err := r.srv.Auth.RefreshToken(ctx, refresh)
	if err != nil {
		return nil, r.fail(ctx, "token", err)
	}
	return &tokenResponse{Token: str(token)}, nil
}

func (r *resolver) Signup(ctx context.Context, args struct {
	Email    string
	Password string
	Username string
}) (*loginResponse, error) {
	s, err := r.srv.Auth.Signup(ctx, auth.SignupInput{Username: args.Username, Email: args.Email, Password: args.Password})
	if err != nil {
		return nil, r.fail(ctx, "signup", err)
	}
	return r.session(ctx, s), nil
}

func (r *resolver) Login(ctx context.Context, args struct {
	Username string
	Password string
}) (*loginResponse, error) {
	s, err := r.srv.Auth.Login(ctx, requestFromContext(ctx).ip, args.Username, args.Password)
	if err != nil {
		return nil, r.fail(ctx, "login", err)
	}
	return r.session(ctx, s), nil
}

func (r *resolver) TwoFactorLogin(ctx context.Context, args struct {
	TfaToken string
	AuthCode string
}) (*loginResponse, error) {
	s, err := r.srv.Auth.TwoFactorLogin(ctx, args.TfaToken, args.AuthCode)
	if err != nil {
		return nil, r.fail(ctx, "twoFactorLogin", err)
	}
	return r.session(ctx, s), nil
}

func (r *resolver) Logout(ctx context.Context) (*messageResponse, error) {
	info := requestFromContext(ctx)
	refresh := ""
	if info.r != nil {
		refresh = auth.RefreshTokenFromRequest(info.r)
	}
	res, err := r.srv.Auth.Logout(ctx, refresh)
	if err != nil {
		return nil, r.fail(ctx, "logout", err)
	}
	if info.w != nil {
		auth.ClearRefreshCookie(info.w, r.srv.secure())
	}
	return message(res), nil
}

func (r *resolver) ChangeUsername(ctx context.Context, args struct {
	Username string
	Password string
}) (*changeResponse, error) {
	id, err := viewer(ctx, "changeUsername")
	if err != nil {
		return nil, r.fail(ctx, "changeUsername", err)
	}
	res, err := r.srv.Auth.ChangeUsername(ctx, id, args.Username, args.Password)
	if err != nil {
		return nil, r.fail(ctx, "changeUsername", err)
	}
	return change(res), nil
}

func (r *resolver) ChangePassword(ctx context.Context, args struct {
	OldPassword string
	NewPassword string
}) (*messageResponse, error) {
	id, err := viewer(ctx, "changePassword")
	if err != nil {
		return nil, r.fail(ctx, "changePassword", err)
	}
	res, err := r.srv.Auth.ChangePassword(ctx, id, args.OldPassword, args.NewPassword)
	if err != nil {
		return nil, r.fail(ctx, "changePassword", err)
	}
	return message(res), nil
}

func (r *resolver) ChangeEmail(ctx context.Context, args struct {
	Email    string
	Password string
}) (*changeResponse, error) {
	id, err := viewer(ctx, "changeEmail")
	if err != nil {
		return nil, r.fail(ctx, "changeEmail", err)
	}
	res, err := r.srv.Auth.ChangeEmail(ctx, id, args.Email, args.Password)
	if err != nil {
		return nil, r.fail(ctx, "changeEmail", err)
	}
	return change(res), nil
}

func (r *resolver) VerifyEmail(ctx context.Context, args struct{ Token string }) (*changeResponse, error) {
	res, err := r.srv.Auth.VerifyEmail(ctx, args.Token)
	if err != nil {
		return nil, r.fail(ctx, "verifyEmail", err)
	}
	return change(res), nil
}

func (r *resolver) ResendVerifyEmailToken(ctx context.Context) (*messageResponse, error) {
	id, err := viewer(ctx, "resendVerifyEmailToken")
	if err != nil {
		return nil, r.fail(ctx, "resendVerifyEmailToken", err)
	}
	res, err := r.srv.Auth.ResendVerifyEmailToken(ctx, id)
	if err != nil {
		return nil, r.fail(ctx, "resendVerifyEmailToken", err)
	}
	return message(res), nil
}

func (r *resolver) RequestResetPassword(ctx context.Context, args struct{ Email string }) (*messageResponse, error) {
	res, err := r.srv.Auth.RequestResetPassword(ctx, args.Email)
	if err != nil {
		return nil, r.fail(ctx, "requestResetPassword", err)
	}
	return message(res), nil
}

func (r *resolver) ResetPassword(ctx context.Context, args struct {
	Token       string
	UserID      int32
	NewPassword string
}) (*messageResponse, error) {
	res, err := r.srv.Auth.ResetPassword(ctx, args.Token, int(args.UserID), args.NewPassword)
	if err != nil {
		return nil, r.fail(ctx, "resetPassword", err)
	}
	return message(res), nil
}

func (r *resolver) UndoEmailChange(ctx context.Context, args struct{ Token string }) (*undoEmailChangeResponse, error) {
	res, err := r.srv.Auth.UndoEmailChange(ctx, args.Token)
	if err != nil {
		return nil, r.fail(ctx, "undoEmailChange", err)
	}
	return &undoEmailChangeResponse{Message: str(res.Message), Email: str(res.Email), Token: str(res.Token)}, nil
}

func (r *resolver) DeleteAccount(ctx context.Context, args struct{ Password string }) (*messageResponse, error) {
	id, err := viewer(ctx, "deleteAccount")
	if err != nil {
		return nil, r.fail(ctx, "deleteAccount", err)
	}
	res, err := r.srv.Auth.DeleteAccount(ctx, id, args.Password)
	if err != nil {
		return nil, r.fail(ctx, "deleteAccount", err)
	}
	if info := requestFromContext(ctx); info.w != nil {
		auth.ClearRefreshCookie(info.w, r.srv.secure())
	}
	return message(res), nil
}

func (r *resolver) ReportContent(ctx context.Context, args struct {
	Network   string
	Type      string
	ContentID string
	Reason    string
	Comments  *string
}) (*messageResponse, error) {
	id, err := viewer(ctx, "reportContent")
	if err != nil {
		return nil, r.fail(ctx, "reportContent", err)
	}
	in := auth.ReportInput{Network: args.Network, Type: args.Type, ContentID: args.ContentID, Reason: args.Reason}
	if args.Comments != nil {
		in.Comments = *args.Comments
	}
	res, err := r.srv.Auth.ReportContent(ctx, id, in)
	if err != nil {
		return nil, r.fail(ctx, "reportContent", err)
	}
	return message(res), nil
}

func (r *resolver) AddressLinkStart(ctx context.Context, args struct {
	Network string
	Address string
}) (*addressLinkResponse, error) {
	id, err := viewer(ctx, "addressLinkStart")
	if err != nil {
		return nil, r.fail(ctx, "addressLinkStart", err)
	}
	res, err := r.srv.Auth.AddressLinkStart(ctx, id, args.Network, args.Address)
	if err != nil {
		return nil, r.fail(ctx, "addressLinkStart", err)
	}
	addressID := int32(res.AddressID)
	return &addressLinkResponse{Message: str(res.Message), AddressID: &addressID, SignMessage: str(res.SignMessage)}, nil
}

func (r *resolver) AddressLinkConfirm(ctx context.Context, args struct {
	AddressID int32
	Signature string
}) (*changeResponse, error) {
	id, err := viewer(ctx, "addressLinkConfirm")
	if err != nil {
		return nil, r.fail(ctx, "addressLinkConfirm", err)
	}
	res, err := r.srv.Auth.AddressLinkConfirm(ctx, id, int(args.AddressID), args.Signature)
	if err != nil {
		return nil, r.fail(ctx, "addressLinkConfirm", err)
	}
	return change(res), nil
}

func (r *resolver) AddressUnlink(ctx context.Context, args struct{ Address string }) (*changeResponse, error) {
	id, err := viewer(ctx, "addressUnlink")
	if err != nil {
		return nil, r.fail(ctx, "addressUnlink", err)
	}
	res, err := r.srv.Auth.AddressUnlink(ctx, id, args.Address)
	if err != nil {
		return nil, r.fail(ctx, "addressUnlink", err)
	}
	return change(res), nil
}

func (r *resolver) SetDefaultAddress(ctx context.Context, args struct{ Address string }) (*changeResponse, error) {
	id, err := viewer(ctx, "setDefaultAddress")
	if err != nil {
		return nil, r.fail(ctx, "setDefaultAddress", err)
	}
	res, err := r.srv.Auth.SetDefaultAddress(ctx, id, args.Address)
	if err != nil {
		return nil, r.fail(ctx, "setDefaultAddress", err)
	}
	return change(res), nil
}

func (r *resolver) AddressLoginStart(ctx context.Context, args struct{ Address string }) (*addressLoginResponse, error) {
	res, err := r.srv.Auth.AddressLoginStart(ctx, args.Address)
	if err != nil {
		return nil, r.fail(ctx, "addressLoginStart", err)
	}
	return &addressLoginResponse{Message: str(res.Message), SignMessage: str(res.SignMessage)}, nil
}

func (r *resolver) AddressLogin(ctx context.Context, args struct {
	Address   string
	Signature string
}) (*loginResponse, error) {
	s, err := r.srv.Auth.AddressLogin(ctx, args.Address, args.Signature)
	if err != nil {
		return nil, r.fail(ctx, "addressLogin", err)
	}
	return r.session(ctx, s), nil
}

func (r *resolver) AddressSignupStart(ctx context.Context, args struct{ Address string }) (*addressLoginResponse, error) {
	res, err := r.srv.Auth.AddressSignupStart(ctx, args.Address)
	if err != nil {
		return nil, r.fail(ctx, "addressSignupStart", err)
	}
	return &addressLoginResponse{Message: str(res.Message), SignMessage: str(res.SignMessage)}, nil
}

func (r *resolver) AddressSignupConfirm(ctx context.Context, args struct {
	Network   string
	Address   string
	Signature string
}) (*loginResponse, error) {
	s, err := r.srv.Auth.AddressSignupConfirm(ctx, args.Network, args.Address, args.Signature)
	if err != nil {
		return nil, r.fail(ctx, "addressSignupConfirm", err)
	}
	return r.session(ctx, s), nil
}

func (r *resolver) TwoFactorSetupStart(ctx context.Context) (*twoFactorSetupResponse, error) {
	id, err := viewer(ctx, "twoFactorSetupStart")
	if err != nil {
		return nil, r.fail(ctx, "twoFactorSetupStart", err)
	}
	setup, err := r.srv.Auth.TwoFactorSetupStart(ctx, id)
	if err != nil {
		return nil, r.fail(ctx, "twoFactorSetupStart", err)
	}
	return &twoFactorSetupResponse{Secret: setup.Secret, URL: setup.URL, QR: str(setup.QR)}, nil
}

func (r *resolver) TwoFactorSetupConfirm(ctx context.Context, args struct{ AuthCode string }) (*changeResponse, error) {
	id, err := viewer(ctx, "twoFactorSetupConfirm")
	if err != nil {
		return nil, r.fail(ctx, "twoFactorSetupConfirm", err)
	}
	res, err := r.srv.Auth.TwoFactorSetupConfirm(ctx, id, args.AuthCode)
	if err != nil {
		return nil, r.fail(ctx, "twoFactorSetupConfirm", err)
	}
	return change(res), nil
}

func (r *resolver) TwoFactorDisable(ctx context.Context, args struct {
	Password string
	AuthCode string
}) (*changeResponse, error) {
	id, err := viewer(ctx, "twoFactorDisable")
	if err != nil {
		return nil, r.fail(ctx, "twoFactorDisable", err)
	}
	res, err := r.srv.Auth.TwoFactorDisable(ctx, id, args.Password, args.AuthCode)
	if err != nil {
		return nil, r.fail(ctx, "twoFactorDisable", err)
	}
	return change(res), nil
}
