package signature

import (
	"crypto/ed25519"
	"encoding/hex"
	"strings"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"
)

const (
	signatureSize = 64

	typeEd25519 = 0x00
	typeSr25519 = 0x01
)

var signingContext = []byte("substrate")

// Verifier checks that a message was signed by the key behind an address.
type Verifier interface {
	Verify(message, address, signature string) bool
}

// Substrate verifies sr25519 and ed25519 signatures as produced by browser
// wallet extensions, which may wrap the payload in <Bytes></Bytes>.
type Substrate struct{}

func (Substrate) Verify(message, address, signature string) bool {
	return Verify(message, address, signature)
}

// Verify never returns true for malformed input.
func Verify(message, address, signature string) bool {
	key, _, err := DecodeAddress(address)
	if err != nil {
		return false
	}

	raw, ok := decodeHex(signature)
	if !ok {
		return false
	}

	kind := -1
	switch len(raw) {
	case signatureSize:
	case signatureSize + 1:
		kind = int(raw[0])
		raw = raw[1:]
	default:
		return false
	}

	for _, msg := range candidates(message) {
		if kind != typeEd25519 && verifySr25519(key, msg, raw) {
			return true
		}
		if kind != typeSr25519 && ed25519.Verify(ed25519.PublicKey(key), msg, raw) {
			return true
		}
	}
	return false
}

func candidates(message string) [][]byte {
	plain := []byte(message)
	wrapped := []byte("<Bytes>" + message + "</Bytes>")
	if strings.HasPrefix(message, "<Bytes>") {
		return [][]byte{plain}
	}
	return [][]byte{plain, wrapped}
}

func verifySr25519(key, msg, sig []byte) bool {
	var keyArr [publicKeySize]byte
	copy(keyArr[:], key)
	pub := &schnorrkel.PublicKey{}
	if err := pub.Decode(keyArr); err != nil {
		return false
	}

	var sigArr [signatureSize]byte
	copy(sigArr[:], sig)
	s := &schnorrkel.Signature{}
	if err := s.Decode(sigArr); err != nil {
		return false
	}

	ok, err := pub.Verify(s, schnorrkel.NewSigningContext(signingContext, msg))
	return err == nil && ok
}

func decodeHex(s string) ([]byte, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") {
		return nil, false
	}
	raw, err := hex.DecodeString(s[2:])
	if err != nil {
		return nil, false
	}
	return raw, true
}
