package server

import (
	"context"
	"fmt"

	"github.com/polkassembly/governance/internal/auth"
)

type access int

const (
	accessPublic access = iota
	accessUser
)

// operationAccess lists every root field of the schema. Resolvers for
// accessUser fields call viewer first.
var operationAccess = map[string]access{
	"user":                   accessPublic,
	"token":                  accessPublic,
	"signup":                 accessPublic,
	"login":                  accessPublic,
	"twoFactorLogin":         accessPublic,
	"logout":                 accessPublic,
	"verifyEmail":            accessPublic,
	"requestResetPassword":   accessPublic,
	"resetPassword":          accessPublic,
	"undoEmailChange":        accessPublic,
	"addressLoginStart":      accessPublic,
	"addressLogin":           accessPublic,
	"addressSignupStart":     accessPublic,
	"addressSignupConfirm":   accessPublic,
	"changeUsername":         accessUser,
	"changePassword":         accessUser,
	"changeEmail":            accessUser,
	"resendVerifyEmailToken": accessUser,
	"addressLinkStart":       accessUser,
	"addressLinkConfirm":     accessUser,
	"addressUnlink":          accessUser,
	"setDefaultAddress":      accessUser,
	"deleteAccount":          accessUser,
	"reportContent":          accessUser,
	"twoFactorSetupStart":    accessUser,
	"twoFactorSetupConfirm":  accessUser,
	"twoFactorDisable":       accessUser,
}

func accessFor(field string) access {
	a, ok := operationAccess[field]
	if !ok {
		panic(fmt.Sprintf("missing access rule for %s", field))
	}
	return a
}

// viewer returns the id of the authenticated caller of field. A missing or
// invalid bearer token is rejected with UNAUTHORISED.
func viewer(ctx context.Context, field string) (int, error) {
	if accessFor(field) == accessPublic {
		info := requestFromContext(ctx)
		if info.claims == nil {
			return 0, nil
		}
		id, _ := info.claims.UserID()
		return id, nil
	}

	info := requestFromContext(ctx)
	if info.claims == nil || info.tokenErr != nil {
		return 0, &auth.Error{Kind: auth.KindForbidden, Message: auth.MsgUnauthorised}
	}
	id, err := info.claims.UserID()
	if err != nil || id == 0 {
		return 0, &auth.Error{Kind: auth.KindForbidden, Message: auth.MsgUnauthorised}
	}
	return id, nil
}
