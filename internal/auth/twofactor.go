package auth

import (
	"context"
	"strconv"
)

// TwoFactorSetupStart generates a secret and keeps it pending until the user
// proves their authenticator produces matching codes.
func (s *Service) TwoFactorSetupStart(ctx context.Context, userID int) (TwoFactorSetup, error) {
	u, err := s.requireUser(ctx, userID)
	if err != nil {
		return TwoFactorSetup{}, err
	}
	if u.TFAEnabled {
		return TwoFactorSetup{}, userInput(MsgTwoFactorAlreadyEnabled)
	}

	setup, err := s.TOTP.Generate(u.Username)
	if err != nil {
		return TwoFactorSetup{}, internal("generate totp secret", err)
	}
	if err := s.Tokens.Put(ctx, TokenTwoFactorSetup, strconv.Itoa(u.ID), setup.Secret, TwoFactorSetupTTL); err != nil {
		return TwoFactorSetup{}, internal("store totp secret", err)
	}
	return setup, nil
}

func (s *Service) TwoFactorSetupConfirm(ctx context.Context, userID int, code string) (TokenResult, error) {
	u, err := s.requireUser(ctx, userID)
	if err != nil {
		return TokenResult{}, err
	}
	key := strconv.Itoa(u.ID)
	secret, ok, err := s.Tokens.Peek(ctx, TokenTwoFactorSetup, key)
	if err != nil {
		return TokenResult{}, internal("read totp secret", err)
	}
	if !ok {
		return TokenResult{}, userInput(MsgTwoFactorSetupExpired)
	}
	if !s.TOTP.Verify(secret, code) {
		return TokenResult{}, userInput(MsgTwoFactorInvalidCode)
	}
	taken, err := s.Tokens.TakeIfEqual(ctx, TokenTwoFactorSetup, key, secret)
	if err != nil {
		return TokenResult{}, internal("consume totp secret", err)
	}
	if !taken {
		return TokenResult{}, userInput(MsgTwoFactorSetupExpired)
	}

	if err := s.Users.SetTwoFactor(ctx, u.ID, &secret, true); err != nil {
		return TokenResult{}, internal("enable two factor", err)
	}
	u.TFASecret, u.TFAEnabled = &secret, true
	s.audit(ctx, AuditTwoFactor, u.ID, map[string]interface{}{"enabled": true})

	token, err := s.accessToken(ctx, u)
	if err != nil {
		return TokenResult{}, err
	}
	return TokenResult{Message: MsgTwoFactorEnabled, Token: token}, nil
}

func (s *Service) TwoFactorDisable(ctx context.Context, userID int, password, code string) (TokenResult, error) {
	u, err := s.requireUser(ctx, userID)
	if err != nil {
		return TokenResult{}, err
	}
	if !u.TFAEnabled || u.TFASecret == nil {
		return TokenResult{}, userInput(MsgTwoFactorNotEnabled)
	}
	if !checkPassword(s.Hasher, u, password) {
		return TokenResult{}, unauthenticated(MsgIncorrectPassword)
	}
	if !s.TOTP.Verify(*u.TFASecret, code) {
		return TokenResult{}, unauthenticated(MsgTwoFactorInvalidCode)
	}

	if err := s.Users.SetTwoFactor(ctx, u.ID, nil, false); err != nil {
		return TokenResult{}, internal("disable two factor", err)
	}
	u.TFASecret, u.TFAEnabled = nil, false
	s.audit(ctx, AuditTwoFactor, u.ID, map[string]interface{}{"enabled": false})

	token, err := s.accessToken(ctx, u)
	if err != nil {
		return TokenResult{}, err
	}
	return TokenResult{Message: MsgTwoFactorDisabled, Token: token}, nil
}
