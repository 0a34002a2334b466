package auth

import (
	"context"
	"strconv"
	"strings"
)

type SignupInput struct {
	Username string
	Email    string
	Password string
}

func (s *Service) Signup(ctx context.Context, in SignupInput) (Session, error) {
	username := strings.TrimSpace(in.Username)
	email := normalizeEmail(in.Email)

	if !validUsername(username) {
		return Session{}, userInput(MsgUsernameInvalid)
	}
	if !validEmail(email) {
		return Session{}, userInput(MsgEmailInvalid)
	}
	if !validPassword(in.Password) {
		return Session{}, userInput(MsgPasswordInvalid)
	}

	if existing, err := s.Users.FindByUsername(ctx, username); err != nil {
		return Session{}, internal("find user by username", err)
	} else if existing != nil {
		return Session{}, userInput(MsgUsernameExists)
	}
	if existing, err := s.Users.FindByEmail(ctx, email); err != nil {
		return Session{}, internal("find user by email", err)
	} else if existing != nil {
		return Session{}, userInput(MsgEmailExists)
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return Session{}, internal("hash password", err)
	}
	u, err := s.Users.Create(ctx, NewUser{Username: username, Email: email, PasswordHash: hash})
	if err != nil {
		return Session{}, internal("create user", err)
	}

	s.sendVerification(ctx, u)
	s.audit(ctx, AuditSignup, u.ID, nil)
	return s.startSession(ctx, u)
}

// Login accepts a username or an email address. Failures count against the
// client IP and a ban window rejects further attempts.
func (s *Service) Login(ctx context.Context, ip, username, password string) (Session, error) {
	if s.Limiter.IsIPBanned(ctx, ip) {
		return Session{}, forbidden(MsgTooManyTries)
	}

	username = strings.TrimSpace(username)
	var (
		u   *User
		err error
	)
	if strings.Contains(username, "@") {
		u, err = s.Users.FindByEmail(ctx, normalizeEmail(username))
	} else {
		u, err = s.Users.FindByUsername(ctx, username)
	}
	if err != nil {
		return Session{}, internal("find user", err)
	}
	if u == nil {
		s.loginFailed(ctx, ip)
		return Session{}, unauthenticated(MsgNoUserFound)
	}
	if !s.Hasher.Compare(u.PasswordHash, password) {
		s.loginFailed(ctx, ip)
		return Session{}, unauthenticated(MsgIncorrectPassword)
	}

	s.Limiter.ResetLogin(ctx, ip)
	s.audit(ctx, AuditLogin, u.ID, map[string]interface{}{"ip": ip})
	return s.completeLogin(ctx, u)
}

func (s *Service) loginFailed(ctx context.Context, ip string) {
	if err := s.Limiter.RegisterLoginFailure(ctx, ip); err != nil {
		s.logger().Warn("register login failure", "ip", ip, "error", err)
	}
}

// TwoFactorLogin finishes a login parked by completeLogin.
func (s *Service) TwoFactorLogin(ctx context.Context, pending, code string) (Session, error) {
	raw, ok, err := s.Tokens.Peek(ctx, TokenTwoFactorLogin, pending)
	if err != nil {
		return Session{}, internal("read two factor token", err)
	}
	if !ok {
		return Session{}, unauthenticated(MsgTwoFactorTokenExpired)
	}
	userID, err := strconv.Atoi(raw)
	if err != nil {
		return Session{}, unauthenticated(MsgTwoFactorTokenExpired)
	}
	u, err := s.requireUser(ctx, userID)
	if err != nil {
		return Session{}, err
	}

	secret := ""
	if u.TFASecret != nil {
		secret = *u.TFASecret
	}
	if !s.TOTP.Verify(secret, code) {
		exhausted, err := s.Limiter.Register2FAFailure(ctx, u.ID)
		if err != nil {
			s.logger().Warn("register 2fa failure", "user_id", u.ID, "error", err)
		}
		if exhausted {
			_ = s.Tokens.Delete(ctx, TokenTwoFactorLogin, pending)
			return Session{}, forbidden(MsgTooManyTries)
		}
		return Session{}, unauthenticated(MsgTwoFactorInvalidCode)
	}

	taken, err := s.Tokens.TakeIfEqual(ctx, TokenTwoFactorLogin, pending, raw)
	if err != nil {
		return Session{}, internal("consume two factor token", err)
	}
	if !taken {
		return Session{}, unauthenticated(MsgTwoFactorTokenExpired)
	}

	s.Limiter.Reset2FA(ctx, u.ID)
	return s.startSession(ctx, u)
}

func (s *Service) Logout(ctx context.Context, refreshToken string) (MessageResult, error) {
	if err := s.Refresh.Revoke(ctx, refreshToken); err != nil {
		return MessageResult{}, internal("revoke refresh token", err)
	}
	return MessageResult{Message: MsgLogoutSuccessful}, nil
}

// RefreshToken signs a new access token for the owner of refreshToken.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	userID, ok, err := s.Refresh.Resolve(ctx, refreshToken)
	if err != nil {
		return "", internal("resolve refresh token", err)
	}
	if !ok {
		return "", unauthenticated(MsgRefreshTokenInvalid)
	}
	return s.accessTokenFor(ctx, userID)
}

func (s *Service) ChangeUsername(ctx context.Context, userID int, username, password string) (TokenResult, error) {
	u, err := s.requireUser(ctx, userID)
	if err != nil {
		return TokenResult{}, err
	}
	username = strings.TrimSpace(username)
	if !validUsername(username) {
		return TokenResult{}, userInput(MsgUsernameInvalid)
	}
	if !checkPassword(s.Hasher, u, password) {
		return TokenResult{}, unauthenticated(MsgIncorrectPassword)
	}

	existing, err := s.Users.FindByUsername(ctx, username)
	if err != nil {
		return TokenResult{}, internal("find user by username", err)
	}
	if existing != nil {
		return TokenResult{}, userInput(MsgUsernameExists)
	}
	if err := s.Users.UpdateUsername(ctx, u.ID, username); err != nil {
		return TokenResult{}, internal("update username", err)
	}
	u.Username = username

	token, err := s.accessToken(ctx, u)
	if err != nil {
		return TokenResult{}, err
	}
	return TokenResult{Message: MsgUsernameChangeSuccessful, Token: token}, nil
}

// ChangePassword revokes every refresh token of the account on success.
func (s *Service) ChangePassword(ctx context.Context, userID int, oldPassword, newPassword string) (MessageResult, error) {
	u, err := s.requireUser(ctx, userID)
	if err != nil {
		return MessageResult{}, err
	}
	if !validPassword(newPassword) {
		return MessageResult{}, userInput(MsgPasswordInvalid)
	}
	if !checkPassword(s.Hasher, u, oldPassword) {
		return MessageResult{}, unauthenticated(MsgIncorrectPassword)
	}

	if err := s.setPassword(ctx, u.ID, newPassword); err != nil {
		return MessageResult{}, err
	}
	s.audit(ctx, AuditPasswordChanged, u.ID, nil)
	return MessageResult{Message: MsgPasswordChangeSuccessful}, nil
}

func (s *Service) setPassword(ctx context.Context, userID int, password string) error {
	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return internal("hash password", err)
	}
	if err := s.Users.UpdatePassword(ctx, userID, hash); err != nil {
		return internal("update password", err)
	}
	if err := s.Refresh.RevokeAll(ctx, userID); err != nil {
		s.logger().Warn("revoke refresh tokens", "user_id", userID, "error", err)
	}
	return nil
}

// ChangeEmail switches to an unverified new address. When an old address
// existed it receives an undo link that restores it.
func (s *Service) ChangeEmail(ctx context.Context, userID int, email, password string) (TokenResult, error) {
	u, err := s.requireUser(ctx, userID)
	if err != nil {
		return TokenResult{}, err
	}
	email = normalizeEmail(email)
	if !validEmail(email) {
		return TokenResult{}, userInput(MsgEmailInvalid)
	}
	if !checkPassword(s.Hasher, u, password) {
		return TokenResult{}, unauthenticated(MsgIncorrectPassword)
	}

	existing, err := s.Users.FindByEmail(ctx, email)
	if err != nil {
		return TokenResult{}, internal("find user by email", err)
	}
	if existing != nil {
		return TokenResult{}, userInput(MsgEmailExists)
	}

	oldEmail := u.Email
	var undoToken string
	if oldEmail != "" {
		undoToken = NewToken()
		if err := s.UndoTokens.Create(ctx, u.ID, oldEmail, undoToken); err != nil {
			return TokenResult{}, internal("create undo token", err)
		}
	}

	if err := s.Users.UpdateEmail(ctx, u.ID, email, false); err != nil {
		return TokenResult{}, internal("update email", err)
	}
	u.Email, u.EmailVerified = email, false

	if undoToken != "" {
		s.Mail.SendUndoEmailChange(ctx, u, oldEmail, undoToken)
	}
	s.sendVerification(ctx, u)
	s.audit(ctx, AuditEmailChanged, u.ID, nil)

	token, err := s.accessToken(ctx, u)
	if err != nil {
		return TokenResult{}, err
	}
	return TokenResult{Message: MsgEmailChangeRequestSuccess, Token: token}, nil
}

// sendVerification stores a VT- token bound to the user's current email
// and mails it. Failures are logged only.
func (s *Service) sendVerification(ctx context.Context, u *User) {
	token := NewToken()
	value := strconv.Itoa(u.ID) + ":" + u.Email
	if err := s.Tokens.Put(ctx, TokenEmailVerification, token, value, EmailVerificationTTL); err != nil {
		s.logger().Error("store verification token", "user_id", u.ID, "error", err)
		return
	}
	s.Mail.SendVerification(ctx, u, token)
}

func (s *Service) VerifyEmail(ctx context.Context, token string) (TokenResult, error) {
	raw, ok, err := s.Tokens.Take(ctx, TokenEmailVerification, token)
	if err != nil {
		return TokenResult{}, internal("consume verification token", err)
	}
	if !ok {
		return TokenResult{}, unauthenticated(MsgEmailVerificationNotFound)
	}

	idPart, email, _ := strings.Cut(raw, ":")
	userID, err := strconv.Atoi(idPart)
	if err != nil {
		return TokenResult{}, unauthenticated(MsgEmailVerificationNotFound)
	}
	u, err := s.Users.FindByID(ctx, userID)
	if err != nil {
		return TokenResult{}, internal("find user", err)
	}
	// The address changed after the mail went out.
	if u == nil || !strings.EqualFold(u.Email, email) {
		return TokenResult{}, unauthenticated(MsgEmailVerificationNotFound)
	}
	if u.EmailVerified {
		return TokenResult{}, userInput(MsgEmailAlreadyVerified)
	}

	if err := s.Users.SetEmailVerified(ctx, u.ID); err != nil {
		return TokenResult{}, internal("verify email", err)
	}
	u.EmailVerified = true

	jwt, err := s.accessToken(ctx, u)
	if err != nil {
		return TokenResult{}, err
	}
	return TokenResult{Message: MsgEmailVerificationSuccess, Token: jwt}, nil
}

func (s *Service) ResendVerifyEmailToken(ctx context.Context, userID int) (MessageResult, error) {
	u, err := s.requireUser(ctx, userID)
	if err != nil {
		return MessageResult{}, err
	}
	if u.Email == "" {
		return MessageResult{}, userInput(MsgEmailNotSet)
	}
	if u.EmailVerified {
		return MessageResult{}, userInput(MsgEmailAlreadyVerified)
	}

	allowed, _, err := s.Limiter.AllowEmail(ctx, "verify", u.Email)
	if err != nil {
		return MessageResult{}, internal("email cooldown", err)
	}
	if !allowed {
		return MessageResult{}, userInput(MsgEmailCooldown)
	}

	s.sendVerification(ctx, u)
	return MessageResult{Message: MsgEmailResendSuccess}, nil
}

// RequestResetPassword answers the same way whether or not the account
// exists.
func (s *Service) RequestResetPassword(ctx context.Context, email string) (MessageResult, error) {
	email = normalizeEmail(email)
	if !validEmail(email) {
		return MessageResult{}, userInput(MsgEmailInvalid)
	}
	generic := MessageResult{Message: MsgResetPasswordReturn}

	u, err := s.Users.FindByEmail(ctx, email)
	if err != nil {
		return MessageResult{}, internal("find user by email", err)
	}
	if u == nil {
		return generic, nil
	}

	allowed, _, err := s.Limiter.AllowEmail(ctx, "reset", email)
	if err != nil {
		return MessageResult{}, internal("email cooldown", err)
	}
	if !allowed {
		return generic, nil
	}

	token := NewToken()
	if err := s.Tokens.Put(ctx, TokenPasswordReset, token, strconv.Itoa(u.ID), PasswordResetTTL); err != nil {
		return MessageResult{}, internal("store reset token", err)
	}
	s.Mail.SendPasswordReset(ctx, u, token)
	return generic, nil
}

func (s *Service) ResetPassword(ctx context.Context, token string, userID int, newPassword string) (MessageResult, error) {
	if !validPassword(newPassword) {
		return MessageResult{}, userInput(MsgPasswordInvalid)
	}
	taken, err := s.Tokens.TakeIfEqual(ctx, TokenPasswordReset, token, strconv.Itoa(userID))
	if err != nil {
		return MessageResult{}, internal("consume reset token", err)
	}
	if !taken {
		return MessageResult{}, unauthenticated(MsgPasswordResetInvalid)
	}

	if _, err := s.requireUser(ctx, userID); err != nil {
		return MessageResult{}, err
	}
	if err := s.setPassword(ctx, userID, newPassword); err != nil {
		return MessageResult{}, err
	}
	s.audit(ctx, AuditPasswordReset, userID, nil)
	return MessageResult{Message: MsgPasswordResetSuccessful}, nil
}

// UndoEmailChange restores the email recorded in the undo token and marks it
// verified, since the user proved access by following the link.
func (s *Service) UndoEmailChange(ctx context.Context, token string) (UndoEmailResult, error) {
	undo, err := s.UndoTokens.Find(ctx, token)
	if err != nil {
		return UndoEmailResult{}, internal("find undo token", err)
	}
	if undo == nil || !undo.Valid {
		return UndoEmailResult{}, unauthenticated(MsgEmailUndoTokenNotFound)
	}

	ok, err := s.UndoTokens.Invalidate(ctx, undo.ID)
	if err != nil {
		return UndoEmailResult{}, internal("invalidate undo token", err)
	}
	if !ok {
		return UndoEmailResult{}, unauthenticated(MsgEmailUndoTokenNotFound)
	}

	u, err := s.requireUser(ctx, undo.UserID)
	if err != nil {
		return UndoEmailResult{}, err
	}
	if err := s.Users.UpdateEmail(ctx, u.ID, undo.Email, true); err != nil {
		return UndoEmailResult{}, internal("restore email", err)
	}
	u.Email, u.EmailVerified = undo.Email, true
	s.audit(ctx, AuditEmailRestored, u.ID, nil)

	jwt, err := s.accessToken(ctx, u)
	if err != nil {
		return UndoEmailResult{}, err
	}
	return UndoEmailResult{Message: MsgEmailUndoSuccessful, Email: undo.Email, Token: jwt}, nil
}

func (s *Service) DeleteAccount(ctx context.Context, userID int, password string) (MessageResult, error) {
	u, err := s.requireUser(ctx, userID)
	if err != nil {
		return MessageResult{}, err
	}
	if !checkPassword(s.Hasher, u, password) {
		return MessageResult{}, unauthenticated(MsgIncorrectPassword)
	}
	if err := s.Users.Delete(ctx, u.ID); err != nil {
		return MessageResult{}, internal("delete user", err)
	}
	if err := s.Refresh.RevokeAll(ctx, u.ID); err != nil {
		s.logger().Warn("revoke refresh tokens", "user_id", u.ID, "error", err)
	}
	s.audit(ctx, AuditAccountDeleted, u.ID, nil)
	return MessageResult{Message: MsgUserDeleted}, nil
}

type ReportInput struct {
	Network   string
	Type      string
	ContentID string
	Reason    string
	Comments  string
}

func (s *Service) ReportContent(ctx context.Context, userID int, in ReportInput) (MessageResult, error) {
	u, err := s.requireUser(ctx, userID)
	if err != nil {
		return MessageResult{}, err
	}
	n, ok := ParseNetwork(in.Network)
	if !ok {
		return MessageResult{}, userInput(MsgInvalidNetwork)
	}
	if _, ok := reportTypes[in.Type]; !ok ||
		strings.TrimSpace(in.ContentID) == "" ||
		strings.TrimSpace(in.Reason) == "" ||
		len(in.Comments) > maxReportCommentLength {
		return MessageResult{}, userInput(MsgContentReportInvalid)
	}

	report := ContentReport{
		Network:   n,
		Type:      in.Type,
		ContentID: strings.TrimSpace(in.ContentID),
		Reason:    strings.TrimSpace(in.Reason),
		Comments:  in.Comments,
		UserID:    u.ID,
	}
	created, err := s.Reports.Create(ctx, report)
	if err != nil {
		return MessageResult{}, internal("create report", err)
	}
	if !created {
		return MessageResult{}, userInput(MsgContentReportExists)
	}

	s.Mail.SendContentReport(ctx, report, u)
	return MessageResult{Message: MsgContentReportSuccessful}, nil
}

// Profile is the public view of a user.
type Profile struct {
	ID        int
	Username  string
	Addresses []Address
}

// User returns nil when the id is unknown.
func (s *Service) User(ctx context.Context, id int) (*Profile, error) {
	u, err := s.Users.FindByID(ctx, id)
	if err != nil {
		return nil, internal("find user", err)
	}
	if u == nil {
		return nil, nil
	}
	all, err := s.Addresses.ListByUser(ctx, u.ID)
	if err != nil {
		return nil, internal("list addresses", err)
	}
	p := &Profile{ID: u.ID, Username: u.Username}
	for _, a := range all {
		if a.Verified {
			p.Addresses = append(p.Addresses, a)
		}
	}
	return p, nil
}
