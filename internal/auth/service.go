package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/polkassembly/governance/internal/signature"
)

type UserStore interface {
	Create(ctx context.Context, u NewUser) (*User, error)
	FindByID(ctx context.Context, id int) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	UpdateUsername(ctx context.Context, id int, username string) error
	UpdatePassword(ctx context.Context, id int, hash string) error
	UpdateEmail(ctx context.Context, id int, email string, verified bool) error
	SetEmailVerified(ctx context.Context, id int) error
	SetTwoFactor(ctx context.Context, id int, secret *string, enabled bool) error
	Delete(ctx context.Context, id int) error
}

type AddressStore interface {
	Create(ctx context.Context, a Address) (*Address, error)
	FindByID(ctx context.Context, id int) (*Address, error)
	FindForUser(ctx context.Context, userID int, network Network, address string) (*Address, error)
	FindVerified(ctx context.Context, address string) (*Address, error)
	ListByUser(ctx context.Context, userID int) ([]Address, error)
	SetSignMessage(ctx context.Context, id int, msg string) error
	MarkVerified(ctx context.Context, id int, signMessage string, makeDefault bool) (bool, error)
	SetDefault(ctx context.Context, userID int, network Network, id int) error
	Delete(ctx context.Context, id int) error
}

type UndoTokenStore interface {
	Create(ctx context.Context, userID int, email, token string) error
	Find(ctx context.Context, token string) (*UndoEmailChangeToken, error)
	Invalidate(ctx context.Context, id int) (bool, error)
}

type ReportStore interface {
	Create(ctx context.Context, r ContentReport) (bool, error)
}

// Notifier delivers transactional mail. Implementations log failures
// instead of returning them; a mail problem never fails the caller.
type Notifier interface {
	SendVerification(ctx context.Context, u *User, token string)
	SendPasswordReset(ctx context.Context, u *User, token string)
	SendUndoEmailChange(ctx context.Context, u *User, oldEmail, token string)
	SendContentReport(ctx context.Context, r ContentReport, reporter *User)
}

// Service implements every account, credential and address operation of
// the auth server. Collaborators are wired once in main.
type Service struct {
	Users      UserStore
	Addresses  AddressStore
	UndoTokens UndoTokenStore
	Reports    ReportStore

	Tokens  *TokenStore
	Refresh *RefreshTokenStore
	Limiter *RateLimiter
	Audit   *AuditLogger

	Issuer   *TokenIssuer
	Hasher   PasswordHasher
	TOTP     TOTPVerifier
	Verifier signature.Verifier
	Mail     Notifier

	RefreshTTL time.Duration
	Logger     *slog.Logger
}

// Session is returned by every successful login path.
type Session struct {
	UserID       int
	Token        string
	RefreshToken string
	// TFARequired means Token is empty and TFAToken must be exchanged
	// through TwoFactorLogin.
	TFARequired bool
	TFAToken    string
}

type MessageResult struct {
	Message string
}

type TokenResult struct {
	Message string
	Token   string
}

type UndoEmailResult struct {
	Message string
	Email   string
	Token   string
}

type ChallengeResult struct {
	Message     string
	AddressID   int
	SignMessage string
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *Service) refreshTTL() time.Duration {
	if s.RefreshTTL <= 0 {
		return 30 * 24 * time.Hour
	}
	return s.RefreshTTL
}

func (s *Service) audit(ctx context.Context, event string, userID int, meta map[string]interface{}) {
	if err := s.Audit.Log(ctx, AuditEvent{EventType: event, UserID: userID, Meta: meta}); err != nil {
		s.logger().Warn("audit log write failed", "event", event, "user_id", userID, "error", err)
	}
}

// accessToken signs a fresh JWT for u reflecting its current addresses.
func (s *Service) accessToken(ctx context.Context, u *User) (string, error) {
	addresses, err := s.Addresses.ListByUser(ctx, u.ID)
	if err != nil {
		return "", internal("list addresses", err)
	}
	token, err := s.Issuer.Issue(u, addresses)
	if err != nil {
		return "", internal("sign token", err)
	}
	return token, nil
}

func (s *Service) accessTokenFor(ctx context.Context, userID int) (string, error) {
	u, err := s.requireUser(ctx, userID)
	if err != nil {
		return "", err
	}
	return s.accessToken(ctx, u)
}

func (s *Service) startSession(ctx context.Context, u *User) (Session, error) {
	token, err := s.accessToken(ctx, u)
	if err != nil {
		return Session{}, err
	}
	refresh, err := s.Refresh.Issue(ctx, u.ID, s.refreshTTL())
	if err != nil {
		return Session{}, internal("issue refresh token", err)
	}
	return Session{UserID: u.ID, Token: token, RefreshToken: refresh}, nil
}

func (s *Service) requireUser(ctx context.Context, userID int) (*User, error) {
	if userID == 0 {
		return nil, forbidden(MsgUnauthorised)
	}
	u, err := s.Users.FindByID(ctx, userID)
	if err != nil {
		return nil, internal("find user", err)
	}
	if u == nil {
		return nil, notFound(MsgUserNotFound)
	}
	return u, nil
}
