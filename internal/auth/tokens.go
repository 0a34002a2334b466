package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TokenKind namespaces one-time tokens in redis.
type TokenKind string

const (
	TokenEmailVerification TokenKind = "VT-"
	TokenPasswordReset     TokenKind = "PRT-"
	TokenAddressLogin      TokenKind = "ALN-"
	TokenAddressSignup     TokenKind = "ASU-"
	TokenTwoFactorLogin    TokenKind = "TFA-"
	TokenTwoFactorSetup    TokenKind = "TFS-"
)

const (
	EmailVerificationTTL = 24 * time.Hour
	PasswordResetTTL     = 24 * time.Hour
	AddressLoginTTL      = 5 * time.Minute
	AddressSignupTTL     = 5 * time.Minute
	TwoFactorLoginTTL    = 5 * time.Minute
	TwoFactorSetupTTL    = 10 * time.Minute
)

// takeIfEqual deletes KEYS[1] only while it still holds ARGV[1].
var takeIfEqual = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// TokenStore keeps short-lived single-use values with an explicit expiry.
type TokenStore struct {
	Redis *redis.Client
}

func NewToken() string {
	return uuid.NewString()
}

func (s *TokenStore) Put(ctx context.Context, kind TokenKind, key, value string, ttl time.Duration) error {
	return s.Redis.Set(ctx, string(kind)+key, value, ttl).Err()
}

// Peek reads a token without consuming it.
func (s *TokenStore) Peek(ctx context.Context, kind TokenKind, key string) (string, bool, error) {
	val, err := s.Redis.Get(ctx, string(kind)+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Take reads and deletes a token in one step; a second Take finds nothing.
func (s *TokenStore) Take(ctx context.Context, kind TokenKind, key string) (string, bool, error) {
	val, err := s.Redis.GetDel(ctx, string(kind)+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// TakeIfEqual consumes the token only if it still holds expected. Of two
// concurrent callers with the same value exactly one gets true.
func (s *TokenStore) TakeIfEqual(ctx context.Context, kind TokenKind, key, expected string) (bool, error) {
	n, err := takeIfEqual.Run(ctx, s.Redis, []string{string(kind) + key}, expected).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *TokenStore) Delete(ctx context.Context, kind TokenKind, key string) error {
	return s.Redis.Del(ctx, string(kind)+key).Err()
}
