package auth

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	loginMaxAttempts = 5
	loginAttemptTTL  = 10 * time.Minute
	loginBanTTL      = 1 * time.Hour
	twoFAMaxAttempts = 5
	twoFAAttemptTTL  = 10 * time.Minute
	EmailCooldown    = 60 * time.Second
)

// RateLimiter throttles password guessing and outgoing mail. A nil
// *RateLimiter allows everything.
type RateLimiter struct {
	Redis *redis.Client
}

func loginAttemptKey(ip string) string { return "login_attempts:" + ip }
func loginBanKey(ip string) string     { return "login_ban:" + ip }
func twoFAKey(userID int) string       { return "2fa_attempts:" + strconv.Itoa(userID) }

func emailCooldownKey(purpose, subject string) string {
	return "email_cooldown:" + purpose + ":" + strings.ToLower(subject)
}

func (r *RateLimiter) IsIPBanned(ctx context.Context, ip string) bool {
	if r == nil || ip == "" {
		return false
	}
	exists, _ := r.Redis.Exists(ctx, loginBanKey(ip)).Result()
	return exists == 1
}

func (r *RateLimiter) RegisterLoginFailure(ctx context.Context, ip string) error {
	if r == nil || ip == "" {
		return nil
	}
	key := loginAttemptKey(ip)

	attempts, err := r.Redis.Incr(ctx, key).Result()
	if err != nil {
		return err
	}
	if attempts == 1 {
		r.Redis.Expire(ctx, key, loginAttemptTTL)
	}
	if attempts >= loginMaxAttempts {
		r.Redis.Set(ctx, loginBanKey(ip), "1", loginBanTTL)
		r.Redis.Expire(ctx, key, loginBanTTL)
	}
	return nil
}

func (r *RateLimiter) ResetLogin(ctx context.Context, ip string) {
	if r == nil || ip == "" {
		return
	}
	r.Redis.Del(ctx, loginAttemptKey(ip))
}

// Register2FAFailure reports true once the user has exhausted attempts.
func (r *RateLimiter) Register2FAFailure(ctx context.Context, userID int) (bool, error) {
	if r == nil {
		return false, nil
	}
	key := twoFAKey(userID)
	attempts, err := r.Redis.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if attempts == 1 {
		r.Redis.Expire(ctx, key, twoFAAttemptTTL)
	}
	return attempts >= twoFAMaxAttempts, nil
}

func (r *RateLimiter) Reset2FA(ctx context.Context, userID int) {
	if r == nil {
		return
	}
	r.Redis.Del(ctx, twoFAKey(userID))
}

// AllowEmail claims the cooldown slot for purpose/subject. It returns false
// with the remaining wait while a previous mail is still cooling down.
func (r *RateLimiter) AllowEmail(ctx context.Context, purpose, subject string) (bool, time.Duration, error) {
	if r == nil {
		return true, 0, nil
	}
	key := emailCooldownKey(purpose, subject)
	ok, err := r.Redis.SetNX(ctx, key, "1", EmailCooldown).Result()
	if err != nil {
		return false, 0, err
	}
	if ok {
		return true, 0, nil
	}
	ttl, _ := r.Redis.TTL(ctx, key).Result()
	return false, ttl, nil
}
