package auth

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	AuditLogin           = "login"
	AuditAddressLogin    = "address_login"
	AuditAddressLinked   = "address_linked"
	AuditAddressUnlinked = "address_unlinked"
	AuditPasswordChanged = "password_changed"
	AuditPasswordReset   = "password_reset"
	AuditEmailChanged    = "email_changed"
	AuditEmailRestored   = "email_restored"
	AuditTwoFactor       = "two_factor_changed"
	AuditAccountDeleted  = "account_deleted"
	AuditSignup          = "signup"
)

type AuditEvent struct {
	EventType string                 `json:"eventType"`
	UserID    int                    `json:"userId,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
}

// AuditLogger appends security events to capped per-user redis lists.
type AuditLogger struct {
	Redis  *redis.Client
	MaxLen int64
}

func (a *AuditLogger) Log(ctx context.Context, e AuditEvent) error {
	if a == nil {
		return nil
	}
	e.Timestamp = time.Now().UTC()
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	key := "audit"
	if e.UserID != 0 {
		key = "audit:" + strconv.Itoa(e.UserID)
	}

	pipe := a.Redis.Pipeline()
	pipe.RPush(ctx, key, data)
	if a.MaxLen > 0 {
		pipe.LTrim(ctx, key, -a.MaxLen, -1)
	}

	_, err = pipe.Exec(ctx)
	return err
}

// Recent returns up to n latest events for a user, newest last.
func (a *AuditLogger) Recent(ctx context.Context, userID int, n int64) ([]AuditEvent, error) {
	raw, err := a.Redis.LRange(ctx, "audit:"+strconv.Itoa(userID), -n, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]AuditEvent, 0, len(raw))
	for _, r := range raw {
		var e AuditEvent
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
