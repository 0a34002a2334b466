package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	refreshKeyPrefix     = "refresh_token:"
	userRefreshKeyPrefix = "user_refresh_tokens:"
)

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// RefreshTokenStore keeps opaque refresh tokens. Only their hash is stored;
// a per-user set allows revoking every token of an account at once.
type RefreshTokenStore struct {
	Redis *redis.Client
}

func (s *RefreshTokenStore) Issue(ctx context.Context, userID int, ttl time.Duration) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := hex.EncodeToString(buf)
	hashed := hashToken(token)
	userKey := userRefreshKeyPrefix + strconv.Itoa(userID)

	pipe := s.Redis.TxPipeline()
	pipe.Set(ctx, refreshKeyPrefix+hashed, userID, ttl)
	pipe.SAdd(ctx, userKey, hashed)
	pipe.Expire(ctx, userKey, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}
	return token, nil
}

// Resolve returns the owner of a live refresh token.
func (s *RefreshTokenStore) Resolve(ctx context.Context, token string) (int, bool, error) {
	if token == "" {
		return 0, false, nil
	}
	val, err := s.Redis.Get(ctx, refreshKeyPrefix+hashToken(token)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	id, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, nil
	}
	return id, true, nil
}

func (s *RefreshTokenStore) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	hashed := hashToken(token)
	userID, ok, err := s.Resolve(ctx, token)
	if err != nil {
		return err
	}

	pipe := s.Redis.TxPipeline()
	pipe.Del(ctx, refreshKeyPrefix+hashed)
	if ok {
		pipe.SRem(ctx, userRefreshKeyPrefix+strconv.Itoa(userID), hashed)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RefreshTokenStore) RevokeAll(ctx context.Context, userID int) error {
	userKey := userRefreshKeyPrefix + strconv.Itoa(userID)
	hashes, err := s.Redis.SMembers(ctx, userKey).Result()
	if err != nil {
		return err
	}

	pipe := s.Redis.TxPipeline()
	for _, h := range hashes {
		pipe.Del(ctx, refreshKeyPrefix+h)
	}
	pipe.Del(ctx, userKey)
	_, err = pipe.Exec(ctx)
	return err
}
