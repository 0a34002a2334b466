package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnvFile(t *testing.T) {
	t.Setenv("ENV_FILE", t.TempDir()+"/missing.env")
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	noEnvFile(t)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "secret")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoadRequiresSigningKey(t *testing.T) {
	noEnvFile(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/pa")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("JWT_PRIVATE_KEY", "")
	t.Setenv("JWT_PUBLIC_KEY", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadDefaultsAndCleanup(t *testing.T) {
	noEnvFile(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/pa")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("EMAIL_SERVER_HOST", "'smtp.example.com'")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, ,127.0.0.1")
	t.Setenv("JWT_PRIVATE_KEY", `-----BEGIN KEY-----\nabc\n-----END KEY-----`)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8010", cfg.Port)
	assert.Equal(t, time.Hour, cfg.JWT.TTL)
	assert.Equal(t, 720*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, "smtp.example.com", cfg.Email.Host)
	assert.True(t, cfg.Email.Enabled())
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, cfg.TrustedProxies)
	assert.Equal(t, "-----BEGIN KEY-----\nabc\n-----END KEY-----", cfg.JWT.PrivateKey)
	assert.False(t, cfg.JWT.Asymmetric())
	assert.Equal(t, "https://test.polkassembly.io", cfg.DomainURL())
}

func TestLoadWatcher(t *testing.T) {
	noEnvFile(t)
	t.Setenv("CHAIN_DB_GRAPHQL_URL", "ws://chain-db:4467")
	t.Setenv("TREASURY_TOPIC_ID", "4")
	t.Setenv("PROPOSAL_BOT_USERNAME", "bot")

	cfg, err := LoadWatcher()
	require.NoError(t, err)

	assert.Equal(t, "8019", cfg.HealthPort)
	assert.Equal(t, 6*time.Hour, cfg.ResetInterval)
	assert.Equal(t, 8, cfg.BotLoginRetries)
	assert.Equal(t, 4, cfg.Topics.Treasury)

	missing := cfg.Missing()
	assert.Contains(t, missing, "REACT_APP_HASURA_GRAPHQL_URL")
	assert.Contains(t, missing, "PROPOSAL_BOT_PASSWORD")
	assert.NotContains(t, missing, "TREASURY_TOPIC_ID")
	assert.NotContains(t, missing, "CHAIN_DB_GRAPHQL_URL")
}

func TestLoadWatcherRequiresChainDB(t *testing.T) {
	noEnvFile(t)
	t.Setenv("CHAIN_DB_GRAPHQL_URL", "")

	_, err := LoadWatcher()
	require.Error(t, err)
}
