package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds everything the auth server needs. It is loaded once in main
// and handed to the collaborators that need it.
type Config struct {
	Port            string        `env:"PORT" env-default:"8010"`
	AppEnv          string        `env:"APP_ENV" env-default:"development"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	RedisURL        string        `env:"REDIS_URL" env-default:"redis://localhost:6379"`
	LogFile         string        `env:"LOG_FILE"`
	LogLevel        string        `env:"LOG_LEVEL" env-default:"info"`
	SentryDSN       string        `env:"SENTRY_DSN"`
	DomainProtocol  string        `env:"DOMAIN_PROTOCOL" env-default:"https://"`
	DomainName      string        `env:"DOMAIN_NAME" env-default:"test.polkassembly.io"`
	TOTPIssuer      string        `env:"TOTP_ISSUER" env-default:"Polkassembly"`
	ReportEmail     string        `env:"REPORT_EMAIL"`
	TrustedProxies  []string      `env:"TRUSTED_PROXIES" env-separator:","`
	ProposalBotID   int           `env:"PROPOSAL_BOT_USER_ID"`
	EventBotID      int           `env:"EVENT_BOT_USER_ID"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" env-default:"720h"`
	JWT             JWTConfig
	Email           EmailConfig
}

type JWTConfig struct {
	PrivateKey string        `env:"JWT_PRIVATE_KEY"`
	PublicKey  string        `env:"JWT_PUBLIC_KEY"`
	Secret     string        `env:"JWT_SECRET"`
	Issuer     string        `env:"JWT_ISSUER" env-default:"polkassembly"`
	TTL        time.Duration `env:"JWT_TTL" env-default:"1h"`
}

// Asymmetric reports whether tokens are signed with an RSA key pair.
func (j JWTConfig) Asymmetric() bool {
	return j.PrivateKey != "" && j.PublicKey != ""
}

type EmailConfig struct {
	Host     string `env:"EMAIL_SERVER_HOST"`
	Port     int    `env:"EMAIL_SERVER_PORT" env-default:"587"`
	Username string `env:"EMAIL_SERVER_USER"`
	Password string `env:"EMAIL_SERVER_PASSWORD"`
	From     string `env:"EMAIL_FROM" env-default:"noreply@polkassembly.io"`
	Secure   bool   `env:"EMAIL_SERVER_SECURE"`
}

func (e EmailConfig) Enabled() bool {
	return e.Host != "" && e.Port != 0 && e.From != ""
}

// DomainURL is the public front-end origin used in email links.
func (c Config) DomainURL() string {
	return strings.TrimSuffix(c.DomainProtocol+c.DomainName, "/")
}

// Missing lists optional-but-expected variables that are unset.
func (c Config) Missing() []string {
	var out []string
	if c.RedisURL == "" {
		out = append(out, "REDIS_URL")
	}
	if !c.Email.Enabled() {
		out = append(out, "EMAIL_SERVER_HOST")
	}
	if c.ProposalBotID == 0 {
		out = append(out, "PROPOSAL_BOT_USER_ID")
	}
	if c.ReportEmail == "" {
		out = append(out, "REPORT_EMAIL")
	}
	return out
}

func Load() (Config, error) {
	var cfg Config
	if err := read(&cfg); err != nil {
		return Config{}, err
	}

	cfg.Email.Host = clean(cfg.Email.Host)
	cfg.Email.Username = clean(cfg.Email.Username)
	cfg.Email.Password = clean(cfg.Email.Password)
	cfg.Email.From = clean(cfg.Email.From)
	cfg.JWT.PrivateKey = pemFromEnv(cfg.JWT.PrivateKey)
	cfg.JWT.PublicKey = pemFromEnv(cfg.JWT.PublicKey)
	cfg.TrustedProxies = parseList(strings.Join(cfg.TrustedProxies, ","))

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if !cfg.JWT.Asymmetric() && cfg.JWT.Secret == "" {
		return Config{}, fmt.Errorf("JWT_PRIVATE_KEY/JWT_PUBLIC_KEY or JWT_SECRET is required")
	}

	return cfg, nil
}

// read populates cfg from an optional dotenv file, then from the process
// environment which always wins.
func read(cfg interface{}) error {
	path := firstNonEmpty(os.Getenv("ENV_FILE"), ".env")
	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	return nil
}

func clean(val string) string {
	return strings.Trim(val, "\"' \t\r\n")
}

// pemFromEnv restores newlines in keys passed as single-line env values.
func pemFromEnv(val string) string {
	return strings.ReplaceAll(clean(val), `\n`, "\n")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseList(val string) []string {
	parts := strings.Split(val, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
