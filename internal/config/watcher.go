package config

import (
	"fmt"
	"time"
)

// WatcherConfig configures the chain-db watcher.
type WatcherConfig struct {
	DiscussionURL   string        `env:"REACT_APP_HASURA_GRAPHQL_URL"`
	ChainDBURL      string        `env:"CHAIN_DB_GRAPHQL_URL"`
	StartFrom       int           `env:"START_FROM" env-default:"0"`
	HealthPort      string        `env:"HEALTH_PORT" env-default:"8019"`
	ResetInterval   time.Duration `env:"RESET_INTERVAL" env-default:"6h"`
	BotLoginRetries int           `env:"BOT_LOGIN_RETRIES" env-default:"8"`
	LogLevel        string        `env:"LOG_LEVEL" env-default:"debug"`
	LogFile         string        `env:"LOG_FILE"`
	Bot             BotConfig
	Topics          TopicConfig
}

type BotConfig struct {
	UserID   int    `env:"PROPOSAL_BOT_USER_ID"`
	Username string `env:"PROPOSAL_BOT_USERNAME"`
	Password string `env:"PROPOSAL_BOT_PASSWORD"`
}

// TopicConfig carries the discussion topic ids posts are filed under.
type TopicConfig struct {
	Democracy        int `env:"DEMOCRACY_TOPIC_ID"`
	Council          int `env:"COUNCIL_TOPIC_ID"`
	TechCommittee    int `env:"TECH_COMMITTEE_PROPOSAL_TOPIC_ID"`
	Treasury         int `env:"TREASURY_TOPIC_ID"`
	ProposalPostType int `env:"HASURA_PROPOSAL_POST_TYPE_ID"`
}

// Missing enumerates the variables the watcher expects. HEALTH_PORT and
// START_FROM are optional and never reported.
func (c WatcherConfig) Missing() []string {
	checks := []struct {
		name string
		set  bool
	}{
		{"REACT_APP_HASURA_GRAPHQL_URL", c.DiscussionURL != ""},
		{"TREASURY_TOPIC_ID", c.Topics.Treasury != 0},
		{"TECH_COMMITTEE_PROPOSAL_TOPIC_ID", c.Topics.TechCommittee != 0},
		{"DEMOCRACY_TOPIC_ID", c.Topics.Democracy != 0},
		{"HASURA_PROPOSAL_POST_TYPE_ID", c.Topics.ProposalPostType != 0},
		{"PROPOSAL_BOT_USER_ID", c.Bot.UserID != 0},
		{"PROPOSAL_BOT_USERNAME", c.Bot.Username != ""},
		{"PROPOSAL_BOT_PASSWORD", c.Bot.Password != ""},
		{"CHAIN_DB_GRAPHQL_URL", c.ChainDBURL != ""},
		{"COUNCIL_TOPIC_ID", c.Topics.Council != 0},
	}

	var out []string
	for _, chk := range checks {
		if !chk.set {
			out = append(out, chk.name)
		}
	}
	return out
}

func LoadWatcher() (WatcherConfig, error) {
	var cfg WatcherConfig
	if err := read(&cfg); err != nil {
		return WatcherConfig{}, err
	}

	cfg.DiscussionURL = clean(cfg.DiscussionURL)
	cfg.ChainDBURL = clean(cfg.ChainDBURL)
	cfg.Bot.Username = clean(cfg.Bot.Username)
	cfg.Bot.Password = clean(cfg.Bot.Password)

	if cfg.ChainDBURL == "" {
		return WatcherConfig{}, fmt.Errorf("CHAIN_DB_GRAPHQL_URL is required")
	}
	if cfg.ResetInterval <= 0 {
		cfg.ResetInterval = 6 * time.Hour
	}
	if cfg.BotLoginRetries < 0 {
		cfg.BotLoginRetries = 0
	}

	return cfg, nil
}
