package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/polkassembly/governance/internal/config"
	"github.com/polkassembly/governance/internal/logging"
	"github.com/polkassembly/governance/internal/retry"
	"github.com/polkassembly/governance/internal/watcher"
)

func main() {
	cfg, err := config.LoadWatcher()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, logCloser, err := logging.Setup(logging.Options{
		Level:  cfg.LogLevel,
		Format: logging.FormatConsole,
		File:   cfg.LogFile,
	})
	if err != nil {
		log.Fatalf("log setup error: %v", err)
	}
	defer logCloser.Close()

	for _, name := range cfg.Missing() {
		logger.Error("environment variable not set", "name", name)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	discussion := watcher.NewDiscussionClient(cfg.DiscussionURL)
	syncer := &watcher.Syncer{
		Discussion: discussion,
		Chain:      watcher.NewChainClient(cfg.ChainDBURL),
		Auth: &watcher.BotAuth{
			URL:        cfg.DiscussionURL,
			Username:   cfg.Bot.Username,
			Password:   cfg.Bot.Password,
			Discussion: discussion,
			Policy: retry.Policy{
				MaxAttempts: cfg.BotLoginRetries + 1,
				Base:        time.Second,
				Max:         time.Minute,
			},
			Logger: logger,
		},
		Topics:     cfg.Topics,
		BotUserID:  cfg.Bot.UserID,
		StartBlock: cfg.StartFrom,
		Logger:     logger,
	}
	w := &watcher.Watcher{
		Syncer: syncer,
		NewSubscriber: func() watcher.Subscriber {
			return watcher.NewChainSubscriber(cfg.ChainDBURL, logger)
		},
		StartBlock:    cfg.StartFrom,
		ResetInterval: cfg.ResetInterval,
		Logger:        logger,
	}

	health := &http.Server{
		Addr:              ":" + cfg.HealthPort,
		Handler:           watcher.HealthHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("health endpoint listening", "addr", health.Addr)
		if err := health.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health endpoint stopped", "error", err)
		}
	}()

	if err := w.Run(ctx); err != nil {
		logger.Error("watcher stopped", "error", err)
	}
	shutdown(logger, health)
	logger.Info("chain db watcher stopped")
}

func shutdown(logger *slog.Logger, srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("health endpoint shutdown", "error", err)
	}
}
