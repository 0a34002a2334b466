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

	"github.com/getsentry/sentry-go"

	"github.com/polkassembly/governance/internal/auth"
	"github.com/polkassembly/governance/internal/config"
	"github.com/polkassembly/governance/internal/database"
	"github.com/polkassembly/governance/internal/email"
	"github.com/polkassembly/governance/internal/logging"
	redisx "github.com/polkassembly/governance/internal/redis"
	"github.com/polkassembly/governance/internal/server"
	"github.com/polkassembly/governance/internal/signature"
	"github.com/polkassembly/governance/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	format := logging.FormatJSON
	if cfg.AppEnv == "development" {
		format = logging.FormatConsole
	}
	logger, logCloser, err := logging.Setup(logging.Options{
		Level:  cfg.LogLevel,
		Format: format,
		File:   cfg.LogFile,
	})
	if err != nil {
		log.Fatalf("log setup error: %v", err)
	}
	defer logCloser.Close()

	for _, name := range cfg.Missing() {
		logger.Error("environment variable not set", "name", name)
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.AppEnv,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
		}); err != nil {
			logger.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		fatal(logger, "database error", err)
	}
	defer db.Close()

	applied, err := database.ApplyMigrations(ctx, db, migrations.FS, logger)
	if err != nil {
		fatal(logger, "migration error", err)
	}
	if applied > 0 {
		logger.Info("migrations applied", "count", applied)
	}

	redisClient, err := redisx.New(ctx, cfg.RedisURL)
	if err != nil {
		fatal(logger, "redis error", err)
	}
	defer redisClient.Close()

	issuer, err := auth.NewTokenIssuer(cfg.JWT, auth.BotRoles{
		ProposalBotID: cfg.ProposalBotID,
		EventBotID:    cfg.EventBotID,
	})
	if err != nil {
		fatal(logger, "jwt setup error", err)
	}

	mailer := email.NewSender(cfg.Email)
	svc := &auth.Service{
		Users:      auth.NewUserRepository(db),
		Addresses:  auth.NewAddressRepository(db),
		UndoTokens: auth.NewUndoTokenRepository(db),
		Reports:    auth.NewReportRepository(db),
		Tokens:     &auth.TokenStore{Redis: redisClient},
		Refresh:    &auth.RefreshTokenStore{Redis: redisClient},
		Limiter:    &auth.RateLimiter{Redis: redisClient},
		Audit:      &auth.AuditLogger{Redis: redisClient, MaxLen: 500},
		Issuer:     issuer,
		Hasher:     auth.NewBcryptHasher(),
		TOTP:       auth.NewTOTPService(cfg.TOTPIssuer),
		Verifier:   signature.Substrate{},
		Mail: &email.Notifier{
			Mailer:      mailer,
			DomainURL:   cfg.DomainURL(),
			ReportEmail: cfg.ReportEmail,
			Logger:      logger,
		},
		RefreshTTL: cfg.RefreshTokenTTL,
		Logger:     logger,
	}

	api := server.NewServer(cfg, svc, logger)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	logger.Info("auth server listening", "addr", srv.Addr, "env", cfg.AppEnv, "mail", mailer.Enabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fatal(logger, "server error", err)
	}
	logger.Info("auth server stopped")
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
