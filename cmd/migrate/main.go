package main

import (
	"context"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/polkassembly/governance/internal/database"
	"github.com/polkassembly/governance/internal/logging"
	"github.com/polkassembly/governance/migrations"
)

func main() {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	logger, closer, err := logging.Setup(logging.Options{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: logging.FormatConsole,
	})
	if err != nil {
		log.Fatalf("log setup error: %v", err)
	}
	defer closer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := database.Connect(ctx, databaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	var fsys fs.FS = migrations.FS
	if dir := os.Getenv("MIGRATIONS_DIR"); dir != "" {
		fsys = os.DirFS(dir)
	}

	applied, err := database.ApplyMigrations(ctx, db, fsys, logger)
	if err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	logger.Info("migrations applied", "count", applied)
}
