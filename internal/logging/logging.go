package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

type Format int

const (
	FormatJSON Format = iota
	FormatConsole
)

type Options struct {
	Level  string
	Format Format
	// File, when set, receives a JSON copy of every record.
	File     string
	Rotation RotationOptions
	Stdout   io.Writer
}

// Setup builds the process logger, installs it as the slog default and
// returns a closer for the optional log file.
func Setup(opts Options) (*slog.Logger, io.Closer, error) {
	level := ParseLevel(opts.Level)
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	var primary slog.Handler
	switch opts.Format {
	case FormatConsole:
		primary = NewConsoleHandler(stdout, level)
	default:
		primary = slog.NewJSONHandler(stdout, &slog.HandlerOptions{Level: level})
	}

	closer := io.Closer(nopCloser{})
	handler := primary
	if opts.File != "" {
		w, err := NewRotatingFileWriter(opts.File, opts.Rotation)
		if err != nil {
			return nil, nil, err
		}
		closer = w
		handler = NewMultiHandler(primary, slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, closer, nil
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard is a logger for tests and optional collaborators.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
