package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotatingFileWriterRotates(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "watcher.log")
	w, err := NewRotatingFileWriter(path, RotationOptions{MaxSizeBytes: 10, MaxBackups: 2})
	require.NoError(t, err)
	defer w.Close()

	for _, line := range []string{"first-line\n", "second-line\n", "third-line\n"} {
		_, err := w.Write([]byte(line))
		require.NoError(t, err)
	}

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "third-line\n", string(current))

	b1, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Equal(t, "second-line\n", string(b1))

	b2, err := os.ReadFile(path + ".2")
	require.NoError(t, err)
	assert.Equal(t, "first-line\n", string(b2))
}

func TestRotatingFileWriterClosed(t *testing.T) {
	t.Parallel()

	w, err := NewRotatingFileWriter(filepath.Join(t.TempDir(), "a.log"), RotationOptions{})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = w.Write([]byte("x"))
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestConsoleHandlerWritesAttrs(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	logger := slog.New(NewConsoleHandler(&buf, slog.LevelDebug)).With("component", "watcher").WithGroup("event")
	logger.Info("tip received", "hash", "0xabc")

	out := buf.String()
	assert.Contains(t, out, "INFO:")
	assert.Contains(t, out, "tip received")
	assert.Contains(t, out, "component=watcher")
	assert.Contains(t, out, "event.hash=0xabc")
}

func TestConsoleHandlerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewConsoleHandler(&buf, slog.LevelWarn))
	logger.Info("hidden")
	assert.Empty(t, buf.String())
}

func TestSetupWithFile(t *testing.T) {
	var stdout bytes.Buffer
	path := filepath.Join(t.TempDir(), "server.log")

	logger, closer, err := Setup(Options{Level: "debug", File: path, Stdout: &stdout})
	require.NoError(t, err)
	logger.Debug("hello", "k", 1)
	require.NoError(t, closer.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), `"msg":"hello"`))
	assert.Contains(t, stdout.String(), `"msg":"hello"`)
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}
