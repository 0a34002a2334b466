package logging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	defaultMaxSizeBytes = 20 << 20
	defaultMaxBackups   = 5
)

// RotationOptions bounds a log file. Zero values fall back to 20 MiB and
// five numbered backups.
type RotationOptions struct {
	MaxSizeBytes int64
	MaxBackups   int
}

// RotatingFileWriter appends to path and, once a write would push the file
// past MaxSizeBytes, shifts path -> path.1 -> path.2 ... and starts fresh.
type RotatingFileWriter struct {
	mu   sync.Mutex
	path string
	opts RotationOptions
	file *os.File
	size int64
}

func NewRotatingFileWriter(path string, opts RotationOptions) (*RotatingFileWriter, error) {
	if path == "" {
		return nil, errors.New("log path is required")
	}
	if opts.MaxSizeBytes <= 0 {
		opts.MaxSizeBytes = defaultMaxSizeBytes
	}
	if opts.MaxBackups < 0 {
		opts.MaxBackups = 0
	} else if opts.MaxBackups == 0 {
		opts.MaxBackups = defaultMaxBackups
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	w := &RotatingFileWriter{path: path, opts: opts}
	if err := w.open(os.O_APPEND); err != nil {
		return nil, err
	}

	if w.size > w.opts.MaxSizeBytes {
		if err := w.rotateLocked(); err != nil {
			return nil, err
		}
	}
	return w, nil
}

func (w *RotatingFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}

	// an empty file always accepts one write, however large
	if w.size > 0 && w.size+int64(len(p)) > w.opts.MaxSizeBytes {
		if err := w.rotateLocked(); err != nil {
			return 0, err
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// Rotate forces a rotation regardless of the current size.
func (w *RotatingFileWriter) Rotate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rotateLocked()
}

func (w *RotatingFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *RotatingFileWriter) open(mode int) error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|mode, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	w.file = f
	w.size = 0
	if mode == os.O_APPEND {
		if stat, err := f.Stat(); err == nil {
			w.size = stat.Size()
		}
	}
	return nil
}

func (w *RotatingFileWriter) rotateLocked() error {
	if w.file != nil {
		if err := w.file.Close(); err != nil {
			return err
		}
		w.file = nil
	}

	if w.opts.MaxBackups == 0 {
		if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
			return err
		}
	} else if err := shiftBackups(w.path, w.opts.MaxBackups); err != nil {
		return err
	}

	return w.open(os.O_TRUNC)
}

func shiftBackups(basePath string, maxBackups int) error {
	if err := removeIfExists(backupPath(basePath, maxBackups)); err != nil {
		return err
	}

	for idx := maxBackups - 1; idx >= 1; idx-- {
		if err := renameIfExists(backupPath(basePath, idx), backupPath(basePath, idx+1)); err != nil {
			return err
		}
	}
	return renameIfExists(basePath, backupPath(basePath, 1))
}

func renameIfExists(src, dst string) error {
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := removeIfExists(dst); err != nil {
		return err
	}
	return os.Rename(src, dst)
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func backupPath(basePath string, idx int) string {
	return fmt.Sprintf("%s.%d", basePath, idx)
}
