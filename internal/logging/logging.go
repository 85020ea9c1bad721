package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/runnerr0/codepulse/internal/config"
)

// New builds the agent logger from cfg. File output goes through a rotating
// lumberjack writer under dataDir; console output goes to stderr. The
// returned close func releases the log file.
func New(cfg config.LoggingConfig, dataDir string, verbose bool) (zerolog.Logger, func() error, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), noopClose, err
	}
	if verbose {
		level = zerolog.DebugLevel
	}

	var (
		writers []io.Writer
		closers []func() error
	)

	if cfg.File != "" {
		path := cfg.File
		if !strings.ContainsRune(path, os.PathSeparator) {
			path = dataDir + string(os.PathSeparator) + path
		}
		w := &closeOnceWriter{w: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}}
		writers = append(writers, w)
		closers = append(closers, w.Close)
	}
	if cfg.Console || verbose {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}
	if len(writers) == 0 {
		return zerolog.Nop(), noopClose, nil
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()

	return logger, func() error {
		var firstErr error
		for _, c := range closers {
			if err := c(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}, nil
}

func noopClose() error { return nil }

func parseLevel(s string) (zerolog.Level, error) {
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("parse log level %q: %w", s, err)
	}
	return level, nil
}

// closeOnceWriter drops writes after Close. lumberjack re-opens its file on
// every Write, so late log lines from stopping timers would otherwise
// recreate the file.
type closeOnceWriter struct {
	w io.WriteCloser

	mu     sync.Mutex
	closed bool
}

func (c *closeOnceWriter) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return len(p), nil
	}
	return c.w.Write(p)
}

func (c *closeOnceWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.w.Close()
}
