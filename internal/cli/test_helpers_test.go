package cli

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/coder/quartz"
	goflags "github.com/jessevdk/go-flags"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/codepulse/internal/app"
	"github.com/runnerr0/codepulse/internal/config"
)

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

// stdout writes to whatever os.Stdout is at write time, so output from an
// app built before captureOutput still lands in the capture.
type stdout struct{}

func (stdout) Write(p []byte) (int, error) { return os.Stdout.Write(p) }

// newTestApp builds an application over a temp data dir and a test backend.
func newTestApp(t *testing.T, handler http.HandlerFunc) (*app.App, *quartz.Mock) {
	t.Helper()
	if handler == nil {
		handler = func(w http.ResponseWriter, r *http.Request) {}
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.Storage.Dir = t.TempDir()
	cfg.API.BaseURL = srv.URL
	cfg.API.RetryMax = 0
	cfg.Scheduler.WatchSessionFile = false

	clock := quartz.NewMock(t)
	clock.Set(time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC))
	log := zerolog.Nop()

	a, err := app.New(context.Background(), app.Options{
		Config:   cfg,
		Version:  "test",
		Out:      stdout{},
		Clock:    clock,
		Location: time.UTC,
		Logger:   &log,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, clock
}

// parseOnly parses args without executing the matched command.
func parseOnly(t *testing.T, args ...string) (*GlobalFlags, *commands, error) {
	t.Helper()
	parser, globals, cmds := buildParser("test")
	parser.CommandHandler = func(goflags.Commander, []string) error { return nil }
	_, err := parser.ParseArgs(args)
	return globals, cmds, err
}
