package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/codepulse/internal/config"
)

func TestNew_WritesToRotatingFile(t *testing.T) {
	dir := t.TempDir()
	cfg := config.LoggingConfig{Level: "info", File: "agent.log", MaxSizeMB: 1, MaxBackups: 1}

	logger, closeFn, err := New(cfg, dir, false)
	require.NoError(t, err)

	logger.Info().Str("component", "test").Msg("hello")
	logger.Debug().Msg("hidden at info level")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(filepath.Join(dir, "agent.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"hello"`)
	assert.Contains(t, string(data), `"component":"test"`)
	assert.NotContains(t, string(data), "hidden at info level")
}

func TestNew_WritesAfterCloseAreDropped(t *testing.T) {
	dir := t.TempDir()
	cfg := config.LoggingConfig{Level: "info", File: "agent.log"}

	logger, closeFn, err := New(cfg, dir, false)
	require.NoError(t, err)
	require.NoError(t, closeFn())
	require.NoError(t, os.Remove(filepath.Join(dir, "agent.log")))

	logger.Info().Msg("late")

	_, err = os.Stat(filepath.Join(dir, "agent.log"))
	assert.True(t, os.IsNotExist(err))
}

func TestNew_InvalidLevel(t *testing.T) {
	_, _, err := New(config.LoggingConfig{Level: "chatty"}, t.TempDir(), false)
	assert.Error(t, err)
}

func TestNew_NoSinksIsNop(t *testing.T) {
	logger, closeFn, err := New(config.LoggingConfig{Level: "info"}, t.TempDir(), false)
	require.NoError(t, err)
	logger.Info().Msg("discarded")
	assert.NoError(t, closeFn())
}
