package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/runnerr0/codepulse/internal/app"
	"github.com/runnerr0/codepulse/internal/config"
)

// loadConfig reads the config named by --config, or the default path.
// A missing file is created with defaults.
func loadConfig(g *GlobalFlags) (*config.Config, error) {
	if g != nil && g.Config != "" {
		path, err := config.ExpandPath(g.Config)
		if err != nil {
			return nil, err
		}
		return config.LoadOrCreateAt(path)
	}
	return config.LoadOrCreate()
}

// openApp loads the config and builds the application for one command.
// The caller must Close it.
func openApp(ctx context.Context, g *GlobalFlags, version string) (*app.App, error) {
	cfg, err := loadConfig(g)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	verbose := g != nil && g.Verbose
	a, err := app.New(ctx, app.Options{Config: cfg, Version: version, Verbose: verbose})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// withApp runs fn against a freshly opened application.
func withApp(g *GlobalFlags, version string, fn func(context.Context, *app.App) error) error {
	ctx := context.Background()
	a, err := openApp(ctx, g, version)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func wantJSON(g *GlobalFlags) bool {
	return g != nil && g.JSON
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseDuration parses a human-friendly duration string like "30d", "7d", "24h", "2w".
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("invalid duration: empty string")
	}

	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]

	n, err := strconv.Atoi(numStr)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	switch suffix {
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	default:
		return 0, fmt.Errorf("invalid duration: %q (use d, h, w, or m suffix)", s)
	}
}

// formatDurationHuman formats a duration into a human-readable string like "15 minutes".
func formatDurationHuman(d time.Duration) string {
	plural := func(n int, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}
	if days := int(d.Hours() / 24); days > 0 {
		return plural(days, "day")
	}
	if hours := int(d.Hours()); hours > 0 {
		return plural(hours, "hour")
	}
	if minutes := int(d.Minutes()); minutes > 0 {
		return plural(minutes, "minute")
	}
	return plural(int(d.Seconds()), "second")
}
