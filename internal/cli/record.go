package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/runnerr0/codepulse/internal/app"
	"github.com/runnerr0/codepulse/internal/status"
	"github.com/runnerr0/codepulse/internal/storage"
)

// Execute implements the go-flags Commander interface for RecordCommand.
func (c *RecordCommand) Execute(args []string) error {
	if c.Keystrokes < 0 || c.LinesAdded < 0 || c.LinesRemoved < 0 {
		return fmt.Errorf("--keystrokes, --added and --removed must not be negative")
	}
	return withApp(c.globals, c.version, c.executeWithApp)
}

// payload builds the payload for the sample. Timestamps are filled by the
// aggregator.
func (c *RecordCommand) payload(a *app.App) (storage.Payload, error) {
	dir := c.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return storage.Payload{}, fmt.Errorf("resolve working directory: %w", err)
		}
		dir = wd
	}
	name := c.Project
	if name == "" {
		name = filepath.Base(dir)
	}

	p := storage.Payload{
		Project:      storage.Project{Name: name, Directory: dir},
		Keystrokes:   c.Keystrokes,
		LinesAdded:   c.LinesAdded,
		LinesRemoved: c.LinesRemoved,
		PluginID:     a.Config.Plugin.ID,
		Version:      c.version,
		OS:           runtime.GOOS,
	}
	if c.File != "" {
		p.Source = map[string]storage.FileAggregate{
			c.File: {Keystrokes: c.Keystrokes, LinesAdded: c.LinesAdded, LinesRemoved: c.LinesRemoved},
		}
	}
	return p, nil
}

func (c *RecordCommand) executeWithApp(ctx context.Context, a *app.App) error {
	p, err := c.payload(a)
	if err != nil {
		return err
	}
	ok, err := a.Aggregator.ProcessPayload(ctx, p)
	if err != nil {
		return fmt.Errorf("record sample: %w", err)
	}
	summary, err := a.Aggregator.Summary()
	if err != nil {
		return fmt.Errorf("read summary: %w", err)
	}
	st := status.Compute(summary.CurrentDayMinutes, summary.AverageDailyMinutes)

	if wantJSON(c.globals) {
		return printJSON(map[string]any{
			"recorded":   ok,
			"project":    p.Project.Name,
			"text":       st.Text,
			"minutes":    summary.CurrentDayMinutes,
			"keystrokes": summary.CurrentDayKeystrokes,
		})
	}

	if !ok {
		fmt.Printf("Skipped: %s is an excluded directory.\n", p.Project.Directory)
		return nil
	}
	fmt.Printf("Recorded %d keystrokes in %s.\n", p.Keystrokes, p.Project.Name)
	fmt.Println(status.Render(st))
	return nil
}
