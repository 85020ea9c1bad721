package cli

import (
	"context"
	"fmt"

	"github.com/runnerr0/codepulse/internal/app"
)

// Execute implements the go-flags Commander interface for PauseCommand.
func (c *PauseCommand) Execute(args []string) error {
	return withApp(c.globals, c.version, c.executeWithApp)
}

func (c *PauseCommand) executeWithApp(ctx context.Context, a *app.App) error {
	if err := a.Status.Pause(); err != nil {
		return err
	}
	if wantJSON(c.globals) {
		return printJSON(map[string]any{"paused": true})
	}
	return nil
}

// Execute implements the go-flags Commander interface for ResumeCommand.
func (c *ResumeCommand) Execute(args []string) error {
	return withApp(c.globals, c.version, c.executeWithApp)
}

func (c *ResumeCommand) executeWithApp(ctx context.Context, a *app.App) error {
	st, err := a.Status.Resume(ctx)
	if err != nil {
		return fmt.Errorf("resume: %w", err)
	}
	if wantJSON(c.globals) {
		return printJSON(st)
	}
	return nil
}
