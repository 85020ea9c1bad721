package cli

import (
	"context"
	"fmt"

	"github.com/runnerr0/codepulse/internal/app"
)

// Execute implements the go-flags Commander interface for FlushCommand.
func (c *FlushCommand) Execute(args []string) error {
	return withApp(c.globals, c.version, c.executeWithApp)
}

func (c *FlushCommand) executeWithApp(ctx context.Context, a *app.App) error {
	n, err := a.Scheduler.FlushOffline(ctx)
	if err != nil {
		return fmt.Errorf("flush failed, payloads kept: %w", err)
	}

	if wantJSON(c.globals) {
		return printJSON(map[string]any{"flushed": n})
	}
	if n == 0 {
		fmt.Println("Nothing to flush.")
		return nil
	}
	fmt.Printf("Flushed %d payloads.\n", n)
	return nil
}
