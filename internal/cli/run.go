package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/runnerr0/codepulse/internal/app"
)

// Execute implements the go-flags Commander interface for RunCommand.
func (c *RunCommand) Execute(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, c.globals, c.version)
	if err != nil {
		return err
	}
	defer a.Close()
	return c.executeWithApp(ctx, a)
}

func (c *RunCommand) executeWithApp(ctx context.Context, a *app.App) error {
	return a.Run(ctx)
}
