package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/runnerr0/codepulse/internal/app"
	"github.com/runnerr0/codepulse/internal/liveshare"
	"github.com/runnerr0/codepulse/internal/status"
)

type liveshareJSON struct {
	Open    bool    `json:"open"`
	ID      string  `json:"id,omitempty"`
	Start   string  `json:"start,omitempty"`
	Minutes float64 `json:"minutes"`
}

// Execute implements the go-flags Commander interface for LiveshareBeginCommand.
func (c *LiveshareBeginCommand) Execute(args []string) error {
	return withApp(c.globals, c.version, c.executeWithApp)
}

func (c *LiveshareBeginCommand) executeWithApp(ctx context.Context, a *app.App) error {
	id := c.ID
	if id == "" {
		id = uuid.NewString()
	}
	sess, err := a.Liveshare.Begin(ctx, id)
	if err != nil {
		return err
	}

	if wantJSON(c.globals) {
		return printJSON(liveshareJSON{Open: true, ID: sess.ID, Start: sess.StartTime().UTC().Format(time.RFC3339)})
	}
	fmt.Printf("Live share session %s started.\n", sess.ID)
	return nil
}

// Execute implements the go-flags Commander interface for LiveshareEndCommand.
func (c *LiveshareEndCommand) Execute(args []string) error {
	return withApp(c.globals, c.version, c.executeWithApp)
}

func (c *LiveshareEndCommand) executeWithApp(ctx context.Context, a *app.App) error {
	sess, minutes, err := a.Liveshare.End(ctx)
	if errors.Is(err, liveshare.ErrNoSession) {
		if wantJSON(c.globals) {
			return printJSON(liveshareJSON{})
		}
		fmt.Println("No live share session is open.")
		return nil
	}
	if err != nil {
		return err
	}

	if wantJSON(c.globals) {
		return printJSON(liveshareJSON{ID: sess.ID, Start: sess.StartTime().UTC().Format(time.RFC3339), Minutes: minutes})
	}
	fmt.Printf("Live share session %s ended after %s.\n", sess.ID, status.HumanizeMinutes(minutes))
	return nil
}

// Execute implements the go-flags Commander interface for LiveshareStatusCommand.
func (c *LiveshareStatusCommand) Execute(args []string) error {
	return withApp(c.globals, c.version, c.executeWithApp)
}

func (c *LiveshareStatusCommand) executeWithApp(ctx context.Context, a *app.App) error {
	sess, ok := a.Liveshare.Current()
	out := liveshareJSON{Open: ok}
	if ok {
		out.ID = sess.ID
		out.Start = sess.StartTime().UTC().Format(time.RFC3339)
		if summary, err := a.Aggregator.Summary(); err == nil {
			out.Minutes = summary.LiveshareMinutes
		}
	}

	if wantJSON(c.globals) {
		return printJSON(out)
	}
	if !ok {
		fmt.Println("No live share session is open.")
		return nil
	}
	fmt.Printf("Live share session %s open since %s (%s recorded).\n",
		sess.ID, sess.StartTime().UTC().Format("15:04 MST"), status.HumanizeMinutes(out.Minutes))
	return nil
}
