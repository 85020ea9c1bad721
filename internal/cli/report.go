package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/runnerr0/codepulse/internal/api"
	"github.com/runnerr0/codepulse/internal/app"
	"github.com/runnerr0/codepulse/internal/selector"
	"github.com/runnerr0/codepulse/internal/tui"
)

// commitsPrinter fetches the project commit report and prints it.
type commitsPrinter struct {
	client *api.Client
}

func (p commitsPrinter) ByRangeType(ctx context.Context, rangeType string, ids []string) error {
	return p.print(ctx, api.CommitQuery{ProjectQuery: api.ProjectQuery{TimeRange: rangeType}, ProjectIDs: ids})
}

func (p commitsPrinter) ByStartEnd(ctx context.Context, start, end int64, ids []string) error {
	return p.print(ctx, api.CommitQuery{ProjectQuery: api.ProjectQuery{Start: start, End: end}, ProjectIDs: ids})
}

func (p commitsPrinter) print(ctx context.Context, q api.CommitQuery) error {
	raw, err := p.client.ProjectCommits(ctx, q)
	if err != nil {
		return fmt.Errorf("fetch commit report: %w", err)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		buf.Reset()
		buf.Write(raw)
	}
	buf.WriteByte('\n')
	_, err = os.Stdout.Write(buf.Bytes())
	return err
}

// Execute implements the go-flags Commander interface for ReportCommand.
func (c *ReportCommand) Execute(args []string) error {
	return withApp(c.globals, c.version, c.executeWithApp)
}

func (c *ReportCommand) executeWithApp(ctx context.Context, a *app.App) error {
	prompter := c.prompter
	if prompter == nil {
		prompter = tui.NewPrompter(os.Stdin, os.Stdout)
	}
	sel := selector.New(selector.Options{
		Prompter: prompter,
		Lister:   a.API,
		Sink:     commitsPrinter{client: a.API},
		Logger:   a.Log.With().Str("component", "selector").Logger(),
	})

	var err error
	switch c.Flow {
	case "project":
		err = sel.LaunchProjectSummaryMenuFlow(ctx)
	case "view":
		err = sel.LaunchViewProjectSummaryMenuFlow(ctx)
	case "range":
		err = c.printRange(ctx, sel)
	default:
		err = sel.LaunchDailyReportMenuFlow(ctx)
	}

	switch {
	case errors.Is(err, selector.ErrCancelled):
		fmt.Println("Cancelled.")
		return nil
	case errors.Is(err, selector.ErrNoProjects):
		fmt.Println("No projects found.")
		return nil
	}
	return err
}

func (c *ReportCommand) printRange(ctx context.Context, sel *selector.Selector) error {
	r, err := sel.GetSelectedDateRange(ctx)
	if err != nil {
		return err
	}
	if wantJSON(c.globals) {
		return printJSON(map[string]any{
			"range_type":  r.SelectedRangeType,
			"start":       r.SelectedStartTime,
			"end":         r.SelectedEndTime,
			"local_start": r.LocalStart,
			"local_end":   r.LocalEnd,
		})
	}
	if r.SelectedRangeType != "" {
		b, err := selector.ResolveRange(r.SelectedRangeType, time.Now())
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s to %s\n", r.SelectedRangeType, b.Start.Format("2006-01-02"), b.End.Format("2006-01-02"))
		return nil
	}
	start := time.Unix(r.LocalStart, 0).UTC()
	end := time.Unix(r.LocalEnd, 0).UTC()
	fmt.Printf("custom: %s to %s\n", start.Format("2006-01-02"), end.Format("2006-01-02"))
	return nil
}
