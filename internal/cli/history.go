package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"

	"github.com/runnerr0/codepulse/internal/app"
	"github.com/runnerr0/codepulse/internal/status"
	"github.com/runnerr0/codepulse/internal/storage"
)

type dayJSON struct {
	Day              string  `json:"day"`
	Minutes          float64 `json:"minutes"`
	Keystrokes       float64 `json:"keystrokes"`
	LinesAdded       float64 `json:"lines_added"`
	LinesRemoved     float64 `json:"lines_removed"`
	LiveshareMinutes float64 `json:"liveshare_minutes"`
	ArchivedAt       string  `json:"archived_at"`
}

// Execute implements the go-flags Commander interface for HistoryCommand.
func (c *HistoryCommand) Execute(args []string) error {
	return withApp(c.globals, c.version, c.executeWithApp)
}

func (c *HistoryCommand) executeWithApp(ctx context.Context, a *app.App) error {
	if c.Limit < 1 {
		return fmt.Errorf("--limit must be at least 1")
	}
	days, err := a.History.Days(ctx, c.Limit)
	if err != nil {
		return err
	}
	if c.Since != "" {
		d, err := parseDuration(c.Since)
		if err != nil {
			return err
		}
		days = filterSince(days, time.Now().Add(-d))
	}

	if wantJSON(c.globals) {
		out := make([]dayJSON, len(days))
		for i, d := range days {
			out[i] = dayJSON{
				Day:              d.Day,
				Minutes:          d.Minutes,
				Keystrokes:       d.Keystrokes,
				LinesAdded:       d.LinesAdded,
				LinesRemoved:     d.LinesRemoved,
				LiveshareMinutes: d.LiveshareMinutes,
				ArchivedAt:       d.ArchivedAt.UTC().Format(time.RFC3339),
			}
		}
		return printJSON(out)
	}

	if len(days) == 0 {
		fmt.Println("No archived days.")
		return nil
	}

	fmt.Printf("%-12s %10s %12s %14s\n", "Day", "Time", "Keystrokes", "Lines")
	var total float64
	for _, d := range days {
		lines := fmt.Sprintf("+%s/-%s", humanize.Comma(int64(d.LinesAdded)), humanize.Comma(int64(d.LinesRemoved)))
		fmt.Printf("%-12s %10s %12s %14s\n", d.Day, status.HumanizeMinutes(d.Minutes), humanize.Comma(int64(d.Keystrokes)), lines)
		total += d.Minutes
	}
	fmt.Println()
	fmt.Printf("%s over %s, %s per day on average.\n",
		status.HumanizeMinutes(total),
		english.Plural(len(days), "day", "days"),
		status.HumanizeMinutes(total/float64(len(days))))
	return nil
}

// filterSince keeps days on or after the calendar day of cutoff.
func filterSince(days []storage.DailySummary, cutoff time.Time) []storage.DailySummary {
	first := cutoff.Format("2006-01-02")
	out := days[:0:0]
	for _, d := range days {
		if d.Day >= first {
			out = append(out, d)
		}
	}
	return out
}
