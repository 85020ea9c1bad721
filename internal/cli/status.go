package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/runnerr0/codepulse/internal/app"
	"github.com/runnerr0/codepulse/internal/status"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version          string  `json:"version"`
	DataDir          string  `json:"data_dir"`
	Identity         string  `json:"identity"`
	Name             string  `json:"name,omitempty"`
	Paused           bool    `json:"paused"`
	Text             string  `json:"text"`
	Day              string  `json:"day,omitempty"`
	Minutes          float64 `json:"minutes"`
	Keystrokes       float64 `json:"keystrokes"`
	Kpm              float64 `json:"kpm"`
	LinesAdded       float64 `json:"lines_added"`
	LinesRemoved     float64 `json:"lines_removed"`
	AverageMinutes   float64 `json:"average_minutes"`
	LiveshareMinutes float64 `json:"liveshare_minutes"`
	ThresholdSeconds int64   `json:"threshold_seconds"`
	Buffered         int     `json:"buffered_payloads"`
	BufferBytes      int64   `json:"buffer_bytes"`
	LastFlush        string  `json:"last_flush,omitempty"`
	ArchivedDays     int     `json:"archived_days"`
	UnsyncedDays     int     `json:"unsynced_days"`
	HistorySchema    int     `json:"history_schema"`
	StoreCorrupt     bool    `json:"store_corrupt"`
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	return withApp(c.globals, c.version, c.executeWithApp)
}

// executeWithApp runs status against a provided application (for testing).
// It reads local state only; no backend call is made.
func (c *StatusCommand) executeWithApp(ctx context.Context, a *app.App) error {
	summary, err := a.Aggregator.Summary()
	if err != nil {
		return fmt.Errorf("read summary: %w", err)
	}

	out := statusJSON{
		Version:          c.version,
		DataDir:          a.DataDir,
		Identity:         identity(a),
		Name:             a.Store.Name(),
		Paused:           a.Status.Paused(),
		Day:              a.Store.CurrentDay(),
		Minutes:          summary.CurrentDayMinutes,
		Keystrokes:       summary.CurrentDayKeystrokes,
		Kpm:              summary.CurrentDayKpm,
		LinesAdded:       summary.CurrentDayLinesAdded,
		LinesRemoved:     summary.CurrentDayLinesRemoved,
		AverageMinutes:   summary.AverageDailyMinutes,
		LiveshareMinutes: summary.LiveshareMinutes,
		ThresholdSeconds: a.Aggregator.SessionThresholdSeconds(),
		BufferBytes:      a.Buffer.Size(),
		StoreCorrupt:     a.Store.Corrupt(),
	}
	if out.Paused {
		out.Text = a.Config.Plugin.Product + " Paused"
	} else {
		out.Text = status.Compute(summary.CurrentDayMinutes, summary.AverageDailyMinutes).Text
	}
	if out.Buffered, err = a.Buffer.Len(); err != nil {
		return fmt.Errorf("count buffered payloads: %w", err)
	}
	if ts := a.Store.LastFlush(); ts > 0 {
		out.LastFlush = time.Unix(ts, 0).UTC().Format(time.RFC3339)
	}
	if out.UnsyncedDays, err = a.History.Unsynced(ctx); err != nil {
		return err
	}
	avg, err := a.History.Averages(ctx, a.Config.Session.AverageDays)
	if err != nil {
		return err
	}
	out.ArchivedDays = avg.Days
	if out.HistorySchema, err = a.History.SchemaVersion(ctx); err != nil {
		return err
	}

	if wantJSON(c.globals) {
		return printJSON(out)
	}
	return c.printStatusHuman(out, a.Store.LastFlush())
}

func identity(a *app.App) string {
	switch {
	case a.Store.JWT() == "":
		return "none"
	case a.Store.Name() != "":
		return "registered"
	default:
		return "anonymous"
	}
}

func (c *StatusCommand) printStatusHuman(out statusJSON, lastFlush int64) error {
	fmt.Println("codepulse Status")
	fmt.Println("================")
	fmt.Printf("Version:       %s\n", out.Version)
	fmt.Printf("Data:          %s\n", out.DataDir)
	if out.Name != "" {
		fmt.Printf("Identity:      %s (%s)\n", out.Identity, out.Name)
	} else {
		fmt.Printf("Identity:      %s\n", out.Identity)
	}
	fmt.Println()

	fmt.Printf("Today:         %s\n", out.Text)
	if out.Day != "" {
		fmt.Printf("Day:           %s\n", out.Day)
	}
	fmt.Printf("Keystrokes:    %s (%.1f per minute)\n", humanize.Comma(int64(out.Keystrokes)), out.Kpm)
	fmt.Printf("Lines:         +%s / -%s\n", humanize.Comma(int64(out.LinesAdded)), humanize.Comma(int64(out.LinesRemoved)))
	fmt.Printf("Average:       %s per day\n", status.HumanizeMinutes(out.AverageMinutes))
	if out.LiveshareMinutes > 0 {
		fmt.Printf("Live share:    %s\n", status.HumanizeMinutes(out.LiveshareMinutes))
	}
	fmt.Printf("Session gap:   %s\n", formatDurationHuman(time.Duration(out.ThresholdSeconds)*time.Second))
	fmt.Println()

	fmt.Printf("Buffered:      %s payloads (%s)\n", humanize.Comma(int64(out.Buffered)), humanize.Bytes(uint64(out.BufferBytes)))
	if lastFlush > 0 {
		fmt.Printf("Last flush:    %s\n", humanize.Time(time.Unix(lastFlush, 0)))
	} else {
		fmt.Println("Last flush:    never")
	}
	fmt.Printf("History:       %d days archived, %d unsynced (schema v%d)\n", out.ArchivedDays, out.UnsyncedDays, out.HistorySchema)
	if out.StoreCorrupt {
		fmt.Println("Store:         unreadable, rebuilt on next write")
	}
	if out.Paused {
		fmt.Println("Metrics:       paused")
	} else {
		fmt.Println("Metrics:       on")
	}

	return nil
}
