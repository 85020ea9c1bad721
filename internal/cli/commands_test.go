package cli

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/codepulse/internal/selector"
	"github.com/runnerr0/codepulse/internal/storage"
)

func TestRecord_AddsPayload(t *testing.T) {
	a, _ := newTestApp(t, nil)

	cmd := &RecordCommand{
		Keystrokes: 10,
		LinesAdded: 2,
		Project:    "api",
		Dir:        "/src/api",
		File:       "main.go",
		globals:    &GlobalFlags{},
		version:    "dev",
	}

	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithApp(context.Background(), a))
	})

	assert.Contains(t, output, "Recorded 10 keystrokes in api.")
	assert.Contains(t, output, "0min")

	n, err := a.Buffer.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	summary, err := a.Aggregator.Summary()
	require.NoError(t, err)
	assert.Equal(t, 10.0, summary.CurrentDayKeystrokes)
	assert.Equal(t, 2.0, summary.CurrentDayLinesAdded)
}

func TestRecord_DefaultsProjectToDirName(t *testing.T) {
	a, _ := newTestApp(t, nil)

	cmd := &RecordCommand{Keystrokes: 1, Dir: "/src/website", globals: &GlobalFlags{}, version: "dev"}
	p, err := cmd.payload(a)
	require.NoError(t, err)

	assert.Equal(t, "website", p.Project.Name)
	assert.Equal(t, "dev", p.Version)
	assert.Nil(t, p.Source)
}

func TestRecord_ExcludedDirectory(t *testing.T) {
	a, _ := newTestApp(t, nil)

	cmd := &RecordCommand{Keystrokes: 5, Dir: "/src/node_modules", globals: &GlobalFlags{}, version: "dev"}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithApp(context.Background(), a))
	})

	assert.Contains(t, output, "Skipped: /src/node_modules is an excluded directory.")
	n, err := a.Buffer.Len()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFlush_Empty(t *testing.T) {
	a, _ := newTestApp(t, nil)

	cmd := &FlushCommand{globals: &GlobalFlags{}, version: "dev"}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithApp(context.Background(), a))
	})
	assert.Contains(t, output, "Nothing to flush.")
}

func TestFlush_SendsBufferedPayloads(t *testing.T) {
	var batches atomic.Int32
	a, _ := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/data/batch" {
			batches.Add(1)
		}
	})
	ctx := context.Background()

	_, err := a.Aggregator.ProcessPayload(ctx, storage.Payload{
		Project:    storage.Project{Name: "api", Directory: "/src/api"},
		Keystrokes: 3,
	})
	require.NoError(t, err)

	cmd := &FlushCommand{globals: &GlobalFlags{}, version: "dev"}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithApp(ctx, a))
	})

	assert.Contains(t, output, "Flushed 1 payloads.")
	assert.Equal(t, int32(1), batches.Load())
	n, err := a.Buffer.Len()
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC).Unix(), a.Store.LastFlush())
}

func TestFlush_FailureKeepsBuffer(t *testing.T) {
	a, _ := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	ctx := context.Background()

	_, err := a.Aggregator.ProcessPayload(ctx, storage.Payload{
		Project:    storage.Project{Name: "api", Directory: "/src/api"},
		Keystrokes: 3,
	})
	require.NoError(t, err)

	cmd := &FlushCommand{globals: &GlobalFlags{}, version: "dev"}
	captureOutput(t, func() {
		err = cmd.executeWithApp(ctx, a)
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payloads kept")

	n, err := a.Buffer.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestConfirmReset(t *testing.T) {
	captureOutput(t, func() {
		assert.NoError(t, confirmReset(strings.NewReader("RESET\n")))
		assert.Error(t, confirmReset(strings.NewReader("nope\n")))
		assert.Error(t, confirmReset(strings.NewReader("")))
	})
}

func TestReset_ClearsSummary(t *testing.T) {
	a, _ := newTestApp(t, nil)
	ctx := context.Background()

	_, err := a.Aggregator.ProcessPayload(ctx, storage.Payload{
		Project:    storage.Project{Name: "api", Directory: "/src/api"},
		Keystrokes: 42,
	})
	require.NoError(t, err)

	cmd := &ResetCommand{Force: true, globals: &GlobalFlags{}, version: "dev"}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithApp(ctx, a))
	})

	assert.Contains(t, output, "Cleared today's session summary.")
	summary, err := a.Aggregator.Summary()
	require.NoError(t, err)
	assert.Zero(t, summary.CurrentDayKeystrokes)
	assert.Zero(t, a.Store.LatestPayloadEnd())

	// Buffered payloads survive a reset.
	n, err := a.Buffer.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPauseAndResume(t *testing.T) {
	a, _ := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sessions/summary" {
			w.Write([]byte(`{"currentDayMinutes":95}`))
		}
	})
	ctx := context.Background()

	pause := &PauseCommand{globals: &GlobalFlags{}, version: "dev"}
	output := captureOutput(t, func() {
		require.NoError(t, pause.executeWithApp(ctx, a))
	})
	assert.Contains(t, output, "Code Time Paused")
	assert.True(t, a.Status.Paused())

	resume := &ResumeCommand{globals: &GlobalFlags{}, version: "dev"}
	captureOutput(t, func() {
		require.NoError(t, resume.executeWithApp(ctx, a))
	})
	assert.False(t, a.Status.Paused())
}

func TestHistory_Table(t *testing.T) {
	a, _ := newTestApp(t, nil)
	ctx := context.Background()

	for _, d := range []storage.DailySummary{
		{Day: "2026-10-15", Minutes: 90, Keystrokes: 1500, LinesAdded: 20, LinesRemoved: 4},
		{Day: "2026-10-16", Minutes: 30, Keystrokes: 400},
	} {
		d.ArchivedAt = time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
		require.NoError(t, a.History.ArchiveDay(ctx, d))
	}

	cmd := &HistoryCommand{Limit: 14, globals: &GlobalFlags{}, version: "dev"}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithApp(ctx, a))
	})

	assert.Contains(t, output, "2026-10-15")
	assert.Contains(t, output, "1h 30min")
	assert.Contains(t, output, "1,500")
	assert.Contains(t, output, "+20/-4")
	assert.Contains(t, output, "2h 0min over 2 days, 1h 0min per day on average.")
}

func TestHistory_Empty(t *testing.T) {
	a, _ := newTestApp(t, nil)

	cmd := &HistoryCommand{Limit: 14, globals: &GlobalFlags{}, version: "dev"}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithApp(context.Background(), a))
	})
	assert.Contains(t, output, "No archived days.")
}

func TestHistory_InvalidLimit(t *testing.T) {
	a, _ := newTestApp(t, nil)

	cmd := &HistoryCommand{Limit: 0, globals: &GlobalFlags{}, version: "dev"}
	err := cmd.executeWithApp(context.Background(), a)
	require.Error(t, err)
}

func TestFilterSince(t *testing.T) {
	days := []storage.DailySummary{{Day: "2026-10-16"}, {Day: "2026-10-10"}, {Day: "2026-10-14"}}
	cutoff := time.Date(2026, 10, 14, 18, 0, 0, 0, time.UTC)

	got := filterSince(days, cutoff)
	require.Len(t, got, 2)
	assert.Equal(t, "2026-10-16", got[0].Day)
	assert.Equal(t, "2026-10-14", got[1].Day)
	assert.Len(t, days, 3, "input is not modified")
}

// scriptedPrompter answers prompts from fixed values.
type scriptedPrompter struct {
	item     selector.Item
	pickAll  bool
	cancel   bool
	lastMany []selector.Checkbox
}

func (p *scriptedPrompter) PickOne(ctx context.Context, placeholder string, items []selector.Item) (selector.Item, bool, error) {
	if p.cancel {
		return selector.Item{}, false, nil
	}
	return p.item, true, nil
}

func (p *scriptedPrompter) PickMany(ctx context.Context, placeholder string, boxes []selector.Checkbox) ([]selector.Checkbox, bool, error) {
	p.lastMany = boxes
	if p.cancel || !p.pickAll {
		return nil, !p.cancel, nil
	}
	return boxes, true, nil
}

func (p *scriptedPrompter) Input(ctx context.Context, prompt, placeholder, value string, validate func(string) string) (string, bool, error) {
	return value, !p.cancel, nil
}

func reportBackend(t *testing.T, commitQuery *atomic.Value) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/projects":
			w.Write([]byte(`[{"name":"api","id":1,"coding_records":30},{"name":"web","id":2,"coding_records":10}]`))
		case "/projects/commits":
			commitQuery.Store(r.URL.RawQuery)
			w.Write([]byte(`{"commits":[{"sha":"abc"}]}`))
		}
	}
}

func TestReport_DailyFlow(t *testing.T) {
	var query atomic.Value
	a, _ := newTestApp(t, reportBackend(t, &query))

	p := &scriptedPrompter{item: selector.Item{Label: "Today", Value: selector.RangeToday}, pickAll: true}
	cmd := &ReportCommand{Flow: "daily", globals: &GlobalFlags{}, version: "dev", prompter: p}

	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithApp(context.Background(), a))
	})

	assert.Contains(t, output, `"sha": "abc"`)
	assert.Equal(t, "projectIds=1%2C2&timeRange=today", query.Load())
	require.Len(t, p.lastMany, 2)
	assert.Equal(t, "api", p.lastMany[0].Label)
}

func TestReport_Cancelled(t *testing.T) {
	a, _ := newTestApp(t, nil)

	cmd := &ReportCommand{Flow: "daily", globals: &GlobalFlags{}, version: "dev", prompter: &scriptedPrompter{cancel: true}}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithApp(context.Background(), a))
	})
	assert.Contains(t, output, "Cancelled.")
}

func TestReport_NoProjects(t *testing.T) {
	a, _ := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	p := &scriptedPrompter{item: selector.Item{Label: "Today", Value: selector.RangeToday}, pickAll: true}
	cmd := &ReportCommand{Flow: "daily", globals: &GlobalFlags{}, version: "dev", prompter: p}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithApp(context.Background(), a))
	})
	assert.Contains(t, output, "No projects found.")
}

func TestReport_RangeFlow(t *testing.T) {
	a, _ := newTestApp(t, nil)

	p := &scriptedPrompter{item: selector.Item{Label: "Last week", Value: selector.RangeLastWeek}}
	cmd := &ReportCommand{Flow: "range", globals: &GlobalFlags{}, version: "dev", prompter: p}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithApp(context.Background(), a))
	})
	assert.True(t, strings.HasPrefix(output, "lastWeek: "), output)
}

func TestLiveshare_BeginStatusEnd(t *testing.T) {
	a, clock := newTestApp(t, nil)
	ctx := context.Background()

	begin := &LiveshareBeginCommand{ID: "pair-1", globals: &GlobalFlags{}, version: "dev"}
	output := captureOutput(t, func() {
		require.NoError(t, begin.executeWithApp(ctx, a))
	})
	assert.Contains(t, output, "Live share session pair-1 started.")

	clock.Set(clock.Now().Add(2*time.Minute + 30*time.Second))
	require.NoError(t, a.Liveshare.UpdateTime())

	st := &LiveshareStatusCommand{globals: &GlobalFlags{}, version: "dev"}
	output = captureOutput(t, func() {
		require.NoError(t, st.executeWithApp(ctx, a))
	})
	assert.Contains(t, output, "Live share session pair-1 open since 12:00 UTC (2min recorded).")

	end := &LiveshareEndCommand{globals: &GlobalFlags{}, version: "dev"}
	output = captureOutput(t, func() {
		require.NoError(t, end.executeWithApp(ctx, a))
	})
	assert.Contains(t, output, "Live share session pair-1 ended after 2min.")

	output = captureOutput(t, func() {
		require.NoError(t, end.executeWithApp(ctx, a))
	})
	assert.Contains(t, output, "No live share session is open.")
}

func TestLiveshare_BeginGeneratesID(t *testing.T) {
	a, _ := newTestApp(t, nil)

	begin := &LiveshareBeginCommand{globals: &GlobalFlags{JSON: true}, version: "dev"}
	captureOutput(t, func() {
		require.NoError(t, begin.executeWithApp(context.Background(), a))
	})

	sess, ok := a.Liveshare.Current()
	require.True(t, ok)
	assert.Len(t, sess.ID, 36)
}
