package session

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/codepulse/internal/storage"
)

type fixture struct {
	agg     *Aggregator
	store   *storage.LocalStore
	summary *storage.SummaryFile
	buffer  *storage.PayloadBuffer
	history *storage.History
	clock   *quartz.Mock
}

func newFixture(t *testing.T, withHistory bool) *fixture {
	t.Helper()
	dir := t.TempDir()

	store, err := storage.OpenLocalStore(filepath.Join(dir, "session.json"))
	require.NoError(t, err)
	summary, err := storage.OpenSummaryFile(filepath.Join(dir, "sessionSummary.json"))
	require.NoError(t, err)
	buffer, err := storage.OpenPayloadBuffer(filepath.Join(dir, "data.json"))
	require.NoError(t, err)

	var history *storage.History
	if withHistory {
		history, err = storage.OpenHistory(context.Background(), filepath.Join(dir, "history.db"))
		require.NoError(t, err)
		t.Cleanup(func() { history.Close() })
	}

	clock := quartz.NewMock(t)
	clock.Set(time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC))

	agg := New(Options{
		Store:       store,
		Summaries:   summary,
		Buffer:      buffer,
		History:     history,
		Clock:       clock,
		Location:    time.UTC,
		ExcludeDirs: []string{"node_modules"},
		Logger:      zerolog.Nop(),
	})
	return &fixture{agg: agg, store: store, summary: summary, buffer: buffer, history: history, clock: clock}
}

func TestElapsedAndSessionSeconds(t *testing.T) {
	tests := []struct {
		name        string
		now, last   int64
		threshold   int64
		wantElapsed int64
		wantSession int64
	}{
		{"no prior payload", 1000, 0, 900, 60, 0},
		{"negative last", 1000, -5, 900, 60, 0},
		{"gap folded into session", 1000, 950, 900, 50, 50},
		{"gap at threshold", 1900, 1000, 900, 900, 900},
		{"gap too large", 2000, 100, 900, 1900, 0},
		{"clock skew", 1000, 1200, 900, -200, 0},
		{"same second", 1000, 1000, 900, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			elapsed, session := ElapsedAndSessionSeconds(tt.now, tt.last, tt.threshold)
			assert.Equal(t, tt.wantElapsed, elapsed)
			assert.Equal(t, tt.wantSession, session)
		})
	}
}

func TestSessionThresholdSeconds(t *testing.T) {
	f := newFixture(t, false)
	assert.Equal(t, int64(900), f.agg.SessionThresholdSeconds())

	require.NoError(t, f.store.Set(storage.KeySessionThresholdInSec, 300))
	assert.Equal(t, int64(300), f.agg.SessionThresholdSeconds())

	// Non-positive store values fall back to the default
	require.NoError(t, f.store.Set(storage.KeySessionThresholdInSec, 0))
	assert.Equal(t, int64(900), f.agg.SessionThresholdSeconds())
}

func TestTimeBetweenLastPayload(t *testing.T) {
	f := newFixture(t, false)

	elapsed, session := f.agg.TimeBetweenLastPayload()
	assert.Equal(t, int64(60), elapsed)
	assert.Equal(t, int64(0), session)

	now := f.clock.Now().Unix()
	require.NoError(t, f.store.Set(storage.KeyLatestPayloadEnd, now-120))
	elapsed, session = f.agg.TimeBetweenLastPayload()
	assert.Equal(t, int64(120), elapsed)
	assert.Equal(t, int64(120), session)
}

func TestIncrementSessionSummaryData_Additive(t *testing.T) {
	f := newFixture(t, false)
	agg := KeystrokeAggregate{Keystrokes: 5, LinesAdded: 2, LinesRemoved: 1}

	_, err := f.agg.IncrementSessionSummaryData(agg, 120)
	require.NoError(t, err)
	s, err := f.agg.IncrementSessionSummaryData(agg, 120)
	require.NoError(t, err)

	assert.Equal(t, 10.0, s.CurrentDayKeystrokes)
	assert.Equal(t, 4.0, s.CurrentDayLinesAdded)
	assert.Equal(t, 2.0, s.CurrentDayLinesRemoved)
	assert.Equal(t, 4.0, s.CurrentDayMinutes)
	assert.Equal(t, 2.5, s.CurrentDayKpm)

	persisted, err := f.agg.Summary()
	require.NoError(t, err)
	assert.Equal(t, s, persisted)
}

func TestAggregator_ConcurrentUpdatesAreExact(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	const n = 50

	var wg sync.WaitGroup
	errs := make(chan error, 2*n)
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := f.agg.IncrementSessionSummaryData(KeystrokeAggregate{Keystrokes: 2, LinesAdded: 1}, 60)
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := f.agg.ProcessPayload(ctx, storage.Payload{Keystrokes: 3})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	s, err := f.agg.Summary()
	require.NoError(t, err)
	// The clock does not move, so payloads add keystrokes but no minutes.
	assert.Equal(t, float64(n*2+n*3), s.CurrentDayKeystrokes)
	assert.Equal(t, float64(n), s.CurrentDayMinutes)
	assert.Equal(t, float64(n), s.CurrentDayLinesAdded)

	buffered, err := f.buffer.Len()
	require.NoError(t, err)
	assert.Equal(t, n, buffered)
}

func TestClearSessionSummaryData(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.agg.IncrementSessionSummaryData(KeystrokeAggregate{Keystrokes: 9}, 600)
	require.NoError(t, err)

	require.NoError(t, f.agg.ClearSessionSummaryData())

	s, err := f.agg.Summary()
	require.NoError(t, err)
	assert.Equal(t, storage.SessionSummary{}, s)
}

func TestSetSessionSummaryLiveshareMinutes(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.agg.IncrementSessionSummaryData(KeystrokeAggregate{Keystrokes: 3}, 0)
	require.NoError(t, err)

	require.NoError(t, f.agg.SetSessionSummaryLiveshareMinutes(12))
	require.NoError(t, f.agg.SetSessionSummaryLiveshareMinutes(7))

	s, err := f.agg.Summary()
	require.NoError(t, err)
	assert.Equal(t, 7.0, s.LiveshareMinutes)
	assert.Equal(t, 3.0, s.CurrentDayKeystrokes)
}

func TestProcessPayload_FoldsGapAndBuffers(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	ok, err := f.agg.ProcessPayload(ctx, storage.Payload{Keystrokes: 10, LinesAdded: 1})
	require.NoError(t, err)
	assert.True(t, ok)

	// First payload of the day only counts keystrokes
	s, err := f.agg.Summary()
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.CurrentDayMinutes)
	assert.Equal(t, 10.0, s.CurrentDayKeystrokes)
	assert.Equal(t, f.clock.Now().Unix(), f.store.LatestPayloadEnd())

	f.clock.Advance(3 * time.Minute)
	_, err = f.agg.ProcessPayload(ctx, storage.Payload{Keystrokes: 5})
	require.NoError(t, err)

	s, err = f.agg.Summary()
	require.NoError(t, err)
	assert.Equal(t, 3.0, s.CurrentDayMinutes)
	assert.Equal(t, 15.0, s.CurrentDayKeystrokes)

	var payloads []json.RawMessage
	n, err := f.buffer.Drain(ctx, func(_ context.Context, batch []json.RawMessage) error {
		payloads = batch
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, string(payloads[0]), `"timezone":"UTC"`)
}

func TestProcessPayload_LongGapStartsNewSession(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.agg.ProcessPayload(ctx, storage.Payload{Keystrokes: 1})
	require.NoError(t, err)

	f.clock.Advance(20 * time.Minute)
	_, err = f.agg.ProcessPayload(ctx, storage.Payload{Keystrokes: 1})
	require.NoError(t, err)

	s, err := f.agg.Summary()
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.CurrentDayMinutes)
}

func TestProcessPayload_ExcludedDirectory(t *testing.T) {
	f := newFixture(t, false)

	ok, err := f.agg.ProcessPayload(context.Background(), storage.Payload{
		Keystrokes: 40,
		Project:    storage.Project{Name: "deps", Directory: "/src/app/node_modules/x"},
	})
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := f.buffer.Len()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestNewDayCheck_ArchivesAndResets(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.agg.ProcessPayload(ctx, storage.Payload{Keystrokes: 100, LinesAdded: 10})
	require.NoError(t, err)
	f.clock.Advance(10 * time.Minute)
	_, err = f.agg.ProcessPayload(ctx, storage.Payload{Keystrokes: 20})
	require.NoError(t, err)
	assert.Equal(t, "2026-10-17", f.store.CurrentDay())

	// Same day: nothing happens
	rolled, err := f.agg.NewDayCheck(ctx)
	require.NoError(t, err)
	assert.False(t, rolled)

	f.clock.Advance(24 * time.Hour)
	rolled, err = f.agg.NewDayCheck(ctx)
	require.NoError(t, err)
	assert.True(t, rolled)

	assert.Equal(t, "2026-10-18", f.store.CurrentDay())
	assert.Equal(t, int64(0), f.store.LatestPayloadEnd())

	s, err := f.agg.Summary()
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.CurrentDayKeystrokes)
	assert.Equal(t, 10.0, s.AverageDailyMinutes)
	assert.Equal(t, 120.0, s.AverageDailyKeystrokes)
	assert.Equal(t, 12.0, s.AverageDailyKpm)

	days, err := f.history.Days(ctx, 5)
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, "2026-10-17", days[0].Day)
	assert.Equal(t, 10.0, days[0].Minutes)
	assert.Equal(t, 10.0, days[0].LinesAdded)
}

func TestReset(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.agg.ProcessPayload(context.Background(), storage.Payload{Keystrokes: 3})
	require.NoError(t, err)

	require.NoError(t, f.agg.Reset())
	assert.Equal(t, int64(0), f.store.LatestPayloadEnd())
	s, err := f.agg.Summary()
	require.NoError(t, err)
	assert.Equal(t, storage.SessionSummary{}, s)
}
