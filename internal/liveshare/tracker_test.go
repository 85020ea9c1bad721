package liveshare

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/codepulse/internal/api"
	"github.com/runnerr0/codepulse/internal/storage"
)

type fakeSink struct {
	mu     sync.Mutex
	writes []float64
}

func (f *fakeSink) SetSessionSummaryLiveshareMinutes(m float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, m)
	return nil
}

type fakeReporter struct {
	events []api.LiveshareEvent
	err    error
}

func (f *fakeReporter) Liveshare(_ context.Context, ev api.LiveshareEvent) error {
	f.events = append(f.events, ev)
	return f.err
}

func newTestStore(t *testing.T) *storage.LocalStore {
	t.Helper()
	s, err := storage.OpenLocalStore(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, err)
	return s
}

func TestTracker_UpdateTimeWithoutSession(t *testing.T) {
	sink := &fakeSink{}
	tr := NewTracker(newTestStore(t), sink, nil, quartz.NewMock(t), zerolog.Nop())

	require.NoError(t, tr.UpdateTime())
	assert.False(t, tr.Active())
	assert.Empty(t, sink.writes)

	_, minutes, err := tr.End(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Zero(t, minutes)
}

func TestTracker_MinutesAreFloored(t *testing.T) {
	sink := &fakeSink{}
	reporter := &fakeReporter{}
	clock := quartz.NewMock(t)
	tr := NewTracker(newTestStore(t), sink, reporter, clock, zerolog.Nop())
	ctx := context.Background()

	_, err := tr.Begin(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, tr.Active())

	clock.Advance(90 * time.Second)
	require.NoError(t, tr.UpdateTime())

	clock.Advance(150 * time.Second)
	require.NoError(t, tr.UpdateTime())

	assert.Equal(t, []float64{1, 4}, sink.writes)

	clock.Advance(30 * time.Second)
	sess, minutes, err := tr.End(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", sess.ID)
	assert.Equal(t, 4.0, minutes)
	assert.False(t, tr.Active())

	require.Len(t, reporter.events, 2)
	assert.Equal(t, "abc", reporter.events[0].SessionID)
	assert.Zero(t, reporter.events[0].End)
	assert.Equal(t, reporter.events[0].Start+270, reporter.events[1].End)
}

func TestTracker_ReporterErrorsAreIgnored(t *testing.T) {
	sink := &fakeSink{}
	reporter := &fakeReporter{err: errors.New("offline")}
	clock := quartz.NewMock(t)
	tr := NewTracker(newTestStore(t), sink, reporter, clock, zerolog.Nop())

	_, err := tr.Begin(context.Background(), "x")
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)

	_, minutes, err := tr.End(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2.0, minutes)
	assert.Equal(t, []float64{2}, sink.writes)
}

func TestTracker_SessionSharedThroughStore(t *testing.T) {
	store := newTestStore(t)
	other, err := storage.OpenLocalStore(store.Path())
	require.NoError(t, err)

	clock := quartz.NewMock(t)
	cliSink, agentSink := &fakeSink{}, &fakeSink{}
	cli := NewTracker(store, cliSink, nil, clock, zerolog.Nop())
	agent := NewTracker(other, agentSink, nil, clock, zerolog.Nop())

	_, err = cli.Begin(context.Background(), "pair")
	require.NoError(t, err)
	require.True(t, agent.Active())

	clock.Advance(5 * time.Minute)
	require.NoError(t, agent.UpdateTime())
	assert.Equal(t, []float64{5}, agentSink.writes)

	sess, ok := agent.Current()
	require.True(t, ok)
	assert.Equal(t, "pair", sess.ID)

	_, _, err = agent.End(context.Background())
	require.NoError(t, err)
	assert.False(t, cli.Active())

	_, _, err = cli.End(context.Background())
	assert.ErrorIs(t, err, ErrNoSession, "a session ends once")
}

func TestTracker_BeginRestartsClock(t *testing.T) {
	sink := &fakeSink{}
	clock := quartz.NewMock(t)
	tr := NewTracker(newTestStore(t), sink, nil, clock, zerolog.Nop())
	ctx := context.Background()

	_, err := tr.Begin(ctx, "first")
	require.NoError(t, err)
	clock.Advance(10 * time.Minute)
	_, err = tr.Begin(ctx, "second")
	require.NoError(t, err)
	clock.Advance(3 * time.Minute)

	sess, minutes, err := tr.End(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", sess.ID)
	assert.Equal(t, 3.0, minutes)
}
