// Package liveshare tracks the duration of an open collaborative session.
// The open session lives in the Local Store, so a session begun by one
// process is accounted for by the agent running in another.
package liveshare

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/runnerr0/codepulse/internal/api"
	"github.com/runnerr0/codepulse/internal/storage"
)

// ErrNoSession is returned by End when no session is open.
var ErrNoSession = errors.New("liveshare: no open session")

// Store is the slice of the Local Store holding the open session.
type Store interface {
	Get(key string, dst any) (bool, error)
	Set(key string, value any) error
	Take(key string, dst any) (bool, error)
}

// MinutesSink receives the elapsed collaboration minutes.
type MinutesSink interface {
	SetSessionSummaryLiveshareMinutes(minutes float64) error
}

// Reporter forwards session start and end to the backend.
type Reporter interface {
	Liveshare(ctx context.Context, ev api.LiveshareEvent) error
}

// Session is an open collaborative session.
type Session struct {
	ID    string `json:"id"`
	Start int64  `json:"start"`
}

// StartTime returns the session start.
func (s Session) StartTime() time.Time {
	return time.Unix(s.Start, 0)
}

// Tracker holds at most one open collaborative session.
type Tracker struct {
	store    Store
	sink     MinutesSink
	reporter Reporter
	clock    quartz.Clock
	log      zerolog.Logger

	mu sync.Mutex
}

// NewTracker returns a Tracker. reporter may be nil.
func NewTracker(store Store, sink MinutesSink, reporter Reporter, clock quartz.Clock, log zerolog.Logger) *Tracker {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Tracker{store: store, sink: sink, reporter: reporter, clock: clock, log: log}
}

// Begin opens a session. Beginning while another session is open restarts
// the clock for the new id.
func (t *Tracker) Begin(ctx context.Context, id string) (Session, error) {
	t.mu.Lock()
	sess := Session{ID: id, Start: t.clock.Now().Unix()}
	err := t.store.Set(storage.KeyLiveshare, sess)
	t.mu.Unlock()
	if err != nil {
		return Session{}, fmt.Errorf("store liveshare session: %w", err)
	}

	t.report(ctx, api.LiveshareEvent{SessionID: id, Start: sess.Start})
	return sess, nil
}

// End closes the open session, records its final minutes and returns them.
func (t *Tracker) End(ctx context.Context) (Session, float64, error) {
	t.mu.Lock()
	var sess Session
	found, err := t.store.Take(storage.KeyLiveshare, &sess)
	t.mu.Unlock()
	if err != nil {
		return Session{}, 0, fmt.Errorf("read liveshare session: %w", err)
	}
	if !found || sess.ID == "" {
		return Session{}, 0, ErrNoSession
	}

	now := t.clock.Now()
	minutes := elapsedMinutes(sess.Start, now.Unix())
	if err := t.sink.SetSessionSummaryLiveshareMinutes(minutes); err != nil {
		t.log.Warn().Err(err).Msg("record liveshare minutes")
	}
	t.report(ctx, api.LiveshareEvent{SessionID: sess.ID, Start: sess.Start, End: now.Unix()})
	return sess, minutes, nil
}

// Current returns the open session, if any.
func (t *Tracker) Current() (Session, bool) {
	var sess Session
	found, err := t.store.Get(storage.KeyLiveshare, &sess)
	if err != nil {
		t.log.Warn().Err(err).Msg("read liveshare session")
		return Session{}, false
	}
	return sess, found && sess.ID != ""
}

// Active reports whether a session is open.
func (t *Tracker) Active() bool {
	_, ok := t.Current()
	return ok
}

// UpdateTime writes the minutes elapsed in the open session. It is a no-op
// when no session is open.
func (t *Tracker) UpdateTime() error {
	sess, ok := t.Current()
	if !ok {
		return nil
	}
	return t.sink.SetSessionSummaryLiveshareMinutes(elapsedMinutes(sess.Start, t.clock.Now().Unix()))
}

func (t *Tracker) report(ctx context.Context, ev api.LiveshareEvent) {
	if t.reporter == nil {
		return
	}
	if err := t.reporter.Liveshare(ctx, ev); err != nil {
		t.log.Debug().Err(err).Str("session", ev.SessionID).Msg("liveshare report failed")
	}
}

// elapsedMinutes returns whole minutes between two epoch seconds.
func elapsedMinutes(start, now int64) float64 {
	secs := now - start
	if secs <= 0 {
		return 0
	}
	return float64(secs / 60)
}
