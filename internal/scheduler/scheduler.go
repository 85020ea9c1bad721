// Package scheduler reconciles local state with the backend: it bootstraps
// an anonymous identity when none exists, then runs the periodic heartbeat,
// flush, session-check, user-status and live share tasks.
package scheduler

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/runnerr0/codepulse/internal/api"
	"github.com/runnerr0/codepulse/internal/status"
	"github.com/runnerr0/codepulse/internal/storage"
)

// State is the identity state of the agent.
type State int

const (
	Uninitialized State = iota
	AwaitingIdentity
	Active
)

func (s State) String() string {
	switch s {
	case AwaitingIdentity:
		return "awaiting-identity"
	case Active:
		return "active"
	default:
		return "uninitialized"
	}
}

// Backend is the slice of the API client the scheduler calls.
type Backend interface {
	Ping(ctx context.Context) error
	CreateAnonymousUser(ctx context.Context, timezone string) (string, error)
	UserStatus(ctx context.Context) (api.User, error)
	SendHeartbeat(ctx context.Context, reason string) error
	SendBatch(ctx context.Context, payloads []json.RawMessage) error
}

// Store is the slice of the Local Store the scheduler reads and writes.
type Store interface {
	Exists() bool
	JWT() string
	Name() string
	Set(key string, value any) error
}

// Buffer is the offline payload buffer. Drain hands the buffered payloads
// to send and clears them only when send succeeds.
type Buffer interface {
	Drain(ctx context.Context, send func(context.Context, []json.RawMessage) error) (int, error)
}

// FlushLog records flush attempts. Optional.
type FlushLog interface {
	RecordFlush(ctx context.Context, r storage.FlushRecord) error
	MarkSynced(ctx context.Context) error
}

// Notifier shows the one-shot offline notice.
type Notifier interface {
	ShowOffline()
}

// Focus reports whether the host window has focus.
type Focus interface {
	Focused() bool
}

// Refresher re-renders the status line from the latest summaries.
type Refresher interface {
	UpdateStatusBarWithSummaryData(ctx context.Context) (status.Status, error)
}

// DayChecker rolls the session summary over when the local day changed.
type DayChecker interface {
	NewDayCheck(ctx context.Context) (bool, error)
}

// Liveshare is the open collaborative session, if any.
type Liveshare interface {
	Active() bool
	UpdateTime() error
}

// Intervals holds the task periods.
type Intervals struct {
	OnlineRetry  time.Duration
	Heartbeat    time.Duration
	Flush        time.Duration
	SessionCheck time.Duration
	UserStatus   time.Duration
	Liveshare    time.Duration
	InitialFlush time.Duration
	HistoryDelay time.Duration
}

// DefaultIntervals returns the production periods.
func DefaultIntervals() Intervals {
	return Intervals{
		OnlineRetry:  10 * time.Minute,
		Heartbeat:    time.Hour,
		Flush:        30 * time.Minute,
		SessionCheck: 35 * time.Minute,
		UserStatus:   10 * time.Minute,
		Liveshare:    time.Minute,
		InitialFlush: time.Second,
		HistoryDelay: 2 * time.Minute,
	}
}

func (iv Intervals) withDefaults() Intervals {
	def := DefaultIntervals()
	fill := func(v *time.Duration, d time.Duration) {
		if *v <= 0 {
			*v = d
		}
	}
	fill(&iv.OnlineRetry, def.OnlineRetry)
	fill(&iv.Heartbeat, def.Heartbeat)
	fill(&iv.Flush, def.Flush)
	fill(&iv.SessionCheck, def.SessionCheck)
	fill(&iv.UserStatus, def.UserStatus)
	fill(&iv.Liveshare, def.Liveshare)
	fill(&iv.InitialFlush, def.InitialFlush)
	fill(&iv.HistoryDelay, def.HistoryDelay)
	return iv
}

// Options configures a Scheduler. Backend, Store and Buffer are required.
type Options struct {
	Backend   Backend
	Store     Store
	Buffer    Buffer
	FlushLog  FlushLog
	Notifier  Notifier
	Focus     Focus
	Refresher Refresher
	// DayCheck, when set, runs before every hourly refresh.
	DayCheck  DayChecker
	Liveshare Liveshare
	Clock     quartz.Clock
	Intervals Intervals
	// Retry paces identity bootstrap attempts. Defaults to a constant
	// Intervals.OnlineRetry with no limit.
	Retry backoff.BackOff
	// WatchPath, when set, is watched for removal and triggers an
	// immediate session check.
	WatchPath string
	Logger    zerolog.Logger
}

// Scheduler owns every periodic task and their cancellation.
type Scheduler struct {
	backend   Backend
	store     Store
	buffer    Buffer
	flushLog  FlushLog
	notifier  Notifier
	focus     Focus
	refresher Refresher
	dayCheck  DayChecker
	liveshare Liveshare
	clock     quartz.Clock
	iv        Intervals
	retry     backoff.BackOff
	watchPath string
	log       zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu            sync.Mutex
	state         State
	closed        bool
	started       bool
	tasksStarted  bool
	noticeShown   bool
	installedSent bool
	timers        []*quartz.Timer
	tickers       []quartz.Waiter

	flushMu sync.Mutex
	checkMu sync.Mutex
}

// New returns a Scheduler in the Uninitialized state.
func New(opts Options) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	iv := opts.Intervals.withDefaults()
	retry := opts.Retry
	if retry == nil {
		retry = backoff.NewConstantBackOff(iv.OnlineRetry)
	}
	return &Scheduler{
		backend:   opts.Backend,
		store:     opts.Store,
		buffer:    opts.Buffer,
		flushLog:  opts.FlushLog,
		notifier:  opts.Notifier,
		focus:     opts.Focus,
		refresher: opts.Refresher,
		dayCheck:  opts.DayCheck,
		liveshare: opts.Liveshare,
		clock:     opts.Clock,
		iv:        iv,
		retry:     retry,
		watchPath: opts.WatchPath,
		log:       opts.Logger,
	}
}

// State returns the current identity state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start resolves the identity state and, once active, starts the periodic
// tasks. It returns after the first bootstrap attempt; retries continue in
// the background until Close.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	if s.store.Exists() && s.store.JWT() != "" {
		s.activate(api.HeartbeatInitialized)
		return
	}
	s.bootstrap()
}

// Close cancels every task and waits for running callbacks to return.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for _, t := range s.timers {
		t.Stop()
	}
	tickers := s.tickers
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, w := range tickers {
		_ = w.Wait()
	}
	s.wg.Wait()
	return nil
}

// enter registers a callback as running. It returns false once Close has
// been called.
func (s *Scheduler) enter() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Scheduler) setState(st State) {
	s.mu.Lock()
	prev := s.state
	s.state = st
	s.mu.Unlock()
	if prev != st {
		s.log.Debug().Stringer("from", prev).Stringer("to", st).Msg("scheduler state changed")
	}
}

// bootstrap probes the backend and creates an anonymous identity. Any
// failure schedules another attempt.
func (s *Scheduler) bootstrap() {
	s.setState(Uninitialized)

	if err := s.backend.Ping(s.ctx); err != nil {
		s.log.Info().Err(err).Msg("backend unreachable, identity bootstrap deferred")
		s.bootstrapFailed()
		return
	}

	s.setState(AwaitingIdentity)
	jwt, err := s.backend.CreateAnonymousUser(s.ctx, timezone(s.clock.Now()))
	if err != nil {
		s.log.Warn().Err(err).Msg("create anonymous user failed")
		s.setState(Uninitialized)
		s.bootstrapFailed()
		return
	}
	if err := s.store.Set(storage.KeyJWT, jwt); err != nil {
		s.log.Error().Err(err).Msg("persist credential")
		s.setState(Uninitialized)
		s.bootstrapFailed()
		return
	}

	s.activate(api.HeartbeatInstalled)
}

func (s *Scheduler) bootstrapFailed() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	first := !s.noticeShown
	s.noticeShown = true

	d := s.retry.NextBackOff()
	if d == backoff.Stop {
		d = s.iv.OnlineRetry
	}
	t := s.clock.AfterFunc(d, func() {
		if !s.enter() {
			return
		}
		defer s.wg.Done()
		s.bootstrap()
	}, "scheduler", "retry")
	s.timers = append(s.timers, t)
	s.mu.Unlock()

	if first && s.notifier != nil {
		s.notifier.ShowOffline()
	}
}

// activate moves to Active, sends the given heartbeat and starts the
// periodic tasks once. INSTALLED is sent at most once per process.
func (s *Scheduler) activate(reason string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	send := true
	if reason == api.HeartbeatInstalled {
		send = !s.installedSent
		s.installedSent = true
	}
	s.mu.Unlock()

	s.setState(Active)
	s.retry.Reset()

	if send {
		s.heartbeat(reason)
	}
	s.startTasks()
}

func (s *Scheduler) startTasks() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tasksStarted || s.closed {
		return
	}
	s.tasksStarted = true

	tick := func(d time.Duration, name string, fn func()) {
		w := s.clock.TickerFunc(s.ctx, d, func() error {
			if !s.enter() {
				return nil
			}
			defer s.wg.Done()
			fn()
			return nil
		}, "scheduler", name)
		s.tickers = append(s.tickers, w)
	}
	after := func(d time.Duration, name string, fn func()) {
		t := s.clock.AfterFunc(d, func() {
			if !s.enter() {
				return
			}
			defer s.wg.Done()
			fn()
		}, "scheduler", name)
		s.timers = append(s.timers, t)
	}

	tick(s.iv.Heartbeat, "heartbeat", s.hourly)
	tick(s.iv.Flush, "flush", s.flushTask)
	tick(s.iv.SessionCheck, "session-check", s.sessionCheck)
	tick(s.iv.UserStatus, "user-status", s.userStatus)
	tick(s.iv.Liveshare, "liveshare", s.liveshareTick)
	after(s.iv.InitialFlush, "initial-flush", s.flushTask)
	after(s.iv.HistoryDelay, "history", s.refresh)

	if s.watchPath != "" {
		if err := s.watch(); err != nil {
			s.log.Warn().Err(err).Str("path", s.watchPath).Msg("session file watch disabled")
		}
	}
}

// timezone names the local zone of t, e.g. "Europe/Berlin" or "CET".
func timezone(t time.Time) string {
	if name := t.Location().String(); name != "" && name != "Local" {
		return name
	}
	name, _ := t.Zone()
	return name
}
