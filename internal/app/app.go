// Package app assembles the agent: it opens the local files, builds the
// backend client and wires the aggregator, status reader, live share tracker
// and scheduler together. Close tears everything down in reverse order.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/runnerr0/codepulse/internal/api"
	"github.com/runnerr0/codepulse/internal/config"
	"github.com/runnerr0/codepulse/internal/liveshare"
	"github.com/runnerr0/codepulse/internal/logging"
	"github.com/runnerr0/codepulse/internal/scheduler"
	"github.com/runnerr0/codepulse/internal/session"
	"github.com/runnerr0/codepulse/internal/status"
	"github.com/runnerr0/codepulse/internal/storage"
)

// Options configures New. Config is required.
type Options struct {
	Config  *config.Config
	Version string
	Verbose bool
	// Out receives status lines and notices. Defaults to stdout.
	Out io.Writer
	// Clock drives every timer. Defaults to the real clock.
	Clock    quartz.Clock
	Location *time.Location
	// Logger replaces the configured logger, mainly for tests.
	Logger *zerolog.Logger
	// Focus reports host focus. Nil means always focused.
	Focus scheduler.Focus
}

// App owns every long-lived component.
type App struct {
	Config  *config.Config
	Log     zerolog.Logger
	DataDir string

	Store      *storage.LocalStore
	Summaries  *storage.SummaryFile
	Buffer     *storage.PayloadBuffer
	History    *storage.History
	API        *api.Client
	Aggregator *session.Aggregator
	Liveshare  *liveshare.Tracker
	Status     *status.Reader
	Scheduler  *scheduler.Scheduler

	out      io.Writer
	closeLog func() error
	running  atomic.Bool

	closeOnce sync.Once
	closeErr  error
}

// New opens the data directory and builds every component. Nothing is
// started; see Run.
func New(ctx context.Context, opts Options) (a *App, err error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	dataDir, err := cfg.DataDir()
	if err != nil {
		return nil, fmt.Errorf("resolve data directory: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	a = &App{Config: cfg, DataDir: dataDir, out: opts.Out, closeLog: func() error { return nil }}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if opts.Logger != nil {
		a.Log = *opts.Logger
	} else {
		a.Log, a.closeLog, err = logging.New(cfg.Logging, dataDir, opts.Verbose)
		if err != nil {
			return nil, fmt.Errorf("init logging: %w", err)
		}
	}

	if err := a.openStorage(ctx); err != nil {
		return nil, err
	}

	a.API, err = api.New(api.Options{
		BaseURL:  cfg.API.BaseURL,
		Timeout:  cfg.APITimeout(),
		RetryMax: cfg.API.RetryMax,
		PluginID: cfg.Plugin.ID,
		Version:  opts.Version,
		Token:    a.Store,
		Clock:    opts.Clock,
		Logger:   a.Log.With().Str("component", "api").Logger(),
	})
	if err != nil {
		return nil, fmt.Errorf("init api client: %w", err)
	}

	a.Aggregator = session.New(session.Options{
		Store:            a.Store,
		Summaries:        a.Summaries,
		Buffer:           a.Buffer,
		History:          a.History,
		Clock:            opts.Clock,
		Location:         opts.Location,
		ThresholdSeconds: cfg.Session.ThresholdSeconds,
		AverageDays:      cfg.Session.AverageDays,
		ExcludeDirs:      cfg.ExcludedDirs(),
		Logger:           a.Log.With().Str("component", "session").Logger(),
	})

	a.Liveshare = liveshare.NewTracker(a.Store, a.Aggregator, a.API, opts.Clock,
		a.Log.With().Str("component", "liveshare").Logger())

	bar := status.TerminalBar{Print: func(s string) { fmt.Fprintln(a.out, s) }}
	a.Status = status.NewReader(a.API, a.Aggregator, a.Store, bar, cfg.Plugin.Product,
		a.Log.With().Str("component", "status").Logger())

	sopts := scheduler.Options{
		Backend:   a.API,
		Store:     a.Store,
		Buffer:    a.Buffer,
		FlushLog:  a.History,
		Notifier:  notifier{out: a.out, product: cfg.Plugin.Product},
		Focus:     opts.Focus,
		Refresher: a.Status,
		DayCheck:  a.Aggregator,
		Liveshare: a.Liveshare,
		Clock:     opts.Clock,
		Intervals: intervals(cfg.Scheduler),
		Logger:    a.Log.With().Str("component", "scheduler").Logger(),
	}
	if cfg.Scheduler.WatchSessionFile {
		sopts.WatchPath = a.Store.Path()
	}
	a.Scheduler = scheduler.New(sopts)

	return a, nil
}

func (a *App) openStorage(ctx context.Context) error {
	st := a.Config.Storage
	sessionPath, err := a.Config.Resolve(st.SessionFile)
	if err != nil {
		return err
	}
	summaryPath, err := a.Config.Resolve(st.SummaryFile)
	if err != nil {
		return err
	}
	bufferPath, err := a.Config.Resolve(st.BufferFile)
	if err != nil {
		return err
	}
	historyPath, err := a.Config.Resolve(st.HistoryFile)
	if err != nil {
		return err
	}

	if a.Store, err = storage.OpenLocalStore(sessionPath); err != nil {
		return fmt.Errorf("open local store: %w", err)
	}
	if a.Summaries, err = storage.OpenSummaryFile(summaryPath); err != nil {
		return fmt.Errorf("open session summary: %w", err)
	}
	if a.Buffer, err = storage.OpenPayloadBuffer(bufferPath); err != nil {
		return fmt.Errorf("open payload buffer: %w", err)
	}
	if a.History, err = storage.OpenHistory(ctx, historyPath); err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	return nil
}

func intervals(c config.SchedulerConfig) scheduler.Intervals {
	def := scheduler.DefaultIntervals()
	return scheduler.Intervals{
		OnlineRetry:  config.Interval(c.OnlineRetryMinutes, def.OnlineRetry),
		Heartbeat:    config.Interval(c.HeartbeatMinutes, def.Heartbeat),
		Flush:        config.Interval(c.FlushMinutes, def.Flush),
		SessionCheck: config.Interval(c.SessionCheckMinutes, def.SessionCheck),
		UserStatus:   config.Interval(c.UserStatusMinutes, def.UserStatus),
		Liveshare:    config.Interval(c.LiveshareMinutes, def.Liveshare),
		InitialFlush: def.InitialFlush,
		HistoryDelay: def.HistoryDelay,
	}
}

// Run starts the scheduler, renders the first status line and blocks until
// ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if _, err := a.Aggregator.NewDayCheck(ctx); err != nil {
		a.Log.Warn().Err(err).Msg("new day check failed")
	}
	a.running.Store(true)
	a.Scheduler.Start(ctx)
	if _, err := a.Status.UpdateStatusBarWithSummaryData(ctx); err != nil {
		a.Log.Warn().Err(err).Msg("initial status render failed")
	}
	a.Log.Info().Str("data_dir", a.DataDir).Stringer("state", a.Scheduler.State()).Msg("agent running")

	<-ctx.Done()
	return nil
}

// Close stops the scheduler, closes any open live share session when the
// agent was running, and releases the history database and log file. It is safe on a partially
// built App and idempotent.
func (a *App) Close() error {
	a.closeOnce.Do(func() { a.closeErr = a.close() })
	return a.closeErr
}

func (a *App) close() error {
	var errs []error
	if a.Scheduler != nil {
		errs = append(errs, a.Scheduler.Close())
	}
	if a.running.Load() && a.Liveshare != nil && a.Liveshare.Active() {
		ctx, cancel := context.WithTimeout(context.Background(), a.Config.APITimeout())
		if _, _, err := a.Liveshare.End(ctx); err != nil && !errors.Is(err, liveshare.ErrNoSession) {
			errs = append(errs, err)
		}
		cancel()
	}
	if a.History != nil {
		errs = append(errs, a.History.Close())
	}
	if a.closeLog != nil {
		errs = append(errs, a.closeLog())
	}
	return errors.Join(errs...)
}

// notifier prints the one-shot offline notice.
type notifier struct {
	out     io.Writer
	product string
}

func (n notifier) ShowOffline() {
	fmt.Fprintf(n.out, "%s: unable to reach the server. Activity is kept locally and will be uploaded once the connection is back.\n", n.product)
}
