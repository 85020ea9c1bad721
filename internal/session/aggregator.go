// Package session owns the day-scoped session summary: the gap heuristic
// that decides whether activity continues a session, the additive counters,
// and the rollover into history when the local day changes.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/runnerr0/codepulse/internal/config"
	"github.com/runnerr0/codepulse/internal/storage"
)

// DefaultElapsedSeconds is the gap assumed when no earlier payload exists.
const DefaultElapsedSeconds = 60

const dayLayout = "2006-01-02"

// KeystrokeAggregate is a batch of counts attributed to one interval.
type KeystrokeAggregate struct {
	Keystrokes   int
	LinesAdded   int
	LinesRemoved int
}

// Options configures an Aggregator. History may be nil, in which case
// rollover resets the summary without archiving.
type Options struct {
	Store            *storage.LocalStore
	Summaries        *storage.SummaryFile
	Buffer           *storage.PayloadBuffer
	History          *storage.History
	Clock            quartz.Clock
	Location         *time.Location
	ThresholdSeconds int
	AverageDays      int
	ExcludeDirs      []string
	Logger           zerolog.Logger
}

// Aggregator serializes every mutation of the session summary and the
// session keys of the Local Store.
type Aggregator struct {
	store     *storage.LocalStore
	summaries *storage.SummaryFile
	buffer    *storage.PayloadBuffer
	history   *storage.History
	clock     quartz.Clock
	loc       *time.Location
	threshold int64
	avgDays   int
	excluded  []string
	log       zerolog.Logger

	mu sync.Mutex
}

// New returns an Aggregator over the given files.
func New(opts Options) *Aggregator {
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.ThresholdSeconds <= 0 {
		opts.ThresholdSeconds = config.DefaultSessionThresholdSeconds
	}
	if opts.AverageDays <= 0 {
		opts.AverageDays = 30
	}
	return &Aggregator{
		store:     opts.Store,
		summaries: opts.Summaries,
		buffer:    opts.Buffer,
		history:   opts.History,
		clock:     opts.Clock,
		loc:       opts.Location,
		threshold: int64(opts.ThresholdSeconds),
		avgDays:   opts.AverageDays,
		excluded:  opts.ExcludeDirs,
		log:       opts.Logger,
	}
}

// SessionThresholdSeconds returns the largest gap folded into a session.
// A positive sessionThresholdInSec in the Local Store wins over the
// configured default.
func (a *Aggregator) SessionThresholdSeconds() int64 {
	if v := a.store.SessionThresholdSeconds(); v > 0 {
		return v
	}
	return a.threshold
}

// ElapsedAndSessionSeconds applies the gap heuristic. Without an earlier
// payload the result is (60, 0). A gap in (0, threshold] continues the
// session and is billed as active time; anything else contributes nothing.
func ElapsedAndSessionSeconds(now, lastPayloadEnd, threshold int64) (elapsed, session int64) {
	if lastPayloadEnd <= 0 {
		return DefaultElapsedSeconds, 0
	}
	elapsed = now - lastPayloadEnd
	if elapsed > 0 && elapsed <= threshold {
		session = elapsed
	}
	return elapsed, session
}

// ElapsedAndSessionSeconds is the gap heuristic using the current threshold.
func (a *Aggregator) ElapsedAndSessionSeconds(now, lastPayloadEnd int64) (elapsed, session int64) {
	return ElapsedAndSessionSeconds(now, lastPayloadEnd, a.SessionThresholdSeconds())
}

// TimeBetweenLastPayload measures the gap between now and the end of the
// last processed payload.
func (a *Aggregator) TimeBetweenLastPayload() (elapsed, session int64) {
	return a.ElapsedAndSessionSeconds(a.clock.Now().Unix(), a.store.LatestPayloadEnd())
}

// Summary returns the coalesced session summary.
func (a *Aggregator) Summary() (storage.SessionSummary, error) {
	return a.summaries.Load()
}

// IncrementSessionSummaryData adds sessionSeconds/60 minutes and the
// aggregate counts to today's summary.
func (a *Aggregator) IncrementSessionSummaryData(agg KeystrokeAggregate, sessionSeconds int64) (storage.SessionSummary, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.increment(agg, sessionSeconds)
}

func (a *Aggregator) increment(agg KeystrokeAggregate, sessionSeconds int64) (storage.SessionSummary, error) {
	s, err := a.summaries.Update(func(s *storage.SessionSummary) {
		if sessionSeconds > 0 {
			s.CurrentDayMinutes += float64(sessionSeconds) / 60
		}
		s.CurrentDayKeystrokes += float64(agg.Keystrokes)
		s.CurrentDayLinesAdded += float64(agg.LinesAdded)
		s.CurrentDayLinesRemoved += float64(agg.LinesRemoved)
		s.CurrentDayKpm = kpm(s.CurrentDayKeystrokes, s.CurrentDayMinutes)
	})
	if err != nil {
		return storage.SessionSummary{}, fmt.Errorf("increment session summary: %w", err)
	}
	return s, nil
}

// ClearSessionSummaryData replaces the summary with a zero record.
func (a *Aggregator) ClearSessionSummaryData() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.summaries.Save(storage.SessionSummary{}); err != nil {
		return fmt.Errorf("clear session summary: %w", err)
	}
	return nil
}

// SetSessionSummaryLiveshareMinutes overwrites the live share minutes.
func (a *Aggregator) SetSessionSummaryLiveshareMinutes(minutes float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, err := a.summaries.Update(func(s *storage.SessionSummary) {
		s.LiveshareMinutes = minutes
	})
	if err != nil {
		return fmt.Errorf("set liveshare minutes: %w", err)
	}
	return nil
}

// Reset clears today's summary and forgets the last payload end so the next
// payload starts a fresh session.
func (a *Aggregator) Reset() error {
	if err := a.ClearSessionSummaryData(); err != nil {
		return err
	}
	return a.store.Set(storage.KeyLatestPayloadEnd, 0)
}

// ProcessPayload folds one payload into today's summary and queues it for
// upload. Payloads from excluded directories are dropped and reported as
// not processed.
func (a *Aggregator) ProcessPayload(ctx context.Context, p storage.Payload) (bool, error) {
	if config.IsExcludedDir(p.Project.Directory, a.excluded) {
		a.log.Debug().Str("dir", p.Project.Directory).Msg("payload from excluded directory dropped")
		return false, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := a.newDayCheck(ctx); err != nil {
		// Rollover failures must not lose the payload itself.
		a.log.Warn().Err(err).Msg("new day check failed")
	}

	now := a.clock.Now()
	elapsed, session := a.ElapsedAndSessionSeconds(now.Unix(), a.store.LatestPayloadEnd())

	agg := KeystrokeAggregate{
		Keystrokes:   p.Keystrokes,
		LinesAdded:   p.LinesAdded,
		LinesRemoved: p.LinesRemoved,
	}
	if _, err := a.increment(agg, session); err != nil {
		return false, err
	}

	if p.End == 0 {
		p.End = now.Unix()
	}
	if p.Start == 0 {
		p.Start = p.End - DefaultElapsedSeconds
	}
	if p.Timezone == "" {
		p.Timezone, p.Offset = zoneOf(now.In(a.loc))
	}
	if p.LocalEnd == 0 {
		p.LocalStart = p.Start + int64(p.Offset)*60
		p.LocalEnd = p.End + int64(p.Offset)*60
	}

	if err := a.store.Set(storage.KeyLatestPayloadEnd, p.End); err != nil {
		return false, fmt.Errorf("store latest payload end: %w", err)
	}
	if err := a.buffer.Append(p); err != nil {
		return false, fmt.Errorf("buffer payload: %w", err)
	}

	a.log.Debug().
		Int64("elapsed", elapsed).
		Int64("session", session).
		Int("keystrokes", p.Keystrokes).
		Msg("payload processed")
	return true, nil
}

// NewDayCheck rolls the summary over when the local calendar day changed
// since the last check. The finished day is archived to history and the
// fresh summary starts from the history averages.
func (a *Aggregator) NewDayCheck(ctx context.Context) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.newDayCheck(ctx)
}

func (a *Aggregator) newDayCheck(ctx context.Context) (bool, error) {
	today := a.clock.Now().In(a.loc).Format(dayLayout)
	previous := a.store.CurrentDay()
	if previous == today {
		return false, nil
	}

	fresh := storage.SessionSummary{}
	if a.history != nil {
		if previous != "" {
			old, err := a.summaries.Load()
			if err != nil {
				return false, fmt.Errorf("load finished day: %w", err)
			}
			err = a.history.ArchiveDay(ctx, storage.DailySummary{
				Day:              previous,
				Minutes:          old.CurrentDayMinutes,
				Keystrokes:       old.CurrentDayKeystrokes,
				LinesAdded:       old.CurrentDayLinesAdded,
				LinesRemoved:     old.CurrentDayLinesRemoved,
				LiveshareMinutes: old.LiveshareMinutes,
				ArchivedAt:       a.clock.Now(),
			})
			if err != nil {
				return false, err
			}
		}

		avg, err := a.history.Averages(ctx, a.avgDays)
		if err != nil {
			return false, err
		}
		fresh.AverageDailyMinutes = avg.Minutes
		fresh.AverageDailyKeystrokes = avg.Keystrokes
		fresh.AverageLinesAdded = avg.LinesAdded
		fresh.AverageLinesRemoved = avg.LinesRemoved
		fresh.AverageDailyKpm = kpm(avg.Keystrokes, avg.Minutes)
	}

	if err := a.summaries.Save(fresh); err != nil {
		return false, fmt.Errorf("reset summary: %w", err)
	}
	if err := a.store.Set(storage.KeyLatestPayloadEnd, 0); err != nil {
		return false, err
	}
	if err := a.store.Set(storage.KeyCurrentDay, today); err != nil {
		return false, err
	}

	a.log.Info().Str("previous", previous).Str("day", today).Msg("new day started")
	return true, nil
}

func kpm(keystrokes, minutes float64) float64 {
	if minutes <= 0 {
		return 0
	}
	return keystrokes / minutes
}

// zoneOf returns the zone name and UTC offset in minutes of t.
func zoneOf(t time.Time) (string, int) {
	name, offset := t.Zone()
	return name, offset / 60
}
