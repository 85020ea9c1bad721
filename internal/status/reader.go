// Package status derives the status line from the session summary and the
// backend time summary.
package status

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"

	"github.com/runnerr0/codepulse/internal/api"
	"github.com/runnerr0/codepulse/internal/storage"
)

// Indicator is the flow state shown next to the duration.
type Indicator int

const (
	AtOrBelowAverage Indicator = iota
	AboveAverage
)

const (
	IconRocket = "🚀"
	IconClock  = "🕒"
)

// Icon returns the glyph for i.
func (i Indicator) Icon() string {
	if i == AboveAverage {
		return IconRocket
	}
	return IconClock
}

func (i Indicator) String() string {
	if i == AboveAverage {
		return "above-average"
	}
	return "at-or-below-average"
}

// TimeSummarySource supplies today's active code time.
type TimeSummarySource interface {
	Summary(ctx context.Context) (api.TimeSummary, error)
}

// SummaryReader supplies the local session summary.
type SummaryReader interface {
	Summary() (storage.SessionSummary, error)
}

// Settings is the slice of the Local Store the reader needs.
type Settings interface {
	Name() string
	TelemetryOn() bool
	Set(key string, value any) error
}

// StatusBar is the host surface the status is rendered to.
type StatusBar interface {
	SetStatus(text, tooltip string)
}

// Status is one rendered status line.
type Status struct {
	Text           string    `json:"text"`
	Tooltip        string    `json:"tooltip"`
	Indicator      Indicator `json:"-"`
	ActiveMinutes  float64   `json:"activeMinutes"`
	AverageMinutes float64   `json:"averageMinutes"`
	Paused         bool      `json:"paused"`
}

// Reader renders the status line. It never mutates the summary.
type Reader struct {
	source   TimeSummarySource
	local    SummaryReader
	settings Settings
	bar      StatusBar
	product  string
	log      zerolog.Logger

	mu sync.Mutex
}

// NewReader returns a Reader. source may be nil, in which case the local
// current day minutes are shown.
func NewReader(source TimeSummarySource, local SummaryReader, settings Settings, bar StatusBar, product string, log zerolog.Logger) *Reader {
	if product == "" {
		product = "Code Time"
	}
	return &Reader{
		source:   source,
		local:    local,
		settings: settings,
		bar:      bar,
		product:  product,
		log:      log,
	}
}

// UpdateStatusBarWithSummaryData computes the current status and pushes it
// to the status bar. While paused the paused text is kept.
func (r *Reader) UpdateStatusBarWithSummaryData(ctx context.Context) (Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.settings.TelemetryOn() {
		st := r.pausedStatus()
		r.push(st)
		return st, nil
	}

	summary, err := r.local.Summary()
	if err != nil {
		return Status{}, fmt.Errorf("read session summary: %w", err)
	}

	active := summary.CurrentDayMinutes
	if r.source != nil {
		ts, err := r.source.Summary(ctx)
		if err != nil {
			r.log.Debug().Err(err).Msg("time summary unavailable, using local minutes")
		} else {
			active = ts.ActiveCodeTimeMinutes
		}
	}

	st := Compute(active, summary.AverageDailyMinutes)
	st.Tooltip = r.tooltip()
	r.push(st)
	return st, nil
}

// Compute picks the indicator and text for the given minutes.
func Compute(activeMinutes, averageMinutes float64) Status {
	ind := AtOrBelowAverage
	if activeMinutes > averageMinutes {
		ind = AboveAverage
	}
	return Status{
		Text:           ind.Icon() + " " + HumanizeMinutes(activeMinutes),
		Indicator:      ind,
		ActiveMinutes:  activeMinutes,
		AverageMinutes: averageMinutes,
	}
}

// Pause turns off metrics display and persists the choice.
func (r *Reader) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.settings.Set(storage.KeyTelemetryOn, false); err != nil {
		return fmt.Errorf("pause metrics: %w", err)
	}
	r.push(r.pausedStatus())
	return nil
}

// Resume turns metrics display back on and re-renders.
func (r *Reader) Resume(ctx context.Context) (Status, error) {
	if err := r.settings.Set(storage.KeyTelemetryOn, true); err != nil {
		return Status{}, fmt.Errorf("resume metrics: %w", err)
	}
	return r.UpdateStatusBarWithSummaryData(ctx)
}

// Paused reports whether metrics display is off.
func (r *Reader) Paused() bool {
	return !r.settings.TelemetryOn()
}

func (r *Reader) pausedStatus() Status {
	return Status{
		Text:    r.product + " Paused",
		Tooltip: "Enable metrics to resume",
		Paused:  true,
	}
}

func (r *Reader) tooltip() string {
	tip := "Click to see more from " + r.product
	if name := r.settings.Name(); name != "" {
		tip += " (" + name + ")"
	}
	return tip
}

func (r *Reader) push(st Status) {
	if r.bar != nil {
		r.bar.SetStatus(st.Text, st.Tooltip)
	}
}

// HumanizeMinutes formats minutes as "45min" or "1h 30min". Fractions are
// floored; zero is "0min".
func HumanizeMinutes(minutes float64) string {
	if math.IsNaN(minutes) || minutes < 0 {
		minutes = 0
	}
	m := int64(math.Floor(minutes))
	if m < 60 {
		return fmt.Sprintf("%dmin", m)
	}
	return fmt.Sprintf("%dh %dmin", m/60, m%60)
}
