// Package selector walks the user through choosing a date range and a set of
// projects, then hands the resulting query to a report sink. It never touches
// aggregate state.
package selector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/runnerr0/codepulse/internal/api"
)

var (
	// ErrCancelled is returned when the user dismisses a prompt or picks
	// nothing. No report is requested.
	ErrCancelled = errors.New("selection cancelled")
	// ErrNoProjects is returned when the listing has nothing selectable.
	ErrNoProjects = errors.New("no projects found")
)

const (
	placeholderRange    = "Select a date range"
	placeholderProjects = "Select one or more projects"

	msgInvalidDate = "Please enter a valid date to continue (YYYY-MM-DD)"
	msgEndBefore   = "Please make sure the end date is after the start date"
)

// Checkbox is one selectable project.
type Checkbox struct {
	Label         string
	Value         []string
	Checked       bool
	Text          string
	CodingRecords float64
	LineNumber    int
}

// Prompter is the host's prompt surface. The bool result is false when the
// user dismissed the prompt.
type Prompter interface {
	PickOne(ctx context.Context, placeholder string, items []Item) (Item, bool, error)
	PickMany(ctx context.Context, placeholder string, boxes []Checkbox) ([]Checkbox, bool, error)
	// Input asks for free text. validate returns "" for acceptable input and
	// a message otherwise; the prompt stays open until it passes.
	Input(ctx context.Context, prompt, placeholder, value string, validate func(string) string) (string, bool, error)
}

// ProjectLister fetches the project listing.
type ProjectLister interface {
	ListProjects(ctx context.Context, q api.ProjectQuery) ([]api.ProjectRecord, error)
}

// ReportSink consumes the final selection.
type ReportSink interface {
	ByRangeType(ctx context.Context, rangeType string, projectIDs []string) error
	ByStartEnd(ctx context.Context, start, end int64, projectIDs []string) error
}

// DateRangeSelection is the range chosen during a flow. Start and end times
// are UTC epoch seconds; the local variants are shifted by the UTC offset
// captured when the range was picked.
type DateRangeSelection struct {
	SelectedStartTime int64
	SelectedEndTime   int64
	SelectedRangeType string
	LocalStart        int64
	LocalEnd          int64
}

// HasDateSelected reports whether a range type or a local start is set.
func (d DateRangeSelection) HasDateSelected() bool {
	return d.SelectedRangeType != "" || d.LocalStart != 0
}

// Query returns the project listing query for the selection.
func (d DateRangeSelection) Query() api.ProjectQuery {
	if d.SelectedRangeType != "" {
		return api.ProjectQuery{TimeRange: d.SelectedRangeType}
	}
	return api.ProjectQuery{Start: d.LocalStart, End: d.LocalEnd}
}

// Selector runs the selection flows. It is not safe for concurrent flows.
type Selector struct {
	prompt Prompter
	lister ProjectLister
	sink   ReportSink
	clock  quartz.Clock
	loc    *time.Location
	log    zerolog.Logger

	sel DateRangeSelection
}

// Options configures a Selector.
type Options struct {
	Prompter Prompter
	Lister   ProjectLister
	Sink     ReportSink
	Clock    quartz.Clock
	Location *time.Location
	Logger   zerolog.Logger
}

func New(opts Options) *Selector {
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Selector{
		prompt: opts.Prompter,
		lister: opts.Lister,
		sink:   opts.Sink,
		clock:  opts.Clock,
		loc:    opts.Location,
		log:    opts.Logger,
	}
}

// selection returns the range picked by the last flow.
func (s *Selector) selection() DateRangeSelection {
	return s.sel
}

func (s *Selector) resetDateRange() {
	s.sel = DateRangeSelection{}
}

// LaunchDailyReportMenuFlow asks for a range, then for projects active in
// that range, and requests the report.
func (s *Selector) LaunchDailyReportMenuFlow(ctx context.Context) error {
	s.resetDateRange()
	if err := s.pickDateRange(ctx); err != nil {
		return err
	}
	if !s.sel.HasDateSelected() {
		return ErrCancelled
	}
	boxes, err := s.checkboxes(ctx, s.sel.Query())
	if err != nil {
		return err
	}
	return s.launchProjectSelectionMenu(ctx, boxes)
}

// LaunchViewProjectSummaryMenuFlow lists every project first and asks for a
// range only after projects were picked.
func (s *Selector) LaunchViewProjectSummaryMenuFlow(ctx context.Context) error {
	s.resetDateRange()
	boxes, err := s.checkboxes(ctx, api.ProjectQuery{})
	if err != nil {
		return err
	}
	return s.launchProjectSelectionMenu(ctx, boxes)
}

// LaunchProjectSummaryMenuFlow asks for a range, then lists every project
// and keeps the chosen range for the report.
func (s *Selector) LaunchProjectSummaryMenuFlow(ctx context.Context) error {
	s.resetDateRange()
	if err := s.pickDateRange(ctx); err != nil {
		return err
	}
	if !s.sel.HasDateSelected() {
		return ErrCancelled
	}
	boxes, err := s.checkboxes(ctx, api.ProjectQuery{})
	if err != nil {
		return err
	}
	return s.launchProjectSelectionMenu(ctx, boxes)
}

// GetSelectedDateRange runs the range menu alone.
func (s *Selector) GetSelectedDateRange(ctx context.Context) (DateRangeSelection, error) {
	s.resetDateRange()
	if err := s.pickDateRange(ctx); err != nil {
		return DateRangeSelection{}, err
	}
	if !s.sel.HasDateSelected() {
		return DateRangeSelection{}, ErrCancelled
	}
	return s.sel, nil
}

// pickDateRange fills s.sel. Dismissing any prompt leaves nothing selected.
func (s *Selector) pickDateRange(ctx context.Context) error {
	pick, ok, err := s.prompt.PickOne(ctx, placeholderRange, RangeItems())
	if err != nil {
		return fmt.Errorf("pick date range: %w", err)
	}
	if !ok {
		return nil
	}

	now := s.clock.Now().In(s.loc)
	_, offset := now.Zone()
	off := int64(offset)

	switch pick.Value {
	case RangeCustom:
		return s.pickCustomRange(ctx, now, off)
	case RangeLast90Days:
		b, _ := ResolveRange(RangeLast90Days, now)
		s.sel.LocalStart = b.Start.Unix() + off
		s.sel.LocalEnd = b.End.Unix() + off
	default:
		s.sel.SelectedRangeType = pick.Value
	}
	return nil
}

func (s *Selector) pickCustomRange(ctx context.Context, now time.Time, off int64) error {
	initialStart := startOfDay(now).AddDate(0, 0, -1).Format(dateLayout)
	startText, ok, err := s.prompt.Input(ctx,
		"Please enter the starting date of the custom time range (YYYY-MM-DD) to continue..",
		"Enter a date (YYYY-MM-DD)", initialStart, s.validateStart)
	if err != nil {
		return fmt.Errorf("read start date: %w", err)
	}
	if !ok {
		return nil
	}
	start, _ := parseDay(startText, s.loc)
	s.sel.SelectedStartTime = start.Unix()

	initialEnd := start.AddDate(0, 0, 1).Format(dateLayout)
	endText, ok, err := s.prompt.Input(ctx,
		"Please enter the ending date of the custom time range (YYYY-MM-DD) to continue..",
		"Enter a date (YYYY-MM-DD)", initialEnd, s.validateEnd)
	if err != nil {
		return fmt.Errorf("read end date: %w", err)
	}
	if !ok {
		return nil
	}
	end, _ := parseDay(endText, s.loc)
	s.sel.SelectedEndTime = endOfDay(end).Unix()

	s.sel.LocalStart = s.sel.SelectedStartTime + off
	s.sel.LocalEnd = s.sel.SelectedEndTime + off
	return nil
}

func (s *Selector) validateStart(text string) string {
	if _, ok := parseDay(text, s.loc); !ok {
		return msgInvalidDate
	}
	return ""
}

func (s *Selector) validateEnd(text string) string {
	end, ok := parseDay(text, s.loc)
	if !ok {
		return msgInvalidDate
	}
	if s.sel.SelectedStartTime != 0 && s.sel.SelectedStartTime > end.Unix() {
		return msgEndBefore
	}
	return ""
}

func (s *Selector) checkboxes(ctx context.Context, q api.ProjectQuery) ([]Checkbox, error) {
	records, err := s.lister.ListProjects(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	boxes := BuildCheckboxes(records)
	s.log.Debug().Int("projects", len(boxes)).Msg("project listing loaded")
	return boxes, nil
}

func (s *Selector) launchProjectSelectionMenu(ctx context.Context, boxes []Checkbox) error {
	if len(boxes) == 0 {
		return ErrNoProjects
	}
	picks, ok, err := s.prompt.PickMany(ctx, placeholderProjects, boxes)
	if err != nil {
		return fmt.Errorf("pick projects: %w", err)
	}
	if !ok || len(picks) == 0 {
		return ErrCancelled
	}

	if !s.sel.HasDateSelected() {
		if err := s.pickDateRange(ctx); err != nil {
			return err
		}
		if !s.sel.HasDateSelected() {
			return ErrCancelled
		}
	}

	var ids []string
	for _, p := range picks {
		ids = append(ids, p.Value...)
	}

	switch {
	case s.sel.SelectedRangeType != "":
		return s.sink.ByRangeType(ctx, s.sel.SelectedRangeType, ids)
	case s.sel.LocalStart != 0 && s.sel.LocalEnd != 0:
		return s.sink.ByStartEnd(ctx, s.sel.LocalStart, s.sel.LocalEnd, ids)
	}
	return ErrCancelled
}

// BuildCheckboxes turns a project listing into pre-checked checkboxes sorted
// by coding records, highest first. Percentages are taken over every listed
// record, selectable or not.
func BuildCheckboxes(records []api.ProjectRecord) []Checkbox {
	var total float64
	for _, r := range records {
		total += r.CodingRecords
	}

	var boxes []Checkbox
	line := 0
	for _, r := range records {
		if !r.Selectable() {
			continue
		}
		pct := 0.0
		if total > 0 {
			pct = r.CodingRecords / total * 100
		}
		boxes = append(boxes, Checkbox{
			Label:         r.Name,
			Value:         r.IDs,
			Checked:       true,
			Text:          fmt.Sprintf("(%.2f%%)", pct),
			CodingRecords: r.CodingRecords,
			LineNumber:    line,
		})
		line++
	}
	sort.SliceStable(boxes, func(i, j int) bool {
		return boxes[i].CodingRecords > boxes[j].CodingRecords
	})
	return boxes
}
