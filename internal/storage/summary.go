package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"
	"github.com/tidwall/gjson"
)

// SummaryFile persists the SessionSummary as indented JSON.
type SummaryFile struct {
	path string
	lock *flock.Flock

	mu sync.Mutex
}

// OpenSummaryFile returns a SummaryFile backed by path.
func OpenSummaryFile(path string) (*SummaryFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create summary directory: %w", err)
	}
	return &SummaryFile{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

// Path returns the backing file path.
func (f *SummaryFile) Path() string {
	return f.path
}

// Load returns the coalesced summary. A missing file is created with a zero
// record; a corrupt one reads as zero and is replaced on the next save.
func (f *SummaryFile) Load() (SessionSummary, error) {
	var summary SessionSummary
	err := f.locked(func() error {
		var err error
		summary, err = f.read()
		if errors.Is(err, os.ErrNotExist) {
			return f.write(summary)
		}
		// Corrupt content is not surfaced to callers: the zero record is
		// the contract.
		return nil
	})
	return summary, err
}

// Save replaces the persisted summary.
func (f *SummaryFile) Save(summary SessionSummary) error {
	return f.locked(func() error {
		return f.write(summary)
	})
}

// Update applies fn to the coalesced summary and persists the result as one
// serialized read-modify-write.
func (f *SummaryFile) Update(fn func(*SessionSummary)) (SessionSummary, error) {
	var summary SessionSummary
	err := f.locked(func() error {
		summary, _ = f.read()
		fn(&summary)
		Coalesce(&summary)
		return f.write(summary)
	})
	return summary, err
}

// locked runs fn holding both the in-process mutex and the file lock shared
// with other processes.
func (f *SummaryFile) locked(fn func() error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.lock.Lock(); err != nil {
		return fmt.Errorf("lock summary: %w", err)
	}
	defer f.lock.Unlock() //nolint:errcheck
	return fn()
}

func (f *SummaryFile) read() (SessionSummary, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return SessionSummary{}, err
	}
	return DecodeSummary(data)
}

func (f *SummaryFile) write(summary SessionSummary) error {
	data, err := json.MarshalIndent(summary, "", "    ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	data = append(data, '\n')
	if err := atomic.WriteFile(f.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

// DecodeSummary builds a total SessionSummary from raw JSON. Missing, null
// and non-numeric attributes become 0; numeric strings are accepted.
// Unparsable input yields the zero record and ErrCorrupt.
func DecodeSummary(data []byte) (SessionSummary, error) {
	var s SessionSummary
	if len(bytes.TrimSpace(data)) == 0 {
		return s, nil
	}
	if !gjson.ValidBytes(data) {
		return s, ErrCorrupt
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return s, ErrCorrupt
	}
	for _, field := range summaryFields(&s) {
		*field.ptr = coalesceNumber(doc.Get(field.key))
	}
	return s, nil
}

// Coalesce replaces NaN and infinities with 0 so the record stays
// serializable.
func Coalesce(s *SessionSummary) {
	for _, field := range summaryFields(s) {
		if v := *field.ptr; math.IsNaN(v) || math.IsInf(v, 0) {
			*field.ptr = 0
		}
	}
}

func coalesceNumber(r gjson.Result) float64 {
	switch r.Type {
	case gjson.Number:
		return r.Float()
	case gjson.String:
		// Float() parses numeric strings and returns 0 for anything else.
		return r.Float()
	default:
		return 0
	}
}
