package storage

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSummary(t *testing.T) *SummaryFile {
	t.Helper()
	f, err := OpenSummaryFile(filepath.Join(t.TempDir(), "sessionSummary.json"))
	require.NoError(t, err)
	return f
}

func TestDecodeSummary_CoalescesMissingAttributes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  SessionSummary
	}{
		{"empty input", ``, SessionSummary{}},
		{"empty object", `{}`, SessionSummary{}},
		{"null field", `{"currentDayMinutes":null}`, SessionSummary{}},
		{"string garbage", `{"currentDayMinutes":"lots"}`, SessionSummary{}},
		{"numeric string", `{"currentDayMinutes":"12.5"}`, SessionSummary{CurrentDayMinutes: 12.5}},
		{"bool", `{"liveshareMinutes":true}`, SessionSummary{}},
		{"partial", `{"currentDayKeystrokes":40,"averageDailyMinutes":90}`, SessionSummary{CurrentDayKeystrokes: 40, AverageDailyMinutes: 90}},
		{"unknown keys ignored", `{"foo":1,"currentDayLinesAdded":3}`, SessionSummary{CurrentDayLinesAdded: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeSummary([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeSummary_Corrupt(t *testing.T) {
	for _, input := range []string{`{"a":`, `[1,2,3]`, `42`} {
		got, err := DecodeSummary([]byte(input))
		assert.ErrorIs(t, err, ErrCorrupt, input)
		assert.Equal(t, SessionSummary{}, got)
	}
}

func TestSummaryFile_LoadCreatesZeroFile(t *testing.T) {
	f := newTestSummary(t)

	s, err := f.Load()
	require.NoError(t, err)
	assert.Equal(t, SessionSummary{}, s)

	data, err := os.ReadFile(f.Path())
	require.NoError(t, err)
	for _, key := range SummaryKeys() {
		assert.Contains(t, string(data), `"`+key+`": 0`)
	}
}

func TestSummaryFile_LoadCorruptReadsZero(t *testing.T) {
	f := newTestSummary(t)
	require.NoError(t, os.WriteFile(f.Path(), []byte("garbage"), 0644))

	s, err := f.Load()
	require.NoError(t, err)
	assert.Equal(t, SessionSummary{}, s)
}

func TestSummaryFile_SaveUsesFourSpaceIndentInFieldOrder(t *testing.T) {
	f := newTestSummary(t)
	require.NoError(t, f.Save(SessionSummary{CurrentDayMinutes: 3}))

	data, err := os.ReadFile(f.Path())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, len(SummaryKeys())+2)
	assert.Equal(t, `    "currentDayMinutes": 3,`, lines[1])
	assert.Equal(t, `    "globalAverageLinesRemoved": 0`, lines[len(lines)-2])
	assert.True(t, strings.HasSuffix(string(data), "}\n"))
}

func TestSummaryFile_Update(t *testing.T) {
	f := newTestSummary(t)
	require.NoError(t, os.WriteFile(f.Path(), []byte(`{"currentDayKeystrokes":"bad"}`), 0644))

	got, err := f.Update(func(s *SessionSummary) {
		s.CurrentDayKeystrokes += 5
	})
	require.NoError(t, err)
	assert.Equal(t, 5.0, got.CurrentDayKeystrokes)

	reloaded, err := f.Load()
	require.NoError(t, err)
	assert.Equal(t, got, reloaded)
}

func TestSummaryFile_UpdatesFromTwoHandlesAreSerialized(t *testing.T) {
	a := newTestSummary(t)
	b, err := OpenSummaryFile(a.Path())
	require.NoError(t, err)

	const n = 25
	var wg sync.WaitGroup
	errs := make(chan error, 3*n)
	for i := 0; i < n; i++ {
		wg.Add(3)
		for _, f := range []*SummaryFile{a, b} {
			go func(f *SummaryFile) {
				defer wg.Done()
				_, err := f.Update(func(s *SessionSummary) {
					s.CurrentDayKeystrokes++
					s.CurrentDayMinutes += 0.5
				})
				errs <- err
			}(f)
		}
		go func() {
			defer wg.Done()
			_, err := b.Load()
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := a.Load()
	require.NoError(t, err)
	assert.Equal(t, float64(2*n), got.CurrentDayKeystrokes)
	assert.Equal(t, float64(n), got.CurrentDayMinutes)
}

func TestCoalesce_ZeroesNonFinite(t *testing.T) {
	s := SessionSummary{CurrentDayKpm: 1}
	zero := 0.0
	s.TimePercent = 1 / zero
	s.VolumePercent = zero / zero

	Coalesce(&s)
	assert.Equal(t, 0.0, s.TimePercent)
	assert.Equal(t, 0.0, s.VolumePercent)
	assert.Equal(t, 1.0, s.CurrentDayKpm)
}
