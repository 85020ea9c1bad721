package storage

import (
	"errors"
	"time"
)

// ErrCorrupt marks a local file whose content could not be parsed. Readers
// treat it as empty; the next write replaces it.
var ErrCorrupt = errors.New("storage: corrupt local file")

// Well-known Local Store keys.
const (
	KeyJWT                   = "jwt"
	KeyName                  = "name"
	KeyLatestPayloadEnd      = "latestPayloadTimestampEndUtc"
	KeySessionThresholdInSec = "sessionThresholdInSec"
	KeyCurrentDay            = "currentDay"
	KeyTelemetryOn           = "telemetryOn"
	KeyLastFlushUTC          = "lastFlushUtc"
	KeyLiveshare             = "liveshareSession"
)

// SessionSummary is the day-scoped rollup persisted in sessionSummary.json.
// Field order is the on-disk order.
type SessionSummary struct {
	CurrentDayMinutes            float64 `json:"currentDayMinutes"`
	CurrentDayKeystrokes         float64 `json:"currentDayKeystrokes"`
	CurrentDayKpm                float64 `json:"currentDayKpm"`
	CurrentDayLinesAdded         float64 `json:"currentDayLinesAdded"`
	CurrentDayLinesRemoved       float64 `json:"currentDayLinesRemoved"`
	AverageDailyMinutes          float64 `json:"averageDailyMinutes"`
	AverageDailyKeystrokes       float64 `json:"averageDailyKeystrokes"`
	AverageDailyKpm              float64 `json:"averageDailyKpm"`
	AverageLinesAdded            float64 `json:"averageLinesAdded"`
	AverageLinesRemoved          float64 `json:"averageLinesRemoved"`
	TimePercent                  float64 `json:"timePercent"`
	VolumePercent                float64 `json:"volumePercent"`
	VelocityPercent              float64 `json:"velocityPercent"`
	LiveshareMinutes             float64 `json:"liveshareMinutes"`
	LatestPayloadTimestampEndUtc float64 `json:"latestPayloadTimestampEndUtc"`
	GlobalAverageSeconds         float64 `json:"globalAverageSeconds"`
	GlobalAverageDailyMinutes    float64 `json:"globalAverageDailyMinutes"`
	GlobalAverageDailyKeystrokes float64 `json:"globalAverageDailyKeystrokes"`
	GlobalAverageLinesAdded      float64 `json:"globalAverageLinesAdded"`
	GlobalAverageLinesRemoved    float64 `json:"globalAverageLinesRemoved"`
}

// summaryFields lists every SessionSummary JSON key with a pointer accessor,
// in declaration order. Coalescing walks this table.
func summaryFields(s *SessionSummary) []struct {
	key string
	ptr *float64
} {
	return []struct {
		key string
		ptr *float64
	}{
		{"currentDayMinutes", &s.CurrentDayMinutes},
		{"currentDayKeystrokes", &s.CurrentDayKeystrokes},
		{"currentDayKpm", &s.CurrentDayKpm},
		{"currentDayLinesAdded", &s.CurrentDayLinesAdded},
		{"currentDayLinesRemoved", &s.CurrentDayLinesRemoved},
		{"averageDailyMinutes", &s.AverageDailyMinutes},
		{"averageDailyKeystrokes", &s.AverageDailyKeystrokes},
		{"averageDailyKpm", &s.AverageDailyKpm},
		{"averageLinesAdded", &s.AverageLinesAdded},
		{"averageLinesRemoved", &s.AverageLinesRemoved},
		{"timePercent", &s.TimePercent},
		{"volumePercent", &s.VolumePercent},
		{"velocityPercent", &s.VelocityPercent},
		{"liveshareMinutes", &s.LiveshareMinutes},
		{"latestPayloadTimestampEndUtc", &s.LatestPayloadTimestampEndUtc},
		{"globalAverageSeconds", &s.GlobalAverageSeconds},
		{"globalAverageDailyMinutes", &s.GlobalAverageDailyMinutes},
		{"globalAverageDailyKeystrokes", &s.GlobalAverageDailyKeystrokes},
		{"globalAverageLinesAdded", &s.GlobalAverageLinesAdded},
		{"globalAverageLinesRemoved", &s.GlobalAverageLinesRemoved},
	}
}

// SummaryKeys returns the JSON keys of SessionSummary in on-disk order.
func SummaryKeys() []string {
	var s SessionSummary
	fields := summaryFields(&s)
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = f.key
	}
	return keys
}

// Project identifies the workspace a payload was recorded in.
type Project struct {
	Name      string `json:"name"`
	Directory string `json:"directory"`
}

// Payload is one buffered telemetry record awaiting upload.
type Payload struct {
	Start        int64                    `json:"start"`
	End          int64                    `json:"end"`
	LocalStart   int64                    `json:"local_start"`
	LocalEnd     int64                    `json:"local_end"`
	Timezone     string                   `json:"timezone"`
	Offset       int                      `json:"offset"`
	Project      Project                  `json:"project"`
	Keystrokes   int                      `json:"keystrokes"`
	LinesAdded   int                      `json:"linesAdded"`
	LinesRemoved int                      `json:"linesRemoved"`
	Source       map[string]FileAggregate `json:"source,omitempty"`
	PluginID     int                      `json:"pluginId"`
	Version      string                   `json:"version"`
	OS           string                   `json:"os"`
}

// FileAggregate holds the per-file counters of a payload.
type FileAggregate struct {
	Keystrokes   int `json:"keystrokes"`
	LinesAdded   int `json:"linesAdded"`
	LinesRemoved int `json:"linesRemoved"`
}

// DailySummary is one archived day in the history database.
type DailySummary struct {
	Day              string
	Minutes          float64
	Keystrokes       float64
	LinesAdded       float64
	LinesRemoved     float64
	LiveshareMinutes float64
	ArchivedAt       time.Time
}

// Averages holds rolling averages computed over archived days.
type Averages struct {
	Days         int
	Minutes      float64
	Keystrokes   float64
	LinesAdded   float64
	LinesRemoved float64
}
