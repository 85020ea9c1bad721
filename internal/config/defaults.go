package config

// DefaultSessionThresholdSeconds is the largest gap between two payloads that
// still counts as one continuous session.
const DefaultSessionThresholdSeconds = 15 * 60

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Dir:         "~/.codepulse",
			SessionFile: "session.json",
			SummaryFile: "sessionSummary.json",
			BufferFile:  "data.json",
			HistoryFile: "history.db",
		},
		Session: SessionConfig{
			ThresholdSeconds: DefaultSessionThresholdSeconds,
			AverageDays:      30,
		},
		Capture: CaptureConfig{
			ExcludeDirs: []string{},
		},
		API: APIConfig{
			BaseURL:        "https://api.software.com",
			TimeoutSeconds: 15,
			RetryMax:       1,
		},
		Scheduler: SchedulerConfig{
			OnlineRetryMinutes:  10,
			HeartbeatMinutes:    60,
			FlushMinutes:        30,
			SessionCheckMinutes: 35,
			UserStatusMinutes:   10,
			LiveshareMinutes:    1,
			WatchSessionFile:    true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "codepulse.log",
			Console:    false,
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Plugin: PluginConfig{
			ID:      2,
			Name:    "codepulse",
			Product: "Code Time",
		},
	}
}
