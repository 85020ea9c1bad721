package cli

import "github.com/runnerr0/codepulse/internal/selector"

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable verbose output"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// RunCommand runs the agent in the foreground until interrupted.
type RunCommand struct {
	globals *GlobalFlags
	version string
}

// StatusCommand shows today's totals, identity and buffer state.
type StatusCommand struct {
	globals *GlobalFlags
	version string
}

// RecordCommand folds one activity sample into today's summary.
type RecordCommand struct {
	Keystrokes   int    `long:"keystrokes" short:"k" description:"Keystrokes in the sample" default:"0"`
	LinesAdded   int    `long:"added" description:"Lines added" default:"0"`
	LinesRemoved int    `long:"removed" description:"Lines removed" default:"0"`
	Project      string `long:"project" description:"Project name (defaults to the directory name)"`
	Dir          string `long:"dir" description:"Project directory (defaults to the working directory)"`
	File         string `long:"file" description:"File the sample belongs to"`

	globals *GlobalFlags
	version string
}

// FlushCommand uploads buffered payloads now.
type FlushCommand struct {
	globals *GlobalFlags
	version string
}

// ResetCommand clears today's summary with safety confirmation.
type ResetCommand struct {
	Force bool `long:"force" description:"Skip safety confirmation prompt"`

	globals *GlobalFlags
	version string
}

// ReportCommand picks a date range and projects, then prints the commit report.
type ReportCommand struct {
	Flow string `long:"flow" description:"Selection flow: daily | project | view | range" default:"daily" choice:"daily" choice:"project" choice:"view" choice:"range"`

	globals  *GlobalFlags
	version  string
	prompter selector.Prompter // injectable for testing; nil means the terminal UI
}

// PauseCommand hides metrics in the status line.
type PauseCommand struct {
	globals *GlobalFlags
	version string
}

// ResumeCommand shows metrics in the status line again.
type ResumeCommand struct {
	globals *GlobalFlags
	version string
}

// HistoryCommand lists archived days.
type HistoryCommand struct {
	Since string `long:"since" description:"Only days newer than duration (e.g., 7d, 2w)"`
	Limit int    `long:"limit" description:"Maximum days" default:"14"`

	globals *GlobalFlags
	version string
}

// LiveshareCommand groups the collaborative session commands.
type LiveshareCommand struct {
	Begin  LiveshareBeginCommand  `command:"begin" description:"Open a collaborative session"`
	End    LiveshareEndCommand    `command:"end" description:"Close the open collaborative session"`
	Status LiveshareStatusCommand `command:"status" description:"Show the open collaborative session"`
}

// LiveshareBeginCommand opens a collaborative session. The running agent
// accounts its minutes.
type LiveshareBeginCommand struct {
	ID string `long:"id" description:"Session id (default: random)"`

	globals *GlobalFlags
	version string
}

// LiveshareEndCommand closes the open collaborative session.
type LiveshareEndCommand struct {
	globals *GlobalFlags
	version string
}

// LiveshareStatusCommand shows the open collaborative session.
type LiveshareStatusCommand struct {
	globals *GlobalFlags
	version string
}
