package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Run       *RunCommand
	Status    *StatusCommand
	Record    *RecordCommand
	Flush     *FlushCommand
	Reset     *ResetCommand
	Report    *ReportCommand
	Pause     *PauseCommand
	Resume    *ResumeCommand
	History   *HistoryCommand
	Liveshare *LiveshareCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "codepulse"
	parser.LongDescription = "Local coding-activity telemetry: daily session summaries, offline buffering and backend sync."

	cmds := &commands{
		Run:     &RunCommand{globals: &globals, version: version},
		Status:  &StatusCommand{globals: &globals, version: version},
		Record:  &RecordCommand{globals: &globals, version: version},
		Flush:   &FlushCommand{globals: &globals, version: version},
		Reset:   &ResetCommand{globals: &globals, version: version},
		Report:  &ReportCommand{globals: &globals, version: version},
		Pause:   &PauseCommand{globals: &globals, version: version},
		Resume:  &ResumeCommand{globals: &globals, version: version},
		History: &HistoryCommand{globals: &globals, version: version},
	}
	cmds.Liveshare = &LiveshareCommand{
		Begin:  LiveshareBeginCommand{globals: &globals, version: version},
		End:    LiveshareEndCommand{globals: &globals, version: version},
		Status: LiveshareStatusCommand{globals: &globals, version: version},
	}

	parser.AddCommand("run", "Run the agent", "Run the agent in the foreground: status line, periodic heartbeat, flush and session checks.", cmds.Run)
	parser.AddCommand("status", "Show today's totals and sync state", "Show today's session summary, identity, buffered payloads and last flush.", cmds.Status)
	parser.AddCommand("record", "Record one activity sample", "Fold one activity sample into today's session summary and buffer it for upload.", cmds.Record)
	parser.AddCommand("flush", "Upload buffered payloads", "Upload every buffered payload to the backend now.", cmds.Flush)
	parser.AddCommand("reset", "Clear today's summary", "Clear today's session summary. Destructive operation with safety prompt.", cmds.Reset)
	parser.AddCommand("report", "Project commit report", "Choose a date range and projects, then print the project commit report.", cmds.Report)
	parser.AddCommand("pause", "Pause metrics", "Hide metrics in the status line. Collection continues.", cmds.Pause)
	parser.AddCommand("resume", "Resume metrics", "Show metrics in the status line again.", cmds.Resume)
	parser.AddCommand("history", "List archived days", "List archived daily summaries, most recent first.", cmds.History)
	parser.AddCommand("liveshare", "Collaborative session time", "Begin, end or show the collaborative session whose minutes the agent tracks.", cmds.Liveshare)

	return parser, &globals, cmds
}

// Run is the main entry point for the codepulse CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// Handle --version before parser (go-flags requires a subcommand, but
	// --version is valid without one).
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("codepulse %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
