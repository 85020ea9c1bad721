package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/runnerr0/codepulse/internal/app"
)

// Execute implements the go-flags Commander interface for ResetCommand.
func (c *ResetCommand) Execute(args []string) error {
	if !c.Force {
		if err := confirmReset(os.Stdin); err != nil {
			return err
		}
	}
	return withApp(c.globals, c.version, c.executeWithApp)
}

// confirmReset asks the user to type RESET.
func confirmReset(in io.Reader) error {
	fmt.Println("⚠ WARNING: This will clear today's session summary.")
	fmt.Println("  - Minutes, keystrokes and line counts")
	fmt.Println("  - The gap marker used to join sessions")
	fmt.Println()
	fmt.Println("Buffered payloads and archived days are kept.")
	fmt.Println()
	fmt.Print(`Type "RESET" to confirm: `)

	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return fmt.Errorf("aborted: no input received")
	}
	if strings.TrimSpace(scanner.Text()) != "RESET" {
		return fmt.Errorf("aborted: confirmation text did not match")
	}
	return nil
}

func (c *ResetCommand) executeWithApp(ctx context.Context, a *app.App) error {
	if err := a.Aggregator.Reset(); err != nil {
		return fmt.Errorf("reset failed: %w", err)
	}

	if wantJSON(c.globals) {
		return printJSON(map[string]any{
			"reset":   true,
			"message": "session summary cleared",
		})
	}

	fmt.Println("Cleared today's session summary.")
	return nil
}
