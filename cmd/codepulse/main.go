package main

import (
	"errors"
	"fmt"
	"os"

	_ "time/tzdata"

	goflags "github.com/jessevdk/go-flags"

	"github.com/runnerr0/codepulse/internal/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := cli.Run(version); err != nil {
		// The parser already printed its own errors.
		var flagsErr *goflags.Error
		if !errors.As(err, &flagsErr) {
			fmt.Fprintln(os.Stderr, "codepulse:", err)
		}
		os.Exit(1)
	}
}
