package main

import (
	"os"

	"github.com/rami3l/golox/cmd"
)

func main() {
	// App's Run hook calls os.Exit with appMain's exit code; this only fires when
	// cobra rejects the invocation itself (e.g. an unknown flag) before
	// ever calling Run, which cobra already reports on stderr.
	if err := cmd.App().Execute(); err != nil {
		os.Exit(cmd.ExitUsage)
	}
}
