// Command pickup reconciles order snapshots, issues and verifies pickup codes
// and serves the realtime order state API.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/pickup/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
