// Command arflow runs the Bayesian AR workflow: simulate or import a series,
// fit it, diagnose the fit, and forecast or check parameter recovery.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/arflow/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
