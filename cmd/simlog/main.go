// Command simlog keeps a hierarchical JSON record of simulation initial
// conditions, runs and outputs.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/roach88/simlog/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := cli.Execute(ctx)
	stop()
	var exitErr *cli.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		// Cobra usage errors and flag parse failures are not reported by commands.
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
