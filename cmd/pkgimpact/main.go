// Command pkgimpact reports how much storage removing each installed RPM
// package would reclaim.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/app"
)

var (
	version string
	commit  string
	date    string
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app.SetVersion(version, commit, date)

	err := app.Execute(ctx)
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		os.Exit(130) // Standard shell convention for SIGINT
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		app.LogErrorDetails(log.Default(), err)
		os.Exit(1)
	}
}
