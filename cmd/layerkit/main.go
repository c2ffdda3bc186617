package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	layerkitcmd "layerkit/internal/cli/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Execute reports failures itself; only the exit code is left to set.
	if err := layerkitcmd.Execute(ctx); err != nil {
		stop()
		var ee *layerkitcmd.ExitError
		if errors.As(err, &ee) {
			os.Exit(ee.Code)
		}
		os.Exit(layerkitcmd.ExitInternal)
	}
	stop()
	os.Exit(layerkitcmd.ExitOK)
}
