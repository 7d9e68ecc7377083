// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/adiadia/featuredesk/internal/featurectl"
)

var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	if err := featurectl.Execute(ctx, featurectl.WithVersion(Version)); err != nil {
		stop()
		os.Exit(1)
	}
}
