package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/srediag/shmtable/internal/cli"
	"github.com/srediag/shmtable/pkg/config"
	"github.com/srediag/shmtable/pkg/roles"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitFailure)
	}

	// SIGINT/SIGTERM only raise the cancel flag; the loop exits at its next check.
	cancel := roles.NewCancel()
	release := cancel.NotifyOnSignal(os.Interrupt, syscall.SIGTERM)

	err = cli.NewProducerCommand(cfg, cli.Deps{Cancel: cancel}).Execute()
	release()
	os.Exit(cli.ExitCode(err))
}
