package main

import (
	"fmt"
	"os"

	"github.com/srediag/shmtable/internal/cli"
	"github.com/srediag/shmtable/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitFailure)
	}
	os.Exit(cli.ExitCode(cli.NewTablectlCommand(cfg, cli.Deps{}).Execute()))
}
