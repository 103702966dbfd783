// Package cli holds the cobra commands behind the producer, consumer and
// tablectl binaries.
package cli

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/srediag/shmtable/internal/logging"
	"github.com/srediag/shmtable/pkg/config"
	"github.com/srediag/shmtable/pkg/health"
	"github.com/srediag/shmtable/pkg/roles"
)

const (
	ExitOK      = 0
	ExitFailure = 1
)

// Deps carries what main wires into a command. Zero values are filled in.
type Deps struct {
	Logger *logging.Logger
	Cancel *roles.Cancel
}

func (d Deps) logger(cfg *config.Config) (*logging.Logger, error) {
	if d.Logger != nil {
		return d.Logger, nil
	}
	return logging.New(logging.Config{
		Level:       cfg.LogLevel,
		Development: cfg.LogDevelopment,
		OutputPaths: []string{"stdout"},
	})
}

func (d Deps) cancel() *roles.Cancel {
	if d.Cancel != nil {
		return d.Cancel
	}
	return roles.NewCancel()
}

// ExitCode maps a command result to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	return ExitFailure
}

// parseMaxItems reports false for anything that is not a positive integer.
func parseMaxItems(arg string) (int, bool) {
	n, err := strconv.Atoi(arg)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func bindCommonFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	f.StringVar(&cfg.Namespace, "namespace", cfg.Namespace, "prefix for every shared object name")
	f.DurationVar(&cfg.WaitBound, "wait-bound", cfg.WaitBound, "upper bound of a single semaphore wait")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "trace, debug, info, warn or error")
	f.StringVar(&cfg.HealthAddr, "health-addr", cfg.HealthAddr, "serve /live, /ready and /metrics on this address")
}

// roleOptions builds session options from cfg and starts the health
// endpoint when configured. The returned func stops it.
func roleOptions(ctx context.Context, cfg *config.Config, log *logging.Logger, cancel *roles.Cancel) (roles.Options, func()) {
	opts := roles.Options{
		Names: roles.Names{
			Table:      cfg.TableObjectName(),
			Semaphores: cfg.SemaphoreNames(),
		},
		MaxItems:      cfg.MaxItems,
		Perm:          cfg.FileMode(),
		WaitBound:     cfg.WaitBound,
		ProduceDelay:  cfg.ProduceDelay,
		ConsumeDelay:  cfg.ConsumeDelay,
		AttachTimeout: cfg.AttachTimeout,
		Logger:        log,
		Cancel:        cancel,
	}
	if cfg.HealthAddr == "" {
		return opts, func() {}
	}

	reg := prometheus.NewRegistry()
	stale := 2*cfg.WaitBound + 2*max(cfg.ProduceDelay, cfg.ConsumeDelay) + time.Second
	mon := health.NewMonitor(reg, "shmtable", stale)
	opts.Registerer = reg
	opts.Health = mon

	hctx, stop := context.WithCancel(ctx)
	go func() {
		if err := mon.Serve(hctx, cfg.HealthAddr); err != nil && !errors.Is(err, context.Canceled) {
			log.Warnf("health endpoint stopped: %v", err)
		}
	}()
	log.Infof("health endpoint listening on %s", cfg.HealthAddr)
	return opts, stop
}
