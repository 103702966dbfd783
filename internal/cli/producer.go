package cli

import (
	"github.com/spf13/cobra"

	"github.com/srediag/shmtable/pkg/config"
	"github.com/srediag/shmtable/pkg/roles"
)

// NewProducerCommand returns the producer root command. The optional
// argument is the number of items to produce.
func NewProducerCommand(cfg *config.Config, deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "producer [maxItems]",
		Short:        "Create the shared table and fill it with generated items",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProducer(cmd, cfg, deps, args)
		},
	}
	bindCommonFlags(cmd, cfg)
	cmd.Flags().DurationVar(&cfg.ProduceDelay, "delay", cfg.ProduceDelay, "upper bound of the random pause between items")
	cmd.Flags().DurationVar(&cfg.DrainTimeout, "drain-timeout", cfg.DrainTimeout, "how long to wait for the consumer to empty the table before cleanup")
	return cmd
}

func runProducer(cmd *cobra.Command, cfg *config.Config, deps Deps, args []string) error {
	log, err := deps.logger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Errorf("invalid configuration: %v", err)
		return err
	}
	if len(args) == 1 {
		n, ok := parseMaxItems(args[0])
		if !ok {
			log.Warnf("invalid number of items %q, using default: %d", args[0], roles.DefaultMaxItems)
			n = roles.DefaultMaxItems
		}
		cfg.MaxItems = n
	}

	ctx := cmd.Context()
	opts, stopHealth := roleOptions(ctx, cfg, log, deps.cancel())
	defer stopHealth()

	sess, err := roles.NewProducerSession(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		log.Infof("cleaning up shared resources")
		if err := sess.Close(); err != nil {
			log.Warnf("cleanup: %v", err)
		}
	}()

	p, err := roles.NewProducer(sess)
	if err != nil {
		return err
	}
	res, err := p.Run(ctx)
	if err != nil {
		return err
	}
	if res.Cancelled {
		return nil
	}
	drained, err := p.AwaitDrain(ctx, cfg.DrainTimeout)
	if err != nil {
		log.Warnf("waiting for the table to drain: %v", err)
	} else if !drained && !sess.Cancel().Stopped() {
		log.Warnf("table not drained after %s", cfg.DrainTimeout)
	}
	return nil
}
