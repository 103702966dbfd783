package cli

import (
	"github.com/spf13/cobra"

	"github.com/srediag/shmtable/pkg/config"
	"github.com/srediag/shmtable/pkg/roles"
)

// NewConsumerCommand returns the consumer root command.
func NewConsumerCommand(cfg *config.Config, deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "consumer",
		Short:        "Attach to the shared table and process items until the producer is done",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConsumer(cmd, cfg, deps)
		},
	}
	bindCommonFlags(cmd, cfg)
	cmd.Flags().DurationVar(&cfg.ConsumeDelay, "delay", cfg.ConsumeDelay, "upper bound of the random pause between items")
	cmd.Flags().DurationVar(&cfg.AttachTimeout, "attach-timeout", cfg.AttachTimeout, "keep retrying a missing table for this long")
	return cmd
}

func runConsumer(cmd *cobra.Command, cfg *config.Config, deps Deps) error {
	log, err := deps.logger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Errorf("invalid configuration: %v", err)
		return err
	}

	ctx := cmd.Context()
	opts, stopHealth := roleOptions(ctx, cfg, log, deps.cancel())
	defer stopHealth()

	sess, err := roles.NewConsumerSession(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Warnf("cleanup: %v", err)
		}
	}()

	c, err := roles.NewConsumer(sess)
	if err != nil {
		return err
	}
	_, err = c.Run(ctx)
	return err
}
