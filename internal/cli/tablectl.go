package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/valyala/bytebufferpool"

	"github.com/srediag/shmtable/pkg/config"
	"github.com/srediag/shmtable/pkg/sem"
	"github.com/srediag/shmtable/pkg/table"
)

// NewTablectlCommand returns the operator tool for inspecting and removing
// the shared objects.
func NewTablectlCommand(cfg *config.Config, deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "tablectl",
		Short:        "Inspect or remove the shared table and its semaphores",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&cfg.Namespace, "namespace", cfg.Namespace, "prefix for every shared object name")
	cmd.PersistentFlags().DurationVar(&cfg.WaitBound, "wait-bound", cfg.WaitBound, "how long status waits for the mutex")
	cmd.AddCommand(newStatusCommand(cfg, deps), newCleanCommand(cfg, deps))
	return cmd
}

func newStatusCommand(cfg *config.Config, deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the table state and semaphore values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg, deps)
		},
	}
}

func newCleanCommand(cfg *config.Config, deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Unlink the table and semaphores left behind by a crashed producer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runClean(cmd, cfg, deps)
		},
	}
}

func runStatus(cmd *cobra.Command, cfg *config.Config, deps Deps) error {
	log, err := deps.logger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := cmd.Context()
	name := cfg.TableObjectName()
	t, err := table.Attach(ctx, name)
	if err != nil {
		log.Errorf("failed to open shared memory: %v", err)
		return err
	}
	defer t.Detach()
	set, err := sem.OpenSet(ctx, cfg.SemaphoreNames())
	if err != nil {
		log.Errorf("failed to open semaphores: %v", err)
		return err
	}
	defer set.Close()

	locked := false
	switch err := set.Mutex.TimedWait(cfg.WaitBound); {
	case err == nil:
		locked = true
	case errors.Is(err, sem.ErrTimeout), errors.Is(err, sem.ErrInterrupted):
		log.Warnf("mutex busy for %s, reading without it", cfg.WaitBound)
	default:
		return err
	}
	st := t.Snapshot()
	if locked {
		if err := set.Mutex.Post(); err != nil {
			log.Errorf("release mutex: %v", err)
		}
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	writeStatus(buf, name, st, set, locked)
	_, err = cmd.OutOrStdout().Write(buf.B)
	return err
}

func writeStatus(buf *bytebufferpool.ByteBuffer, name string, st table.State, set *sem.Set, consistent bool) {
	fmt.Fprintf(buf, "table:          %s\n", name)
	fmt.Fprintf(buf, "max items:      %d\n", st.MaxItems)
	fmt.Fprintf(buf, "total produced: %d\n", st.TotalProduced)
	fmt.Fprintf(buf, "count:          %d/%d\n", st.Count, table.Capacity)
	fmt.Fprintf(buf, "items:          %v\n", st.Items)
	fmt.Fprintf(buf, "producer done:  %t\n", st.ProducerDone)
	if !consistent {
		buf.WriteString("snapshot:       taken without the mutex\n")
	}
	for _, s := range []*sem.Semaphore{set.Mutex, set.Empty, set.Full} {
		fmt.Fprintf(buf, "semaphore:      %s value=%d waiters=%d\n", s.Name(), s.Value(), s.Waiters())
	}
	fmt.Fprintf(buf, "observed at:    %s\n", time.Now().Format(time.RFC3339))
}

func runClean(cmd *cobra.Command, cfg *config.Config, deps Deps) error {
	log, err := deps.logger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	name := cfg.TableObjectName()
	names := cfg.SemaphoreNames()
	var errs []error
	if table.Exists(name) {
		if err := table.Unlink(name); err != nil {
			errs = append(errs, err)
		} else {
			fmt.Fprintf(buf, "removed table %s\n", name)
		}
	}
	for _, n := range []string{names.Mutex, names.Empty, names.Full} {
		if !sem.Exists(n) {
			continue
		}
		if err := sem.Unlink(n); err != nil {
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(buf, "removed semaphore %s\n", n)
	}
	if buf.Len() == 0 {
		buf.WriteString("nothing to remove\n")
	}
	if _, err := cmd.OutOrStdout().Write(buf.B); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		log.Errorf("clean: %v", err)
		return err
	}
	return nil
}
