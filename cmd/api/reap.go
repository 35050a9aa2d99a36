package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/department-tree/internal/cache"
	"github.com/department-tree/internal/service"
)

func newReapCmd(load loader) *cobra.Command {
	var retention time.Duration

	cmd := &cobra.Command{
		Use:   "reap",
		Short: "Hard-delete departments inactive for longer than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := connect(ctx, load)
			if err != nil {
				return err
			}
			defer a.close()

			store, err := a.newStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			notifier := cache.NewAsyncNotifier(store, a.logger)
			defer notifier.Wait()

			if retention <= 0 {
				retention = a.cfg.Reaper.Retention
			}
			reaper := service.NewReaperService(a.deps(store, notifier), retention)

			res, err := reaper.DeleteInactive(ctx)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}

	cmd.Flags().DurationVar(&retention, "retention", 0, "Override REAPER_RETENTION")
	return cmd
}
