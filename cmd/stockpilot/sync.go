package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync cycle and exit",
	Long: `Run a single pull+push cycle against the remote store.

Useful from cron or scripts. Exits non-zero if the remote is
unreachable or the pull fails; queued writes that fail to push stay in
the queue for the next run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		if !a.probeOnce(ctx) {
			return fmt.Errorf("remote store unreachable at %s", a.cfg.Remote.BaseURL)
		}

		if err := a.engine.PerformSync(ctx); err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}

		status, err := a.engine.Status(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Sync complete. Pending: %d, dead letters: %d\n",
			status.PendingItems, status.DeadLetters)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
