package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connectivity, queue depth, and last sync time",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		a.probeOnce(ctx)

		status, err := a.engine.Status(ctx)
		if err != nil {
			return err
		}

		if statusJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(status)
		}

		state := "offline"
		if status.IsOnline {
			state = "online"
		}
		fmt.Printf("Remote:       %s (%s)\n", a.cfg.Remote.BaseURL, state)
		fmt.Printf("Pending:      %d queued change(s)\n", status.PendingItems)
		fmt.Printf("Dead letters: %d\n", status.DeadLetters)
		if status.LastSync != nil {
			fmt.Printf("Last sync:    %s\n", status.LastSync.Local().Format("2006-01-02 15:04:05"))
		} else {
			fmt.Println("Last sync:    never")
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print status as JSON")
	rootCmd.AddCommand(statusCmd)
}
