// Command stockpilot runs the offline-first point-of-sale data store:
// a local SQLite database that keeps working through outages and a
// background engine that syncs it with the remote store.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "stockpilot",
	Short: "Offline-first inventory and sales store with background sync",
	Long: `StockPilot keeps products and sales in a local SQLite database that
stays fully usable offline. Every write commits locally first and is
queued for delivery; a background engine pushes the queue and pulls
remote changes whenever connectivity allows.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default: ./stockpilot.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
