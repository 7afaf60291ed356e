package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stockpilot/internal/dashboard"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the store with background sync until interrupted",
	Long: `Run the full service: connectivity monitoring, the periodic sync
engine, and (when enabled) the WebSocket dashboard.

The local database stays writable the whole time. When the remote is
reachable, queued writes are pushed and remote changes are pulled; when
it isn't, the queue holds everything until connectivity returns.

Dashboard messages:
  sync_cycle:   a sync cycle finished (items pushed, dead-lettered)
  connectivity: online/offline transition
  status:       sync status snapshot, sent on connect`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		var dash *dashboard.Server
		if a.cfg.Dashboard.Enabled {
			dash = dashboard.NewServer(&dashboard.Config{
				Port:   a.cfg.Dashboard.Port,
				Status: a.engine.Status,
				Logger: a.log,
			})
			handler := dashboard.NewHandler(dash, a.log)
			a.engine.SetNotifier(handler)
			if err := a.monitor.Subscribe(handler.OnConnectivityChanged); err != nil {
				return err
			}
			if err := dash.Start(); err != nil {
				return err
			}
			fmt.Printf("Dashboard: http://localhost:%d (ws://localhost:%d/ws)\n",
				a.cfg.Dashboard.Port, a.cfg.Dashboard.Port)
		}

		a.monitor.Start()
		if err := a.engine.Start(); err != nil {
			return err
		}

		a.log.Info("stockpilot running",
			zap.String("db", a.cfg.Database.Path),
			zap.String("remote", a.cfg.Remote.BaseURL),
			zap.String("user", a.cfg.UserID))
		fmt.Println("StockPilot running. Press Ctrl+C to stop.")

		<-ctx.Done()

		fmt.Println("\nShutting down...")
		a.engine.Stop()
		a.monitor.Stop()
		if dash != nil {
			if err := dash.Stop(); err != nil {
				a.log.Warn("dashboard shutdown error", zap.Error(err))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
