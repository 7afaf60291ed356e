package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var reportDays int

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print a sales and stock report from the local store",
	Long: `Print totals, daily sales for the recent period, low-stock products,
and the latest sales. Reads only the local database, so it works fully
offline.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		summary, err := a.service.SalesSummary(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Sales: %d total, revenue %.2f, average order %.2f\n",
			summary.TotalSales, summary.TotalRevenue, summary.AverageOrderValue)

		daily, err := a.service.DailySales(ctx, reportDays)
		if err != nil {
			return err
		}
		fmt.Printf("\nLast %d days:\n", reportDays)
		for _, b := range daily {
			fmt.Printf("  %s  %3d sale(s)  %10.2f\n", b.Date, b.Sales, b.Revenue)
		}

		low, err := a.service.LowStockProducts(ctx)
		if err != nil {
			return err
		}
		if len(low) > 0 {
			fmt.Println("\nLow stock:")
			for _, p := range low {
				fmt.Printf("  %-30s %d left (threshold %d)\n", p.Name, p.Quantity, p.LowStockThreshold)
			}
		}

		recent, err := a.service.RecentSales(ctx, 10)
		if err != nil {
			return err
		}
		if len(recent) > 0 {
			fmt.Println("\nRecent sales:")
			for _, s := range recent {
				fmt.Printf("  %s  %-30s x%d  %10.2f\n",
					s.CreatedAt.Local().Format("2006-01-02 15:04"), s.ProductName, s.Quantity, s.TotalPrice)
			}
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().IntVar(&reportDays, "days", 7, "number of days in the daily breakdown")
	rootCmd.AddCommand(reportCmd)
}
