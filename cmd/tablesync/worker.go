package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rzpsarthak13/tablesync/pkg/tablesync"
)

var workerReport time.Duration

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run queued sync jobs until interrupted",
	Long: `Drains the configured job queue at the configured rate. Failed jobs are
retried with exponential backoff. Stops on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, client, err := openClient()
		if err != nil {
			return err
		}
		defer client.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := client.Start(ctx); err != nil {
			return fmt.Errorf("error starting worker: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Worker started. Press Ctrl+C to stop.")

		ticker := time.NewTicker(workerReport)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				if err := client.Stop(); err != nil {
					return fmt.Errorf("error stopping worker: %w", err)
				}
				stats, completed, failed := client.Statistics()
				report(out, stats, completed, failed)
				return nil
			case <-ticker.C:
				stats, completed, failed := client.Statistics()
				report(out, stats, completed, failed)
			}
		}
	},
}

func report(w io.Writer, stats tablesync.Statistics, completed, failed int) {
	fmt.Fprintf(w, "Jobs completed: %d failed: %d. %s\n", completed, failed, stats.String())
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.Flags().DurationVar(&workerReport, "report-interval", 30*time.Second, "How often to print statistics")
}
