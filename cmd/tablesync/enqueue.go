package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rzpsarthak13/tablesync/pkg/tablesync"
)

var (
	enqueueRefresh     bool
	enqueueSourceTable string
	enqueueTargetTable string
	enqueueKeys        []string
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <source> [target]",
	Short: "Queue a sync or index refresh job for a worker",
	Long: `Adds a job to the configured job queue. A sync job needs a source and a
target connection; an index refresh job (--refresh) needs only a source.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, client, err := openClient()
		if err != nil {
			return err
		}
		defer client.Close()

		job := &tablesync.SyncJob{
			Kind:           tablesync.JobSynchronize,
			Source:         args[0],
			SourceTable:    enqueueSourceTable,
			TargetTable:    enqueueTargetTable,
			IdentifierKeys: enqueueKeys,
		}
		if enqueueRefresh {
			job.Kind = tablesync.JobIndexRefresh
		}
		if len(args) == 2 {
			job.Target = args[1]
		}

		if err := client.Enqueue(cmd.Context(), job); err != nil {
			return fmt.Errorf("error enqueuing job: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Enqueued %s job %s\n", job.Kind, job.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(enqueueCmd)
	enqueueCmd.Flags().BoolVar(&enqueueRefresh, "refresh", false, "Queue an index refresh instead of a sync")
	enqueueCmd.Flags().StringVar(&enqueueSourceTable, "source-table", "", "Source table name")
	enqueueCmd.Flags().StringVar(&enqueueTargetTable, "target-table", "", "Target table name")
	enqueueCmd.Flags().StringSliceVar(&enqueueKeys, "key", nil, "Identifier key (repeatable)")
}
