package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rzpsarthak13/tablesync/internal/core"
	"github.com/rzpsarthak13/tablesync/pkg/tablesync"
)

var (
	syncSource      string
	syncTarget      string
	syncSourceTable string
	syncTargetTable string
	syncKeys        []string
	syncTable       bool
	syncTop         int
)

var errSyncFailed = errors.New("synchronization failed")

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Upsert every row of the source table into the target table",
	Long: `Reads the source table, splits every row by the identifier keys and upserts
the rows into the target table. Flags override the sync section of the config.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, client, err := openClient()
		if err != nil {
			return err
		}
		defer client.Close()

		res, err := client.Synchronize(cmd.Context(),
			tablesync.WithConnections(syncSource, syncTarget),
			tablesync.WithTables(syncSourceTable, syncTargetTable),
			tablesync.WithIdentifierKeys(syncKeys...),
		)
		out := cmd.OutOrStdout()
		if res != nil && res.Response != nil {
			fmt.Fprint(out, res.Response.String())
		}
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		fmt.Fprintln(out, res.Statistics)

		if syncTable {
			if err := core.FormatItems(out, res.Items, nil, syncTop); err != nil {
				return fmt.Errorf("error writing rows: %w", err)
			}
		}
		if res.Response.Result() == core.ResultFailure {
			return errSyncFailed
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().StringVar(&syncSource, "source", "", "Source connection name")
	syncCmd.Flags().StringVar(&syncTarget, "target", "", "Target connection name")
	syncCmd.Flags().StringVar(&syncSourceTable, "source-table", "", "Source table name")
	syncCmd.Flags().StringVar(&syncTargetTable, "target-table", "", "Target table name")
	syncCmd.Flags().StringSliceVar(&syncKeys, "key", nil, "Identifier key (repeatable)")
	syncCmd.Flags().BoolVar(&syncTable, "table", false, "Print the synchronized rows as a table")
	syncCmd.Flags().IntVar(&syncTop, "top", 20, "Maximum rows printed with --table (0 for all)")
}
