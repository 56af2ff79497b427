package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var diffKeys []string

var diffCmd = &cobra.Command{
	Use:   "diff <connection> <table>",
	Short: "Compare a table with the index recorded by the previous diff",
	Long: `Reads the table, compares every row with the cached index from the last run
and records the new index. Prints how many rows are new, updated, deleted or
unchanged since then.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, client, err := openClient()
		if err != nil {
			return err
		}
		defer client.Close()

		out, err := client.Diff(cmd.Context(), args[0], args[1], diffKeys...)
		if err != nil {
			return fmt.Errorf("diff failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "New rows: %d Updated: %d Deleted: %d Skipped: %d\n",
			out.Stats.RowsNew, out.Stats.RowsUpdated, out.Stats.RowsDeleted, out.Stats.RowsSkipped)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(diffCmd)
	diffCmd.Flags().StringSliceVar(&diffKeys, "key", nil, "Identifier key (repeatable); defaults to the connection's keys")
}
