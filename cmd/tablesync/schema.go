package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rzpsarthak13/tablesync/internal/core"
)

var schemaCmd = &cobra.Command{
	Use:   "schema <connection> <table>",
	Short: "Show the schema of a table",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, client, err := openClient()
		if err != nil {
			return err
		}
		defer client.Close()

		ts, err := client.Schema(cmd.Context(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("error reading schema: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Table %s (schema %s)\n", ts.TableName, ts.SchemaID)
		rows := make([]*core.Item, 0, len(ts.Fields()))
		for _, f := range ts.Fields() {
			item := core.NewDataItem(nil)
			item.Set("Name", f.Name)
			item.Set("Type", f.Type.String())
			item.Set("Length", f.Length)
			item.Set("PrimaryKey", f.IsPrimaryKey)
			item.Set("Identity", f.IsIdentity)
			rows = append(rows, item)
		}
		return core.FormatItems(cmd.OutOrStdout(), rows, nil, 0)
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
