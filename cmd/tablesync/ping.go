package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pingCmd = &cobra.Command{
	Use:   "ping [connection...]",
	Short: "Check that connections can be opened",
	Long:  `Opens each named connection, or every configured connection when none is named, and reports whether the backend answers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, client, err := openClient()
		if err != nil {
			return err
		}
		defer client.Close()

		names := args
		if len(names) == 0 {
			names = cfg.ConnectionNames()
		}

		out := cmd.OutOrStdout()
		failed := 0
		for _, name := range names {
			if err := client.Ping(cmd.Context(), name); err != nil {
				fmt.Fprintf(out, "%-20s FAIL  %v\n", name, err)
				failed++
				continue
			}
			fmt.Fprintf(out, "%-20s OK\n", name)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d connections failed", failed, len(names))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pingCmd)
}
