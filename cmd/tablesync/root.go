package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rzpsarthak13/tablesync/pkg/tablesync"
)

var (
	configPath string
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:   "tablesync",
	Short: "Copy rows between tables in different stores",
	Long: `tablesync upserts the rows of a source table into a target table.
Connections, the metadata store and the job queue are described in a YAML or
JSON config file. TABLESYNC_* environment variables override the file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML or JSON config file")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Discard log output")
}

func loadConfig() (*tablesync.Config, error) {
	cfg, err := tablesync.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	if quiet {
		cfg.Logging.Quiet = true
	}
	return cfg, nil
}

// openClient loads the configuration and creates a client. Callers close it.
func openClient() (*tablesync.Config, tablesync.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	client, err := tablesync.NewClient(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("error creating client: %w", err)
	}
	return cfg, client, nil
}
