// Package cli implements sqlzibarctl, the operations CLI. It opens the
// SQLite store directly rather than going through the HTTP API, so it works
// on a stopped host and inside maintenance windows.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			_ = PrintJSON(os.Stdout, map[string]interface{}{"error": err.Error()})
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var (
		dbPath      string
		optionsPath string
		output      string
	)

	rootCmd := &cobra.Command{
		Use:           "sqlzibarctl",
		Short:         "Operations CLI for the authorization store",
		Long:          "sqlzibarctl operates directly on the SQLite store: migrations, seeding, access checks, traces, and grant management.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("db") {
				if v := os.Getenv("SQLZIBAR_DB_PATH"); v != "" {
					dbPath = v
					_ = cmd.Root().PersistentFlags().Set("db", v)
				}
			}
			if output != "table" && output != "json" {
				return fmt.Errorf("unsupported output format %q: use 'table' or 'json'", output)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "sqlzibar.sqlite", "path to the SQLite store")
	rootCmd.PersistentFlags().StringVar(&optionsPath, "options", "", "engine options YAML file")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "output format (table, json)")

	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newSeedCmd())
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newTraceCmd())
	rootCmd.AddCommand(newGrantCmd())
	rootCmd.AddCommand(newTreeCmd())
	rootCmd.AddCommand(newCommandsCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}
