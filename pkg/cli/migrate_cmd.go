package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sqlzibar/internal/db"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply engine and host schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			ctx := cmd.Context()
			if err := env.migrator.Run(ctx); err != nil {
				return fmt.Errorf("engine migrations: %w", err)
			}
			if err := db.RunHostMigrations(env.writeDB); err != nil {
				return fmt.Errorf("host migrations: %w", err)
			}

			version, err := env.migrator.Version(ctx)
			if err != nil {
				return fmt.Errorf("read schema version: %w", err)
			}

			if getOutputFormat(cmd) == "json" {
				return PrintJSON(os.Stdout, map[string]interface{}{"schemaVersion": version})
			}
			fmt.Fprintf(os.Stdout, "Store migrated to schema version %d.\n", version)
			return nil
		},
	}
}
