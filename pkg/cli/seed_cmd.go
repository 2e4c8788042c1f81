package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the core authorization data",
		Long:  "Creates the principal types, root resource, system_admin role, and the system-admin account. Safe to run repeatedly.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := env.seeder.Run(cmd.Context()); err != nil {
				return fmt.Errorf("seed: %w", err)
			}

			if getOutputFormat(cmd) == "json" {
				return PrintJSON(os.Stdout, map[string]interface{}{"seeded": true})
			}
			fmt.Fprintln(os.Stdout, "Core data seeded.")
			return nil
		},
	}
}
