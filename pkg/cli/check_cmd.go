package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	var (
		principalID   string
		permissionKey string
		resourceID    string
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check whether a principal holds a permission on a resource",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			allowed, err := env.authz.CheckAccess(cmd.Context(), principalID, permissionKey, resourceID)
			if err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				return PrintJSON(os.Stdout, map[string]interface{}{
					"principalId":   principalID,
					"permissionKey": permissionKey,
					"resourceId":    resourceID,
					"allowed":       allowed,
				})
			}
			if allowed {
				fmt.Fprintf(os.Stdout, "ALLOWED: %s has %s on %s\n", principalID, permissionKey, resourceID)
			} else {
				fmt.Fprintf(os.Stdout, "DENIED: %s does not have %s on %s\n", principalID, permissionKey, resourceID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&principalID, "principal", "", "principal id")
	cmd.Flags().StringVar(&permissionKey, "permission", "", "permission key")
	cmd.Flags().StringVar(&resourceID, "resource", "", "resource id")
	_ = cmd.MarkFlagRequired("principal")
	_ = cmd.MarkFlagRequired("permission")
	_ = cmd.MarkFlagRequired("resource")

	return cmd
}
