package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"sqlzibar/internal/domain"
)

func newGrantCmd() *cobra.Command {
	var (
		principalID string
		resourceID  string
		roleKey     string
		from        string
		to          string
	)

	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Grant a role to a principal on a resource",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := &domain.CreateGrantRequest{
				PrincipalID: principalID,
				ResourceID:  resourceID,
				RoleKey:     roleKey,
			}
			if from != "" {
				t, err := time.Parse(time.RFC3339, from)
				if err != nil {
					return domain.ErrValidation("invalid --from %q: expected RFC 3339, e.g. 2026-01-02T15:04:05Z", from)
				}
				req.EffectiveFrom = &t
			}
			if to != "" {
				t, err := time.Parse(time.RFC3339, to)
				if err != nil {
					return domain.ErrValidation("invalid --to %q: expected RFC 3339, e.g. 2026-01-02T15:04:05Z", to)
				}
				req.EffectiveTo = &t
			}

			env, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			grant, err := env.admin.CreateGrant(cmd.Context(), req)
			if err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				out := map[string]interface{}{
					"grantId":     grant.ID,
					"principalId": grant.PrincipalID,
					"resourceId":  grant.ResourceID,
					"roleId":      grant.RoleID,
					"createdAt":   grant.CreatedAt,
				}
				if grant.EffectiveFrom != nil {
					out["effectiveFrom"] = grant.EffectiveFrom
				}
				if grant.EffectiveTo != nil {
					out["effectiveTo"] = grant.EffectiveTo
				}
				return PrintJSON(os.Stdout, out)
			}
			fmt.Fprintf(os.Stdout, "Granted %s to %s on %s (grant %s).\n", roleKey, principalID, resourceID, grant.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&principalID, "principal", "", "principal id")
	cmd.Flags().StringVar(&resourceID, "resource", "", "resource id")
	cmd.Flags().StringVar(&roleKey, "role", "", "role key")
	cmd.Flags().StringVar(&from, "from", "", "effective-from timestamp (RFC 3339, optional)")
	cmd.Flags().StringVar(&to, "to", "", "effective-to timestamp (RFC 3339, optional)")
	_ = cmd.MarkFlagRequired("principal")
	_ = cmd.MarkFlagRequired("resource")
	_ = cmd.MarkFlagRequired("role")

	return cmd
}
