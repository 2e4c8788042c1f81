package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newTraceCmd() *cobra.Command {
	var (
		principalID   string
		permissionKey string
		resourceID    string
	)

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Explain an access decision step by step",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			trace, err := env.authz.TraceResourceAccess(cmd.Context(), principalID, resourceID, permissionKey)
			if err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				return PrintJSON(os.Stdout, trace)
			}

			verdict := "DENIED"
			if trace.AccessGranted {
				verdict = "ALLOWED"
			}
			fmt.Fprintf(os.Stdout, "%s: %s\n", verdict, trace.DecisionSummary)
			fmt.Fprintf(os.Stdout, "checked_at: %s\n", trace.CheckedAt.Format("2006-01-02 15:04:05 MST"))

			if len(trace.PrincipalsChecked) > 0 {
				fmt.Fprintln(os.Stdout, "\nPRINCIPALS CHECKED:")
				for _, p := range trace.PrincipalsChecked {
					if p.ViaGroup {
						fmt.Fprintf(os.Stdout, "  %s (%s, via group %s)\n", p.DisplayName, p.PrincipalID, p.GroupName)
					} else {
						fmt.Fprintf(os.Stdout, "  %s (%s)\n", p.DisplayName, p.PrincipalID)
					}
				}
			}

			if len(trace.Path) > 0 {
				fmt.Fprintln(os.Stdout, "\nPATH (target to root):")
				for _, node := range trace.Path {
					indent := strings.Repeat("  ", node.Depth+1)
					suffix := ""
					if !node.IsActive {
						suffix = " [inactive]"
					}
					fmt.Fprintf(os.Stdout, "%s%s (%s, %s)%s\n", indent, node.ResourceName, node.ResourceID, node.TypeName, suffix)
					for _, g := range node.Grants {
						mark := " "
						if g.ContributedToDecision {
							mark = "*"
						}
						holder := g.PrincipalName
						if g.ViaGroup {
							holder = fmt.Sprintf("%s (via %s)", g.PrincipalName, g.GroupName)
						}
						fmt.Fprintf(os.Stdout, "%s  %s %s as %s\n", indent, mark, holder, g.RoleKey)
					}
				}
				fmt.Fprintln(os.Stdout, "\n* grant contributed to the decision")
			}

			if trace.DenialReason != "" {
				fmt.Fprintf(os.Stdout, "\nreason:     %s\n", trace.DenialReason)
			}
			if trace.Suggestion != "" {
				fmt.Fprintf(os.Stdout, "suggestion: %s\n", trace.Suggestion)
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
