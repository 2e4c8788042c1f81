package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sqlzibar/internal/domain"
	"sqlzibar/internal/service/authz"
)

func newTreeCmd() *cobra.Command {
	var rootID string

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the resource hierarchy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			if rootID == "" {
				rootID = env.opts.RootResourceID
			}
			root, err := env.admin.GetResource(cmd.Context(), rootID)
			if err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				node, err := buildTree(cmd.Context(), env.admin, root)
				if err != nil {
					return err
				}
				return PrintJSON(os.Stdout, node)
			}
			return printTree(cmd.Context(), env.admin, root, "")
		},
	}

	cmd.Flags().StringVar(&rootID, "root", "", "resource id to print from (defaults to the root resource)")

	return cmd
}

type treeNode struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	ResourceTypeID string     `json:"resourceTypeId"`
	IsActive       bool       `json:"isActive"`
	Children       []treeNode `json:"children"`
}

func buildTree(ctx context.Context, admin *authz.AdminService, res *domain.Resource) (treeNode, error) {
	node := treeNode{
		ID:             res.ID,
		Name:           res.Name,
		ResourceTypeID: res.ResourceTypeID,
		IsActive:       res.IsActive,
		Children:       []treeNode{},
	}
	children, err := admin.ResourceChildren(ctx, res.ID)
	if err != nil {
		return treeNode{}, err
	}
	for i := range children {
		child, err := buildTree(ctx, admin, &children[i])
		if err != nil {
			return treeNode{}, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

func printTree(ctx context.Context, admin *authz.AdminService, res *domain.Resource, indent string) error {
	suffix := ""
	if !res.IsActive {
		suffix = " [inactive]"
	}
	fmt.Fprintf(os.Stdout, "%s%s (%s, %s)%s\n", indent, res.Name, res.ID, res.ResourceTypeID, suffix)
	children, err := admin.ResourceChildren(ctx, res.ID)
	if err != nil {
		return err
	}
	for i := range children {
		if err := printTree(ctx, admin, &children[i], indent+"  "); err != nil {
			return err
		}
	}
	return nil
}
