package app

import (
	"context"
	"fmt"

	"sqlzibar/internal/domain"
	"sqlzibar/internal/service/authz"
	"sqlzibar/internal/service/directory"
)

// seedDemoData populates a development store with a small working graph:
// an agency/team/project hierarchy, two users, an ops group, viewer and
// editor roles, and a few chains with locations. Skipped once the editor
// role exists.
func seedDemoData(
	ctx context.Context,
	admin *authz.AdminService,
	resolver *authz.Resolver,
	dir *directory.Service,
	roles domain.RoleRepository,
	rootResourceID string,
) error {
	if _, err := roles.GetByKey(ctx, "editor"); err == nil {
		return nil // already seeded
	}

	// --- Resource types ---
	for _, rt := range []struct{ id, name string }{
		{"agency", "Agency"},
		{"team", "Team"},
		{"project", "Project"},
	} {
		if _, err := admin.CreateResourceType(ctx, rt.id, rt.name); err != nil {
			return fmt.Errorf("create resource type %s: %w", rt.id, err)
		}
	}

	// --- Roles ---
	viewer, err := admin.CreateRole(ctx, "viewer", "Viewer")
	if err != nil {
		return fmt.Errorf("create viewer role: %w", err)
	}
	editor, err := admin.CreateRole(ctx, "editor", "Editor")
	if err != nil {
		return fmt.Errorf("create editor role: %w", err)
	}

	for _, attach := range []struct{ roleKey, permissionKey string }{
		{viewer.Key, directory.PermissionChainView},
		{viewer.Key, directory.PermissionLocationView},
		{editor.Key, directory.PermissionChainView},
		{editor.Key, directory.PermissionChainEdit},
		{editor.Key, directory.PermissionLocationView},
	} {
		if err := admin.AttachPermissionToRole(ctx, attach.roleKey, attach.permissionKey); err != nil {
			return fmt.Errorf("attach %s to %s: %w", attach.permissionKey, attach.roleKey, err)
		}
	}

	// --- Principals ---
	aliceRef := "alice@example.test"
	alice, err := admin.CreatePrincipal(ctx, &domain.CreatePrincipalRequest{
		PrincipalTypeID: domain.PrincipalTypeUser,
		DisplayName:     "Alice Demo",
		ExternalRef:     &aliceRef,
		Email:           aliceRef,
	})
	if err != nil {
		return fmt.Errorf("create alice: %w", err)
	}
	bobRef := "bob@example.test"
	bob, err := admin.CreatePrincipal(ctx, &domain.CreatePrincipalRequest{
		PrincipalTypeID: domain.PrincipalTypeUser,
		DisplayName:     "Bob Demo",
		ExternalRef:     &bobRef,
		Email:           bobRef,
	})
	if err != nil {
		return fmt.Errorf("create bob: %w", err)
	}

	ops, err := admin.CreateGroup(ctx, "platform-ops", nil)
	if err != nil {
		return fmt.Errorf("create platform-ops group: %w", err)
	}
	if err := resolver.AddToGroup(ctx, alice.ID, ops.ID); err != nil {
		return fmt.Errorf("add alice to platform-ops: %w", err)
	}

	// --- Hierarchy: agency -> team -> project ---
	acme, err := admin.CreateResource(ctx, &domain.CreateResourceRequest{
		ParentID: rootResourceID, Name: "Acme Agency", ResourceTypeID: "agency",
	})
	if err != nil {
		return fmt.Errorf("create acme agency: %w", err)
	}
	web, err := admin.CreateResource(ctx, &domain.CreateResourceRequest{
		ParentID: acme.ID, Name: "Web Team", ResourceTypeID: "team",
	})
	if err != nil {
		return fmt.Errorf("create web team: %w", err)
	}
	if _, err := admin.CreateResource(ctx, &domain.CreateResourceRequest{
		ParentID: web.ID, Name: "Website Relaunch", ResourceTypeID: "project",
	}); err != nil {
		return fmt.Errorf("create website project: %w", err)
	}

	// --- Grants: the ops group edits everything under acme, bob views the
	// web team subtree only ---
	if _, err := admin.CreateGrant(ctx, &domain.CreateGrantRequest{
		PrincipalID: ops.PrincipalID, ResourceID: acme.ID, RoleKey: editor.Key,
	}); err != nil {
		return fmt.Errorf("grant editor to platform-ops: %w", err)
	}
	if _, err := admin.CreateGrant(ctx, &domain.CreateGrantRequest{
		PrincipalID: bob.ID, ResourceID: web.ID, RoleKey: viewer.Key,
	}); err != nil {
		return fmt.Errorf("grant viewer to bob: %w", err)
	}

	// --- Chains with locations ---
	northwind, err := dir.CreateChain(ctx, &domain.CreateChainRequest{
		ParentResourceID: acme.ID, Name: "Northwind Coffee", City: "Seattle",
	})
	if err != nil {
		return fmt.Errorf("create northwind chain: %w", err)
	}
	for _, loc := range []struct{ name, city string }{
		{"Pike Street", "Seattle"},
		{"Fremont", "Seattle"},
	} {
		if _, err := dir.CreateLocation(ctx, &domain.CreateLocationRequest{
			ChainID: northwind.ID, Name: loc.name, City: loc.city,
		}); err != nil {
			return fmt.Errorf("create location %s: %w", loc.name, err)
		}
	}

	contoso, err := dir.CreateChain(ctx, &domain.CreateChainRequest{
		ParentResourceID: acme.ID, Name: "Contoso Books", City: "Portland",
	})
	if err != nil {
		return fmt.Errorf("create contoso chain: %w", err)
	}
	if _, err := dir.CreateLocation(ctx, &domain.CreateLocationRequest{
		ChainID: contoso.ID, Name: "Downtown", City: "Portland",
	}); err != nil {
		return fmt.Errorf("create contoso location: %w", err)
	}

	return nil
}
