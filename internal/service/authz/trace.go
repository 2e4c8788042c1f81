package authz

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"sqlzibar/internal/domain"
)

// TraceResourceAccess explains why a principal can or cannot act on a
// resource. It evaluates the same anchor relation as CheckAccess against a
// single snapshot timestamp, so AccessGranted always matches what
// CheckAccess would have returned for the same inputs at the same instant.
//
// The trace is safe for any inputs: nonexistent principals, resources, or
// permission keys come back as a trace with the matching Found flag false
// and the error kind named in the summary. Only store failures and
// cancellation surface as Go errors.
func (s *Service) TraceResourceAccess(ctx context.Context, principalID, resourceID, permissionKey string) (*domain.AccessTrace, error) {
	at := time.Now().UTC()
	trace := &domain.AccessTrace{
		Resource:   domain.TraceResource{ID: resourceID},
		Principal:  domain.TracePrincipal{ID: principalID},
		Permission: domain.TracePermission{Key: permissionKey},
		CheckedAt:  at,
	}

	perm, err := s.roles.GetPermissionByKey(ctx, permissionKey)
	if err != nil {
		var nf *domain.NotFoundError
		if !errors.As(err, &nf) {
			return nil, fmt.Errorf("get permission %s: %w", permissionKey, err)
		}
	} else {
		trace.Permission.Found = true
		trace.Permission.Name = perm.Name
	}

	var principalIDs []string
	principal, err := s.principals.GetByID(ctx, principalID)
	if err != nil {
		var nf *domain.NotFoundError
		if !errors.As(err, &nf) {
			return nil, fmt.Errorf("get principal %s: %w", principalID, err)
		}
	} else {
		trace.Principal.Found = true
		trace.Principal.DisplayName = principal.DisplayName

		groups, err := s.resolver.GetGroupsForPrincipal(ctx, principalID)
		if err != nil {
			return nil, fmt.Errorf("resolve groups for %s: %w", principalID, err)
		}
		principalIDs = append(principalIDs, principal.ID)
		trace.PrincipalsChecked = append(trace.PrincipalsChecked, domain.PrincipalCheck{
			PrincipalID: principal.ID,
			DisplayName: principal.DisplayName,
		})
		for _, g := range groups {
			principalIDs = append(principalIDs, g.PrincipalID)
			trace.PrincipalsChecked = append(trace.PrincipalsChecked, domain.PrincipalCheck{
				PrincipalID: g.PrincipalID,
				DisplayName: g.Name,
				ViaGroup:    true,
				GroupName:   g.Name,
			})
		}
	}

	rows, err := s.access.TraceChain(ctx, resourceID, principalIDs, at)
	if err != nil {
		return nil, fmt.Errorf("trace chain for %s: %w", resourceID, err)
	}
	if len(rows) > 0 {
		trace.Resource.Found = true
		trace.Resource.Name = rows[0].ResourceName
		trace.Resource.TypeName = rows[0].TypeName
	}

	// A type-scoped permission constrains the target resource only; grants
	// anywhere on the chain still count when the target's type matches.
	typeOK := trace.Permission.Found &&
		(perm.ResourceTypeID == nil ||
			(len(rows) > 0 && *perm.ResourceTypeID == rows[0].ResourceTypeID))

	checkByID := make(map[string]domain.PrincipalCheck, len(trace.PrincipalsChecked))
	for _, c := range trace.PrincipalsChecked {
		checkByID[c.PrincipalID] = c
	}

	roleIndex := make(map[string]int)
	for _, row := range rows {
		if len(trace.Path) == 0 || trace.Path[len(trace.Path)-1].Depth != row.Depth {
			trace.Path = append(trace.Path, domain.PathNode{
				ResourceID:   row.ResourceID,
				ResourceName: row.ResourceName,
				TypeName:     row.TypeName,
				Depth:        row.Depth,
				IsActive:     row.IsActive,
			})
		}
		if row.Grant == nil {
			continue
		}

		g := row.Grant
		contributed := typeOK && slices.Contains(g.PermissionKeys, permissionKey)
		check := checkByID[g.PrincipalID]
		gt := domain.GrantTrace{
			GrantID:               g.GrantID,
			ResourceID:            row.ResourceID,
			PrincipalID:           g.PrincipalID,
			PrincipalName:         check.DisplayName,
			ViaGroup:              check.ViaGroup,
			GroupName:             check.GroupName,
			RoleID:                g.RoleID,
			RoleKey:               g.RoleKey,
			EffectiveFrom:         g.EffectiveFrom,
			EffectiveTo:           g.EffectiveTo,
			ContributedToDecision: contributed,
		}

		node := &trace.Path[len(trace.Path)-1]
		node.Grants = append(node.Grants, gt)
		node.EffectivePermissions = append(node.EffectivePermissions, g.PermissionKeys...)
		trace.GrantsUsed = append(trace.GrantsUsed, gt)

		if i, ok := roleIndex[g.RoleID]; ok {
			trace.RolesUsed[i].Contributed = trace.RolesUsed[i].Contributed || contributed
		} else {
			roleIndex[g.RoleID] = len(trace.RolesUsed)
			trace.RolesUsed = append(trace.RolesUsed, domain.RoleTrace{
				RoleID:      g.RoleID,
				Key:         g.RoleKey,
				Name:        g.RoleName,
				IsVirtual:   g.RoleIsVirtual,
				Contributed: contributed,
			})
		}
		if contributed {
			trace.AccessGranted = true
		}
	}

	for i := range trace.Path {
		sort.Strings(trace.Path[i].EffectivePermissions)
		trace.Path[i].EffectivePermissions = slices.Compact(trace.Path[i].EffectivePermissions)
	}

	explainDecision(trace, permissionKey)
	return trace, nil
}

// explainDecision fills the summary fields. Error kinds carry their name in
// the summary and leave the denial fields empty; genuine denials explain
// themselves and suggest a fix.
func explainDecision(trace *domain.AccessTrace, permissionKey string) {
	if !trace.Permission.Found {
		trace.DecisionSummary = fmt.Sprintf(
			"UNKNOWN_PERMISSION: permission %q is not registered, so no decision could be made.",
			permissionKey)
		return
	}
	if !trace.Principal.Found {
		trace.DecisionSummary = fmt.Sprintf(
			"UNKNOWN_PRINCIPAL: principal %q does not exist, so no decision could be made.",
			trace.Principal.ID)
		return
	}

	if trace.AccessGranted {
		for _, gt := range trace.GrantsUsed {
			if !gt.ContributedToDecision {
				continue
			}
			via := "held directly"
			if gt.ViaGroup {
				via = fmt.Sprintf("held via group %q", gt.GroupName)
			}
			where := fmt.Sprintf("on %q itself", trace.Resource.Name)
			if gt.ResourceID != trace.Resource.ID {
				where = fmt.Sprintf("on ancestor %q", nodeName(trace, gt.ResourceID))
			}
			trace.DecisionSummary = fmt.Sprintf(
				"Access granted: %s holds role %q (%s) %s, and that role carries permission %q.",
				trace.Principal.DisplayName, gt.RoleKey, via, where, permissionKey)
			return
		}
		return
	}

	if !trace.Resource.Found {
		trace.DenialReason = fmt.Sprintf("resource %q does not exist", trace.Resource.ID)
		trace.Suggestion = "verify the resource id; checks against unknown resources always deny"
		trace.DecisionSummary = "Access denied: " + trace.DenialReason + "."
		return
	}

	carriesKey := false
	for _, node := range trace.Path {
		if slices.Contains(node.EffectivePermissions, permissionKey) {
			carriesKey = true
			break
		}
	}

	switch {
	case len(trace.GrantsUsed) == 0:
		trace.DenialReason = fmt.Sprintf(
			"no role with permission %q is granted to this principal chain anywhere at or above this resource",
			permissionKey)
		trace.Suggestion = fmt.Sprintf(
			"grant a role carrying %q to %s (or one of its groups) on %q or an ancestor",
			permissionKey, trace.Principal.DisplayName, trace.Resource.Name)
	case carriesKey:
		trace.DenialReason = fmt.Sprintf(
			"permission %q is scoped to a different resource type than %q (type %q)",
			permissionKey, trace.Resource.Name, trace.Resource.TypeName)
		trace.Suggestion = fmt.Sprintf(
			"target a resource of the type %q is scoped to, or register the permission without a type scope",
			permissionKey)
	default:
		trace.DenialReason = fmt.Sprintf(
			"the principal chain holds %d active grant(s) on the ancestor chain, but none of their roles carries permission %q",
			len(trace.GrantsUsed), permissionKey)
		trace.Suggestion = fmt.Sprintf(
			"attach %q to one of the granted roles, or grant a role that already carries it",
			permissionKey)
	}
	trace.DecisionSummary = "Access denied: " + trace.DenialReason + "."
}

func nodeName(trace *domain.AccessTrace, resourceID string) string {
	for _, node := range trace.Path {
		if node.ResourceID == resourceID {
			return node.ResourceName
		}
	}
	return resourceID
}
