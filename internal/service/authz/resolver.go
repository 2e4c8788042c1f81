// Package authz implements the authorization engine: principal resolution,
// access decisions, traces, seeding, and the administrative operations that
// maintain the grant graph.
package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sqlzibar/internal/domain"
)

// Resolver expands a caller principal into its effective principal set:
// the principal itself plus every group that directly contains it. Groups
// are single-level; resolution never recurses because group-type members
// are rejected at insertion.
type Resolver struct {
	principals domain.PrincipalRepository
	groups     domain.GroupRepository
}

// NewResolver creates a Resolver.
func NewResolver(principals domain.PrincipalRepository, groups domain.GroupRepository) *Resolver {
	return &Resolver{principals: principals, groups: groups}
}

// ResolvePrincipalIDs returns the principal id followed by the principal ids
// of its groups, in group creation order. The result is empty only when the
// principal itself does not exist.
func (r *Resolver) ResolvePrincipalIDs(ctx context.Context, principalID string) ([]string, error) {
	p, err := r.principals.GetByID(ctx, principalID)
	if err != nil {
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve principal %s: %w", principalID, err)
	}

	groups, err := r.groups.GroupsForPrincipal(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("resolve groups for %s: %w", principalID, err)
	}

	ids := make([]string, 0, len(groups)+1)
	ids = append(ids, p.ID)
	for _, g := range groups {
		ids = append(ids, g.PrincipalID)
	}
	return ids, nil
}

// GetGroupsForPrincipal returns the groups that directly contain the
// principal: the non-self entries of ResolvePrincipalIDs. Group principals
// always get an empty result since they cannot be members.
func (r *Resolver) GetGroupsForPrincipal(ctx context.Context, principalID string) ([]domain.UserGroup, error) {
	return r.groups.GroupsForPrincipal(ctx, principalID)
}

// AddToGroup makes the principal a member of the group. Group-type
// principals are rejected so membership stays single-level. Re-adding an
// existing member is a no-op, which keeps resolution monotonic under
// retries.
func (r *Resolver) AddToGroup(ctx context.Context, principalID, groupID string) error {
	group, err := r.groups.GetByID(ctx, groupID)
	if err != nil {
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			return domain.ErrNotFound("group %q not found", groupID)
		}
		return fmt.Errorf("get group %s: %w", groupID, err)
	}

	p, err := r.principals.GetByID(ctx, principalID)
	if err != nil {
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			return domain.ErrUnknownPrincipal("unknown principal %q", principalID)
		}
		return fmt.Errorf("get principal %s: %w", principalID, err)
	}
	if p.IsGroup() {
		return domain.ErrInvalidMembership("principal %q is a group; groups cannot be members of groups", principalID)
	}

	err = r.groups.AddMember(ctx, &domain.UserGroupMembership{
		PrincipalID: p.ID,
		UserGroupID: group.ID,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			return nil
		}
		return fmt.Errorf("add %s to group %s: %w", principalID, groupID, err)
	}
	return nil
}

// RemoveFromGroup removes the membership; removing an absent membership
// succeeds.
func (r *Resolver) RemoveFromGroup(ctx context.Context, principalID, groupID string) error {
	if err := r.groups.RemoveMember(ctx, principalID, groupID); err != nil {
		return fmt.Errorf("remove %s from group %s: %w", principalID, groupID, err)
	}
	return nil
}
