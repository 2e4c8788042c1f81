package repository

import (
	"context"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlzibar/internal/config"
	internaldb "sqlzibar/internal/db"
	"sqlzibar/internal/domain"
)

type grantFixture struct {
	grants      *GrantRepo
	principalID string
	resourceID  string
	roleID      string
}

// setupGrantRepo creates one principal, one resource, and one role so grant
// rows satisfy their foreign keys.
func setupGrantRepo(t *testing.T) grantFixture {
	t.Helper()
	writeDB, _ := internaldb.OpenTestSQLite(t)
	opts := config.DefaultOptions()
	ctx := context.Background()

	principals := NewPrincipalRepo(writeDB, opts)
	require.NoError(t, principals.EnsureType(ctx, domain.PrincipalType{ID: domain.PrincipalTypeUser, Name: "user"}))
	p, u := newUserPrincipal("alice")
	require.NoError(t, principals.CreateUser(ctx, p, u))

	resources := NewResourceRepo(writeDB, opts)
	require.NoError(t, resources.EnsureType(ctx, &domain.ResourceType{ID: "project", Name: "Project"}))
	res := &domain.Resource{
		ID:             domain.NewID(),
		Name:           "Website Relaunch",
		ResourceTypeID: "project",
		IsActive:       true,
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, resources.Create(ctx, res))

	roles := NewRoleRepo(writeDB, opts)
	role := &domain.Role{
		ID:        domain.NewID(),
		Key:       "editor",
		Name:      "Editor",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, roles.Create(ctx, role))

	return grantFixture{
		grants:      NewGrantRepo(writeDB, opts),
		principalID: p.ID,
		resourceID:  res.ID,
		roleID:      role.ID,
	}
}

func (f grantFixture) newGrant() *domain.Grant {
	return &domain.Grant{
		ID:          domain.NewID(),
		PrincipalID: f.principalID,
		ResourceID:  f.resourceID,
		RoleID:      f.roleID,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestGrantRepo_CreateAndGet(t *testing.T) {
	f := setupGrantRepo(t)
	ctx := context.Background()

	g := f.newGrant()
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	g.EffectiveFrom = &from
	require.NoError(t, f.grants.Create(ctx, g))

	found, err := f.grants.GetByID(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, f.principalID, found.PrincipalID)
	assert.Equal(t, f.resourceID, found.ResourceID)
	assert.Equal(t, f.roleID, found.RoleID)
	require.NotNil(t, found.EffectiveFrom)
	assert.True(t, found.EffectiveFrom.Equal(from))
	assert.Nil(t, found.EffectiveTo)
}

func TestGrantRepo_End(t *testing.T) {
	f := setupGrantRepo(t)
	ctx := context.Background()

	g := f.newGrant()
	require.NoError(t, f.grants.Create(ctx, g))

	first := time.Now().UTC()
	require.NoError(t, f.grants.End(ctx, g.ID, first))

	found, err := f.grants.GetByID(ctx, g.ID)
	require.NoError(t, err)
	require.NotNil(t, found.EffectiveTo)
	assert.True(t, found.EffectiveTo.Equal(first))

	// A later End must not reopen the window.
	require.NoError(t, f.grants.End(ctx, g.ID, first.Add(time.Hour)))
	found, err = f.grants.GetByID(ctx, g.ID)
	require.NoError(t, err)
	assert.True(t, found.EffectiveTo.Equal(first))

	// An earlier End tightens it.
	earlier := first.Add(-time.Hour)
	require.NoError(t, f.grants.End(ctx, g.ID, earlier))
	found, err = f.grants.GetByID(ctx, g.ID)
	require.NoError(t, err)
	assert.True(t, found.EffectiveTo.Equal(earlier))

	err = f.grants.End(ctx, "missing", time.Now().UTC())
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestGrantRepo_EnsureIdempotent(t *testing.T) {
	f := setupGrantRepo(t)
	ctx := context.Background()

	g := f.newGrant()
	require.NoError(t, f.grants.Ensure(ctx, g))
	require.NoError(t, f.grants.Ensure(ctx, g))

	gs, err := f.grants.ListForPrincipal(ctx, f.principalID, 0)
	require.NoError(t, err)
	assert.Len(t, gs, 1)
}

func TestGrantRepo_CountActive(t *testing.T) {
	f := setupGrantRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	open := f.newGrant()
	require.NoError(t, f.grants.Create(ctx, open))

	expired := f.newGrant()
	past := now.Add(-time.Hour)
	expired.EffectiveTo = &past
	require.NoError(t, f.grants.Create(ctx, expired))

	pending := f.newGrant()
	future := now.Add(time.Hour)
	pending.EffectiveFrom = &future
	require.NoError(t, f.grants.Create(ctx, pending))

	n, err := f.grants.CountActive(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestGrantRepo_ListExpiringBetween(t *testing.T) {
	f := setupGrantRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	soon := f.newGrant()
	in6h := now.Add(6 * time.Hour)
	soon.EffectiveTo = &in6h
	require.NoError(t, f.grants.Create(ctx, soon))

	later := f.newGrant()
	in3d := now.Add(72 * time.Hour)
	later.EffectiveTo = &in3d
	require.NoError(t, f.grants.Create(ctx, later))

	openEnded := f.newGrant()
	require.NoError(t, f.grants.Create(ctx, openEnded))

	expiring, err := f.grants.ListExpiringBetween(ctx, now, now.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	assert.Equal(t, soon.ID, expiring[0].ID)
}
