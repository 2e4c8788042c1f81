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

func setupResourceRepo(t *testing.T) *ResourceRepo {
	t.Helper()
	writeDB, _ := internaldb.OpenTestSQLite(t)
	repo := NewResourceRepo(writeDB, config.DefaultOptions())

	ctx := context.Background()
	for _, rt := range []domain.ResourceType{
		{ID: "system", Name: "System"},
		{ID: "project", Name: "Project"},
	} {
		require.NoError(t, repo.EnsureType(ctx, &rt))
	}
	return repo
}

func newResource(parentID *string, name string) *domain.Resource {
	return &domain.Resource{
		ID:             domain.NewID(),
		ParentID:       parentID,
		Name:           name,
		ResourceTypeID: "project",
		IsActive:       true,
		CreatedAt:      time.Now().UTC(),
	}
}

func TestResourceRepo_CreateAndGet(t *testing.T) {
	repo := setupResourceRepo(t)
	ctx := context.Background()

	res := newResource(nil, "Acme")
	require.NoError(t, repo.Create(ctx, res))

	found, err := repo.GetByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", found.Name)
	assert.Nil(t, found.ParentID)
	assert.True(t, found.IsActive)

	_, err = repo.GetByID(ctx, "missing")
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestResourceRepo_EnsureKeepsExistingRow(t *testing.T) {
	repo := setupResourceRepo(t)
	ctx := context.Background()

	res := newResource(nil, "Acme")
	require.NoError(t, repo.Ensure(ctx, res))

	renamed := *res
	renamed.Name = "Renamed"
	require.NoError(t, repo.Ensure(ctx, &renamed))

	found, err := repo.GetByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", found.Name)
}

func TestResourceRepo_SetActive(t *testing.T) {
	repo := setupResourceRepo(t)
	ctx := context.Background()

	res := newResource(nil, "Acme")
	require.NoError(t, repo.Create(ctx, res))

	require.NoError(t, repo.SetActive(ctx, res.ID, false))
	found, err := repo.GetByID(ctx, res.ID)
	require.NoError(t, err)
	assert.False(t, found.IsActive)

	err = repo.SetActive(ctx, "missing", true)
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestResourceRepo_ChildrenOrdering(t *testing.T) {
	repo := setupResourceRepo(t)
	ctx := context.Background()

	parent := newResource(nil, "Acme")
	require.NoError(t, repo.Create(ctx, parent))
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, repo.Create(ctx, newResource(&parent.ID, name)))
	}

	children, err := repo.Children(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, children, 3)
	assert.Equal(t, "alpha", children[0].Name)
	assert.Equal(t, "mid", children[1].Name)
	assert.Equal(t, "zeta", children[2].Name)
}

func TestResourceRepo_AncestorChain(t *testing.T) {
	repo := setupResourceRepo(t)
	ctx := context.Background()

	root := newResource(nil, "root")
	require.NoError(t, repo.Create(ctx, root))
	mid := newResource(&root.ID, "mid")
	require.NoError(t, repo.Create(ctx, mid))
	leaf := newResource(&mid.ID, "leaf")
	require.NoError(t, repo.Create(ctx, leaf))

	chain, err := repo.AncestorChain(ctx, leaf.ID)
	require.NoError(t, err)
	require.Len(t, chain, 3)
	assert.Equal(t, leaf.ID, chain[0].ID)
	assert.Equal(t, mid.ID, chain[1].ID)
	assert.Equal(t, root.ID, chain[2].ID)

	// Unknown ids produce an empty chain, not an error.
	chain, err = repo.AncestorChain(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, chain)
}

func TestResourceRepo_Types(t *testing.T) {
	repo := setupResourceRepo(t)
	ctx := context.Background()

	// EnsureType is idempotent; CreateType on an existing id conflicts.
	require.NoError(t, repo.EnsureType(ctx, &domain.ResourceType{ID: "project", Name: "Project"}))
	err := repo.CreateType(ctx, &domain.ResourceType{ID: "project", Name: "Project"})
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)

	rt, err := repo.GetTypeByID(ctx, "project")
	require.NoError(t, err)
	assert.Equal(t, "Project", rt.Name)

	types, err := repo.ListTypes(ctx)
	require.NoError(t, err)
	assert.Len(t, types, 2)
}
