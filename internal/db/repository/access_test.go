package repository

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlzibar/internal/config"
	"sqlzibar/internal/db"
	"sqlzibar/internal/domain"
)

// A fixed snapshot keeps the effective-window assertions exact.
var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type accessFixture struct {
	writeDB *sql.DB
	readDB  *sql.DB
	opts    config.Options

	principals *PrincipalRepo
	resources  *ResourceRepo
	roles      *RoleRepo
	grants     *GrantRepo
	access     *AccessRepo
}

func setupAccess(t *testing.T) *accessFixture {
	t.Helper()
	writeDB, readDB := db.OpenTestSQLite(t)
	opts := config.DefaultOptions()

	f := &accessFixture{
		writeDB:    writeDB,
		readDB:     readDB,
		opts:       opts,
		principals: NewPrincipalRepo(writeDB, opts),
		resources:  NewResourceRepo(writeDB, opts),
		roles:      NewRoleRepo(writeDB, opts),
		grants:     NewGrantRepo(writeDB, opts),
		access:     NewAccessRepo(readDB, opts),
	}

	ctx := context.Background()
	require.NoError(t, f.principals.EnsureType(ctx,
		domain.PrincipalType{ID: domain.PrincipalTypeUser, Name: domain.PrincipalTypeUser}))
	require.NoError(t, f.resources.EnsureType(ctx, &domain.ResourceType{ID: "node", Name: "Node"}))
	return f
}

func (f *accessFixture) user(t *testing.T, id string) {
	t.Helper()
	err := f.principals.CreateUser(context.Background(),
		&domain.Principal{ID: id, PrincipalTypeID: domain.PrincipalTypeUser, DisplayName: id, CreatedAt: base},
		&domain.User{ID: "u-" + id, PrincipalID: id, Email: id + "@example.test", CreatedAt: base})
	require.NoError(t, err)
}

func (f *accessFixture) node(t *testing.T, id string, parentID *string, typeID string) {
	t.Helper()
	err := f.resources.Create(context.Background(), &domain.Resource{
		ID: id, ParentID: parentID, Name: id, ResourceTypeID: typeID, IsActive: true, CreatedAt: base,
	})
	require.NoError(t, err)
}

// roleWith creates a role carrying a single permission and returns the
// permission id, which is what AccessQuery wants.
func (f *accessFixture) roleWith(t *testing.T, roleID, permKey string, scope *string) string {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.roles.Create(ctx, &domain.Role{ID: roleID, Key: roleID, Name: roleID, CreatedAt: base}))
	permID := "perm-" + permKey
	require.NoError(t, f.roles.CreatePermission(ctx, &domain.Permission{
		ID: permID, Key: permKey, Name: permKey, ResourceTypeID: scope, CreatedAt: base,
	}))
	require.NoError(t, f.roles.AttachPermission(ctx, roleID, permID))
	return permID
}

func (f *accessFixture) grant(t *testing.T, id, principalID, resourceID, roleID string, from, to *time.Time) {
	t.Helper()
	err := f.grants.Create(context.Background(), &domain.Grant{
		ID: id, PrincipalID: principalID, ResourceID: resourceID, RoleID: roleID,
		EffectiveFrom: from, EffectiveTo: to, CreatedAt: base,
	})
	require.NoError(t, err)
}

func ptr[T any](v T) *T { return &v }

func TestAccessRepo_CascadeFromAnchor(t *testing.T) {
	f := setupAccess(t)
	ctx := context.Background()

	f.node(t, "root", nil, "node")
	f.node(t, "teamA", ptr("root"), "node")
	f.node(t, "docA", ptr("teamA"), "node")
	f.node(t, "teamB", ptr("root"), "node")

	f.user(t, "alice")
	permID := f.roleWith(t, "editor", "DOC_EDIT", nil)
	f.grant(t, "g1", "alice", "teamA", "editor", nil, nil)

	q := domain.AccessQuery{PrincipalIDs: []string{"alice"}, PermissionID: permID, At: base}

	ids, err := f.access.AccessibleResources(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, []string{"docA", "teamA"}, ids)

	for id, want := range map[string]bool{"teamA": true, "docA": true, "root": false, "teamB": false} {
		ok, err := f.access.IsResourceAccessible(ctx, q, id)
		require.NoError(t, err)
		assert.Equal(t, want, ok, "resource %s", id)
	}

	nonEmpty, err := f.access.HasAnyAccessible(ctx, q)
	require.NoError(t, err)
	assert.True(t, nonEmpty)
}

func TestAccessRepo_EffectiveWindowBoundaries(t *testing.T) {
	f := setupAccess(t)
	ctx := context.Background()

	f.node(t, "root", nil, "node")
	f.user(t, "alice")
	permID := f.roleWith(t, "editor", "DOC_EDIT", nil)

	from := base
	to := base.Add(time.Hour)
	f.grant(t, "g1", "alice", "root", "editor", &from, &to)

	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before the window", from.Add(-time.Nanosecond), false},
		{"at EffectiveFrom", from, true},
		{"inside the window", from.Add(30 * time.Minute), true},
		{"at EffectiveTo", to, false},
		{"after the window", to.Add(time.Nanosecond), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := domain.AccessQuery{PrincipalIDs: []string{"alice"}, PermissionID: permID, At: tc.at}
			ok, err := f.access.IsResourceAccessible(ctx, q, "root")
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
		})
	}
}

func TestAccessRepo_TypeScopeFiltersMembershipOnly(t *testing.T) {
	f := setupAccess(t)
	ctx := context.Background()
	require.NoError(t, f.resources.EnsureType(ctx, &domain.ResourceType{ID: "doc", Name: "Document"}))

	// The scoped type appears only below an unscoped intermediate, so the
	// cascade must pass through nodes the filter would exclude.
	f.node(t, "root", nil, "node")
	f.node(t, "folder", ptr("root"), "node")
	f.node(t, "memo", ptr("folder"), "doc")

	f.user(t, "alice")
	permID := f.roleWith(t, "docReader", "DOC_VIEW", ptr("doc"))
	f.grant(t, "g1", "alice", "folder", "docReader", nil, nil)

	q := domain.AccessQuery{
		PrincipalIDs: []string{"alice"}, PermissionID: permID,
		ResourceTypeID: ptr("doc"), At: base,
	}

	ids, err := f.access.AccessibleResources(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, []string{"memo"}, ids)

	ok, err := f.access.IsResourceAccessible(ctx, q, "folder")
	require.NoError(t, err)
	assert.False(t, ok, "the anchor itself is not of the scoped type")
}

func TestAccessRepo_EmptyPrincipalSet(t *testing.T) {
	f := setupAccess(t)
	ctx := context.Background()
	f.node(t, "root", nil, "node")

	q := domain.AccessQuery{PermissionID: "perm-x", At: base}

	ids, err := f.access.AccessibleResources(ctx, q)
	require.NoError(t, err)
	assert.Empty(t, ids)

	ok, err := f.access.IsResourceAccessible(ctx, q, "root")
	require.NoError(t, err)
	assert.False(t, ok)

	nonEmpty, err := f.access.HasAnyAccessible(ctx, q)
	require.NoError(t, err)
	assert.False(t, nonEmpty)

	filter := f.access.ComposeFilter(q)
	assert.Equal(t, []string(nil), selectThrough(t, f.readDB, f.opts, filter))
}

// selectThrough runs a composed filter against the resource table itself and
// returns the matching ids, the same way a listing query would.
func selectThrough(t *testing.T, pool *sql.DB, opts config.Options, filter domain.ResourceFilter) []string {
	t.Helper()
	query := fmt.Sprintf("SELECT r.Id FROM %s r WHERE %s ORDER BY r.Id",
		opts.Tables().Resources, filter.Apply("r.Id"))
	rows, err := pool.Query(query, filter.Args...)
	require.NoError(t, err)
	defer rows.Close() //nolint:errcheck

	var ids []string
	for rows.Next() {
		var id string
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	require.NoError(t, rows.Err())
	return ids
}

func TestAccessRepo_ComposeFilterMatchesMaterializedSet(t *testing.T) {
	f := setupAccess(t)
	ctx := context.Background()

	f.node(t, "root", nil, "node")
	f.node(t, "east", ptr("root"), "node")
	f.node(t, "east-1", ptr("east"), "node")
	f.node(t, "west", ptr("root"), "node")

	f.user(t, "alice")
	f.user(t, "ops")
	permID := f.roleWith(t, "viewer", "NODE_VIEW", nil)
	f.grant(t, "g1", "alice", "east", "viewer", nil, nil)
	f.grant(t, "g2", "ops", "west", "viewer", nil, nil)

	q := domain.AccessQuery{PrincipalIDs: []string{"alice", "ops"}, PermissionID: permID, At: base}

	want, err := f.access.AccessibleResources(ctx, q)
	require.NoError(t, err)
	require.Equal(t, []string{"east", "east-1", "west"}, want)

	assert.Equal(t, want, selectThrough(t, f.readDB, f.opts, f.access.ComposeFilter(q)))
}

func TestAccessRepo_StoreFunctionMatchesInlineFilter(t *testing.T) {
	f := setupAccess(t)
	ctx := context.Background()

	f.node(t, "root", nil, "node")
	f.node(t, "east", ptr("root"), "node")
	f.node(t, "east-1", ptr("east"), "node")
	f.node(t, "west", ptr("root"), "node")

	f.user(t, "alice")
	permID := f.roleWith(t, "viewer", "NODE_VIEW", nil)
	f.grant(t, "g1", "alice", "east", "viewer", nil, nil)

	// The function body re-enters SQLite while the outer statement holds a
	// read connection, so the probe gets the other pool.
	db.BindAccessFunction(NewAccessRepo(f.writeDB, f.opts).Probe())

	fnOpts := f.opts
	fnOpts.InitializeFunctions = true
	fnRepo := NewAccessRepo(f.readDB, fnOpts)

	q := domain.AccessQuery{PrincipalIDs: []string{"alice"}, PermissionID: permID, At: base}

	want, err := f.access.AccessibleResources(ctx, q)
	require.NoError(t, err)
	require.Equal(t, []string{"east", "east-1"}, want)

	got := selectThrough(t, f.readDB, f.opts, fnRepo.ComposeFilter(q))
	assert.Equal(t, want, got)

	// No principals means the function reports inaccessible for every row.
	empty := fnRepo.ComposeFilter(domain.AccessQuery{PermissionID: permID, At: base})
	assert.Empty(t, selectThrough(t, f.readDB, f.opts, empty))
}

func TestAccessRepo_TraceChain(t *testing.T) {
	f := setupAccess(t)
	ctx := context.Background()

	f.node(t, "root", nil, "node")
	f.node(t, "mid", ptr("root"), "node")
	f.node(t, "leaf", ptr("mid"), "node")

	f.user(t, "alice")
	f.user(t, "bob")
	f.roleWith(t, "editor", "DOC_EDIT", nil)
	f.grant(t, "g-mid", "alice", "mid", "editor", nil, nil)
	f.grant(t, "g-root", "bob", "root", "editor", nil, nil)

	rows, err := f.access.TraceChain(ctx, "leaf", []string{"alice"}, base)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "leaf", rows[0].ResourceID)
	assert.Equal(t, 0, rows[0].Depth)
	assert.Nil(t, rows[0].Grant)

	assert.Equal(t, "mid", rows[1].ResourceID)
	require.NotNil(t, rows[1].Grant)
	assert.Equal(t, "g-mid", rows[1].Grant.GrantID)
	assert.Equal(t, "editor", rows[1].Grant.RoleKey)
	assert.Equal(t, []string{"DOC_EDIT"}, rows[1].Grant.PermissionKeys)

	// bob's grant sits on root but bob is not among the traced principals.
	assert.Equal(t, "root", rows[2].ResourceID)
	assert.Nil(t, rows[2].Grant)
}

func TestAccessRepo_TraceChainUnknownTarget(t *testing.T) {
	f := setupAccess(t)

	rows, err := f.access.TraceChain(context.Background(), "no-such-resource", []string{"alice"}, base)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestAccessRepo_TraceChainExpiredGrantInvisible(t *testing.T) {
	f := setupAccess(t)
	ctx := context.Background()

	f.node(t, "root", nil, "node")
	f.user(t, "alice")
	f.roleWith(t, "editor", "DOC_EDIT", nil)

	to := base.Add(-time.Hour)
	f.grant(t, "g1", "alice", "root", "editor", nil, &to)

	rows, err := f.access.TraceChain(ctx, "root", []string{"alice"}, base)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].Grant)
}

func TestFormatTime_OrdersLexically(t *testing.T) {
	times := []time.Time{
		base.Add(-time.Hour),
		base.Add(-time.Nanosecond),
		base,
		base.Add(time.Nanosecond),
		base.Add(30 * time.Minute),
	}
	for i := 1; i < len(times); i++ {
		assert.Less(t, FormatTime(times[i-1]), FormatTime(times[i]))
	}

	parsed, err := ParseTime(FormatTime(base.Add(time.Nanosecond)))
	require.NoError(t, err)
	assert.True(t, parsed.Equal(base.Add(time.Nanosecond)))
}
