package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"sqlzibar/internal/config"
	"sqlzibar/internal/db"
	"sqlzibar/internal/domain"
)

// AccessRepo computes the set of resources reachable through cascading
// grants. Every form evaluates one relation: anchors (active grants whose
// role carries the permission, held by a resolved principal) extended to the
// full downward closure over ParentId. Each public method is a single SQL
// statement, so a decision always reads one snapshot.
//
// Inactive resources stay in the closure; callers filter them at query time
// when they want to. The optional resource-type filter applies only to final
// membership, never to the cascade.
type AccessRepo struct {
	db         *sql.DB
	t          config.TableNames
	useStoreFn bool
}

// NewAccessRepo creates an AccessRepo over the read pool. When
// opts.InitializeFunctions is set, ComposeFilter emits calls to the
// store-side function instead of an inline closure subquery.
func NewAccessRepo(db *sql.DB, opts config.Options) *AccessRepo {
	return &AccessRepo{
		db:         db,
		t:          opts.Tables(),
		useStoreFn: opts.InitializeFunctions,
	}
}

// closureBody renders the shared WITH RECURSIVE prologue: anchors(ResourceId)
// holding the directly granted resources, and reachable(Id) holding the
// downward closure. The caller appends a final SELECT over reachable.
func (r *AccessRepo) closureBody(q domain.AccessQuery) (string, []any) {
	at := FormatTime(q.At)
	body := fmt.Sprintf(`WITH RECURSIVE
anchors(ResourceId) AS (
	SELECT DISTINCT g.ResourceId
	FROM %s g
	JOIN %s rp ON rp.RoleId = g.RoleId AND rp.PermissionId = ?
	WHERE g.PrincipalId IN (%s)
	  AND (g.EffectiveFrom IS NULL OR g.EffectiveFrom <= ?)
	  AND (g.EffectiveTo IS NULL OR g.EffectiveTo > ?)
),
reachable(Id) AS (
	SELECT ResourceId FROM anchors
	UNION
	SELECT r.Id FROM %s r JOIN reachable d ON r.ParentId = d.Id
)`, r.t.Grants, r.t.RolePermissions, placeholders(len(q.PrincipalIDs)), r.t.Resources)

	args := make([]any, 0, len(q.PrincipalIDs)+3)
	args = append(args, q.PermissionID)
	args = append(args, stringArgs(q.PrincipalIDs)...)
	args = append(args, at, at)
	return body, args
}

func typeFilterValue(q domain.AccessQuery) string {
	if q.ResourceTypeID == nil {
		return ""
	}
	return *q.ResourceTypeID
}

// membership is the final-node test shared by all forms: the row is in the
// closure and, when the permission is type-scoped, of the scoped type.
const membershipWhere = `(? = '' OR r.ResourceTypeId = ?)`

// AccessibleResources materializes the reachable set, ordered by id.
func (r *AccessRepo) AccessibleResources(ctx context.Context, q domain.AccessQuery) ([]string, error) {
	if len(q.PrincipalIDs) == 0 {
		return nil, nil
	}
	body, args := r.closureBody(q)
	typeID := typeFilterValue(q)
	query := body + fmt.Sprintf(`
SELECT x.Id FROM reachable x JOIN %s r ON r.Id = x.Id
WHERE %s
ORDER BY x.Id`, r.t.Resources, membershipWhere)
	args = append(args, typeID, typeID)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapDBError(err)
	}
	defer rows.Close() //nolint:errcheck

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, MapDBError(err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// IsResourceAccessible refines the reachable set to a single target.
func (r *AccessRepo) IsResourceAccessible(ctx context.Context, q domain.AccessQuery, resourceID string) (bool, error) {
	if len(q.PrincipalIDs) == 0 {
		return false, nil
	}
	body, args := r.closureBody(q)
	typeID := typeFilterValue(q)
	query := body + fmt.Sprintf(`
SELECT EXISTS (
	SELECT 1 FROM reachable x JOIN %s r ON r.Id = x.Id
	WHERE r.Id = ? AND %s
)`, r.t.Resources, membershipWhere)
	args = append(args, resourceID, typeID, typeID)

	var ok int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&ok); err != nil {
		return false, MapDBError(err)
	}
	return ok != 0, nil
}

// HasAnyAccessible reports whether the reachable set is non-empty.
func (r *AccessRepo) HasAnyAccessible(ctx context.Context, q domain.AccessQuery) (bool, error) {
	if len(q.PrincipalIDs) == 0 {
		return false, nil
	}
	body, args := r.closureBody(q)
	typeID := typeFilterValue(q)
	query := body + fmt.Sprintf(`
SELECT EXISTS (
	SELECT 1 FROM reachable x JOIN %s r ON r.Id = x.Id
	WHERE %s
)`, r.t.Resources, membershipWhere)
	args = append(args, typeID, typeID)

	var ok int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&ok); err != nil {
		return false, MapDBError(err)
	}
	return ok != 0, nil
}

// ComposeFilter returns the reachable relation as a predicate over a business
// column. With the store-side function deployed it compiles to a function
// call per candidate row; otherwise it inlines the closure as a subquery the
// planner evaluates once.
func (r *AccessRepo) ComposeFilter(q domain.AccessQuery) domain.ResourceFilter {
	typeID := typeFilterValue(q)

	if r.useStoreFn {
		return domain.ResourceFilter{
			Expr: db.AccessFnName + "(%s, ?, ?, ?, ?) = 1",
			Args: []any{strings.Join(q.PrincipalIDs, ","), q.PermissionID, typeID, FormatTime(q.At)},
		}
	}

	if len(q.PrincipalIDs) == 0 {
		return domain.ResourceFilter{Expr: "%s IN (SELECT NULL WHERE 0)"}
	}

	body, args := r.closureBody(q)
	expr := fmt.Sprintf(`%%s IN (%s
SELECT x.Id FROM reachable x JOIN %s r ON r.Id = x.Id
WHERE %s)`, body, r.t.Resources, membershipWhere)
	args = append(args, typeID, typeID)
	return domain.ResourceFilter{Expr: expr, Args: args}
}

// Probe adapts IsResourceAccessible to the store-side function contract.
// Bind it with db.BindAccessFunction against a repo on its own pool: SQLite
// calls the function while the outer statement's connection is busy.
func (r *AccessRepo) Probe() db.AccessProbe {
	return func(resourceID, principalsCSV, permissionID, resourceTypeID, at string) (bool, error) {
		snapshot, err := ParseTime(at)
		if err != nil {
			return false, err
		}
		q := domain.AccessQuery{
			PermissionID: permissionID,
			At:           snapshot,
		}
		if principalsCSV != "" {
			q.PrincipalIDs = strings.Split(principalsCSV, ",")
		}
		if resourceTypeID != "" {
			q.ResourceTypeID = &resourceTypeID
		}
		return r.IsResourceAccessible(context.Background(), q, resourceID)
	}
}

// TraceChain returns the target's ancestor chain joined with every grant
// active at the snapshot held by one of the principals, in one statement.
// Unknown targets yield no rows.
func (r *AccessRepo) TraceChain(ctx context.Context, resourceID string, principalIDs []string, at time.Time) ([]domain.TraceChainRow, error) {
	// An empty principal set still needs the chain itself; IN (NULL)
	// matches nothing, so the LEFT JOIN yields bare chain rows.
	inClause := "NULL"
	args := []any{resourceID}
	if len(principalIDs) > 0 {
		inClause = placeholders(len(principalIDs))
		args = append(args, stringArgs(principalIDs)...)
	}
	atStr := FormatTime(at)
	args = append(args, atStr, atStr)

	query := fmt.Sprintf(`WITH RECURSIVE chain(Id, Depth) AS (
	SELECT Id, 0 FROM %s WHERE Id = ?
	UNION ALL
	SELECT r.ParentId, c.Depth + 1
	FROM %s r JOIN chain c ON r.Id = c.Id
	WHERE r.ParentId IS NOT NULL
)
SELECT c.Depth, r.Id, r.Name, r.ResourceTypeId, rt.Name, r.IsActive,
	g.Id, g.PrincipalId, g.RoleId, g.EffectiveFrom, g.EffectiveTo,
	ro.Key, ro.Name, ro.IsVirtual,
	(SELECT group_concat(p.Key)
	 FROM %s rp JOIN %s p ON p.Id = rp.PermissionId
	 WHERE rp.RoleId = g.RoleId)
FROM chain c
JOIN %s r ON r.Id = c.Id
JOIN %s rt ON rt.Id = r.ResourceTypeId
LEFT JOIN %s g ON g.ResourceId = c.Id
	AND g.PrincipalId IN (%s)
	AND (g.EffectiveFrom IS NULL OR g.EffectiveFrom <= ?)
	AND (g.EffectiveTo IS NULL OR g.EffectiveTo > ?)
LEFT JOIN %s ro ON ro.Id = g.RoleId
ORDER BY c.Depth, g.CreatedAt, g.Id`,
		r.t.Resources, r.t.Resources,
		r.t.RolePermissions, r.t.Permissions,
		r.t.Resources, r.t.ResourceTypes, r.t.Grants, inClause, r.t.Roles)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapDBError(err)
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.TraceChainRow
	for rows.Next() {
		var row domain.TraceChainRow
		var active int64
		var grantID, grantPrincipal, grantRole sql.NullString
		var from, to sql.NullString
		var roleKey, roleName sql.NullString
		var roleVirtual sql.NullInt64
		var permKeys sql.NullString
		if err := rows.Scan(&row.Depth, &row.ResourceID, &row.ResourceName, &row.ResourceTypeID,
			&row.TypeName, &active,
			&grantID, &grantPrincipal, &grantRole, &from, &to,
			&roleKey, &roleName, &roleVirtual, &permKeys); err != nil {
			return nil, MapDBError(err)
		}
		row.IsActive = active != 0
		if grantID.Valid {
			pg := domain.PathGrant{
				GrantID:       grantID.String,
				ResourceID:    row.ResourceID,
				Depth:         row.Depth,
				PrincipalID:   grantPrincipal.String,
				RoleID:        grantRole.String,
				RoleKey:       roleKey.String,
				RoleName:      roleName.String,
				RoleIsVirtual: roleVirtual.Valid && roleVirtual.Int64 != 0,
			}
			if pg.EffectiveFrom, err = nullableTimeFromDB(from); err != nil {
				return nil, err
			}
			if pg.EffectiveTo, err = nullableTimeFromDB(to); err != nil {
				return nil, err
			}
			if permKeys.Valid && permKeys.String != "" {
				pg.PermissionKeys = strings.Split(permKeys.String, ",")
				sort.Strings(pg.PermissionKeys)
			}
			row.Grant = &pg
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
