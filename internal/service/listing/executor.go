package listing

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"sqlzibar/internal/db/repository"
	"sqlzibar/internal/service/authz"
)

// Executor runs specifications on the read pool. The accessible-resource
// restriction, the filter, the search, the ordering, and the page window
// all land in one statement, so a page is always a single snapshot.
type Executor struct {
	db    *sql.DB
	authz *authz.Service
}

// NewExecutor creates an Executor over the read pool.
func NewExecutor(db *sql.DB, authzService *authz.Service) *Executor {
	return &Executor{db: db, authz: authzService}
}

// Execute runs the specification against the binding's base relation and
// returns one page. It fetches PageSize+1 rows; the extra row only signals
// that another page exists and is discarded.
func Execute[T any](ctx context.Context, e *Executor, b Binding[T], spec Specification) (*Page[T], error) {
	sortKey, sortCol, err := b.sortColumn(spec.SortKey)
	if err != nil {
		return nil, err
	}

	pageSize := spec.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	access, err := e.authz.AccessibleResourcesQuery(ctx, spec.PrincipalID, spec.PermissionKey)
	if err != nil {
		return nil, err
	}

	where := []string{access.Apply(b.ResourceIDColumn)}
	args := append([]any{}, access.Args...)

	if spec.Filter.Expr != "" {
		where = append(where, "("+spec.Filter.Expr+")")
		args = append(args, spec.Filter.Args...)
	}

	if spec.Search != "" && len(b.SearchColumns) > 0 {
		pattern := "%" + escapeLike(strings.ToLower(spec.Search)) + "%"
		terms := make([]string, len(b.SearchColumns))
		for i, col := range b.SearchColumns {
			terms[i] = fmt.Sprintf(`lower(%s) LIKE ? ESCAPE '\'`, col)
			args = append(args, pattern)
		}
		where = append(where, "("+strings.Join(terms, " OR ")+")")
	}

	cmp, dir := ">", "ASC"
	if spec.SortDescending {
		cmp, dir = "<", "DESC"
	}
	if spec.Cursor != "" {
		c, err := decodeCursor(spec.Cursor)
		if err != nil {
			return nil, err
		}
		where = append(where, fmt.Sprintf("(%s %s ? OR (%s = ? AND %s %s ?))",
			sortCol, cmp, sortCol, b.IDColumn, cmp))
		args = append(args, c.Sort, c.Sort, c.ID)
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s %s, %s %s LIMIT ?",
		strings.Join(b.Columns, ", "), b.Table,
		strings.Join(where, " AND "),
		sortCol, dir, b.IDColumn, dir,
	)
	args = append(args, pageSize+1)

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, repository.MapDBError(err)
	}
	defer rows.Close() //nolint:errcheck

	items := make([]T, 0, pageSize)
	for rows.Next() {
		item, err := b.Scan(rows.Scan)
		if err != nil {
			return nil, repository.MapDBError(err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, repository.MapDBError(err)
	}

	page := &Page[T]{Items: items}
	if len(items) > pageSize {
		page.Items = items[:pageSize]
		last := page.Items[pageSize-1]
		next := encodeCursor(b.SortValue(last, sortKey), b.ID(last))
		page.NextCursor = &next
	}
	return page, nil
}

// escapeLike escapes LIKE wildcards in a user-supplied search term.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
