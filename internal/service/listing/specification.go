package listing

import "sqlzibar/internal/domain"

// Default and ceiling for page sizes; requests outside the range are
// clamped rather than rejected.
const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Specification is a declarative listing request. The executor restricts
// rows to resources the principal can see under PermissionKey before any
// other predicate applies, so forgetting a filter can widen a page but
// never leak a resource.
type Specification struct {
	PrincipalID    string
	PermissionKey  string
	Filter         Predicate // optional extra restriction over the base relation
	Search         string    // case-insensitive substring across the binding's search columns
	SortKey        string    // one of the binding's registered keys; empty means the default
	SortDescending bool
	PageSize       int
	Cursor         string // opaque, from a previous page's NextCursor
}

// Predicate is a SQL restriction with positional arguments, e.g.
// {"City = ?", []any{"Oslo"}}.
type Predicate struct {
	Expr string
	Args []any
}

// Binding declares how one entity type participates in listings: its base
// relation, the column joined against the accessible-resource set, and the
// sortable and searchable columns.
//
// Sort columns must be TEXT with an order-preserving encoding (timestamps
// are stored fixed-width for this reason): cursor values travel as strings
// and the keyset comparison happens in SQL.
type Binding[T any] struct {
	Table            string
	IDColumn         string
	ResourceIDColumn string
	Columns          []string
	SortKeys         map[string]string // registered sort key -> column
	DefaultSortKey   string
	SearchColumns    []string

	// Scan reads one row in Columns order.
	Scan func(scan func(dest ...any) error) (T, error)
	// SortValue returns the item's value for a sort key, in the same
	// encoding the column stores. It becomes the cursor's sort component.
	SortValue func(item T, sortKey string) string
	// ID returns the item's primary id, the cursor's tiebreak component.
	ID func(item T) string
}

// sortColumn resolves the specification's sort key against the binding.
func (b *Binding[T]) sortColumn(key string) (string, string, error) {
	if key == "" {
		key = b.DefaultSortKey
	}
	col, ok := b.SortKeys[key]
	if !ok {
		return "", "", domain.ErrValidation("unknown sort key %q", key)
	}
	return key, col, nil
}

// Page is one page of results. NextCursor is nil on the last page.
type Page[T any] struct {
	Items      []T
	NextCursor *string
}
