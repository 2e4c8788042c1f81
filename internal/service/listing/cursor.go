// Package listing executes permission-scoped listings: a declarative
// specification (permission, filter, ordering, page size, cursor) is
// compiled into one SQL statement that joins the entity's base relation
// against the caller's accessible-resource set and pages with a keyset
// cursor.
package listing

import (
	"encoding/base64"
	"encoding/json"

	"sqlzibar/internal/domain"
)

// cursor is the decoded page position: the sort value and id of the last
// row of the previous page. The wire form is opaque to callers.
type cursor struct {
	Sort string `json:"s"`
	ID   string `json:"id"`
}

func encodeCursor(sortValue, id string) string {
	b, err := json.Marshal(cursor{Sort: sortValue, ID: id})
	if err != nil {
		// Two strings cannot fail to marshal.
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// decodeCursor rejects anything that did not come from encodeCursor.
// Malformed cursors are a caller error, never silently ignored.
func decodeCursor(raw string) (cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return cursor{}, domain.ErrInvalidCursor("cursor is not valid base64url")
	}
	var c cursor
	if err := json.Unmarshal(b, &c); err != nil {
		return cursor{}, domain.ErrInvalidCursor("cursor payload is malformed")
	}
	if c.ID == "" {
		return cursor{}, domain.ErrInvalidCursor("cursor payload is missing the row id")
	}
	return c, nil
}
