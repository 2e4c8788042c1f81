// Package repository implements domain repository interfaces using SQLite.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"sqlzibar/internal/domain"
)

// timeLayout is a fixed-width RFC 3339 form with nanosecond precision. The
// uniform width keeps lexicographic TEXT comparison identical to time order,
// which the grant-window predicates in SQL rely on.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTime renders a timestamp in the storage encoding. Host repositories
// writing their own tables should use it for any column that sorts or
// compares against engine timestamps.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// ParseTime reads a timestamp in the storage encoding.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored timestamp %q: %w", s, err)
	}
	return t, nil
}

// nullableTimeArg converts an optional time into a driver argument.
func nullableTimeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return FormatTime(*t)
}

func nullableTimeFromDB(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := ParseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullableStrArg(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableStrFromDB(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// clampLimit applies the default and maximum sizes for admin listings.
func clampLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

// placeholders returns "?, ?, ..., ?" with n slots.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

func stringArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// transient SQLite failures that callers may retry after backoff.
var storeUnavailableFragments = []string{
	"database is locked",
	"database table is locked",
	"disk I/O error",
	"unable to open database",
	"database or disk is full",
}

// MapDBError converts low-level database failures into the engine's error
// kinds. Cancellation and transient store outages get their own kinds so
// callers never mistake them for a denial.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrCancelled(err)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.NotFoundError{Message: "record not found"}
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") {
		return &domain.ConflictError{Message: "record already exists"}
	}
	for _, fragment := range storeUnavailableFragments {
		if strings.Contains(msg, fragment) {
			return domain.ErrStoreUnavailable(err)
		}
	}
	return err
}
