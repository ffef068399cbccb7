package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Timestamps are stored as UTC RFC3339 text; rows written by the sqlite
// CURRENT_TIMESTAMP default use the legacy layout.
const (
	timeLayout       = time.RFC3339Nano
	sqliteTimeLayout = "2006-01-02 15:04:05"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullableID maps the zero id to NULL for optional foreign keys.
func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func ptrInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseTimeString(raw string) (time.Time, error) {
	for _, layout := range []string{timeLayout, sqliteTimeLayout} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

// parseNullTime treats NULL and unparseable values alike as unset.
func parseNullTime(raw sql.NullString) *time.Time {
	if !raw.Valid {
		return nil
	}
	t, err := parseTimeString(raw.String)
	if err != nil {
		return nil
	}
	return &t
}

// makePlaceholders returns "?,?,?" for n bind parameters.
func makePlaceholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
