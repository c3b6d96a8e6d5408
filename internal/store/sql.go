package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// assignments accumulates positional SET clauses for partial updates.
type assignments struct {
	cols []string
	args []any
}

func (a *assignments) set(column string, value any) {
	a.cols = append(a.cols, fmt.Sprintf("%s = %s", column, a.arg(value)))
}

func (a *assignments) arg(value any) string {
	a.args = append(a.args, value)
	return fmt.Sprintf("$%d", len(a.args))
}

func (a *assignments) String() string {
	return strings.Join(a.cols, ", ")
}

// validID reports whether id can match a UUID primary key.
// Malformed ids never match a row, so callers treat them as not found.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
