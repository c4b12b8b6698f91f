package db

import (
	"database/sql"
	"fmt"

	"github.com/frayhub/fray/internal/core"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func nullStringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullIntPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func optionalStringArg(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func optionalIntArg(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

// generateUniqueGUID mints a core.GenerateGUID(prefix) value, retrying on the
// rare collision against the given table's guid/token column.
func generateUniqueGUID(db DBTX, table, column, prefix string) (string, error) {
	for attempt := 0; attempt < 10; attempt++ {
		guid, err := core.GenerateGUID(prefix)
		if err != nil {
			return "", err
		}
		var exists int
		row := db.QueryRow(fmt.Sprintf("SELECT 1 FROM %s WHERE %s = ?", table, column), guid)
		switch err := row.Scan(&exists); err {
		case sql.ErrNoRows:
			return guid, nil
		case nil:
			continue
		default:
			return "", err
		}
	}
	return "", fmt.Errorf("could not generate a unique guid for %s after 10 attempts", table)
}
