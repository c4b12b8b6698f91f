package db

import (
	"database/sql"
	"fmt"
)

// DBTX represents shared methods across sql.DB and sql.Tx.
type DBTX interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// InitSchema creates missing tables and applies additive migrations.
func InitSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if err := initSchemaWith(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func initSchemaWith(db DBTX) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return err
	}
	if err := migrateSchema(db); err != nil {
		return err
	}
	// Re-exec is idempotent: every statement in the schema body is
	// CREATE ... IF NOT EXISTS, and the migrations above drop nothing.
	if _, err := db.Exec(schemaSQL); err != nil {
		return err
	}
	if _, err := db.Exec(defaultConfigSQL); err != nil {
		return err
	}
	return nil
}

// SchemaExists reports whether the fray schema is present.
func SchemaExists(db *sql.DB) (bool, error) {
	row := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='fray_users'`)
	var name string
	err := row.Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return name != "", nil
}

type tableColumn struct {
	Name    string
	ColType string
	NotNull int
	PK      int
}

func getTableInfo(db DBTX, table string) ([]tableColumn, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []tableColumn
	for rows.Next() {
		var col tableColumn
		var cid int
		var defaultValue sql.NullString
		if err := rows.Scan(&cid, &col.Name, &col.ColType, &col.NotNull, &defaultValue, &col.PK); err != nil {
			return nil, err
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return columns, nil
}

func hasColumn(columns []tableColumn, name string) bool {
	for _, col := range columns {
		if col.Name == name {
			return true
		}
	}
	return false
}

// migrateSchema applies additive, presence-guarded migrations. Destructive
// migrations (dropping a column, narrowing a type) are never performed here;
// a column that needs to disappear is left in place and ignored.
func migrateSchema(db DBTX) error {
	featureColumns, err := getTableInfo(db, "fray_feature_requests")
	if err != nil {
		return err
	}
	if len(featureColumns) > 0 && !hasColumn(featureColumns, "status_reason") {
		if _, err := db.Exec("ALTER TABLE fray_feature_requests ADD COLUMN status_reason TEXT"); err != nil {
			return err
		}
	}

	agentColumns, err := getTableInfo(db, "fray_agents")
	if err != nil {
		return err
	}
	if len(agentColumns) > 0 && !hasColumn(agentColumns, "workspace_guid") {
		if _, err := db.Exec("ALTER TABLE fray_agents ADD COLUMN workspace_guid TEXT NOT NULL DEFAULT ''"); err != nil {
			return err
		}
	}

	messageColumns, err := getTableInfo(db, "fray_messages")
	if err != nil {
		return err
	}
	if len(messageColumns) > 0 && !hasColumn(messageColumns, "parent_guid") {
		if _, err := db.Exec("ALTER TABLE fray_messages ADD COLUMN parent_guid TEXT"); err != nil {
			return err
		}
	}

	return nil
}
