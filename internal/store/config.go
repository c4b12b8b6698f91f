package db

import "database/sql"

// GetConfig returns a config value, or "", false if the key is unset.
func GetConfig(db *sql.DB, key string) (string, bool, error) {
	row := db.QueryRow(`SELECT value FROM fray_config WHERE key = ?`, key)
	var value string
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

// SetConfig upserts a config key/value pair.
func SetConfig(db *sql.DB, key, value string) error {
	_, err := db.Exec(`
		INSERT INTO fray_config (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}
