package db

import (
	"database/sql"

	"github.com/frayhub/fray/internal/types"
)

// ToggleReaction adds (messageGUID, userGUID, emoji) if absent, removes it if
// present. Returns true if the reaction is now set.
func ToggleReaction(db *sql.DB, messageGUID, userGUID, emoji string, at int64) (bool, error) {
	row := db.QueryRow(`
		SELECT 1 FROM fray_message_reactions WHERE message_guid = ? AND user_guid = ? AND emoji = ?
	`, messageGUID, userGUID, emoji)
	var exists int
	switch err := row.Scan(&exists); err {
	case sql.ErrNoRows:
		_, err := db.Exec(`
			INSERT INTO fray_message_reactions (message_guid, user_guid, emoji, created_at)
			VALUES (?, ?, ?, ?)
		`, messageGUID, userGUID, emoji, at)
		return true, err
	case nil:
		_, err := db.Exec(`
			DELETE FROM fray_message_reactions WHERE message_guid = ? AND user_guid = ? AND emoji = ?
		`, messageGUID, userGUID, emoji)
		return false, err
	default:
		return false, err
	}
}

// GetReactions returns every reaction on a message.
func GetReactions(db *sql.DB, messageGUID string) ([]types.MessageReaction, error) {
	rows, err := db.Query(`
		SELECT message_guid, user_guid, emoji, created_at
		FROM fray_message_reactions WHERE message_guid = ?
		ORDER BY created_at ASC
	`, messageGUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reactions []types.MessageReaction
	for rows.Next() {
		var r types.MessageReaction
		if err := rows.Scan(&r.MessageGUID, &r.UserGUID, &r.Emoji, &r.CreatedAt); err != nil {
			return nil, err
		}
		reactions = append(reactions, r)
	}
	return reactions, rows.Err()
}

// GetReactionsForMessages returns reactions for a batch of messages, keyed by
// message guid, for list views that need to decorate many messages at once.
func GetReactionsForMessages(db *sql.DB, messageGUIDs []string) (map[string][]types.MessageReaction, error) {
	result := make(map[string][]types.MessageReaction, len(messageGUIDs))
	if len(messageGUIDs) == 0 {
		return result, nil
	}

	clause, args := inClause("message_guid", messageGUIDs)
	rows, err := db.Query(`
		SELECT message_guid, user_guid, emoji, created_at
		FROM fray_message_reactions WHERE `+clause+`
		ORDER BY created_at ASC
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var r types.MessageReaction
		if err := rows.Scan(&r.MessageGUID, &r.UserGUID, &r.Emoji, &r.CreatedAt); err != nil {
			return nil, err
		}
		result[r.MessageGUID] = append(result[r.MessageGUID], r)
	}
	return result, rows.Err()
}
