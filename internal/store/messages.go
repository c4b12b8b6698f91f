package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/frayhub/fray/internal/types"
)

const messageColumns = `guid, channel_guid, sender_guid, content, mentions, parent_guid, is_pinned, pinned_at, pinned_by, edited_at, created_at`

// CreateMessage inserts a new message.
func CreateMessage(db *sql.DB, msg types.Message) (types.Message, error) {
	guid := msg.GUID
	if guid == "" {
		var err error
		guid, err = generateUniqueGUID(db, "fray_messages", "guid", "msg")
		if err != nil {
			return types.Message{}, err
		}
	}
	msg.GUID = guid

	if msg.Mentions == nil {
		msg.Mentions = []string{}
	}
	mentionsJSON, err := json.Marshal(msg.Mentions)
	if err != nil {
		return types.Message{}, err
	}

	_, err = db.Exec(`
		INSERT INTO fray_messages (`+messageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, 0, NULL, NULL, NULL, ?)
	`, guid, msg.ChannelGUID, msg.SenderGUID, msg.Content, string(mentionsJSON), optionalStringArg(msg.ParentGUID), msg.CreatedAt)
	if err != nil {
		return types.Message{}, err
	}
	return msg, nil
}

// GetMessage returns a message by guid, or nil if not found.
func GetMessage(db *sql.DB, guid string) (*types.Message, error) {
	row := db.QueryRow(`SELECT `+messageColumns+` FROM fray_messages WHERE guid = ?`, guid)
	return scanOptionalMessage(row)
}

// GetMessagesInChannel returns a channel's messages, newest first, honoring
// an optional `before` cursor message id.
func GetMessagesInChannel(db *sql.DB, channelGUID string, limit int, beforeGUID string) ([]types.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM fray_messages WHERE channel_guid = ?`
	args := []any{channelGUID}

	if beforeGUID != "" {
		cursor, err := GetMessage(db, beforeGUID)
		if err != nil {
			return nil, err
		}
		if cursor == nil {
			return nil, fmt.Errorf("message not found: %s", beforeGUID)
		}
		query += ` AND (created_at < ? OR (created_at = ? AND guid < ?))`
		args = append(args, cursor.CreatedAt, cursor.CreatedAt, cursor.GUID)
	}

	query += ` ORDER BY created_at DESC, guid DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// GetMessagesMentioning returns, oldest first, every message whose persisted
// mentions list contains agentName.
func GetMessagesMentioning(db *sql.DB, channelGUIDs []string, agentName string) ([]types.Message, error) {
	query := `
		SELECT DISTINCT ` + messageColumns + ` FROM fray_messages, json_each(mentions)
		WHERE json_each.value = ?
	`
	args := []any{agentName}
	if clause, cArgs := inClause("channel_guid", channelGUIDs); clause != "" {
		query += " AND " + clause
		args = append(args, cArgs...)
	}
	query += ` ORDER BY created_at ASC, guid ASC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// SearchMessages performs a substring match over content with optional
// channel/sender/time-range filters, descending by created_at, capped at 50.
type SearchFilter struct {
	ChannelGUID string
	SenderGUID  string
	After       *int64
	Before      *int64
	Limit       int
}

func SearchMessages(db *sql.DB, query string, filter SearchFilter) ([]types.Message, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 50 {
		limit = 50
	}

	sqlQuery := `SELECT ` + messageColumns + ` FROM fray_messages WHERE content LIKE ?`
	args := []any{"%" + query + "%"}

	if filter.ChannelGUID != "" {
		sqlQuery += " AND channel_guid = ?"
		args = append(args, filter.ChannelGUID)
	}
	if filter.SenderGUID != "" {
		sqlQuery += " AND sender_guid = ?"
		args = append(args, filter.SenderGUID)
	}
	if filter.After != nil {
		sqlQuery += " AND created_at >= ?"
		args = append(args, *filter.After)
	}
	if filter.Before != nil {
		sqlQuery += " AND created_at <= ?"
		args = append(args, *filter.Before)
	}
	sqlQuery += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(sqlQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// EditMessage updates a message's content and edited_at; only the sender may
// edit.
func EditMessage(db *sql.DB, guid, senderGUID, newContent string, editedAt int64) error {
	msg, err := GetMessage(db, guid)
	if err != nil {
		return err
	}
	if msg == nil {
		return fmt.Errorf("message not found: %s", guid)
	}
	if msg.SenderGUID != senderGUID {
		return fmt.Errorf("only the sender may edit message %s", guid)
	}
	_, err = db.Exec(`UPDATE fray_messages SET content = ?, edited_at = ? WHERE guid = ?`, newContent, editedAt, guid)
	return err
}

// DeleteMessage removes a message and cascades to its reactions; only the
// sender may delete.
func DeleteMessage(db *sql.DB, guid, senderGUID string) error {
	return withTxDB(db, func(tx *sql.Tx) error {
		row := tx.QueryRow(`SELECT sender_guid FROM fray_messages WHERE guid = ?`, guid)
		var owner string
		if err := row.Scan(&owner); err != nil {
			if err == sql.ErrNoRows {
				return fmt.Errorf("message not found: %s", guid)
			}
			return err
		}
		if owner != senderGUID {
			return fmt.Errorf("only the sender may delete message %s", guid)
		}
		if _, err := tx.Exec(`DELETE FROM fray_message_reactions WHERE message_guid = ?`, guid); err != nil {
			return err
		}
		_, err := tx.Exec(`DELETE FROM fray_messages WHERE guid = ?`, guid)
		return err
	})
}

// TogglePin flips a message's is_pinned flag and records pinnedBy/pinnedAt.
func TogglePin(db *sql.DB, guid, pinnedBy string, at int64) (*types.Message, error) {
	msg, err := GetMessage(db, guid)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, fmt.Errorf("message not found: %s", guid)
	}
	if msg.IsPinned {
		if _, err := db.Exec(`UPDATE fray_messages SET is_pinned = 0, pinned_at = NULL, pinned_by = NULL WHERE guid = ?`, guid); err != nil {
			return nil, err
		}
		msg.IsPinned = false
		msg.PinnedAt = nil
		msg.PinnedBy = nil
		return msg, nil
	}
	if _, err := db.Exec(`UPDATE fray_messages SET is_pinned = 1, pinned_at = ?, pinned_by = ? WHERE guid = ?`, at, pinnedBy, guid); err != nil {
		return nil, err
	}
	msg.IsPinned = true
	msg.PinnedAt = &at
	msg.PinnedBy = &pinnedBy
	return msg, nil
}

// ListPinnedMessages returns pinned messages in a channel, newest first.
func ListPinnedMessages(db *sql.DB, channelGUID string) ([]types.Message, error) {
	rows, err := db.Query(`
		SELECT `+messageColumns+` FROM fray_messages
		WHERE channel_guid = ? AND is_pinned = 1
		ORDER BY pinned_at DESC
	`, channelGUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func withTxDB(db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func inClause(column string, values []string) (string, []any) {
	if len(values) == 0 {
		return "", nil
	}
	placeholders := make([]string, len(values))
	args := make([]any, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		args[i] = v
	}
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ",")), args
}

func scanMessages(rows *sql.Rows) ([]types.Message, error) {
	var messages []types.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func scanOptionalMessage(row rowScanner) (*types.Message, error) {
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func scanMessage(row rowScanner) (types.Message, error) {
	var m types.Message
	var mentionsJSON string
	var parentGUID, pinnedBy sql.NullString
	var pinnedAt, editedAt sql.NullInt64
	var isPinned int
	if err := row.Scan(&m.GUID, &m.ChannelGUID, &m.SenderGUID, &m.Content, &mentionsJSON, &parentGUID,
		&isPinned, &pinnedAt, &pinnedBy, &editedAt, &m.CreatedAt); err != nil {
		return types.Message{}, err
	}
	mentions := []string{}
	if mentionsJSON != "" {
		if err := json.Unmarshal([]byte(mentionsJSON), &mentions); err != nil {
			return types.Message{}, err
		}
	}
	m.Mentions = mentions
	m.ParentGUID = nullStringPtr(parentGUID)
	m.IsPinned = isPinned != 0
	m.PinnedAt = nullIntPtr(pinnedAt)
	m.PinnedBy = nullStringPtr(pinnedBy)
	m.EditedAt = nullIntPtr(editedAt)
	return m, nil
}
