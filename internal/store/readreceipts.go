package db

import (
	"database/sql"

	"github.com/frayhub/fray/internal/types"
)

// MarkRead upserts the caller's last-read watermark for a channel.
func MarkRead(db *sql.DB, userGUID, channelGUID string, at int64) error {
	_, err := db.Exec(`
		INSERT INTO fray_read_receipts (user_guid, channel_guid, last_read_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_guid, channel_guid) DO UPDATE SET last_read_at = excluded.last_read_at
	`, userGUID, channelGUID, at)
	return err
}

// GetReadReceipt returns a user's watermark for a channel, or nil if the
// channel has never been marked read.
func GetReadReceipt(db *sql.DB, userGUID, channelGUID string) (*types.ReadReceipt, error) {
	row := db.QueryRow(`
		SELECT user_guid, channel_guid, last_read_at FROM fray_read_receipts
		WHERE user_guid = ? AND channel_guid = ?
	`, userGUID, channelGUID)
	var r types.ReadReceipt
	if err := row.Scan(&r.UserGUID, &r.ChannelGUID, &r.LastReadAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

// CountUnread returns the number of messages in channelGUID created after the
// user's watermark (or all messages, if the channel was never marked read),
// not counting messages the user sent.
func CountUnread(db *sql.DB, userGUID, channelGUID string) (int, error) {
	receipt, err := GetReadReceipt(db, userGUID, channelGUID)
	if err != nil {
		return 0, err
	}

	var count int
	if receipt == nil {
		row := db.QueryRow(`
			SELECT COUNT(*) FROM fray_messages WHERE channel_guid = ? AND sender_guid != ?
		`, channelGUID, userGUID)
		return count, row.Scan(&count)
	}
	row := db.QueryRow(`
		SELECT COUNT(*) FROM fray_messages
		WHERE channel_guid = ? AND created_at > ? AND sender_guid != ?
	`, channelGUID, receipt.LastReadAt, userGUID)
	return count, row.Scan(&count)
}
