package db

import (
	"database/sql"

	"github.com/frayhub/fray/internal/types"
)

const channelColumns = `guid, workspace_guid, name, type, topic, project_path, created_by, created_at, is_archived, archived_at`

// CreateChannel inserts a new channel, generating a guid if none is set.
func CreateChannel(db *sql.DB, channel types.Channel) (types.Channel, error) {
	guid := channel.GUID
	if guid == "" {
		var err error
		guid, err = generateUniqueGUID(db, "fray_channels", "guid", "chn")
		if err != nil {
			return types.Channel{}, err
		}
	}
	channel.GUID = guid

	_, err := db.Exec(`
		INSERT INTO fray_channels (`+channelColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, NULL)
	`, guid, channel.WorkspaceGUID, channel.Name, string(channel.Type), optionalStringArg(channel.Topic),
		optionalStringArg(channel.ProjectPath), channel.CreatedBy, channel.CreatedAt)
	if err != nil {
		return types.Channel{}, err
	}
	return channel, nil
}

// GetChannelByName returns a channel by its workspace-unique name.
func GetChannelByName(db *sql.DB, workspaceGUID, name string) (*types.Channel, error) {
	row := db.QueryRow(`SELECT `+channelColumns+` FROM fray_channels WHERE workspace_guid = ? AND name = ?`, workspaceGUID, name)
	return scanOptionalChannel(row)
}

// GetChannel returns a channel by guid.
func GetChannel(db *sql.DB, guid string) (*types.Channel, error) {
	row := db.QueryRow(`SELECT `+channelColumns+` FROM fray_channels WHERE guid = ?`, guid)
	return scanOptionalChannel(row)
}

// ListChannels returns non-archived channels in a workspace ordered by name.
func ListChannels(db *sql.DB, workspaceGUID string) ([]types.Channel, error) {
	rows, err := db.Query(`
		SELECT `+channelColumns+` FROM fray_channels
		WHERE workspace_guid = ? AND is_archived = 0
		ORDER BY name
	`, workspaceGUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []types.Channel
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, c)
	}
	return channels, rows.Err()
}

// SetChannelTopic sets the channel topic as given (no trimming); an empty
// string clears it.
func SetChannelTopic(db *sql.DB, guid, topic string) error {
	var value any
	if topic != "" {
		value = topic
	}
	_, err := db.Exec(`UPDATE fray_channels SET topic = ? WHERE guid = ?`, value, guid)
	return err
}

// AddChannelMember adds (channelGUID, userGUID) if absent. Returns true if a
// new row was inserted.
func AddChannelMember(db *sql.DB, channelGUID, userGUID string, joinedAt int64) (bool, error) {
	result, err := db.Exec(`
		INSERT OR IGNORE INTO fray_channel_members (channel_guid, user_guid, joined_at)
		VALUES (?, ?, ?)
	`, channelGUID, userGUID, joinedAt)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// IsChannelMember reports whether userGUID belongs to channelGUID.
func IsChannelMember(db *sql.DB, channelGUID, userGUID string) (bool, error) {
	row := db.QueryRow(`SELECT 1 FROM fray_channel_members WHERE channel_guid = ? AND user_guid = ?`, channelGUID, userGUID)
	var exists int
	if err := row.Scan(&exists); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListMemberChannelGUIDs returns every channel guid a user belongs to.
func ListMemberChannelGUIDs(db *sql.DB, userGUID string) ([]string, error) {
	rows, err := db.Query(`SELECT channel_guid FROM fray_channel_members WHERE user_guid = ?`, userGUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var guids []string
	for rows.Next() {
		var guid string
		if err := rows.Scan(&guid); err != nil {
			return nil, err
		}
		guids = append(guids, guid)
	}
	return guids, rows.Err()
}

func scanOptionalChannel(row rowScanner) (*types.Channel, error) {
	c, err := scanChannel(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanChannel(row rowScanner) (types.Channel, error) {
	var c types.Channel
	var typ string
	var topic, projectPath sql.NullString
	var isArchived int
	var archivedAt sql.NullInt64
	if err := row.Scan(&c.GUID, &c.WorkspaceGUID, &c.Name, &typ, &topic, &projectPath, &c.CreatedBy, &c.CreatedAt, &isArchived, &archivedAt); err != nil {
		return types.Channel{}, err
	}
	c.Type = types.ChannelType(typ)
	c.Topic = nullStringPtr(topic)
	c.ProjectPath = nullStringPtr(projectPath)
	c.IsArchived = isArchived != 0
	c.ArchivedAt = nullIntPtr(archivedAt)
	return c, nil
}
