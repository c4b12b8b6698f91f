package db

import (
	"database/sql"

	"github.com/frayhub/fray/internal/types"
)

// CreateUser inserts a new user row, generating a guid if none is set.
func CreateUser(db *sql.DB, user types.User) (types.User, error) {
	guid := user.GUID
	if guid == "" {
		var err error
		guid, err = generateUniqueGUID(db, "fray_users", "guid", "usr")
		if err != nil {
			return types.User{}, err
		}
	}
	user.GUID = guid

	_, err := db.Exec(`
		INSERT INTO fray_users (guid, name, type, display_name, about, agent_instructions, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, guid, user.Name, string(user.Type), optionalStringArg(user.DisplayName), optionalStringArg(user.About), optionalStringArg(user.AgentInstructions), user.CreatedAt)
	if err != nil {
		return types.User{}, err
	}
	return user, nil
}

// GetUserByGUID returns a user by guid, or nil if not found.
func GetUserByGUID(db *sql.DB, guid string) (*types.User, error) {
	row := db.QueryRow(`
		SELECT guid, name, type, display_name, about, agent_instructions, created_at
		FROM fray_users WHERE guid = ?
	`, guid)
	return scanOptionalUser(row)
}

// GetUserByName returns a user by its unique name, or nil if not found.
func GetUserByName(db *sql.DB, name string) (*types.User, error) {
	row := db.QueryRow(`
		SELECT guid, name, type, display_name, about, agent_instructions, created_at
		FROM fray_users WHERE name = ?
	`, name)
	return scanOptionalUser(row)
}

// UpdateUserProfile updates the mutable profile fields of a user.
func UpdateUserProfile(db *sql.DB, guid string, displayName, about, agentInstructions *string) error {
	_, err := db.Exec(`
		UPDATE fray_users SET display_name = COALESCE(?, display_name),
			about = COALESCE(?, about),
			agent_instructions = COALESCE(?, agent_instructions)
		WHERE guid = ?
	`, optionalStringArg(displayName), optionalStringArg(about), optionalStringArg(agentInstructions), guid)
	return err
}

func scanOptionalUser(row rowScanner) (*types.User, error) {
	var u types.User
	var displayName, about, agentInstructions sql.NullString
	var typ string
	if err := row.Scan(&u.GUID, &u.Name, &typ, &displayName, &about, &agentInstructions, &u.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	u.Type = types.UserType(typ)
	u.DisplayName = nullStringPtr(displayName)
	u.About = nullStringPtr(about)
	u.AgentInstructions = nullStringPtr(agentInstructions)
	return &u, nil
}
