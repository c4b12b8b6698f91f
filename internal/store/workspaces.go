package db

import (
	"database/sql"

	"github.com/frayhub/fray/internal/types"
)

// CreateWorkspace inserts a new workspace, generating a guid if none is set.
func CreateWorkspace(db *sql.DB, workspace types.Workspace) (types.Workspace, error) {
	guid := workspace.GUID
	if guid == "" {
		var err error
		guid, err = generateUniqueGUID(db, "fray_workspaces", "guid", "wsp")
		if err != nil {
			return types.Workspace{}, err
		}
	}
	workspace.GUID = guid

	_, err := db.Exec(`
		INSERT INTO fray_workspaces (guid, name, created_at) VALUES (?, ?, ?)
	`, guid, workspace.Name, workspace.CreatedAt)
	if err != nil {
		return types.Workspace{}, err
	}
	return workspace, nil
}

// GetWorkspace returns a workspace by guid, or nil if not found.
func GetWorkspace(db *sql.DB, guid string) (*types.Workspace, error) {
	row := db.QueryRow(`SELECT guid, name, created_at FROM fray_workspaces WHERE guid = ?`, guid)
	var w types.Workspace
	if err := row.Scan(&w.GUID, &w.Name, &w.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &w, nil
}

// ListWorkspaces returns every known workspace, ordered by creation time.
func ListWorkspaces(db *sql.DB) ([]types.Workspace, error) {
	rows, err := db.Query(`SELECT guid, name, created_at FROM fray_workspaces ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workspaces []types.Workspace
	for rows.Next() {
		var w types.Workspace
		if err := rows.Scan(&w.GUID, &w.Name, &w.CreatedAt); err != nil {
			return nil, err
		}
		workspaces = append(workspaces, w)
	}
	return workspaces, rows.Err()
}

// AddWorkspaceMember upserts a user's membership and role in a workspace.
func AddWorkspaceMember(db *sql.DB, member types.WorkspaceMember) error {
	_, err := db.Exec(`
		INSERT INTO fray_workspace_members (workspace_guid, user_guid, role, joined_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (workspace_guid, user_guid) DO UPDATE SET role = excluded.role
	`, member.WorkspaceGUID, member.UserGUID, string(member.Role), member.JoinedAt)
	return err
}

// GetWorkspaceMember returns a member row, or nil if userGUID does not
// belong to workspaceGUID.
func GetWorkspaceMember(db *sql.DB, workspaceGUID, userGUID string) (*types.WorkspaceMember, error) {
	row := db.QueryRow(`
		SELECT workspace_guid, user_guid, role, joined_at FROM fray_workspace_members
		WHERE workspace_guid = ? AND user_guid = ?
	`, workspaceGUID, userGUID)
	var m types.WorkspaceMember
	var role string
	if err := row.Scan(&m.WorkspaceGUID, &m.UserGUID, &role, &m.JoinedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	m.Role = types.WorkspaceRole(role)
	return &m, nil
}

// ListWorkspaceMembers returns every member of a workspace.
func ListWorkspaceMembers(db *sql.DB, workspaceGUID string) ([]types.WorkspaceMember, error) {
	rows, err := db.Query(`
		SELECT workspace_guid, user_guid, role, joined_at FROM fray_workspace_members
		WHERE workspace_guid = ?
	`, workspaceGUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []types.WorkspaceMember
	for rows.Next() {
		var m types.WorkspaceMember
		var role string
		if err := rows.Scan(&m.WorkspaceGUID, &m.UserGUID, &role, &m.JoinedAt); err != nil {
			return nil, err
		}
		m.Role = types.WorkspaceRole(role)
		members = append(members, m)
	}
	return members, rows.Err()
}

// CreateAPIKey inserts a new workspace API key record; only the hash and a
// short prefix are ever persisted.
func CreateAPIKey(db *sql.DB, key types.WorkspaceAPIKey) (types.WorkspaceAPIKey, error) {
	guid := key.GUID
	if guid == "" {
		var err error
		guid, err = generateUniqueGUID(db, "fray_workspace_api_keys", "guid", "key")
		if err != nil {
			return types.WorkspaceAPIKey{}, err
		}
	}
	key.GUID = guid

	_, err := db.Exec(`
		INSERT INTO fray_workspace_api_keys (guid, workspace_guid, token_hash, token_prefix, created_by, created_at, revoked_at)
		VALUES (?, ?, ?, ?, ?, ?, NULL)
	`, guid, key.WorkspaceGUID, key.TokenHash, key.TokenPrefix, optionalStringArg(key.CreatedBy), key.CreatedAt)
	if err != nil {
		return types.WorkspaceAPIKey{}, err
	}
	return key, nil
}

// GetAPIKeyByHash returns the (unrevoked) key matching tokenHash, or nil.
func GetAPIKeyByHash(db *sql.DB, tokenHash string) (*types.WorkspaceAPIKey, error) {
	row := db.QueryRow(`
		SELECT guid, workspace_guid, token_hash, token_prefix, created_by, created_at, revoked_at
		FROM fray_workspace_api_keys WHERE token_hash = ? AND revoked_at IS NULL
	`, tokenHash)
	var k types.WorkspaceAPIKey
	var createdBy sql.NullString
	var revokedAt sql.NullInt64
	if err := row.Scan(&k.GUID, &k.WorkspaceGUID, &k.TokenHash, &k.TokenPrefix, &createdBy, &k.CreatedAt, &revokedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	k.CreatedBy = nullStringPtr(createdBy)
	k.RevokedAt = nullIntPtr(revokedAt)
	return &k, nil
}

// RevokeAPIKey marks a key revoked.
func RevokeAPIKey(db *sql.DB, guid string, at int64) error {
	_, err := db.Exec(`UPDATE fray_workspace_api_keys SET revoked_at = ? WHERE guid = ?`, at, guid)
	return err
}

// ListAPIKeys returns every key in a workspace, revoked ones included; the
// hash column stays out of the result so callers can't leak it.
func ListAPIKeys(db *sql.DB, workspaceGUID string) ([]types.WorkspaceAPIKey, error) {
	rows, err := db.Query(`
		SELECT guid, workspace_guid, token_prefix, created_by, created_at, revoked_at
		FROM fray_workspace_api_keys WHERE workspace_guid = ? ORDER BY created_at ASC
	`, workspaceGUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []types.WorkspaceAPIKey
	for rows.Next() {
		var k types.WorkspaceAPIKey
		var createdBy sql.NullString
		var revokedAt sql.NullInt64
		if err := rows.Scan(&k.GUID, &k.WorkspaceGUID, &k.TokenPrefix, &createdBy, &k.CreatedAt, &revokedAt); err != nil {
			return nil, err
		}
		k.CreatedBy = nullStringPtr(createdBy)
		k.RevokedAt = nullIntPtr(revokedAt)
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// CreateInvite inserts a new workspace invite token.
func CreateInvite(db *sql.DB, invite types.WorkspaceInvite) error {
	_, err := db.Exec(`
		INSERT INTO fray_workspace_invites (token, workspace_guid, role, max_uses, use_count, expires_at, revoked_at, created_at)
		VALUES (?, ?, ?, ?, 0, ?, NULL, ?)
	`, invite.Token, invite.WorkspaceGUID, string(invite.Role), optionalIntArgFromInt(invite.MaxUses), optionalIntArg(invite.ExpiresAt), invite.CreatedAt)
	return err
}

// GetInvite returns an invite by token, or nil if not found.
func GetInvite(db *sql.DB, token string) (*types.WorkspaceInvite, error) {
	row := db.QueryRow(`
		SELECT token, workspace_guid, role, max_uses, use_count, expires_at, revoked_at, created_at
		FROM fray_workspace_invites WHERE token = ?
	`, token)
	var inv types.WorkspaceInvite
	var role string
	var maxUses sql.NullInt64
	var expiresAt, revokedAt sql.NullInt64
	if err := row.Scan(&inv.Token, &inv.WorkspaceGUID, &role, &maxUses, &inv.UseCount, &expiresAt, &revokedAt, &inv.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	inv.Role = types.WorkspaceRole(role)
	if maxUses.Valid {
		v := int(maxUses.Int64)
		inv.MaxUses = &v
	}
	inv.ExpiresAt = nullIntPtr(expiresAt)
	inv.RevokedAt = nullIntPtr(revokedAt)
	return &inv, nil
}

// RedeemInvite increments an invite's use count.
func RedeemInvite(db *sql.DB, token string) error {
	_, err := db.Exec(`UPDATE fray_workspace_invites SET use_count = use_count + 1 WHERE token = ?`, token)
	return err
}

// RevokeInvite marks an invite revoked; further redemptions are rejected at
// the handler layer.
func RevokeInvite(db *sql.DB, token string, at int64) error {
	_, err := db.Exec(`UPDATE fray_workspace_invites SET revoked_at = ? WHERE token = ?`, at, token)
	return err
}

// ListInvites returns every invite issued for a workspace.
func ListInvites(db *sql.DB, workspaceGUID string) ([]types.WorkspaceInvite, error) {
	rows, err := db.Query(`
		SELECT token, workspace_guid, role, max_uses, use_count, expires_at, revoked_at, created_at
		FROM fray_workspace_invites WHERE workspace_guid = ? ORDER BY created_at ASC
	`, workspaceGUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invites []types.WorkspaceInvite
	for rows.Next() {
		var inv types.WorkspaceInvite
		var role string
		var maxUses, expiresAt, revokedAt sql.NullInt64
		if err := rows.Scan(&inv.Token, &inv.WorkspaceGUID, &role, &maxUses, &inv.UseCount, &expiresAt, &revokedAt, &inv.CreatedAt); err != nil {
			return nil, err
		}
		inv.Role = types.WorkspaceRole(role)
		if maxUses.Valid {
			v := int(maxUses.Int64)
			inv.MaxUses = &v
		}
		inv.ExpiresAt = nullIntPtr(expiresAt)
		inv.RevokedAt = nullIntPtr(revokedAt)
		invites = append(invites, inv)
	}
	return invites, rows.Err()
}

func optionalIntArgFromInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
