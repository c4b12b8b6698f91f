package db

import (
	"database/sql"
	"fmt"

	"github.com/frayhub/fray/internal/types"
)

const agentColumns = `user_guid, agent_name, agent_type, project_path, project_name, status, description, personality, current_task, gender, server_url, provider_session_id, workspace_guid`

// CreateAgent inserts the agent row extending an already-created user.
func CreateAgent(db DBTX, agent types.Agent) error {
	_, err := db.Exec(`
		INSERT INTO fray_agents (`+agentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, agent.UserGUID, agent.AgentName, string(agent.AgentType), optionalStringArg(agent.ProjectPath),
		optionalStringArg(agent.ProjectName), string(agent.Status), optionalStringArg(agent.Description),
		optionalStringArg(agent.Personality), optionalStringArg(agent.CurrentTask), optionalStringArg(agent.Gender),
		optionalStringArg(agent.ServerURL), optionalStringArg(agent.ProviderSessionID), agent.WorkspaceGUID)
	return err
}

// GetAgentByName returns an agent by its globally unique agentName.
func GetAgentByName(db *sql.DB, agentName string) (*types.Agent, error) {
	row := db.QueryRow(`SELECT `+agentColumns+` FROM fray_agents WHERE agent_name = ?`, agentName)
	return scanOptionalAgent(row)
}

// GetAgentByUserGUID returns an agent by its owning user guid.
func GetAgentByUserGUID(db *sql.DB, userGUID string) (*types.Agent, error) {
	row := db.QueryRow(`SELECT `+agentColumns+` FROM fray_agents WHERE user_guid = ?`, userGUID)
	return scanOptionalAgent(row)
}

// ListAgents returns every agent in a workspace, ordered by agent_name.
func ListAgents(db *sql.DB, workspaceGUID string) ([]types.Agent, error) {
	rows, err := db.Query(`SELECT `+agentColumns+` FROM fray_agents WHERE workspace_guid = ? ORDER BY agent_name`, workspaceGUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAgents(rows)
}

// ListAgentsByProjectName returns invocable-or-not agents for one project slug.
func ListAgentsByProjectName(db *sql.DB, workspaceGUID, projectName string) ([]types.Agent, error) {
	rows, err := db.Query(`SELECT `+agentColumns+` FROM fray_agents WHERE workspace_guid = ? AND project_name = ? ORDER BY agent_name`, workspaceGUID, projectName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAgents(rows)
}

// AgentNameExists reports whether agentName is already registered; matches
// the core.GenerateAgentName collision-check signature.
func AgentNameExists(db *sql.DB, agentName string) (bool, error) {
	row := db.QueryRow(`SELECT 1 FROM fray_agents WHERE agent_name = ?`, agentName)
	var exists int
	if err := row.Scan(&exists); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// AgentReconnectFields are the mutable identity fields updated on reconnect.
type AgentReconnectFields struct {
	ServerURL         *string
	ProviderSessionID *string
	ProjectPath       *string
	ProjectName       *string
	AgentType         *types.AgentType
	Status            types.AgentStatus
}

// ReconnectAgent updates the identity fields of an existing agent record on
// re-registration.
func ReconnectAgent(db *sql.DB, userGUID string, fields AgentReconnectFields) error {
	var agentType any
	if fields.AgentType != nil {
		agentType = string(*fields.AgentType)
	}
	_, err := db.Exec(`
		UPDATE fray_agents SET
			agent_type = COALESCE(?, agent_type),
			server_url = ?,
			provider_session_id = ?,
			project_path = COALESCE(?, project_path),
			project_name = COALESCE(?, project_name),
			status = ?
		WHERE user_guid = ?
	`, agentType, optionalStringArg(fields.ServerURL), optionalStringArg(fields.ProviderSessionID),
		optionalStringArg(fields.ProjectPath), optionalStringArg(fields.ProjectName), string(fields.Status), userGUID)
	return err
}

// SetAgentStatus sets the persisted online/offline flag.
func SetAgentStatus(db *sql.DB, userGUID string, status types.AgentStatus) error {
	_, err := db.Exec(`UPDATE fray_agents SET status = ? WHERE user_guid = ?`, string(status), userGUID)
	return err
}

// AgentProfileUpdate carries the partial update accepted by update_profile.
type AgentProfileUpdate struct {
	Description *string
	Personality *string
	CurrentTask *string
	Gender      *string
}

// UpdateAgentProfile applies a partial profile update.
func UpdateAgentProfile(db *sql.DB, userGUID string, update AgentProfileUpdate) error {
	_, err := db.Exec(`
		UPDATE fray_agents SET
			description = COALESCE(?, description),
			personality = COALESCE(?, personality),
			current_task = COALESCE(?, current_task),
			gender = COALESCE(?, gender)
		WHERE user_guid = ?
	`, optionalStringArg(update.Description), optionalStringArg(update.Personality),
		optionalStringArg(update.CurrentTask), optionalStringArg(update.Gender), userGUID)
	return err
}

func scanAgents(rows *sql.Rows) ([]types.Agent, error) {
	var agents []types.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}
	return agents, rows.Err()
}

func scanOptionalAgent(row rowScanner) (*types.Agent, error) {
	agent, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

func scanAgent(row rowScanner) (types.Agent, error) {
	var a types.Agent
	var agentType, status string
	var projectPath, projectName, description, personality, currentTask, gender, serverURL, providerSessionID sql.NullString
	if err := row.Scan(&a.UserGUID, &a.AgentName, &agentType, &projectPath, &projectName, &status,
		&description, &personality, &currentTask, &gender, &serverURL, &providerSessionID, &a.WorkspaceGUID); err != nil {
		return types.Agent{}, err
	}
	a.AgentType = types.AgentType(agentType)
	a.Status = types.AgentStatus(status)
	a.ProjectPath = nullStringPtr(projectPath)
	a.ProjectName = nullStringPtr(projectName)
	a.Description = nullStringPtr(description)
	a.Personality = nullStringPtr(personality)
	a.CurrentTask = nullStringPtr(currentTask)
	a.Gender = nullStringPtr(gender)
	a.ServerURL = nullStringPtr(serverURL)
	a.ProviderSessionID = nullStringPtr(providerSessionID)
	return a, nil
}

// --- Sessions ---

// CreateSession inserts a new active session row for an agent, ending any
// other still-active session first.
func CreateSession(db *sql.DB, session types.Session) (types.Session, error) {
	if session.GUID == "" {
		guid, err := generateUniqueGUID(db, "fray_sessions", "guid", "ses")
		if err != nil {
			return types.Session{}, err
		}
		session.GUID = guid
	}
	session.IsActive = true
	return session, insertSession(db, session)
}

func insertSession(db *sql.DB, session types.Session) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE fray_sessions SET is_active = 0, ended_at = ? WHERE agent_user_guid = ? AND is_active = 1`, session.StartedAt, session.AgentUserGUID); err != nil {
		_ = tx.Rollback()
		return err
	}
	guid := session.GUID
	if guid == "" {
		guid, err = generateUniqueGUID(tx, "fray_sessions", "guid", "ses")
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if _, err := tx.Exec(`
		INSERT INTO fray_sessions (guid, agent_user_guid, pid, tty, is_active, started_at, last_heartbeat)
		VALUES (?, ?, ?, ?, 1, ?, ?)
	`, guid, session.AgentUserGUID, optionalIntArg(intPtrFromPID(session.PID)), optionalStringArg(session.TTY), session.StartedAt, session.StartedAt); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func intPtrFromPID(pid *int) *int64 {
	if pid == nil {
		return nil
	}
	v := int64(*pid)
	return &v
}

// GetActiveSession returns the active session for an agent, if any.
func GetActiveSession(db *sql.DB, agentUserGUID string) (*types.Session, error) {
	row := db.QueryRow(`
		SELECT guid, agent_user_guid, pid, tty, is_active, started_at, ended_at, last_heartbeat
		FROM fray_sessions WHERE agent_user_guid = ? AND is_active = 1
	`, agentUserGUID)
	return scanOptionalSession(row)
}

// EndActiveSession marks the agent's active session ended.
func EndActiveSession(db *sql.DB, agentUserGUID string, endedAt int64) error {
	_, err := db.Exec(`UPDATE fray_sessions SET is_active = 0, ended_at = ? WHERE agent_user_guid = ? AND is_active = 1`, endedAt, agentUserGUID)
	return err
}

// UpdateSessionHeartbeat bumps the active session's last_heartbeat.
func UpdateSessionHeartbeat(db *sql.DB, agentUserGUID string, at int64) error {
	result, err := db.Exec(`UPDATE fray_sessions SET last_heartbeat = ? WHERE agent_user_guid = ? AND is_active = 1`, at, agentUserGUID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no active session for agent %s", agentUserGUID)
	}
	return nil
}

func scanOptionalSession(row rowScanner) (*types.Session, error) {
	var s types.Session
	var pid, endedAt, lastHeartbeat sql.NullInt64
	var tty sql.NullString
	var isActive int
	if err := row.Scan(&s.GUID, &s.AgentUserGUID, &pid, &tty, &isActive, &s.StartedAt, &endedAt, &lastHeartbeat); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if pid.Valid {
		v := int(pid.Int64)
		s.PID = &v
	}
	s.TTY = nullStringPtr(tty)
	s.IsActive = isActive != 0
	s.EndedAt = nullIntPtr(endedAt)
	s.LastHeartbeat = nullIntPtr(lastHeartbeat)
	return &s, nil
}
