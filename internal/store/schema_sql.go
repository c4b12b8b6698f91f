package db

const schemaSQL = `
-- Users: shared identity for humans and agents across all workspaces.
CREATE TABLE IF NOT EXISTS fray_users (
  guid TEXT PRIMARY KEY,                 -- e.g., "usr-x9y8z7w6"
  name TEXT NOT NULL UNIQUE,             -- stable unique label
  type TEXT NOT NULL,                    -- 'human' | 'agent'
  display_name TEXT,
  about TEXT,
  agent_instructions TEXT,
  created_at INTEGER NOT NULL
);

-- Agents: extends a user 1-to-1 with provider-invocation identity.
CREATE TABLE IF NOT EXISTS fray_agents (
  user_guid TEXT PRIMARY KEY,            -- FK to fray_users.guid
  agent_name TEXT NOT NULL UNIQUE,       -- globally unique quirky slug
  agent_type TEXT NOT NULL,              -- opencode | claude_code | codex | system
  project_path TEXT,
  project_name TEXT,
  status TEXT NOT NULL DEFAULT 'offline', -- online | offline (persisted; ghost is derived)
  description TEXT,
  personality TEXT,
  current_task TEXT,
  gender TEXT,
  server_url TEXT,                       -- opencode only
  provider_session_id TEXT,
  workspace_guid TEXT NOT NULL,
  FOREIGN KEY (user_guid) REFERENCES fray_users(guid)
);

CREATE INDEX IF NOT EXISTS idx_fray_agents_project_name ON fray_agents(project_name);
CREATE INDEX IF NOT EXISTS idx_fray_agents_workspace ON fray_agents(workspace_guid);

-- Sessions: agent logins; at most one active session per agent.
CREATE TABLE IF NOT EXISTS fray_sessions (
  guid TEXT PRIMARY KEY,
  agent_user_guid TEXT NOT NULL,
  pid INTEGER,
  tty TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  started_at INTEGER NOT NULL,
  ended_at INTEGER,
  last_heartbeat INTEGER,
  FOREIGN KEY (agent_user_guid) REFERENCES fray_agents(user_guid)
);

CREATE INDEX IF NOT EXISTS idx_fray_sessions_agent ON fray_sessions(agent_user_guid);
CREATE INDEX IF NOT EXISTS idx_fray_sessions_active ON fray_sessions(agent_user_guid, is_active);

-- Workspaces
CREATE TABLE IF NOT EXISTS fray_workspaces (
  guid TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS fray_workspace_members (
  workspace_guid TEXT NOT NULL,
  user_guid TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'member',    -- admin | member
  joined_at INTEGER NOT NULL,
  PRIMARY KEY (workspace_guid, user_guid)
);

CREATE TABLE IF NOT EXISTS fray_workspace_api_keys (
  guid TEXT PRIMARY KEY,
  workspace_guid TEXT NOT NULL,
  token_hash TEXT NOT NULL,
  token_prefix TEXT NOT NULL,
  created_by TEXT,
  created_at INTEGER NOT NULL,
  revoked_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_fray_workspace_api_keys_hash ON fray_workspace_api_keys(token_hash);

CREATE TABLE IF NOT EXISTS fray_workspace_invites (
  token TEXT PRIMARY KEY,
  workspace_guid TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'member',
  max_uses INTEGER,
  use_count INTEGER NOT NULL DEFAULT 0,
  expires_at INTEGER,
  revoked_at INTEGER,
  created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fray_workspace_invites_token ON fray_workspace_invites(token);

-- Channels
CREATE TABLE IF NOT EXISTS fray_channels (
  guid TEXT PRIMARY KEY,                 -- e.g., "chn-a1b2c3d4"
  workspace_guid TEXT NOT NULL,
  name TEXT NOT NULL,                    -- unique within workspace
  type TEXT NOT NULL DEFAULT 'custom',   -- general | project | custom | dm
  topic TEXT,
  project_path TEXT,
  created_by TEXT,                       -- user guid or "system"; not a foreign key
  created_at INTEGER NOT NULL,
  is_archived INTEGER NOT NULL DEFAULT 0,
  archived_at INTEGER
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_fray_channels_workspace_name ON fray_channels(workspace_guid, name);
CREATE INDEX IF NOT EXISTS idx_fray_channels_name ON fray_channels(name);

CREATE TABLE IF NOT EXISTS fray_channel_members (
  channel_guid TEXT NOT NULL,
  user_guid TEXT NOT NULL,
  joined_at INTEGER NOT NULL,
  PRIMARY KEY (channel_guid, user_guid)
);

CREATE INDEX IF NOT EXISTS idx_fray_channel_members_user ON fray_channel_members(user_guid);

-- Messages
CREATE TABLE IF NOT EXISTS fray_messages (
  guid TEXT PRIMARY KEY,                 -- e.g., "msg-a1b2c3d4"
  channel_guid TEXT NOT NULL,
  sender_guid TEXT NOT NULL,
  content TEXT NOT NULL,
  mentions TEXT NOT NULL DEFAULT '[]',   -- JSON array, ordered
  parent_guid TEXT,                      -- reply pointer, same channel
  is_pinned INTEGER NOT NULL DEFAULT 0,
  pinned_at INTEGER,
  pinned_by TEXT,
  edited_at INTEGER,
  created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fray_messages_channel_created ON fray_messages(channel_guid, created_at);
CREATE INDEX IF NOT EXISTS idx_fray_messages_sender ON fray_messages(sender_guid);
CREATE INDEX IF NOT EXISTS idx_fray_messages_parent ON fray_messages(parent_guid);

CREATE TABLE IF NOT EXISTS fray_message_reactions (
  message_guid TEXT NOT NULL,
  user_guid TEXT NOT NULL,
  emoji TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  PRIMARY KEY (message_guid, user_guid, emoji)
);

CREATE INDEX IF NOT EXISTS idx_fray_message_reactions_message ON fray_message_reactions(message_guid);

CREATE TABLE IF NOT EXISTS fray_read_receipts (
  user_guid TEXT NOT NULL,
  channel_guid TEXT NOT NULL,
  last_read_at INTEGER NOT NULL,
  PRIMARY KEY (user_guid, channel_guid)
);

-- Feature requests: a lightweight voting domain.
CREATE TABLE IF NOT EXISTS fray_feature_requests (
  guid TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  description TEXT,
  created_by TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'open',
  status_reason TEXT,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS fray_feature_votes (
  feature_guid TEXT NOT NULL,
  user_guid TEXT NOT NULL,
  vote INTEGER NOT NULL,                 -- +1 | -1, last-write-wins
  created_at INTEGER NOT NULL,
  PRIMARY KEY (feature_guid, user_guid)
);

-- Configuration
CREATE TABLE IF NOT EXISTS fray_config (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL
);
`

const defaultConfigSQL = `
INSERT OR IGNORE INTO fray_config (key, value) VALUES ('schema_version', '1');
`
