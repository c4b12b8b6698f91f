// Package types holds the data-model shared across store, router, registry,
// invoker and the MCP/HTTP surfaces.
package types

// UserType distinguishes a human from an agent identity.
type UserType string

const (
	UserTypeHuman UserType = "human"
	UserTypeAgent UserType = "agent"
)

// User is the shared identity behind a human or an agent.
type User struct {
	GUID              string   `json:"guid"`
	Name              string   `json:"name"`
	Type              UserType `json:"type"`
	DisplayName       *string  `json:"display_name,omitempty"`
	About             *string  `json:"about,omitempty"`
	AgentInstructions *string  `json:"agent_instructions,omitempty"`
	CreatedAt         int64    `json:"created_at"`
}

// AgentType selects the provider adapter used to invoke an agent.
type AgentType string

const (
	AgentTypeOpenCode   AgentType = "opencode"
	AgentTypeClaudeCode AgentType = "claude_code"
	AgentTypeCodex      AgentType = "codex"
	AgentTypeSystem     AgentType = "system"
)

// AgentStatus is the persisted online/offline flag. Finer-grained liveness
// (spawning, prompting, ghost) is derived, never stored.
type AgentStatus string

const (
	AgentStatusOnline  AgentStatus = "online"
	AgentStatusOffline AgentStatus = "offline"
)

// Agent extends a User 1-to-1 with provider-invocation identity.
type Agent struct {
	UserGUID          string      `json:"user_guid"`
	AgentName         string      `json:"agent_name"`
	AgentType         AgentType   `json:"agent_type"`
	ProjectPath       *string     `json:"project_path,omitempty"`
	ProjectName       *string     `json:"project_name,omitempty"`
	Status            AgentStatus `json:"status"`
	Description       *string     `json:"description,omitempty"`
	Personality       *string     `json:"personality,omitempty"`
	CurrentTask       *string     `json:"current_task,omitempty"`
	Gender            *string     `json:"gender,omitempty"`
	ServerURL         *string     `json:"server_url,omitempty"`
	ProviderSessionID *string     `json:"provider_session_id,omitempty"`
	WorkspaceGUID     string      `json:"workspace_guid"`
}

// Invocable reports whether the agent currently has enough identity to be
// invoked by a provider adapter.
func (a Agent) Invocable() bool {
	switch a.AgentType {
	case AgentTypeOpenCode:
		return a.ServerURL != nil && *a.ServerURL != "" && a.ProviderSessionID != nil && *a.ProviderSessionID != ""
	case AgentTypeClaudeCode, AgentTypeCodex:
		return a.ProviderSessionID != nil && *a.ProviderSessionID != ""
	default:
		return false
	}
}

// Session is a single agent login; at most one is active per agent.
type Session struct {
	GUID          string `json:"guid"`
	AgentUserGUID string `json:"agent_user_guid"`
	PID           *int   `json:"pid,omitempty"`
	TTY           *string `json:"tty,omitempty"`
	IsActive      bool   `json:"is_active"`
	StartedAt     int64  `json:"started_at"`
	EndedAt       *int64 `json:"ended_at,omitempty"`
	LastHeartbeat *int64 `json:"last_heartbeat,omitempty"`
}

// ChannelType distinguishes the built-in general channel, per-project
// channels, user-created channels and DM channels.
type ChannelType string

const (
	ChannelTypeGeneral ChannelType = "general"
	ChannelTypeProject ChannelType = "project"
	ChannelTypeCustom  ChannelType = "custom"
	ChannelTypeDM      ChannelType = "dm"
)

// Channel is a message container scoped to a workspace.
type Channel struct {
	GUID          string      `json:"guid"`
	WorkspaceGUID string      `json:"workspace_guid"`
	Name          string      `json:"name"`
	Type          ChannelType `json:"type"`
	Topic         *string     `json:"topic,omitempty"`
	ProjectPath   *string     `json:"project_path,omitempty"`
	CreatedBy     string      `json:"created_by"`
	CreatedAt     int64       `json:"created_at"`
	IsArchived    bool        `json:"is_archived"`
	ArchivedAt    *int64      `json:"archived_at,omitempty"`
}

// ChannelMember is the composite-key membership row (channelGUID, userGUID).
type ChannelMember struct {
	ChannelGUID string `json:"channel_guid"`
	UserGUID    string `json:"user_guid"`
	JoinedAt    int64  `json:"joined_at"`
}

// Message is a single post in a channel.
type Message struct {
	GUID        string   `json:"guid"`
	ChannelGUID string   `json:"channel_guid"`
	SenderGUID  string   `json:"sender_guid"`
	Content     string   `json:"content"`
	Mentions    []string `json:"mentions"`
	ParentGUID  *string  `json:"parent_guid,omitempty"`
	IsPinned    bool     `json:"is_pinned"`
	PinnedAt    *int64   `json:"pinned_at,omitempty"`
	PinnedBy    *string  `json:"pinned_by,omitempty"`
	EditedAt    *int64   `json:"edited_at,omitempty"`
	CreatedAt   int64    `json:"created_at"`
}

// PriorityBucket tags a message returned by the priority fetch.
type PriorityBucket string

const (
	PriorityMention PriorityBucket = "mention"
	PriorityProject PriorityBucket = "project"
	PriorityOther   PriorityBucket = "other"
)

// PriorityMessage pairs a message with the bucket that surfaced it.
type PriorityMessage struct {
	Message
	Priority PriorityBucket `json:"priority"`
}

// MessageReaction is the composite-key (message, user, emoji) row.
type MessageReaction struct {
	MessageGUID string `json:"message_guid"`
	UserGUID    string `json:"user_guid"`
	Emoji       string `json:"emoji"`
	CreatedAt   int64  `json:"created_at"`
}

// ReadReceipt tracks the last-read watermark for a user in a channel.
type ReadReceipt struct {
	UserGUID    string `json:"user_guid"`
	ChannelGUID string `json:"channel_guid"`
	LastReadAt  int64  `json:"last_read_at"`
}

// FeatureStatus is the lifecycle state of a feature request.
type FeatureStatus string

const (
	FeatureStatusOpen     FeatureStatus = "open"
	FeatureStatusAccepted FeatureStatus = "accepted"
	FeatureStatusDeclined FeatureStatus = "declined"
	FeatureStatusShipped  FeatureStatus = "shipped"
)

// FeatureRequest is a lightweight voting-domain entity.
type FeatureRequest struct {
	GUID         string        `json:"guid"`
	Title        string        `json:"title"`
	Description  *string       `json:"description,omitempty"`
	CreatedBy    string        `json:"created_by"`
	Status       FeatureStatus `json:"status"`
	StatusReason *string       `json:"status_reason,omitempty"`
	CreatedAt    int64         `json:"created_at"`
	VoteTotal    int           `json:"vote_total"`
}

// FeatureVote is the composite-key (feature, user) row; last write wins.
type FeatureVote struct {
	FeatureGUID string `json:"feature_guid"`
	UserGUID    string `json:"user_guid"`
	Vote        int    `json:"vote"` // +1 or -1
	CreatedAt   int64  `json:"created_at"`
}

// WorkspaceRole is a member's role within a workspace.
type WorkspaceRole string

const (
	WorkspaceRoleAdmin  WorkspaceRole = "admin"
	WorkspaceRoleMember WorkspaceRole = "member"
)

// Workspace is the top-level tenancy boundary.
type Workspace struct {
	GUID      string `json:"guid"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
}

// WorkspaceMember is the composite-key (workspace, user) membership row.
type WorkspaceMember struct {
	WorkspaceGUID string        `json:"workspace_guid"`
	UserGUID      string        `json:"user_guid"`
	Role          WorkspaceRole `json:"role"`
	JoinedAt      int64         `json:"joined_at"`
}

// WorkspaceAPIKey is a bearer credential for a workspace; only the hash and
// a short visible prefix are persisted.
type WorkspaceAPIKey struct {
	GUID          string  `json:"guid"`
	WorkspaceGUID string  `json:"workspace_guid"`
	TokenHash     string  `json:"-"`
	TokenPrefix   string  `json:"token_prefix"`
	CreatedBy     *string `json:"created_by,omitempty"`
	CreatedAt     int64   `json:"created_at"`
	RevokedAt     *int64  `json:"revoked_at,omitempty"`
}

// WorkspaceInvite is a redeemable join token for a workspace.
type WorkspaceInvite struct {
	Token         string        `json:"token"`
	WorkspaceGUID string        `json:"workspace_guid"`
	Role          WorkspaceRole `json:"role"`
	MaxUses       *int          `json:"max_uses,omitempty"`
	UseCount      int           `json:"use_count"`
	ExpiresAt     *int64        `json:"expires_at,omitempty"`
	RevokedAt     *int64        `json:"revoked_at,omitempty"`
	CreatedAt     int64         `json:"created_at"`
}

// MessageCursor positions a paginated message query: the tuple (createdAt,
// guid) that a `before=` cursor resolves to.
type MessageCursor struct {
	GUID string `json:"guid"`
	TS   int64  `json:"ts"`
}

// ConfigEntry is a single row of the flat key/value config table.
type ConfigEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// OptionalString distinguishes "not provided" from "set to empty/NULL" in
// partial-update structs.
type OptionalString struct {
	Set   bool
	Value *string
}

// OptionalInt64 is the int64 counterpart to OptionalString.
type OptionalInt64 struct {
	Set   bool
	Value *int64
}

// OptionalBool is the bool counterpart to OptionalString.
type OptionalBool struct {
	Set   bool
	Value bool
}

// PresenceState is a finer-grained, in-memory-only liveness vocabulary. The
// Agent Registry's ghost-cache computation does not read it. It is never
// persisted; the store only ever sees AgentStatus.
type PresenceState string

const (
	PresenceSpawning  PresenceState = "spawning"
	PresencePrompting PresenceState = "prompting"
	PresencePrompted  PresenceState = "prompted"
	PresenceIdle      PresenceState = "idle"
	PresenceError     PresenceState = "error"
	PresenceOffline   PresenceState = "offline"
)
