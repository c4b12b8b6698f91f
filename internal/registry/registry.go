// Package registry implements the Agent Registry component:
// register/reconnect/disconnect/heartbeat for agents, plus a background
// ghost-liveness refresher.
package registry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/frayhub/fray/internal/applog"
	"github.com/frayhub/fray/internal/broadcaster"
	"github.com/frayhub/fray/internal/core"
	db "github.com/frayhub/fray/internal/store"
	"github.com/frayhub/fray/internal/types"
)

// GhostRefreshInterval is the cadence of the background ghost-detection loop.
const GhostRefreshInterval = 30 * time.Second

// LivenessProber matches a Provider Adapter's isSessionAlive contract,
// so the registry does not need to import the providers package.
type LivenessProber interface {
	IsSessionAlive(agent types.Agent) bool
}

// SessionDiscoverer is implemented by the opencode adapter: given a server
// URL and a project path, it finds the session whose project directory best
// matches the path. Used when a registration carries no session id.
type SessionDiscoverer interface {
	DiscoverSession(serverURL, projectPath string) (string, bool)
}

// SessionMarker is implemented by provider adapters (claude_code, codex)
// that track liveness via an in-process registered-session map rather than
// a remote probe. The Registry calls these around register/reconnect/
// disconnect so the adapter's map reflects what's actually registered.
type SessionMarker interface {
	MarkRegistered(sessionID string)
	MarkDisconnected(sessionID string)
}

// Registry is the process-wide agent registration/liveness singleton.
type Registry struct {
	store  *db.Store
	hub    *broadcaster.Hub
	log    *applog.Logger
	probes map[types.AgentType]LivenessProber

	ghosts *ghostCache
}

// New constructs a Registry backed by store, broadcasting through hub.
// probes maps each provider-backed agent type to the adapter used for ghost
// liveness probing.
func New(store *db.Store, hub *broadcaster.Hub, probes map[types.AgentType]LivenessProber) *Registry {
	return &Registry{
		store:  store,
		hub:    hub,
		log:    applog.New("registry"),
		probes: probes,
		ghosts: newGhostCache(),
	}
}

// RegisterRequest is the input to RegisterOrConnect.
type RegisterRequest struct {
	ProjectPath       string
	AgentName         string
	ServerURL         string
	ProviderSessionID string
	AgentType         types.AgentType
	WorkspaceGUID     string
}

// markSession notifies agentType's adapter (if it implements SessionMarker)
// that sessionID is now live. A no-op for opencode, whose liveness is a
// remote HTTP probe, and for unregistered probe types.
func (r *Registry) markSession(agentType types.AgentType, sessionID string) {
	if sessionID == "" {
		return
	}
	if marker, ok := r.probes[agentType].(SessionMarker); ok {
		marker.MarkRegistered(sessionID)
	}
}

func (r *Registry) unmarkSession(agentType types.AgentType, sessionID string) {
	if sessionID == "" {
		return
	}
	if marker, ok := r.probes[agentType].(SessionMarker); ok {
		marker.MarkDisconnected(sessionID)
	}
}

// RegisterResult is returned by both the reconnect and create branches.
type RegisterResult struct {
	Agent          types.Agent
	ProjectChannel types.Channel
	Reconnected    bool
	ChannelCreated bool
}

// openCodeDefaultURL is where a locally running opencode server
// conventionally listens; probed when an opencode registration omits
// server_url.
const openCodeDefaultURL = "http://127.0.0.1:4096"

// applyProviderHints fills in the provider defaults: a
// missing agent_type means a subprocess claude_code agent, and an opencode
// registration without a server_url gets the conventional local port probed
// — falling back to claude_code when nothing answers there.
func (r *Registry) applyProviderHints(req RegisterRequest) RegisterRequest {
	if req.AgentType == "" {
		req.AgentType = types.AgentTypeClaudeCode
	}
	if req.AgentType == types.AgentTypeOpenCode && req.ServerURL == "" {
		if serverReachable(openCodeDefaultURL) {
			req.ServerURL = openCodeDefaultURL
		} else {
			r.log.Warn("no opencode server at %s; registering as claude_code instead", openCodeDefaultURL)
			req.AgentType = types.AgentTypeClaudeCode
		}
	}
	if req.AgentType == types.AgentTypeOpenCode && req.ProviderSessionID == "" && req.ProjectPath != "" {
		if discoverer, ok := r.probes[types.AgentTypeOpenCode].(SessionDiscoverer); ok {
			if sessionID, found := discoverer.DiscoverSession(req.ServerURL, req.ProjectPath); found {
				req.ProviderSessionID = sessionID
			}
		}
	}
	return req
}

func serverReachable(url string) bool {
	client := &http.Client{Timeout: 4 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return true
}

// RegisterOrConnect reconnects an existing agent or creates a new one,
// ensuring project-channel membership either way. #general membership is
// added only when a new agent is created; reconnect does not touch it.
func (r *Registry) RegisterOrConnect(req RegisterRequest) (RegisterResult, error) {
	req.AgentName = core.NormalizeAgentRef(req.AgentName)
	if req.AgentName != "" && !core.IsValidAgentName(req.AgentName) {
		return RegisterResult{}, fmt.Errorf("invalid agent name: %s", req.AgentName)
	}

	req = r.applyProviderHints(req)
	projectName := core.ProjectChannelName(req.ProjectPath)

	if req.AgentName != "" {
		existing, err := db.GetAgentByName(r.store.DB, req.AgentName)
		if err != nil {
			return RegisterResult{}, err
		}
		if existing != nil {
			return r.reconnect(*existing, req, projectName)
		}
	}
	return r.create(req, projectName)
}

func (r *Registry) reconnect(agent types.Agent, req RegisterRequest, projectName string) (RegisterResult, error) {
	agentType := agent.AgentType
	if req.AgentType != "" {
		agentType = req.AgentType
	}

	serverURL := req.ServerURL
	if agentType != types.AgentTypeOpenCode {
		serverURL = ""
	}

	fields := db.AgentReconnectFields{
		ProjectPath: &req.ProjectPath,
		ProjectName: &projectName,
		AgentType:   &agentType,
		Status:      types.AgentStatusOnline,
	}
	if serverURL != "" {
		fields.ServerURL = &serverURL
	}
	if req.ProviderSessionID != "" {
		fields.ProviderSessionID = &req.ProviderSessionID
	}

	if err := db.ReconnectAgent(r.store.DB, agent.UserGUID, fields); err != nil {
		return RegisterResult{}, err
	}

	updated, err := db.GetAgentByUserGUID(r.store.DB, agent.UserGUID)
	if err != nil {
		return RegisterResult{}, err
	}

	channel, created, err := r.ensureProjectChannel(*updated, projectName)
	if err != nil {
		return RegisterResult{}, err
	}

	if _, err := db.CreateSession(r.store.DB, types.Session{
		AgentUserGUID: updated.UserGUID,
		StartedAt:     time.Now().Unix(),
	}); err != nil {
		return RegisterResult{}, err
	}

	r.markSession(agentType, req.ProviderSessionID)
	r.hub.Broadcast(broadcaster.AgentStatusEvent(updated.AgentName, string(types.AgentStatusOnline), false))
	return RegisterResult{Agent: *updated, ProjectChannel: channel, Reconnected: true, ChannelCreated: created}, nil
}

func (r *Registry) create(req RegisterRequest, projectName string) (RegisterResult, error) {
	name, err := core.GenerateAgentName(r.store.DB, db.AgentNameExists)
	if err != nil {
		return RegisterResult{}, err
	}

	now := time.Now().Unix()
	user, err := db.CreateUser(r.store.DB, types.User{Name: name, Type: types.UserTypeAgent, CreatedAt: now})
	if err != nil {
		return RegisterResult{}, err
	}

	serverURL := req.ServerURL
	if req.AgentType != types.AgentTypeOpenCode {
		serverURL = ""
	}

	agent := types.Agent{
		UserGUID:      user.GUID,
		AgentName:     name,
		AgentType:     req.AgentType,
		Status:        types.AgentStatusOnline,
		WorkspaceGUID: req.WorkspaceGUID,
	}
	if req.ProjectPath != "" {
		agent.ProjectPath = &req.ProjectPath
		agent.ProjectName = &projectName
	}
	if serverURL != "" {
		agent.ServerURL = &serverURL
	}
	if req.ProviderSessionID != "" {
		agent.ProviderSessionID = &req.ProviderSessionID
	}

	if err := db.CreateAgent(r.store.DB, agent); err != nil {
		return RegisterResult{}, err
	}

	channel, created, err := r.ensureProjectChannel(agent, projectName)
	if err != nil {
		return RegisterResult{}, err
	}

	if err := r.ensureGeneralMembership(req.WorkspaceGUID, user.GUID); err != nil {
		return RegisterResult{}, err
	}

	if _, err := db.CreateSession(r.store.DB, types.Session{
		AgentUserGUID: user.GUID,
		StartedAt:     now,
	}); err != nil {
		return RegisterResult{}, err
	}

	r.markSession(agent.AgentType, req.ProviderSessionID)
	r.hub.Broadcast(broadcaster.AgentStatusEvent(agent.AgentName, string(types.AgentStatusOnline), false))
	if created {
		r.hub.Broadcast(broadcaster.ChannelCreatedEvent(channel))
	}
	return RegisterResult{Agent: agent, ProjectChannel: channel, Reconnected: false, ChannelCreated: created}, nil
}

func (r *Registry) ensureProjectChannel(agent types.Agent, projectName string) (types.Channel, bool, error) {
	if agent.ProjectPath == nil {
		return types.Channel{}, false, nil
	}

	channelName := fmt.Sprintf("project-%s", projectName)
	existing, err := db.GetChannelByName(r.store.DB, agent.WorkspaceGUID, channelName)
	if err != nil {
		return types.Channel{}, false, err
	}

	created := false
	channel := types.Channel{}
	if existing == nil {
		projectPath := *agent.ProjectPath
		channel, err = db.CreateChannel(r.store.DB, types.Channel{
			WorkspaceGUID: agent.WorkspaceGUID,
			Name:          channelName,
			Type:          types.ChannelTypeProject,
			ProjectPath:   &projectPath,
			CreatedBy:     agent.UserGUID,
			CreatedAt:     time.Now().Unix(),
		})
		if err != nil {
			return types.Channel{}, false, err
		}
		created = true
	} else {
		channel = *existing
	}

	if _, err := db.AddChannelMember(r.store.DB, channel.GUID, agent.UserGUID, time.Now().Unix()); err != nil {
		return types.Channel{}, false, err
	}
	return channel, created, nil
}

func (r *Registry) ensureGeneralMembership(workspaceGUID, userGUID string) error {
	general, err := db.GetChannelByName(r.store.DB, workspaceGUID, "general")
	if err != nil {
		return err
	}
	if general == nil {
		created, err := db.CreateChannel(r.store.DB, types.Channel{
			WorkspaceGUID: workspaceGUID,
			Name:          "general",
			Type:          types.ChannelTypeGeneral,
			CreatedBy:     "system",
			CreatedAt:     time.Now().Unix(),
		})
		if err != nil {
			return err
		}
		general = &created
	}
	_, err = db.AddChannelMember(r.store.DB, general.GUID, userGUID, time.Now().Unix())
	return err
}

// Disconnect marks an agent offline, ends its active session, and broadcasts
// agent_status(offline).
func (r *Registry) Disconnect(agentName string) error {
	agent, err := db.GetAgentByName(r.store.DB, agentName)
	if err != nil {
		return err
	}
	if agent == nil {
		return fmt.Errorf("agent not found: %s", agentName)
	}

	now := time.Now().Unix()
	if err := db.SetAgentStatus(r.store.DB, agent.UserGUID, types.AgentStatusOffline); err != nil {
		return err
	}
	if err := db.EndActiveSession(r.store.DB, agent.UserGUID, now); err != nil {
		return err
	}

	if agent.ProviderSessionID != nil {
		r.unmarkSession(agent.AgentType, *agent.ProviderSessionID)
	}
	r.hub.Broadcast(broadcaster.AgentStatusEvent(agentName, string(types.AgentStatusOffline), false))
	return nil
}

// Heartbeat bumps an agent's active session's last_heartbeat.
func (r *Registry) Heartbeat(agentName string) error {
	agent, err := db.GetAgentByName(r.store.DB, agentName)
	if err != nil {
		return err
	}
	if agent == nil {
		return fmt.Errorf("agent not found: %s", agentName)
	}
	return db.UpdateSessionHeartbeat(r.store.DB, agent.UserGUID, time.Now().Unix())
}
