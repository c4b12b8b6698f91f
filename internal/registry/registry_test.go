package registry

import (
	"path/filepath"
	"testing"

	"github.com/frayhub/fray/internal/broadcaster"
	db "github.com/frayhub/fray/internal/store"
	"github.com/frayhub/fray/internal/types"
)

func newTestRegistry(t *testing.T) (*Registry, *db.Store) {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "fray.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if _, err := db.CreateWorkspace(store.DB, types.Workspace{GUID: "wsp-test0001", Name: "acme", CreatedAt: 1}); err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}

	hub := broadcaster.NewHub()
	return New(store, hub, nil), store
}

func TestRegisterCreatesAgentAndChannels(t *testing.T) {
	r, store := newTestRegistry(t)

	result, err := r.RegisterOrConnect(RegisterRequest{
		ProjectPath:   "/home/dev/widgets",
		AgentType:     types.AgentTypeClaudeCode,
		WorkspaceGUID: "wsp-test0001",
	})
	if err != nil {
		t.Fatalf("RegisterOrConnect: %v", err)
	}
	if result.Reconnected {
		t.Error("expected a fresh registration, not a reconnect")
	}
	if result.Agent.AgentName == "" {
		t.Error("expected a generated agent name")
	}
	if result.ProjectChannel.Name != "project-widgets" {
		t.Errorf("ProjectChannel.Name = %q, want project-widgets", result.ProjectChannel.Name)
	}

	isMember, err := db.IsChannelMember(store.DB, result.ProjectChannel.GUID, result.Agent.UserGUID)
	if err != nil {
		t.Fatalf("IsChannelMember: %v", err)
	}
	if !isMember {
		t.Error("expected agent to be a member of its project channel")
	}

	general, err := db.GetChannelByName(store.DB, "wsp-test0001", "general")
	if err != nil {
		t.Fatalf("GetChannelByName: %v", err)
	}
	if general == nil {
		t.Fatal("expected #general to be auto-provisioned")
	}
	isMember, err = db.IsChannelMember(store.DB, general.GUID, result.Agent.UserGUID)
	if err != nil {
		t.Fatalf("IsChannelMember (general): %v", err)
	}
	if !isMember {
		t.Error("expected agent to be a member of #general")
	}
}

func TestRegisterThenReconnect(t *testing.T) {
	r, _ := newTestRegistry(t)

	first, err := r.RegisterOrConnect(RegisterRequest{
		ProjectPath:   "/home/dev/widgets",
		AgentType:     types.AgentTypeClaudeCode,
		WorkspaceGUID: "wsp-test0001",
	})
	if err != nil {
		t.Fatalf("RegisterOrConnect (create): %v", err)
	}

	second, err := r.RegisterOrConnect(RegisterRequest{
		ProjectPath:   "/home/dev/widgets",
		AgentName:     first.Agent.AgentName,
		AgentType:     types.AgentTypeClaudeCode,
		WorkspaceGUID: "wsp-test0001",
	})
	if err != nil {
		t.Fatalf("RegisterOrConnect (reconnect): %v", err)
	}
	if !second.Reconnected {
		t.Error("expected the second call to reconnect")
	}
	if second.Agent.UserGUID != first.Agent.UserGUID {
		t.Error("expected reconnect to return the same agent identity")
	}
}

func TestDisconnectAndHeartbeat(t *testing.T) {
	r, store := newTestRegistry(t)

	result, err := r.RegisterOrConnect(RegisterRequest{
		AgentType:     types.AgentTypeClaudeCode,
		WorkspaceGUID: "wsp-test0001",
	})
	if err != nil {
		t.Fatalf("RegisterOrConnect: %v", err)
	}

	if err := r.Heartbeat(result.Agent.AgentName); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}

	if err := r.Disconnect(result.Agent.AgentName); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}

	agent, err := db.GetAgentByName(store.DB, result.Agent.AgentName)
	if err != nil {
		t.Fatalf("GetAgentByName: %v", err)
	}
	if agent.Status != types.AgentStatusOffline {
		t.Errorf("Status = %q, want offline", agent.Status)
	}

	active, err := db.GetActiveSession(store.DB, result.Agent.UserGUID)
	if err != nil {
		t.Fatalf("GetActiveSession: %v", err)
	}
	if active != nil {
		t.Error("expected no active session after disconnect")
	}
}

func TestSystemAgentNeverGhost(t *testing.T) {
	r, _ := newTestRegistry(t)
	agent := types.Agent{AgentType: types.AgentTypeSystem, AgentName: "fray-bot"}
	if r.computeGhost(agent) {
		t.Error("expected a system agent to never be reported as a ghost")
	}
}

// fakeMarkerProbe implements both LivenessProber and SessionMarker so
// register/disconnect's session-marking calls can be asserted directly.
type fakeMarkerProbe struct {
	registered   map[string]bool
	disconnected map[string]bool
}

func newFakeMarkerProbe() *fakeMarkerProbe {
	return &fakeMarkerProbe{registered: map[string]bool{}, disconnected: map[string]bool{}}
}

func (p *fakeMarkerProbe) IsSessionAlive(agent types.Agent) bool {
	return agent.ProviderSessionID != nil && p.registered[*agent.ProviderSessionID] && !p.disconnected[*agent.ProviderSessionID]
}

func (p *fakeMarkerProbe) MarkRegistered(sessionID string)   { p.registered[sessionID] = true }
func (p *fakeMarkerProbe) MarkDisconnected(sessionID string) { p.disconnected[sessionID] = true }

func TestRegisterMarksProviderSessionAlive(t *testing.T) {
	store, err := db.Open(filepath.Join(t.TempDir(), "fray.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if _, err := db.CreateWorkspace(store.DB, types.Workspace{GUID: "wsp-test0001", Name: "acme", CreatedAt: 1}); err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}

	probe := newFakeMarkerProbe()
	r := New(store, broadcaster.NewHub(), map[types.AgentType]LivenessProber{types.AgentTypeClaudeCode: probe})

	result, err := r.RegisterOrConnect(RegisterRequest{
		ProjectPath:       "/home/dev/widgets",
		AgentType:         types.AgentTypeClaudeCode,
		ProviderSessionID: "ccsess-1",
		WorkspaceGUID:     "wsp-test0001",
	})
	if err != nil {
		t.Fatalf("RegisterOrConnect: %v", err)
	}
	if !probe.registered["ccsess-1"] {
		t.Error("expected MarkRegistered(\"ccsess-1\") to have been called")
	}
	if result.Agent.ProviderSessionID == nil || *result.Agent.ProviderSessionID != "ccsess-1" {
		t.Errorf("ProviderSessionID = %v, want ccsess-1", result.Agent.ProviderSessionID)
	}

	if err := r.Disconnect(result.Agent.AgentName); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if !probe.disconnected["ccsess-1"] {
		t.Error("expected MarkDisconnected(\"ccsess-1\") to have been called")
	}
}

func TestRegisterCreatesActiveSessionAndIsNotGhost(t *testing.T) {
	probe := newFakeMarkerProbe()
	store, err := db.Open(filepath.Join(t.TempDir(), "fray.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if _, err := db.CreateWorkspace(store.DB, types.Workspace{GUID: "wsp-test0001", Name: "acme", CreatedAt: 1}); err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}
	r := New(store, broadcaster.NewHub(), map[types.AgentType]LivenessProber{types.AgentTypeClaudeCode: probe})

	result, err := r.RegisterOrConnect(RegisterRequest{
		ProjectPath:       "/home/dev/widgets",
		AgentType:         types.AgentTypeClaudeCode,
		ProviderSessionID: "ccsess-2",
		WorkspaceGUID:     "wsp-test0001",
	})
	if err != nil {
		t.Fatalf("RegisterOrConnect: %v", err)
	}

	active, err := db.GetActiveSession(store.DB, result.Agent.UserGUID)
	if err != nil {
		t.Fatalf("GetActiveSession: %v", err)
	}
	if active == nil {
		t.Fatal("expected register to create an active session row")
	}

	if r.computeGhost(result.Agent) {
		t.Error("expected a freshly registered agent with a live prober to not be a ghost")
	}

	if err := r.Heartbeat(result.Agent.AgentName); err != nil {
		t.Errorf("Heartbeat: %v", err)
	}
}
