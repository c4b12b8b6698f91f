package invoker

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/frayhub/fray/internal/broadcaster"
	"github.com/frayhub/fray/internal/providers"
	db "github.com/frayhub/fray/internal/store"
	"github.com/frayhub/fray/internal/types"
)

const testWorkspace = "wsp-test0001"

type fakeAdapter struct {
	mu        sync.Mutex
	responses map[string]string // agentName -> response text
	calls     []string
}

func (f *fakeAdapter) Prompt(ctx context.Context, agent types.Agent, text string, cb providers.Callbacks) (*providers.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, agent.AgentName)
	resp, ok := f.responses[agent.AgentName]
	f.mu.Unlock()

	if cb.OnTypingStart != nil {
		cb.OnTypingStart()
	}
	if !ok || resp == "" {
		return nil, nil
	}
	if cb.OnTextDelta != nil {
		cb.OnTextDelta(resp)
	}
	return &providers.Response{Text: resp}, nil
}

func (f *fakeAdapter) IsSessionBusy(agent types.Agent) bool  { return false }
func (f *fakeAdapter) IsSessionAlive(agent types.Agent) bool { return true }

func newTestInvoker(t *testing.T, responses map[string]string) (*Invoker, *db.Store, *broadcaster.Hub) {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "fray.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	adapter := &fakeAdapter{responses: responses}
	registry := providers.NewRegistry(adapter, adapter, adapter)
	hub := broadcaster.NewHub()
	return New(store, hub, registry, testWorkspace), store, hub
}

func seedAgent(t *testing.T, store *db.Store, name string, agentType types.AgentType, projectName *string) types.Agent {
	t.Helper()
	sessionID := "ses-" + name
	user, err := db.CreateUser(store.DB, types.User{Name: name, Type: types.UserTypeAgent, CreatedAt: 1})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	agent := types.Agent{
		UserGUID: user.GUID, AgentName: name, AgentType: agentType,
		Status: types.AgentStatusOnline, WorkspaceGUID: testWorkspace,
		ProviderSessionID: &sessionID, ProjectName: projectName,
	}
	if err := db.CreateAgent(store.DB, agent); err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}
	return agent
}

func seedHumanAndChannel(t *testing.T, store *db.Store, channelName string, channelType types.ChannelType) (types.User, types.Channel) {
	t.Helper()
	human, err := db.CreateUser(store.DB, types.User{Name: "alice", Type: types.UserTypeHuman, CreatedAt: 1})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	channel, err := db.CreateChannel(store.DB, types.Channel{
		WorkspaceGUID: testWorkspace, Name: channelName, Type: channelType, CreatedBy: human.GUID, CreatedAt: 1,
	})
	if err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}
	return human, channel
}

func TestResolveTargetsDM(t *testing.T) {
	inv, _, _ := newTestInvoker(t, nil)
	targets, err := inv.resolveTargets("alice", "chn-1", "dm-river-otter", nil)
	if err != nil {
		t.Fatalf("resolveTargets: %v", err)
	}
	if len(targets) != 1 || targets[0].agentName != "river-otter" || !targets[0].dmRaw {
		t.Errorf("targets = %+v", targets)
	}
}

func TestResolveTargetsDMSelfGuard(t *testing.T) {
	inv, _, _ := newTestInvoker(t, nil)
	targets, err := inv.resolveTargets("river-otter", "chn-1", "dm-river-otter", nil)
	if err != nil {
		t.Fatalf("resolveTargets: %v", err)
	}
	if len(targets) != 0 {
		t.Errorf("expected no targets for self-DM, got %+v", targets)
	}
}

func TestResolveTargetsDMWithExtraMentions(t *testing.T) {
	inv, _, _ := newTestInvoker(t, nil)
	targets, err := inv.resolveTargets("alice", "chn-1", "dm-river-otter", []string{"fox", "river-otter"})
	if err != nil {
		t.Fatalf("resolveTargets: %v", err)
	}
	if len(targets) != 2 {
		t.Fatalf("targets = %+v", targets)
	}
	if targets[0].agentName != "river-otter" || !targets[0].dmRaw {
		t.Errorf("first target should be the raw DM target, got %+v", targets[0])
	}
	if targets[1].agentName != "fox" || targets[1].dmRaw {
		t.Errorf("second target should be the extra mention, got %+v", targets[1])
	}
}

func TestResolveTargetsExplicitMentions(t *testing.T) {
	inv, _, _ := newTestInvoker(t, nil)
	targets, err := inv.resolveTargets("alice", "chn-1", "general", []string{"fox", "alice", "fox"})
	if err != nil {
		t.Fatalf("resolveTargets: %v", err)
	}
	if len(targets) != 1 || targets[0].agentName != "fox" {
		t.Errorf("targets = %+v", targets)
	}
}

func TestResolveTargetsAllExpandsProjectScope(t *testing.T) {
	inv, store, _ := newTestInvoker(t, nil)
	widgets := "widgets"
	gadgets := "gadgets"
	seedAgent(t, store, "fox", types.AgentTypeClaudeCode, &widgets)
	seedAgent(t, store, "owl", types.AgentTypeClaudeCode, &gadgets)

	targets, err := inv.resolveTargets("alice", "chn-1", "project-widgets", []string{"all"})
	if err != nil {
		t.Fatalf("resolveTargets: %v", err)
	}
	if len(targets) != 1 || targets[0].agentName != "fox" || !targets[0].silent {
		t.Errorf("targets = %+v", targets)
	}
}

func TestResolveTargetsAllIgnoredInDM(t *testing.T) {
	inv, store, _ := newTestInvoker(t, nil)
	seedAgent(t, store, "fox", types.AgentTypeClaudeCode, nil)

	targets, err := inv.resolveTargets("alice", "chn-1", "dm-fox", []string{"all"})
	if err != nil {
		t.Fatalf("resolveTargets: %v", err)
	}
	if len(targets) != 1 || targets[0].agentName != "fox" || targets[0].silent {
		t.Errorf("expected raw DM target only, got %+v", targets)
	}
}

func TestInvokeForMessagePersistsResponse(t *testing.T) {
	inv, store, _ := newTestInvoker(t, map[string]string{"fox": "hi there @owl"})
	seedAgent(t, store, "fox", types.AgentTypeClaudeCode, nil)
	seedAgent(t, store, "owl", types.AgentTypeClaudeCode, nil)
	_, channel := seedHumanAndChannel(t, store, "general", types.ChannelTypeGeneral)

	inv.InvokeForMessage("alice", channel.GUID, channel.Name, "hey @fox", "", []string{"fox"}, 0)

	deadline := time.Now().Add(2 * time.Second)
	for inv.PendingTasks() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	messages, err := db.GetMessagesInChannel(store.DB, channel.GUID, 10, "")
	if err != nil {
		t.Fatalf("GetMessagesInChannel: %v", err)
	}
	var foundFoxReply bool
	for _, m := range messages {
		if m.Content == "hi there @owl" {
			foundFoxReply = true
		}
	}
	if !foundFoxReply {
		t.Errorf("expected fox's response to be persisted, got %+v", messages)
	}
}

func TestInvokeForMessageDepthCapStopsImmediately(t *testing.T) {
	inv, store, _ := newTestInvoker(t, map[string]string{"fox": "should not run"})
	seedAgent(t, store, "fox", types.AgentTypeClaudeCode, nil)
	_, channel := seedHumanAndChannel(t, store, "general", types.ChannelTypeGeneral)

	inv.InvokeForMessage("alice", channel.GUID, channel.Name, "hey @fox", "", []string{"fox"}, MaxChainDepth)

	if inv.PendingTasks() != 0 {
		t.Error("expected no background task to be tracked past the depth cap")
	}
}
