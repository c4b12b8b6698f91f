package db

import (
	"path/filepath"
	"testing"

	"github.com/frayhub/fray/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fray.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedAgent(t *testing.T, store *Store, name string) types.Agent {
	t.Helper()
	user, err := CreateUser(store.DB, types.User{Name: name, Type: types.UserTypeAgent, CreatedAt: 1})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	agent := types.Agent{
		UserGUID:      user.GUID,
		AgentName:     name,
		AgentType:     types.AgentTypeClaudeCode,
		Status:        types.AgentStatusOnline,
		WorkspaceGUID: "wsp-test0001",
	}
	if err := CreateAgent(store.DB, agent); err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}
	return agent
}

func TestCreateUserAndAgent(t *testing.T) {
	store := openTestStore(t)
	agent := seedAgent(t, store, "river-otter")

	got, err := GetAgentByName(store.DB, "river-otter")
	if err != nil {
		t.Fatalf("GetAgentByName: %v", err)
	}
	if got == nil {
		t.Fatal("expected agent, got nil")
	}
	if got.UserGUID != agent.UserGUID {
		t.Errorf("UserGUID = %q, want %q", got.UserGUID, agent.UserGUID)
	}
	if got.Invocable() {
		t.Error("agent with no provider_session_id should not be invocable")
	}
}

func TestAgentNameExists(t *testing.T) {
	store := openTestStore(t)
	seedAgent(t, store, "quiet-badger")

	exists, err := AgentNameExists(store.DB, "quiet-badger")
	if err != nil {
		t.Fatalf("AgentNameExists: %v", err)
	}
	if !exists {
		t.Error("expected quiet-badger to exist")
	}

	exists, err = AgentNameExists(store.DB, "nobody")
	if err != nil {
		t.Fatalf("AgentNameExists: %v", err)
	}
	if exists {
		t.Error("expected nobody to not exist")
	}
}

func TestSessionLifecycle(t *testing.T) {
	store := openTestStore(t)
	agent := seedAgent(t, store, "brisk-falcon")

	session, err := CreateSession(store.DB, types.Session{AgentUserGUID: agent.UserGUID, StartedAt: 10})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	active, err := GetActiveSession(store.DB, agent.UserGUID)
	if err != nil {
		t.Fatalf("GetActiveSession: %v", err)
	}
	if active == nil || active.GUID != session.GUID {
		t.Fatalf("expected active session %s, got %+v", session.GUID, active)
	}

	second, err := CreateSession(store.DB, types.Session{AgentUserGUID: agent.UserGUID, StartedAt: 20})
	if err != nil {
		t.Fatalf("CreateSession (second): %v", err)
	}

	active, err = GetActiveSession(store.DB, agent.UserGUID)
	if err != nil {
		t.Fatalf("GetActiveSession: %v", err)
	}
	if active == nil || active.GUID != second.GUID {
		t.Fatal("expected the second session to be the only active one")
	}

	if err := UpdateSessionHeartbeat(store.DB, agent.UserGUID, 30); err != nil {
		t.Fatalf("UpdateSessionHeartbeat: %v", err)
	}
}

func TestChannelMembership(t *testing.T) {
	store := openTestStore(t)
	channel, err := CreateChannel(store.DB, types.Channel{
		WorkspaceGUID: "wsp-test0001",
		Name:          "general",
		Type:          types.ChannelTypeGeneral,
		CreatedBy:     "system",
		CreatedAt:     1,
	})
	if err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}

	agent := seedAgent(t, store, "tidy-wren")

	joined, err := AddChannelMember(store.DB, channel.GUID, agent.UserGUID, 2)
	if err != nil {
		t.Fatalf("AddChannelMember: %v", err)
	}
	if !joined {
		t.Error("expected first join to report joined=true")
	}

	joined, err = AddChannelMember(store.DB, channel.GUID, agent.UserGUID, 3)
	if err != nil {
		t.Fatalf("AddChannelMember (repeat): %v", err)
	}
	if joined {
		t.Error("expected repeat join to report joined=false")
	}

	is, err := IsChannelMember(store.DB, channel.GUID, agent.UserGUID)
	if err != nil {
		t.Fatalf("IsChannelMember: %v", err)
	}
	if !is {
		t.Error("expected agent to be a member")
	}
}

func TestMessageSendEditDelete(t *testing.T) {
	store := openTestStore(t)
	channel, _ := CreateChannel(store.DB, types.Channel{WorkspaceGUID: "wsp-test0001", Name: "general", Type: types.ChannelTypeGeneral, CreatedBy: "system", CreatedAt: 1})
	sender := seedAgent(t, store, "cheerful-otter")

	msg, err := CreateMessage(store.DB, types.Message{
		ChannelGUID: channel.GUID,
		SenderGUID:  sender.UserGUID,
		Content:     "hello @cheerful-otter",
		Mentions:    []string{"cheerful-otter"},
		CreatedAt:   5,
	})
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	got, err := GetMessage(store.DB, msg.GUID)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if got == nil || got.Content != msg.Content {
		t.Fatalf("expected round-tripped message, got %+v", got)
	}
	if len(got.Mentions) != 1 || got.Mentions[0] != "cheerful-otter" {
		t.Errorf("Mentions = %v, want [cheerful-otter]", got.Mentions)
	}

	if err := EditMessage(store.DB, msg.GUID, sender.UserGUID, "edited", 6); err != nil {
		t.Fatalf("EditMessage: %v", err)
	}
	if err := EditMessage(store.DB, msg.GUID, "usr-someoneelse", "nope", 7); err == nil {
		t.Error("expected edit by a different sender to fail")
	}

	if err := DeleteMessage(store.DB, msg.GUID, sender.UserGUID); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}
	got, err = GetMessage(store.DB, msg.GUID)
	if err != nil {
		t.Fatalf("GetMessage after delete: %v", err)
	}
	if got != nil {
		t.Error("expected message to be gone after delete")
	}
}

func TestMessagePagination(t *testing.T) {
	store := openTestStore(t)
	channel, _ := CreateChannel(store.DB, types.Channel{WorkspaceGUID: "wsp-test0001", Name: "general", Type: types.ChannelTypeGeneral, CreatedBy: "system", CreatedAt: 1})
	sender := seedAgent(t, store, "plucky-heron")

	var last types.Message
	for i := 0; i < 5; i++ {
		m, err := CreateMessage(store.DB, types.Message{
			ChannelGUID: channel.GUID,
			SenderGUID:  sender.UserGUID,
			Content:     "msg",
			CreatedAt:   int64(10 + i),
		})
		if err != nil {
			t.Fatalf("CreateMessage %d: %v", i, err)
		}
		last = m
	}

	page, err := GetMessagesInChannel(store.DB, channel.GUID, 2, "")
	if err != nil {
		t.Fatalf("GetMessagesInChannel: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(page))
	}
	if page[0].GUID != last.GUID {
		t.Errorf("expected newest-first ordering, got %+v", page)
	}

	nextPage, err := GetMessagesInChannel(store.DB, channel.GUID, 2, page[1].GUID)
	if err != nil {
		t.Fatalf("GetMessagesInChannel (cursor): %v", err)
	}
	for _, m := range nextPage {
		if m.CreatedAt >= page[1].CreatedAt {
			t.Errorf("cursor page leaked a message not older than the cursor: %+v", m)
		}
	}
}

func TestReactionToggle(t *testing.T) {
	store := openTestStore(t)
	channel, _ := CreateChannel(store.DB, types.Channel{WorkspaceGUID: "wsp-test0001", Name: "general", Type: types.ChannelTypeGeneral, CreatedBy: "system", CreatedAt: 1})
	sender := seedAgent(t, store, "nimble-lynx")
	msg, _ := CreateMessage(store.DB, types.Message{ChannelGUID: channel.GUID, SenderGUID: sender.UserGUID, Content: "hi", CreatedAt: 1})

	set, err := ToggleReaction(store.DB, msg.GUID, sender.UserGUID, "+1", 2)
	if err != nil {
		t.Fatalf("ToggleReaction: %v", err)
	}
	if !set {
		t.Error("expected first toggle to set the reaction")
	}

	reactions, err := GetReactions(store.DB, msg.GUID)
	if err != nil {
		t.Fatalf("GetReactions: %v", err)
	}
	if len(reactions) != 1 {
		t.Fatalf("expected 1 reaction, got %d", len(reactions))
	}

	set, err = ToggleReaction(store.DB, msg.GUID, sender.UserGUID, "+1", 3)
	if err != nil {
		t.Fatalf("ToggleReaction (unset): %v", err)
	}
	if set {
		t.Error("expected second toggle to unset the reaction")
	}
}

func TestReadReceiptsAndUnread(t *testing.T) {
	store := openTestStore(t)
	channel, _ := CreateChannel(store.DB, types.Channel{WorkspaceGUID: "wsp-test0001", Name: "general", Type: types.ChannelTypeGeneral, CreatedBy: "system", CreatedAt: 1})
	sender := seedAgent(t, store, "amber-crane")
	reader := seedAgent(t, store, "silent-moose")

	for i := 0; i < 3; i++ {
		if _, err := CreateMessage(store.DB, types.Message{ChannelGUID: channel.GUID, SenderGUID: sender.UserGUID, Content: "hi", CreatedAt: int64(10 + i)}); err != nil {
			t.Fatalf("CreateMessage: %v", err)
		}
	}

	count, err := CountUnread(store.DB, reader.UserGUID, channel.GUID)
	if err != nil {
		t.Fatalf("CountUnread: %v", err)
	}
	if count != 3 {
		t.Errorf("CountUnread = %d, want 3", count)
	}

	if err := MarkRead(store.DB, reader.UserGUID, channel.GUID, 11); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	count, err = CountUnread(store.DB, reader.UserGUID, channel.GUID)
	if err != nil {
		t.Fatalf("CountUnread after MarkRead: %v", err)
	}
	if count != 1 {
		t.Errorf("CountUnread after MarkRead = %d, want 1", count)
	}
}

func TestFeatureVoteTotal(t *testing.T) {
	store := openTestStore(t)
	author := seedAgent(t, store, "wry-heron")
	voter1 := seedAgent(t, store, "bold-stoat")
	voter2 := seedAgent(t, store, "keen-ibis")

	feature, err := CreateFeatureRequest(store.DB, types.FeatureRequest{
		Title:     "dark mode",
		CreatedBy: author.UserGUID,
		CreatedAt: 1,
	})
	if err != nil {
		t.Fatalf("CreateFeatureRequest: %v", err)
	}

	if err := CastVote(store.DB, feature.GUID, voter1.UserGUID, 1, 2); err != nil {
		t.Fatalf("CastVote voter1: %v", err)
	}
	if err := CastVote(store.DB, feature.GUID, voter2.UserGUID, 1, 3); err != nil {
		t.Fatalf("CastVote voter2: %v", err)
	}

	got, err := GetFeatureRequest(store.DB, feature.GUID)
	if err != nil {
		t.Fatalf("GetFeatureRequest: %v", err)
	}
	if got.VoteTotal != 2 {
		t.Errorf("VoteTotal = %d, want 2", got.VoteTotal)
	}

	if err := CastVote(store.DB, feature.GUID, voter1.UserGUID, -1, 4); err != nil {
		t.Fatalf("CastVote voter1 (flip): %v", err)
	}
	got, err = GetFeatureRequest(store.DB, feature.GUID)
	if err != nil {
		t.Fatalf("GetFeatureRequest: %v", err)
	}
	if got.VoteTotal != 0 {
		t.Errorf("VoteTotal after flip = %d, want 0", got.VoteTotal)
	}
}

func TestWorkspaceAndInvite(t *testing.T) {
	store := openTestStore(t)
	workspace, err := CreateWorkspace(store.DB, types.Workspace{Name: "acme", CreatedAt: 1})
	if err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}

	member := seedAgent(t, store, "plain-otter")
	if err := AddWorkspaceMember(store.DB, types.WorkspaceMember{
		WorkspaceGUID: workspace.GUID,
		UserGUID:      member.UserGUID,
		Role:          types.WorkspaceRoleMember,
		JoinedAt:      2,
	}); err != nil {
		t.Fatalf("AddWorkspaceMember: %v", err)
	}

	got, err := GetWorkspaceMember(store.DB, workspace.GUID, member.UserGUID)
	if err != nil {
		t.Fatalf("GetWorkspaceMember: %v", err)
	}
	if got == nil || got.Role != types.WorkspaceRoleMember {
		t.Fatalf("expected member role, got %+v", got)
	}

	if err := CreateInvite(store.DB, types.WorkspaceInvite{
		Token:         "inv-abc123",
		WorkspaceGUID: workspace.GUID,
		Role:          types.WorkspaceRoleMember,
		CreatedAt:     3,
	}); err != nil {
		t.Fatalf("CreateInvite: %v", err)
	}
	if err := RedeemInvite(store.DB, "inv-abc123"); err != nil {
		t.Fatalf("RedeemInvite: %v", err)
	}

	invite, err := GetInvite(store.DB, "inv-abc123")
	if err != nil {
		t.Fatalf("GetInvite: %v", err)
	}
	if invite == nil || invite.UseCount != 1 {
		t.Fatalf("expected use_count 1, got %+v", invite)
	}

	if err := RevokeInvite(store.DB, "inv-abc123", 4); err != nil {
		t.Fatalf("RevokeInvite: %v", err)
	}
	invites, err := ListInvites(store.DB, workspace.GUID)
	if err != nil {
		t.Fatalf("ListInvites: %v", err)
	}
	if len(invites) != 1 || invites[0].RevokedAt == nil {
		t.Fatalf("expected one revoked invite, got %+v", invites)
	}

	key, err := CreateAPIKey(store.DB, types.WorkspaceAPIKey{
		WorkspaceGUID: workspace.GUID,
		TokenHash:     "deadbeef",
		TokenPrefix:   "frk_dead",
		CreatedAt:     5,
	})
	if err != nil {
		t.Fatalf("CreateAPIKey: %v", err)
	}
	keys, err := ListAPIKeys(store.DB, workspace.GUID)
	if err != nil {
		t.Fatalf("ListAPIKeys: %v", err)
	}
	if len(keys) != 1 || keys[0].GUID != key.GUID {
		t.Fatalf("keys = %+v", keys)
	}
	if keys[0].TokenHash != "" {
		t.Error("expected the hash column to stay out of the listing")
	}
}

func TestConfigRoundTrip(t *testing.T) {
	store := openTestStore(t)

	_, ok, err := GetConfig(store.DB, "missing")
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if ok {
		t.Error("expected missing key to report ok=false")
	}

	if err := SetConfig(store.DB, "theme", "dark"); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	value, ok, err := GetConfig(store.DB, "theme")
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if !ok || value != "dark" {
		t.Errorf("GetConfig = (%q, %v), want (dark, true)", value, ok)
	}
}
