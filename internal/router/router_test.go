package router

import (
	"path/filepath"
	"testing"

	"github.com/frayhub/fray/internal/broadcaster"
	db "github.com/frayhub/fray/internal/store"
	"github.com/frayhub/fray/internal/types"
)

type recordingInvoker struct {
	calls []string
}

func (r *recordingInvoker) InvokeForMessage(senderName, channelGUID, channelName, content, messageGUID string, mentions []string, depth int) {
	r.calls = append(r.calls, content)
}

func newTestRouter(t *testing.T) (*Router, *db.Store, *recordingInvoker) {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "fray.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	invoker := &recordingInvoker{}
	return New(store, broadcaster.NewHub(), invoker), store, invoker
}

func seedSenderAndChannel(t *testing.T, store *db.Store) (types.User, types.Channel) {
	t.Helper()
	user, err := db.CreateUser(store.DB, types.User{Name: "alice", Type: types.UserTypeHuman, CreatedAt: 1})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	channel, err := db.CreateChannel(store.DB, types.Channel{
		WorkspaceGUID: "wsp-test0001", Name: "general", Type: types.ChannelTypeGeneral, CreatedBy: user.GUID, CreatedAt: 1,
	})
	if err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}
	return user, channel
}

func TestSendTriggersInvocation(t *testing.T) {
	r, store, invoker := newTestRouter(t)
	user, channel := seedSenderAndChannel(t, store)

	_, err := r.Send(SendRequest{
		SenderGUID: user.GUID, SenderName: user.Name,
		ChannelGUID: channel.GUID, ChannelName: channel.Name,
		Content: "hello @bob",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(invoker.calls) != 1 || invoker.calls[0] != "hello @bob" {
		t.Errorf("invoker calls = %v", invoker.calls)
	}
}

func TestSendWithReplyBuildsContextPrefix(t *testing.T) {
	r, store, invoker := newTestRouter(t)
	user, channel := seedSenderAndChannel(t, store)

	parent, err := r.Send(SendRequest{SenderGUID: user.GUID, SenderName: user.Name, ChannelGUID: channel.GUID, ChannelName: channel.Name, Content: "original"})
	if err != nil {
		t.Fatalf("Send (parent): %v", err)
	}

	_, err = r.Send(SendRequest{
		SenderGUID: user.GUID, SenderName: user.Name,
		ChannelGUID: channel.GUID, ChannelName: channel.Name,
		Content: "a reply", ParentGUID: parent.GUID,
	})
	if err != nil {
		t.Fatalf("Send (reply): %v", err)
	}

	if len(invoker.calls) != 2 {
		t.Fatalf("expected 2 invocations, got %d", len(invoker.calls))
	}
	replyInvokeContent := invoker.calls[1]
	want := "[Replying to alice: \"original\"]\n\na reply"
	if replyInvokeContent != want {
		t.Errorf("invoke content = %q, want %q", replyInvokeContent, want)
	}

	stored, err := db.GetMessage(store.DB, parent.GUID)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	_ = stored // persisted content is untouched; only the invoke-time text is prefixed
}

func TestEditOnlySender(t *testing.T) {
	r, store, _ := newTestRouter(t)
	user, channel := seedSenderAndChannel(t, store)

	msg, err := r.Send(SendRequest{SenderGUID: user.GUID, SenderName: user.Name, ChannelGUID: channel.GUID, ChannelName: channel.Name, Content: "hi"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if _, err := r.Edit(msg.GUID, "usr-someoneelse", "nope"); err == nil {
		t.Error("expected edit by a non-sender to fail")
	}

	edited, err := r.Edit(msg.GUID, user.GUID, "updated")
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if edited.Content != "updated" {
		t.Errorf("Content = %q, want updated", edited.Content)
	}
}

func TestReactToggle(t *testing.T) {
	r, store, _ := newTestRouter(t)
	user, channel := seedSenderAndChannel(t, store)
	msg, _ := r.Send(SendRequest{SenderGUID: user.GUID, SenderName: user.Name, ChannelGUID: channel.GUID, ChannelName: channel.Name, Content: "hi"})

	action, err := r.React(msg.GUID, user.GUID, "+1")
	if err != nil {
		t.Fatalf("React: %v", err)
	}
	if action != broadcaster.ReactionAdd {
		t.Errorf("action = %q, want add", action)
	}

	action, err = r.React(msg.GUID, user.GUID, "+1")
	if err != nil {
		t.Fatalf("React (toggle off): %v", err)
	}
	if action != broadcaster.ReactionRemove {
		t.Errorf("action = %q, want remove", action)
	}
}

func TestPriorityFetchDedupesAndBuckets(t *testing.T) {
	r, store, _ := newTestRouter(t)
	user, channel := seedSenderAndChannel(t, store)

	agentUser, err := db.CreateUser(store.DB, types.User{Name: "river-otter", Type: types.UserTypeAgent, CreatedAt: 1})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	agent := types.Agent{UserGUID: agentUser.GUID, AgentName: "river-otter", AgentType: types.AgentTypeClaudeCode, Status: types.AgentStatusOnline, WorkspaceGUID: "wsp-test0001"}
	if err := db.CreateAgent(store.DB, agent); err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}
	if _, err := db.AddChannelMember(store.DB, channel.GUID, agentUser.GUID, 1); err != nil {
		t.Fatalf("AddChannelMember: %v", err)
	}

	if _, err := r.Send(SendRequest{SenderGUID: user.GUID, SenderName: user.Name, ChannelGUID: channel.GUID, ChannelName: channel.Name, Content: "hey @river-otter", Mentions: []string{"river-otter"}}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	items, err := r.PriorityFetch(agent, 10)
	if err != nil {
		t.Fatalf("PriorityFetch: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 deduplicated item, got %d", len(items))
	}
	if items[0].Priority != types.PriorityMention {
		t.Errorf("Priority = %q, want mention", items[0].Priority)
	}
}
