package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/frayhub/fray/internal/broadcaster"
	"github.com/frayhub/fray/internal/channels"
	"github.com/frayhub/fray/internal/registry"
	"github.com/frayhub/fray/internal/router"
	db "github.com/frayhub/fray/internal/store"
	"github.com/frayhub/fray/internal/types"
)

const testWorkspace = "wsp-test0001"

type noopInvoker struct{}

func (noopInvoker) InvokeForMessage(senderName, channelGUID, channelName, content, messageGUID string, mentions []string, depth int) {
}

func newTestServer(t *testing.T) (*Server, *db.Store, types.User) {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "fray.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if _, err := db.CreateWorkspace(store.DB, types.Workspace{GUID: testWorkspace, Name: "acme", CreatedAt: 1}); err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}
	user, err := db.CreateUser(store.DB, types.User{Name: "alice", Type: types.UserTypeHuman, CreatedAt: 1})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := db.CreateChannel(store.DB, types.Channel{
		WorkspaceGUID: testWorkspace, Name: "general", Type: types.ChannelTypeGeneral, CreatedBy: user.GUID, CreatedAt: 1,
	}); err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}

	hub := broadcaster.NewHub()
	reg := registry.New(store, hub, nil)
	chanMgr := channels.New(store, hub)
	r := router.New(store, hub, noopInvoker{})

	return New(store, hub, reg, chanMgr, r, testWorkspace), store, user
}

func doRequest(t *testing.T, s *Server, method, path string, body any, userGUID string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "127.0.0.1:0"
	if userGUID != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: userGUID})
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestListChannelsReturnsSeededGeneral(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/api/channels", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var channels []types.Channel
	if err := json.Unmarshal(rec.Body.Bytes(), &channels); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(channels) != 1 || channels[0].Name != "general" {
		t.Errorf("channels = %+v", channels)
	}
}

func TestSendMessageThenGetMessages(t *testing.T) {
	s, store, user := newTestServer(t)
	general, err := db.GetChannelByName(store.DB, testWorkspace, "general")
	if err != nil || general == nil {
		t.Fatalf("GetChannelByName: %v", err)
	}

	rec := doRequest(t, s, http.MethodPost, "/api/channels/"+general.GUID+"/messages", sendMessageBody{Content: "hello"}, user.GUID)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodGet, "/api/channels/"+general.GUID+"/messages", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var messages []types.Message
	if err := json.Unmarshal(rec.Body.Bytes(), &messages); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(messages) != 1 || messages[0].Content != "hello" {
		t.Errorf("messages = %+v", messages)
	}
}

func TestSendMessageMalformedBodyReturns400(t *testing.T) {
	s, store, user := newTestServer(t)
	general, err := db.GetChannelByName(store.DB, testWorkspace, "general")
	if err != nil || general == nil {
		t.Fatalf("GetChannelByName: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/channels/"+general.GUID+"/messages", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "127.0.0.1:0"
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: user.GUID})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/api/search", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestFeatureRequestLifecycle(t *testing.T) {
	s, _, user := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/features", createFeatureBody{Title: "dark mode"}, user.GUID)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var created types.FeatureRequest
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	rec = doRequest(t, s, http.MethodPost, "/api/features/"+created.GUID+"/vote", voteFeatureBody{Vote: 1}, user.GUID)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodGet, "/api/features", nil, "")
	var features []types.FeatureRequest
	if err := json.Unmarshal(rec.Body.Bytes(), &features); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(features) != 1 || features[0].VoteTotal != 1 {
		t.Errorf("features = %+v", features)
	}
}

func TestOpenDMIsIdempotent(t *testing.T) {
	s, store, user := newTestServer(t)
	agentUser, err := db.CreateUser(store.DB, types.User{Name: "river-otter", Type: types.UserTypeAgent, CreatedAt: 1})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := db.CreateAgent(store.DB, types.Agent{
		UserGUID: agentUser.GUID, AgentName: "river-otter", AgentType: types.AgentTypeClaudeCode,
		Status: types.AgentStatusOnline, WorkspaceGUID: testWorkspace,
	}); err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}

	rec := doRequest(t, s, http.MethodPost, "/api/dm/river-otter", nil, user.GUID)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var first types.Channel
	if err := json.Unmarshal(rec.Body.Bytes(), &first); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if first.Name != "dm-river-otter" || first.Type != types.ChannelTypeDM {
		t.Errorf("channel = %+v", first)
	}

	rec = doRequest(t, s, http.MethodPost, "/api/dm/river-otter", nil, user.GUID)
	var second types.Channel
	if err := json.Unmarshal(rec.Body.Bytes(), &second); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if second.GUID != first.GUID {
		t.Errorf("expected the same DM channel on repeat, got %s then %s", first.GUID, second.GUID)
	}
}

func TestOpenDMUnknownAgentReturns404(t *testing.T) {
	s, _, user := newTestServer(t)
	rec := doRequest(t, s, http.MethodPost, "/api/dm/nobody", nil, user.GUID)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestMarkReadResetsUnreadCount(t *testing.T) {
	s, store, user := newTestServer(t)
	general, err := db.GetChannelByName(store.DB, testWorkspace, "general")
	if err != nil || general == nil {
		t.Fatalf("GetChannelByName: %v", err)
	}
	reader, err := db.CreateUser(store.DB, types.User{Name: "bob", Type: types.UserTypeHuman, CreatedAt: 1})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	for _, content := range []string{"one", "two"} {
		rec := doRequest(t, s, http.MethodPost, "/api/channels/"+general.GUID+"/messages", sendMessageBody{Content: content}, user.GUID)
		if rec.Code != http.StatusCreated {
			t.Fatalf("send status = %d, body = %s", rec.Code, rec.Body.String())
		}
	}

	rec := doRequest(t, s, http.MethodGet, "/api/channels/"+general.GUID+"/unread", nil, reader.GUID)
	if rec.Code != http.StatusOK {
		t.Fatalf("unread status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var unread struct {
		Unread int `json:"unread"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &unread); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if unread.Unread != 2 {
		t.Errorf("unread = %d, want 2", unread.Unread)
	}

	rec = doRequest(t, s, http.MethodPost, "/api/channels/"+general.GUID+"/read", nil, reader.GUID)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("mark-read status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodGet, "/api/channels/"+general.GUID+"/unread", nil, reader.GUID)
	if err := json.Unmarshal(rec.Body.Bytes(), &unread); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if unread.Unread != 0 {
		t.Errorf("unread after mark-read = %d, want 0", unread.Unread)
	}
}

func TestListAPIKeysOmitsHash(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodPost, "/api/workspace/api-keys", nil, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodGet, "/api/workspace/api-keys", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var keys []types.WorkspaceAPIKey
	if err := json.Unmarshal(rec.Body.Bytes(), &keys); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("keys = %+v", keys)
	}
	if keys[0].TokenHash != "" {
		t.Error("expected the hash column to stay out of the listing")
	}
	if keys[0].TokenPrefix == "" {
		t.Error("expected the visible prefix to survive the listing")
	}
}

func TestLocalhostBypassGrantsAdminRole(t *testing.T) {
	s, _, user := newTestServer(t)
	rec := doRequest(t, s, http.MethodPost, "/api/workspace/api-keys", nil, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected localhost bypass to grant admin role, status = %d body = %s", rec.Code, rec.Body.String())
	}
	_ = user
}
