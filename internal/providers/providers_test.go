package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/frayhub/fray/internal/types"
)

func TestExtractTextSkipsIgnoredAndNonText(t *testing.T) {
	parts := []Part{
		{Type: partText, Text: "hello"},
		{Type: partTool, Text: "ls -la"},
		{Type: partText, Text: "ignored", Ignored: true},
		{Type: partText, Text: "world"},
	}
	got := ExtractText(parts)
	want := "hello\nworld"
	if got != want {
		t.Errorf("ExtractText = %q, want %q", got, want)
	}
}

func TestExtractTextEmpty(t *testing.T) {
	if got := ExtractText(nil); got != "" {
		t.Errorf("ExtractText(nil) = %q, want empty", got)
	}
}

func TestExtractResponseMentions(t *testing.T) {
	registered := map[string]struct{}{"river-otter": {}, "fox": {}}
	got := ExtractResponseMentions("thanks @river-otter and @river-otter, cc @fox @stranger @self", registered, "self")
	want := []string{"river-otter", "fox"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMatchSessionByProjectPath(t *testing.T) {
	dirs := map[string]string{
		"ses-1": "/home/dev/widgets",
		"ses-2": "/home/dev/widgets/sub",
	}
	id, ok := MatchSessionByProjectPath("/home/dev/widgets/sub/file.go", dirs)
	if !ok || id != "ses-2" {
		t.Errorf("got (%q, %v), want ses-2, true", id, ok)
	}

	if _, ok := MatchSessionByProjectPath("/unrelated/path", dirs); ok {
		t.Error("expected no match for unrelated path")
	}
}

func TestClaudeCodeAdapterLivenessAndPrompt(t *testing.T) {
	sessionID := "ses-abc123"
	adapter := NewClaudeCodeAdapter(func(ctx context.Context, sid, text string, cb Callbacks) ([]Part, error) {
		if sid != sessionID {
			t.Errorf("sessionID = %q, want %q", sid, sessionID)
		}
		return []Part{{Type: partText, Text: "reply: " + text}}, nil
	})

	agent := types.Agent{AgentName: "river-otter", AgentType: types.AgentTypeClaudeCode, ProviderSessionID: &sessionID}

	if adapter.IsSessionAlive(agent) {
		t.Error("expected session not yet alive before registration")
	}
	adapter.MarkRegistered(sessionID)
	if !adapter.IsSessionAlive(agent) {
		t.Error("expected session alive after registration")
	}

	resp, err := adapter.Prompt(context.Background(), agent, "hi", Callbacks{})
	if err != nil {
		t.Fatalf("Prompt: %v", err)
	}
	if resp == nil || resp.Text != "reply: hi" {
		t.Errorf("resp = %+v", resp)
	}

	adapter.MarkDisconnected(sessionID)
	if adapter.IsSessionAlive(agent) {
		t.Error("expected session dead after disconnect")
	}
}

func TestClaudeCodeAdapterEmptyResponseIsNil(t *testing.T) {
	sessionID := "ses-empty"
	adapter := NewClaudeCodeAdapter(func(ctx context.Context, sid, text string, cb Callbacks) ([]Part, error) {
		return nil, nil
	})
	agent := types.Agent{ProviderSessionID: &sessionID}

	resp, err := adapter.Prompt(context.Background(), agent, "hi", Callbacks{})
	if err != nil {
		t.Fatalf("Prompt: %v", err)
	}
	if resp != nil {
		t.Errorf("resp = %+v, want nil", resp)
	}
}

func TestClaudeCodeAdapterPromptErrorInvokesOnError(t *testing.T) {
	sessionID := "ses-err"
	adapter := NewClaudeCodeAdapter(func(ctx context.Context, sid, text string, cb Callbacks) ([]Part, error) {
		return nil, errors.New("boom")
	})
	agent := types.Agent{ProviderSessionID: &sessionID}

	var gotErr string
	_, err := adapter.Prompt(context.Background(), agent, "hi", Callbacks{OnError: func(msg string) { gotErr = msg }})
	if err == nil {
		t.Fatal("expected error")
	}
	if gotErr != "boom" {
		t.Errorf("gotErr = %q, want boom", gotErr)
	}
}

func TestCodexAdapterBusyTracking(t *testing.T) {
	sessionID := "ses-codex1"
	started := make(chan struct{})
	release := make(chan struct{})
	adapter := NewCodexAdapter(func(ctx context.Context, sid, text string, cb Callbacks) ([]Part, error) {
		close(started)
		<-release
		return []Part{{Type: partText, Text: "done"}}, nil
	})
	agent := types.Agent{ProviderSessionID: &sessionID}

	done := make(chan struct{})
	go func() {
		_, _ = adapter.Prompt(context.Background(), agent, "hi", Callbacks{})
		close(done)
	}()

	<-started
	if !adapter.IsSessionBusy(agent) {
		t.Error("expected session busy mid-prompt")
	}
	close(release)
	<-done
	if adapter.IsSessionBusy(agent) {
		t.Error("expected session idle after prompt completes")
	}
}
