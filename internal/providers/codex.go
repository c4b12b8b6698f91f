package providers

import (
	"context"
	"fmt"

	"github.com/frayhub/fray/internal/types"
)

// CodexAdapter drives an in-process-tracked Codex CLI session. Same shape
// as ClaudeCodeAdapter.
type CodexAdapter struct {
	sessions *sessionMap
	prompt   Prompter
}

// NewCodexAdapter builds an adapter; prompt is the per-session send function
// wired in by whatever spawns the CLI session.
func NewCodexAdapter(prompt Prompter) *CodexAdapter {
	return &CodexAdapter{sessions: newSessionMap(), prompt: prompt}
}

// MarkRegistered records sessionID as alive.
func (a *CodexAdapter) MarkRegistered(sessionID string) {
	a.sessions.markAlive(sessionID)
}

// MarkDisconnected removes sessionID from the liveness map.
func (a *CodexAdapter) MarkDisconnected(sessionID string) {
	a.sessions.markDead(sessionID)
}

func (a *CodexAdapter) Prompt(ctx context.Context, agent types.Agent, text string, cb Callbacks) (*Response, error) {
	if agent.ProviderSessionID == nil {
		return nil, fmt.Errorf("codex agent %s missing sessionId", agent.AgentName)
	}
	sessionID := *agent.ProviderSessionID

	a.sessions.setBusy(sessionID, true)
	defer a.sessions.setBusy(sessionID, false)

	if cb.OnTypingStart != nil {
		cb.OnTypingStart()
	}

	parts, err := a.prompt(ctx, sessionID, text, cb)
	if err != nil {
		if cb.OnError != nil {
			cb.OnError(err.Error())
		}
		return nil, err
	}

	extracted := ExtractText(parts)
	if extracted == "" {
		return nil, nil
	}
	return &Response{Text: extracted}, nil
}

func (a *CodexAdapter) IsSessionBusy(agent types.Agent) bool {
	if agent.ProviderSessionID == nil {
		return false
	}
	return a.sessions.isBusy(*agent.ProviderSessionID)
}

func (a *CodexAdapter) IsSessionAlive(agent types.Agent) bool {
	if agent.ProviderSessionID == nil {
		return false
	}
	return a.sessions.isAlive(*agent.ProviderSessionID)
}
