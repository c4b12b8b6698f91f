package providers

import (
	"context"
	"fmt"

	"github.com/frayhub/fray/internal/types"
)

// Prompter sends text into an already-running CLI session and returns its
// full reply. Claude Code and Codex sessions are driven out-of-process (the
// CLI owns its own stdin/stdout), so the adapter only needs a thin seam to
// push a prompt in and get the parts back; the registry that starts those
// sessions supplies the seam.
type Prompter func(ctx context.Context, sessionID, text string, cb Callbacks) ([]Part, error)

// ClaudeCodeAdapter drives an in-process-tracked Claude Code CLI session.
type ClaudeCodeAdapter struct {
	sessions *sessionMap
	prompt   Prompter
}

// NewClaudeCodeAdapter builds an adapter; prompt is the per-session send
// function wired in by whatever spawns the CLI session.
func NewClaudeCodeAdapter(prompt Prompter) *ClaudeCodeAdapter {
	return &ClaudeCodeAdapter{sessions: newSessionMap(), prompt: prompt}
}

// MarkRegistered records sessionID as alive; called when the Registry
// registers or reconnects the agent that owns it.
func (a *ClaudeCodeAdapter) MarkRegistered(sessionID string) {
	a.sessions.markAlive(sessionID)
}

// MarkDisconnected removes sessionID from the liveness map.
func (a *ClaudeCodeAdapter) MarkDisconnected(sessionID string) {
	a.sessions.markDead(sessionID)
}

func (a *ClaudeCodeAdapter) Prompt(ctx context.Context, agent types.Agent, text string, cb Callbacks) (*Response, error) {
	if agent.ProviderSessionID == nil {
		return nil, fmt.Errorf("claude_code agent %s missing sessionId", agent.AgentName)
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

func (a *ClaudeCodeAdapter) IsSessionBusy(agent types.Agent) bool {
	if agent.ProviderSessionID == nil {
		return false
	}
	return a.sessions.isBusy(*agent.ProviderSessionID)
}

// IsSessionAlive consults the in-process registered-at-register-time map;
// Claude Code sessions have no remote liveness probe.
func (a *ClaudeCodeAdapter) IsSessionAlive(agent types.Agent) bool {
	if agent.ProviderSessionID == nil {
		return false
	}
	return a.sessions.isAlive(*agent.ProviderSessionID)
}
