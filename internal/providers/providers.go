// Package providers implements the Provider Adapters component: a uniform
// prompt/liveness interface over opencode, claude_code, and codex sessions.
package providers

import (
	"context"
	"regexp"
	"strings"

	"github.com/frayhub/fray/internal/types"
)

// Callbacks are the streaming hooks a Prompt call may invoke any number of
// times (onTextDelta, onTypingStart) or at most once and terminally
// (onError).
type Callbacks struct {
	OnTypingStart func()
	OnTextDelta   func(delta string)
	OnError       func(msg string)
}

// Tokens is the input/output token accounting a provider reports.
type Tokens struct {
	Input  int
	Output int
}

// Response is what a successful Prompt call returns.
type Response struct {
	Text   string
	Cost   float64
	Tokens Tokens
}

// Adapter is the uniform interface every provider implements.
type Adapter interface {
	// Prompt sends text to the agent's session, invoking callbacks as the
	// response streams in. Returns nil, nil if the provider legitimately has
	// no reply (treated the same as an empty-extraction "no response").
	Prompt(ctx context.Context, agent types.Agent, text string, cb Callbacks) (*Response, error)
	// IsSessionBusy reports whether the session is currently mid-prompt.
	IsSessionBusy(agent types.Agent) bool
	// IsSessionAlive is the liveness probe the Registry's ghost detector uses.
	IsSessionAlive(agent types.Agent) bool
}

// textPartTag marks a response fragment as a text part vs. tool/reasoning.
type textPartTag string

const (
	partText      textPartTag = "text"
	partTool      textPartTag = "tool"
	partReasoning textPartTag = "reasoning"
)

// Part is one fragment of a provider response — providers interleave text
// with tool invocations, reasoning, and other structured fragments.
type Part struct {
	Type    textPartTag
	Text    string
	Ignored bool
}

// ExtractText concatenates non-ignored text parts with newlines and trims
// the result. Empty extraction means "no response".
func ExtractText(parts []Part) string {
	var lines []string
	for _, p := range parts {
		if p.Type != partText || p.Ignored {
			continue
		}
		if p.Text == "" {
			continue
		}
		lines = append(lines, p.Text)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

var mentionTokenRe = regexp.MustCompile(`@([\w-]+)`)

// ExtractResponseMentions scans text for @token mentions, intersects them
// against registered agent names, and excludes respondingAgent so a reply
// never re-triggers its own author.
func ExtractResponseMentions(text string, registeredAgents map[string]struct{}, respondingAgent string) []string {
	matches := mentionTokenRe.FindAllStringSubmatch(text, -1)
	seen := make(map[string]struct{})
	var mentions []string
	for _, m := range matches {
		name := m[1]
		if name == respondingAgent {
			continue
		}
		if _, ok := registeredAgents[name]; !ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		mentions = append(mentions, name)
	}
	return mentions
}

// Registry selects the Adapter for an agent's type.
type Registry struct {
	adapters map[types.AgentType]Adapter
}

// NewRegistry builds a provider Registry from one adapter per agent type.
func NewRegistry(opencode, claudeCode, codex Adapter) *Registry {
	return &Registry{adapters: map[types.AgentType]Adapter{
		types.AgentTypeOpenCode:   opencode,
		types.AgentTypeClaudeCode: claudeCode,
		types.AgentTypeCodex:      codex,
	}}
}

// For returns the Adapter for agentType, or nil if unknown (e.g. "system").
func (r *Registry) For(agentType types.AgentType) Adapter {
	return r.adapters[agentType]
}
