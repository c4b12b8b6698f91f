package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/frayhub/fray/internal/types"
)

const openCodeProbeTimeout = 4 * time.Second

// openCodeEvent is one NDJSON line streamed back from a session's message
// endpoint: either a text delta or the final assembled parts.
type openCodeEvent struct {
	Type  string `json:"type"`
	Delta string `json:"delta,omitempty"`
	Parts []struct {
		Type    string `json:"type"`
		Text    string `json:"text"`
		Ignored bool   `json:"ignored"`
	} `json:"parts,omitempty"`
}

// OpenCodeAdapter talks to a locally running opencode server over HTTP.
type OpenCodeAdapter struct {
	client *http.Client
}

// NewOpenCodeAdapter constructs an adapter using client, or a default
// timeout-bounded client if nil.
func NewOpenCodeAdapter(client *http.Client) *OpenCodeAdapter {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	return &OpenCodeAdapter{client: client}
}

func (a *OpenCodeAdapter) Prompt(ctx context.Context, agent types.Agent, text string, cb Callbacks) (*Response, error) {
	if agent.ServerURL == nil || agent.ProviderSessionID == nil {
		return nil, fmt.Errorf("opencode agent %s missing serverUrl/sessionId", agent.AgentName)
	}

	body, err := json.Marshal(map[string]any{
		"parts": []map[string]string{{"type": "text", "text": text}},
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/session/%s/message", strings.TrimRight(*agent.ServerURL, "/"), *agent.ProviderSessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	if cb.OnTypingStart != nil {
		cb.OnTypingStart()
	}

	resp, err := a.client.Do(req)
	if err != nil {
		if cb.OnError != nil {
			cb.OnError(err.Error())
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg := fmt.Sprintf("opencode returned status %d", resp.StatusCode)
		if cb.OnError != nil {
			cb.OnError(msg)
		}
		return nil, fmt.Errorf("%s", msg)
	}

	var parts []Part
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var event openCodeEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue
		}
		switch event.Type {
		case "text-delta":
			if cb.OnTextDelta != nil {
				cb.OnTextDelta(event.Delta)
			}
		case "done":
			for _, p := range event.Parts {
				parts = append(parts, Part{Type: textPartTag(p.Type), Text: p.Text, Ignored: p.Ignored})
			}
		}
	}
	if err := scanner.Err(); err != nil {
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

func (a *OpenCodeAdapter) IsSessionBusy(agent types.Agent) bool {
	if agent.ServerURL == nil || agent.ProviderSessionID == nil {
		return false
	}
	url := fmt.Sprintf("%s/session/%s/status", strings.TrimRight(*agent.ServerURL, "/"), *agent.ProviderSessionID)
	ctx, cancel := context.WithTimeout(context.Background(), openCodeProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	var status struct {
		Busy bool `json:"busy"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&status)
	return status.Busy
}

// IsSessionAlive pings GET {serverUrl}/session/{id} with a short timeout;
// any 2xx response is considered alive.
func (a *OpenCodeAdapter) IsSessionAlive(agent types.Agent) bool {
	if agent.ServerURL == nil || agent.ProviderSessionID == nil {
		return false
	}
	url := fmt.Sprintf("%s/session/%s", strings.TrimRight(*agent.ServerURL, "/"), *agent.ProviderSessionID)

	ctx, cancel := context.WithTimeout(context.Background(), openCodeProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// DiscoverSession lists serverURL's sessions and returns the one whose
// project directory best matches projectPath; used when a registration
// carries no explicit session id.
func (a *OpenCodeAdapter) DiscoverSession(serverURL, projectPath string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), openCodeProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(serverURL, "/")+"/session", nil)
	if err != nil {
		return "", false
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", false
	}

	var sessions []struct {
		ID        string `json:"id"`
		Directory string `json:"directory"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		return "", false
	}
	dirs := make(map[string]string, len(sessions))
	for _, s := range sessions {
		dirs[s.ID] = s.Directory
	}
	return MatchSessionByProjectPath(projectPath, dirs)
}

// MatchSessionByProjectPath finds the opencode session whose project
// directory is the longest matching prefix of projectPath, path-separator
// normalized.
func MatchSessionByProjectPath(projectPath string, sessionProjectDirs map[string]string) (sessionID string, ok bool) {
	normalize := func(p string) string {
		return strings.TrimRight(strings.ReplaceAll(p, "\\", "/"), "/") + "/"
	}
	target := normalize(projectPath)

	bestLen := -1
	for id, dir := range sessionProjectDirs {
		candidate := normalize(dir)
		if !strings.HasPrefix(target, candidate) {
			continue
		}
		if len(candidate) > bestLen {
			bestLen = len(candidate)
			sessionID = id
			ok = true
		}
	}
	return sessionID, ok
}
