package providers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// resolveClaudePath finds the claude executable, checking common install
// locations beyond PATH.
func resolveClaudePath() (string, error) {
	if path, err := exec.LookPath("claude"); err == nil {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}

	for _, p := range []string{
		filepath.Join(home, ".claude", "local", "claude"),
		filepath.Join(home, ".claude", "claude"),
		filepath.Join(home, ".local", "bin", "claude"),
		filepath.Join(home, "bin", "claude"),
		"/opt/homebrew/bin/claude",
		"/usr/local/bin/claude",
	} {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("claude executable not found in PATH or common locations")
}

// claudeStreamEvent is one line of `claude --output-format stream-json`
// output: an assistant message turn carries its text in message.content.
type claudeStreamEvent struct {
	Type    string `json:"type"`
	Message *struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"message,omitempty"`
}

// NewClaudeCLIPrompter shells out to the claude CLI, resuming sessionID
// non-interactively for each prompt: one more prompt is pushed into a
// session that's already running, nothing is spawned fresh.
func NewClaudeCLIPrompter() Prompter {
	return func(ctx context.Context, sessionID, text string, cb Callbacks) ([]Part, error) {
		claudePath, err := resolveClaudePath()
		if err != nil {
			return nil, err
		}

		cmd := exec.CommandContext(ctx, claudePath,
			"--resume", sessionID, "-p", text,
			"--output-format", "stream-json", "--verbose")
		cmd.Env = os.Environ()

		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("stdout pipe: %w", err)
		}
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("start claude: %w", err)
		}

		var parts []Part
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var event claudeStreamEvent
			if json.Unmarshal(line, &event) != nil || event.Type != "assistant" || event.Message == nil {
				continue
			}
			for _, block := range event.Message.Content {
				if block.Type != "text" || block.Text == "" {
					continue
				}
				if cb.OnTextDelta != nil {
					cb.OnTextDelta(block.Text)
				}
				parts = append(parts, Part{Type: partText, Text: block.Text})
			}
		}
		if err := cmd.Wait(); err != nil {
			return nil, fmt.Errorf("claude exec: %w", err)
		}
		return parts, nil
	}
}
