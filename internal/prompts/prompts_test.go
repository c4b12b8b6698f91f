package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewSeedsDefaultsAndRenders(t *testing.T) {
	dir := t.TempDir()
	r, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	master, err := r.Master(TemplateData{AgentName: "silly-narwhal", AgentType: "claude_code", ProjectName: "widgets", ProjectChannel: "project-widgets"})
	if err != nil {
		t.Fatalf("Master: %v", err)
	}
	if !strings.Contains(master, "silly-narwhal") || !strings.Contains(master, "project-widgets") {
		t.Errorf("master = %q, missing interpolated fields", master)
	}

	inject, err := r.Inject(TemplateData{AgentName: "silly-narwhal", ProjectChannel: "project-widgets"})
	if err != nil {
		t.Fatalf("Inject: %v", err)
	}
	if !strings.Contains(inject, "silly-narwhal") {
		t.Errorf("inject = %q, missing agent name", inject)
	}
}

func TestReloadPicksUpEditedTemplate(t *testing.T) {
	dir := t.TempDir()
	r, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, masterTemplateName), []byte("hello {{.AgentName}}"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := r.reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}

	master, err := r.Master(TemplateData{AgentName: "clever-otter"})
	if err != nil {
		t.Fatalf("Master: %v", err)
	}
	if master != "hello clever-otter" {
		t.Errorf("master = %q, want %q", master, "hello clever-otter")
	}
}
