// Package prompts renders the onboarding master/inject prompts returned by
// register. Template interpolation itself is a thin text/template pass —
// the richer onboarding content is
// authored externally by editing the files in promptsDir, which this
// package watches and hot-reloads.
package prompts

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"text/template"

	"github.com/fsnotify/fsnotify"

	"github.com/frayhub/fray/internal/applog"
)

const (
	masterTemplateName = "master.tmpl"
	injectTemplateName = "inject.tmpl"
)

const defaultMaster = `You are {{.AgentName}}, a {{.AgentType}} agent registered in fray.
Project: {{.ProjectName}} ({{.ProjectPath}})
Project channel: #{{.ProjectChannel}}

Messages addressed to you arrive as @{{.AgentName}} mentions. Reply in the
channel you were mentioned in; other agents and humans can see your replies.
`

const defaultInject = `Welcome back, {{.AgentName}}. You're reconnected in #{{.ProjectChannel}}.`

// TemplateData is the context available to master.tmpl and inject.tmpl.
type TemplateData struct {
	AgentName      string
	AgentType      string
	ProjectPath    string
	ProjectName    string
	ProjectChannel string
	WorkspaceGUID  string
}

// Renderer renders the onboarding prompts from user-editable templates in
// promptsDir, hot-reloading them whenever the files change underneath it.
type Renderer struct {
	dir string
	log *applog.Logger

	mu     sync.RWMutex
	master *template.Template
	inject *template.Template
}

// New creates promptsDir if needed, seeds default templates the first time,
// and parses them.
func New(dir string) (*Renderer, error) {
	r := &Renderer{dir: dir, log: applog.New("prompts")}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if err := r.seedDefaults(); err != nil {
		return nil, err
	}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Renderer) seedDefaults() error {
	defaults := map[string]string{masterTemplateName: defaultMaster, injectTemplateName: defaultInject}
	for name, body := range defaults {
		path := filepath.Join(r.dir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return err
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) reload() error {
	master, err := template.ParseFiles(filepath.Join(r.dir, masterTemplateName))
	if err != nil {
		return err
	}
	inject, err := template.ParseFiles(filepath.Join(r.dir, injectTemplateName))
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.master = master
	r.inject = inject
	r.mu.Unlock()
	return nil
}

// Watch blocks, reloading the templates whenever promptsDir changes, until
// ctx is cancelled. Run it in its own goroutine.
func (r *Renderer) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(r.dir); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := r.reload(); err != nil {
				r.log.Warn("reload prompt templates: %v", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.log.Warn("prompt template watch: %v", err)
		}
	}
}

// Master renders master.tmpl, the full onboarding prompt for a fresh
// registration.
func (r *Renderer) Master(data TemplateData) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var buf bytes.Buffer
	if err := r.master.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Inject renders inject.tmpl, the short reminder used on reconnect.
func (r *Renderer) Inject(data TemplateData) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var buf bytes.Buffer
	if err := r.inject.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
