// Package wiring assembles the Registry/Channels/Router/Invoker/Prompts
// stack shared by both the fray-hubd daemon and the fray-mcp stdio
// connector, so the two entrypoints can't drift on how a component is
// constructed.
package wiring

import (
	"time"

	"github.com/frayhub/fray/internal/broadcaster"
	"github.com/frayhub/fray/internal/channels"
	"github.com/frayhub/fray/internal/invoker"
	"github.com/frayhub/fray/internal/prompts"
	"github.com/frayhub/fray/internal/providers"
	"github.com/frayhub/fray/internal/registry"
	"github.com/frayhub/fray/internal/router"
	db "github.com/frayhub/fray/internal/store"
	"github.com/frayhub/fray/internal/types"
)

// Components is the full set of process-wide singletons built against one
// Store, minus the transport-specific MCP/HTTP servers that sit on top.
type Components struct {
	Hub      *broadcaster.Hub
	Registry *registry.Registry
	Channels *channels.Manager
	Router   *router.Router
	Invoker  *invoker.Invoker
	Prompts  *prompts.Renderer
}

// Build wires one Components instance against store, rendering onboarding
// prompts from promptsDir and scoping agent/channel lookups to
// workspaceGUID.
func Build(store *db.Store, promptsDir, workspaceGUID string) (*Components, error) {
	promptRenderer, err := prompts.New(promptsDir)
	if err != nil {
		return nil, err
	}

	hub := broadcaster.NewHub()

	opencodeAdapter := providers.NewOpenCodeAdapter(nil)
	claudeAdapter := providers.NewClaudeCodeAdapter(providers.NewClaudeCLIPrompter())
	codexAdapter := providers.NewCodexAdapter(providers.NewCodexCLIPrompter())
	providerRegistry := providers.NewRegistry(opencodeAdapter, claudeAdapter, codexAdapter)

	probes := map[types.AgentType]registry.LivenessProber{
		types.AgentTypeOpenCode:   opencodeAdapter,
		types.AgentTypeClaudeCode: claudeAdapter,
		types.AgentTypeCodex:      codexAdapter,
	}

	reg := registry.New(store, hub, probes)
	chanMgr := channels.New(store, hub)
	inv := invoker.New(store, hub, providerRegistry, workspaceGUID)
	r := router.New(store, hub, inv)

	return &Components{
		Hub: hub, Registry: reg, Channels: chanMgr, Router: r, Invoker: inv, Prompts: promptRenderer,
	}, nil
}

// defaultWorkspaceKey pins which workspace the hub serves, so the choice
// survives a second workspace being created later.
const defaultWorkspaceKey = "default_workspace"

// EnsureDefaultWorkspace returns the store's default workspace GUID,
// creating one named "default" the first time the store is opened and
// recording the choice in the config table.
func EnsureDefaultWorkspace(store *db.Store) (string, error) {
	if guid, ok, err := db.GetConfig(store.DB, defaultWorkspaceKey); err != nil {
		return "", err
	} else if ok {
		if ws, err := db.GetWorkspace(store.DB, guid); err != nil {
			return "", err
		} else if ws != nil {
			return guid, nil
		}
	}

	workspaces, err := db.ListWorkspaces(store.DB)
	if err != nil {
		return "", err
	}
	if len(workspaces) > 0 {
		return workspaces[0].GUID, db.SetConfig(store.DB, defaultWorkspaceKey, workspaces[0].GUID)
	}

	created, err := db.CreateWorkspace(store.DB, types.Workspace{Name: "default", CreatedAt: time.Now().Unix()})
	if err != nil {
		return "", err
	}
	return created.GUID, db.SetConfig(store.DB, defaultWorkspaceKey, created.GUID)
}
