package registry

import (
	"context"
	"sync"
	"time"

	db "github.com/frayhub/fray/internal/store"
	"github.com/frayhub/fray/internal/types"
)

// ghostCache holds the most recently computed isGhost flag per agentName,
// rebuilt and swapped whole by the background refresh loop so readers
// always see a complete snapshot.
type ghostCache struct {
	mu    sync.RWMutex
	ghost map[string]bool
}

func newGhostCache() *ghostCache {
	return &ghostCache{ghost: make(map[string]bool)}
}

func (c *ghostCache) replace(next map[string]bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ghost = next
}

// IsGhost reports the last-computed ghost flag for agentName; false if the
// agent hasn't been through a refresh cycle yet.
func (c *ghostCache) IsGhost(agentName string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ghost[agentName]
}

// IsGhost exposes the registry's ghost cache to read models; ghost is a
// derived flag and never mutates the persisted status column.
func (r *Registry) IsGhost(agentName string) bool {
	return r.ghosts.IsGhost(agentName)
}

// RunGhostRefresher blocks, recomputing the ghost cache every
// GhostRefreshInterval until ctx is canceled. Run it in its own goroutine.
func (r *Registry) RunGhostRefresher(ctx context.Context) {
	ticker := time.NewTicker(GhostRefreshInterval)
	defer ticker.Stop()

	r.refreshGhosts()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refreshGhosts()
		}
	}
}

func (r *Registry) refreshGhosts() {
	workspaces, err := db.ListWorkspaces(r.store.DB)
	if err != nil {
		r.log.Warn("list workspaces for ghost refresh: %v", err)
		return
	}

	next := make(map[string]bool)
	for _, ws := range workspaces {
		agents, err := db.ListAgents(r.store.DB, ws.GUID)
		if err != nil {
			r.log.Warn("list agents for ghost refresh: %v", err)
			continue
		}
		for _, agent := range agents {
			next[agent.AgentName] = r.computeGhost(agent)
		}
	}
	r.ghosts.replace(next)
}

// computeGhost decides liveness: system agents are never ghosts; a
// subprocess agent with no active session is a ghost; otherwise liveness is
// decided by the matching Provider Adapter, falling back to a local PID
// probe when the session has a recorded PID.
func (r *Registry) computeGhost(agent types.Agent) bool {
	if agent.AgentType == types.AgentTypeSystem {
		return false
	}

	session, err := db.GetActiveSession(r.store.DB, agent.UserGUID)
	if err != nil {
		r.log.Warn("get active session for %s: %v", agent.AgentName, err)
		return true
	}
	if session == nil {
		return true
	}

	if prober, ok := r.probes[agent.AgentType]; ok {
		return !prober.IsSessionAlive(agent)
	}
	if session.PID != nil {
		return !ProcessAlive(*session.PID)
	}
	return false
}
