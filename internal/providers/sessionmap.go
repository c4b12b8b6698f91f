package providers

import "sync"

// sessionMap tracks liveness for providers that have no remote probe: a
// session is marked alive at register-time and stays alive until the
// Registry explicitly disconnects it.
type sessionMap struct {
	mu    sync.RWMutex
	alive map[string]bool
	busy  map[string]bool
}

func newSessionMap() *sessionMap {
	return &sessionMap{alive: make(map[string]bool), busy: make(map[string]bool)}
}

func (m *sessionMap) markAlive(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alive[sessionID] = true
}

func (m *sessionMap) markDead(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.alive, sessionID)
	delete(m.busy, sessionID)
}

func (m *sessionMap) isAlive(sessionID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.alive[sessionID]
}

func (m *sessionMap) setBusy(sessionID string, busy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.busy[sessionID] = busy
}

func (m *sessionMap) isBusy(sessionID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.busy[sessionID]
}
