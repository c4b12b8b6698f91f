package mcp

import lru "github.com/hashicorp/golang-lru/v2"

// sessionCap bounds the connection-identity map; once it holds a thousand
// connections, registering another evicts the least recently used entry
// (a lookup counts as a use).
const sessionCap = 1000

// identity is what a connection resolves to once register has run.
type identity struct {
	agentName     string
	workspaceGUID string
}

// sessionStore keys a streamable-transport connection id to the identity
// its register call established, so later tool calls on the same
// connection don't need to re-authenticate.
type sessionStore struct {
	cache *lru.Cache[string, identity]
}

func newSessionStore() *sessionStore {
	cache, err := lru.New[string, identity](sessionCap)
	if err != nil {
		panic(err) // only fails for a non-positive size, which sessionCap never is
	}
	return &sessionStore{cache: cache}
}

func (s *sessionStore) remember(connID, agentName, workspaceGUID string) {
	s.cache.Add(connID, identity{agentName: agentName, workspaceGUID: workspaceGUID})
}

func (s *sessionStore) forget(connID string) {
	s.cache.Remove(connID)
}

func (s *sessionStore) lookup(connID string) (identity, bool) {
	return s.cache.Get(connID)
}
