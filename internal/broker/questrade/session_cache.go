package questrade

import "sync"

// sessionCache is a small concurrency-safe map from login id to its cached
// session, so ensureSession only pays the refresh cost once per expiry.
type sessionCache struct {
	mu   sync.RWMutex
	byID map[string]session
}

func newSessionCache() sessionCache {
	return sessionCache{byID: map[string]session{}}
}

func (c *sessionCache) get(loginID string) (session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.byID[loginID]
	return s, ok
}

func (c *sessionCache) set(loginID string, s session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[loginID] = s
}
