// Package addrcache remembers where staff members can be reached.
package addrcache

import (
	"strings"
	"sync"

	"github.com/psds-microservice/support-bot/internal/model"
)

// Cache maps a username to the last chat address it was seen from. Entries
// never expire; a username that never wrote to the bot cannot be resolved.
type Cache struct {
	mu    sync.RWMutex
	items map[string]model.Address
}

func New() *Cache {
	return &Cache{items: make(map[string]model.Address)}
}

// Remember overwrites the address for username. Empty usernames are ignored.
func (c *Cache) Remember(username string, addr model.Address) {
	key := normalize(username)
	if key == "" {
		return
	}
	c.mu.Lock()
	c.items[key] = addr
	c.mu.Unlock()
}

func (c *Cache) Resolve(username string) (model.Address, bool) {
	key := normalize(username)
	if key == "" {
		return 0, false
	}
	c.mu.RLock()
	addr, ok := c.items[key]
	c.mu.RUnlock()
	return addr, ok
}

// Len is the number of remembered usernames.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func normalize(username string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
}
