package addrcache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psds-microservice/support-bot/internal/model"
)

func TestCacheRememberResolve(t *testing.T) {
	c := New()

	_, ok := c.Resolve("bob")
	assert.False(t, ok)

	c.Remember("@Bob", 42)
	addr, ok := c.Resolve("bob")
	require.True(t, ok)
	assert.Equal(t, model.Address(42), addr)

	c.Remember("bob", 43)
	addr, ok = c.Resolve("@BOB")
	require.True(t, ok)
	assert.Equal(t, model.Address(43), addr, "last write wins")
	assert.Equal(t, 1, c.Len())
}

func TestCacheIgnoresEmptyUsername(t *testing.T) {
	c := New()
	c.Remember("", 1)
	c.Remember(" @ ", 2)
	assert.Equal(t, 0, c.Len())
	_, ok := c.Resolve("")
	assert.False(t, ok)
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			c.Remember("staff", model.Address(i))
		}(i)
		go func() {
			defer wg.Done()
			c.Resolve("staff")
		}()
	}
	wg.Wait()
	_, ok := c.Resolve("staff")
	assert.True(t, ok)
}
