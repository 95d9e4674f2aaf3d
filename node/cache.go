package node

import (
	"context"
	"strings"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/ethereum/go-ethereum/common"
)

// agentCache remembers user to agent mappings. Agents are never removed from
// the router, so an entry never goes stale, only evicted.
type agentCache struct {
	cache *bigcache.BigCache
}

func newAgentCache(ctx context.Context) (*agentCache, error) {
	cache, err := bigcache.New(ctx, bigcache.Config{
		// number of shards (must be a power of 2)
		Shards: 256,

		// time after which entry can be evicted
		LifeWindow: 120 * time.Minute,

		// Interval between removing expired entries (clean up).
		CleanWindow: 5 * time.Minute,

		// rps * lifeWindow, used only in initial memory allocation
		MaxEntriesInWindow: 100 * 60,

		// an address is 20 bytes
		MaxEntrySize: 32,

		// cache will not allocate more memory than this limit, value in MB
		HardMaxCacheSize: 64,
	})
	if err != nil {
		return nil, err
	}
	return &agentCache{cache: cache}, nil
}

func cacheKey(user common.Address) string {
	return "agent:" + strings.ToLower(user.Hex())
}

func (c *agentCache) Get(user common.Address) (common.Address, bool) {
	data, err := c.cache.Get(cacheKey(user))
	if err != nil || len(data) != common.AddressLength {
		return common.Address{}, false
	}
	return common.BytesToAddress(data), true
}

func (c *agentCache) Set(user, agent common.Address) {
	_ = c.cache.Set(cacheKey(user), agent.Bytes())
}

func (c *agentCache) Len() int {
	return c.cache.Len()
}

func (c *agentCache) Close() error {
	return c.cache.Close()
}
