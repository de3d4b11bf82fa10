package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mbaucer/kgraph/internal/platform/logger"
)

// Cache stores assembled subgraphs in Redis. All methods are safe on a
// nil receiver, so callers never branch on whether caching is enabled.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

func NewCache(client *redis.Client, ttl time.Duration, log *logger.Logger) *Cache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{client: client, ttl: ttl, log: log.With("component", "RetrievalCache")}
}

// cacheKey is deterministic in the params: keys are sorted before hashing.
func cacheKey(namespace string, params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(namespace)
	for _, k := range keys {
		fmt.Fprintf(&b, ":%s=%v", k, params[k])
	}
	sum := sha256.Sum256([]byte(b.String()))
	return "kgraph:" + namespace + ":" + hex.EncodeToString(sum[:])[:16]
}

func (c *Cache) Get(ctx context.Context, namespace string, params map[string]any, out any) bool {
	if c == nil {
		return false
	}
	raw, err := c.client.Get(ctx, cacheKey(namespace, params)).Bytes()
	if err != nil {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.log.Warn("Corrupt cache entry dropped", "namespace", namespace, "error", err)
		return false
	}
	return true
}

func (c *Cache) Set(ctx context.Context, namespace string, params map[string]any, value any) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(namespace, params), raw, c.ttl).Err(); err != nil {
		c.log.Warn("Cache set failed", "namespace", namespace, "error", err)
	}
}

// Invalidate deletes every key in a namespace; ingestion calls this after
// a job commits so cached subgraphs never outlive the data they describe.
func (c *Cache) Invalidate(ctx context.Context, namespace string) int {
	if c == nil {
		return 0
	}
	var deleted int
	iter := c.client.Scan(ctx, 0, "kgraph:"+namespace+":*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err == nil {
			deleted++
		}
	}
	return deleted
}

func lookupSubgraph(ctx context.Context, c *Cache, namespace string, params map[string]any) (*Subgraph, bool) {
	var sub Subgraph
	if c.Get(ctx, namespace, params, &sub) {
		return &sub, true
	}
	return nil, false
}

func storeSubgraph(ctx context.Context, c *Cache, namespace string, params map[string]any, sub *Subgraph) {
	c.Set(ctx, namespace, params, sub)
}
