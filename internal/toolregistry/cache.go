package toolregistry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"calbot/internal/agent/ports"
)

const (
	defaultCacheMaxSize = 256
	defaultCacheTTL     = 2 * time.Minute
)

// CacheConfig configures the tool result cache behaviour.
type CacheConfig struct {
	// MaxSize is the maximum number of entries in the LRU cache.
	MaxSize int
	// TTL is how long a cached result remains valid. Availability and
	// booking lists go stale quickly, so keep this short.
	TTL time.Duration
}

// DefaultCacheConfig returns the defaults for tool result caching.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MaxSize: defaultCacheMaxSize,
		TTL:     defaultCacheTTL,
	}
}

// resultKey identifies a cached result by tool, session and normalised
// arguments. Sessions are isolated so one user's cached booking list
// never leaks into another conversation, and the session component lets
// a mutation drop exactly that conversation's stale reads.
type resultKey struct {
	tool    string
	session string
	args    string
}

// cacheEntry holds a cached tool result along with the timestamp it was stored.
type cacheEntry struct {
	content  string
	storedAt time.Time
}

// ResultCache is a result store shared by every tool in a registry.
// Read-only tools serve repeat calls from it; mutating tools purge the
// calling session's entries on success, so a list or availability check
// after a booking always refetches.
type ResultCache struct {
	cache *lru.Cache[resultKey, cacheEntry]
	ttl   time.Duration
	now   func() time.Time
}

// NewResultCache creates a shared result cache. Zero config values fall
// back to DefaultCacheConfig defaults.
func NewResultCache(config CacheConfig) *ResultCache {
	if config.MaxSize <= 0 {
		config.MaxSize = defaultCacheMaxSize
	}
	if config.TTL <= 0 {
		config.TTL = defaultCacheTTL
	}
	// lru.New only errors on non-positive size which is guarded above.
	cache, _ := lru.New[resultKey, cacheEntry](config.MaxSize)
	return &ResultCache{
		cache: cache,
		ttl:   config.TTL,
		now:   time.Now,
	}
}

// Wrap attaches delegate to the shared cache.
func (rc *ResultCache) Wrap(delegate ports.ToolExecutor) ports.ToolExecutor {
	if delegate == nil {
		return nil
	}
	return &cacheExecutor{delegate: delegate, shared: rc}
}

func (rc *ResultCache) get(key resultKey) (string, bool) {
	entry, ok := rc.cache.Get(key)
	if !ok {
		return "", false
	}
	if rc.now().Sub(entry.storedAt) >= rc.ttl {
		rc.cache.Remove(key)
		return "", false
	}
	return entry.content, true
}

func (rc *ResultCache) put(key resultKey, content string) {
	rc.cache.Add(key, cacheEntry{content: content, storedAt: rc.now()})
}

// purgeSession drops every cached result belonging to the session.
func (rc *ResultCache) purgeSession(sessionID string) {
	for _, key := range rc.cache.Keys() {
		if key.session == sessionID {
			rc.cache.Remove(key)
		}
	}
}

// cacheExecutor routes a tool's calls through the shared ResultCache.
// Read-only results are cached per (tool, session, arguments); a
// successful mutating call invalidates the session's cached reads.
type cacheExecutor struct {
	delegate ports.ToolExecutor
	shared   *ResultCache
}

// NewCacheExecutor wraps a single delegate with its own result cache.
// Tools that should invalidate each other must share one ResultCache
// via Wrap instead.
func NewCacheExecutor(delegate ports.ToolExecutor, config CacheConfig) ports.ToolExecutor {
	return NewResultCache(config).Wrap(delegate)
}

func (c *cacheExecutor) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	if c.delegate.Metadata().Mutating {
		result, err := c.delegate.Execute(ctx, call)
		if err == nil && result != nil && result.Error == nil {
			c.shared.purgeSession(call.SessionID)
		}
		return result, err
	}

	key := c.cacheKey(call)

	if content, ok := c.shared.get(key); ok {
		return &ports.ToolResult{
			CallID:  call.ID,
			Content: content,
		}, nil
	}

	result, err := c.delegate.Execute(ctx, call)
	if err != nil {
		return result, err
	}
	if result != nil && result.Error == nil {
		c.shared.put(key, result.Content)
	}
	return result, nil
}

func (c *cacheExecutor) Definition() ports.ToolDefinition {
	return c.delegate.Definition()
}

func (c *cacheExecutor) Metadata() ports.ToolMetadata {
	return c.delegate.Metadata()
}

func (c *cacheExecutor) cacheKey(call ports.ToolCall) resultKey {
	name := strings.TrimSpace(call.Name)
	if name == "" {
		name = strings.TrimSpace(c.delegate.Metadata().Name)
	}
	return resultKey{
		tool:    name,
		session: call.SessionID,
		args:    normalizeArgs(call.Arguments),
	}
}

// normalizeArgs serialises a map[string]any into a deterministic JSON
// string by sorting keys at every level.
func normalizeArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(sortedMap(args))
	if err != nil {
		return fmt.Sprintf("unmarshalable:%v", err)
	}
	return string(data)
}

// sortedMap converts nested maps to the same concrete type so
// json.Marshal serialises keys in sorted order at every level.
func sortedMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := m[k]
		if nested, ok := v.(map[string]any); ok {
			v = sortedMap(nested)
		}
		out[k] = v
	}
	return out
}

var _ ports.ToolExecutor = (*cacheExecutor)(nil)
