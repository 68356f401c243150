// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package cache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/tenantcore/internal/config"
	"github.com/tomtom215/tenantcore/internal/logging"
	"github.com/tomtom215/tenantcore/internal/metrics"
	"github.com/tomtom215/tenantcore/internal/models"
	"github.com/tomtom215/tenantcore/internal/store"
)

// deleteBatch bounds the number of keys passed to one DEL.
const deleteBatch = 500

// ResponseCache caches serialized HTTP responses per user and keeps a
// reverse index from JSON:API elements to the cache keys containing them.
//
// The cache is advisory: every operation logs store failures and returns a
// safe default (a miss, zero, or nothing), so a broken Redis never breaks
// the request that consulted it.
//
// Known gap: Delete does not scrub the key out of the element index sets it
// belongs to. The stale members expire with the index set's TTL and deleting
// an already missing key during invalidation is harmless.
type ResponseCache struct {
	kv      store.Store
	prefix  string
	ttl     time.Duration
	enabled bool
	skip    *PathMatcher
	log     zerolog.Logger
}

// New creates a ResponseCache on kv. A nil kv behaves like a disabled cache.
func New(kv store.Store, cfg config.CacheConfig) *ResponseCache {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "api_cache"
	}
	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ResponseCache{
		kv:      kv,
		prefix:  prefix,
		ttl:     ttl,
		enabled: cfg.Enabled && kv != nil,
		skip:    NewPathMatcher(cfg.SkipPatterns),
		log:     logging.WithComponent("cache"),
	}
}

// Enabled reports whether the cache stores and serves entries.
func (c *ResponseCache) Enabled() bool {
	return c != nil && c.enabled
}

// DefaultTTL returns the TTL used when Set is called without one.
func (c *ResponseCache) DefaultTTL() time.Duration {
	return c.ttl
}

// BuildKey returns the cache key of a request with this cache's prefix.
func (c *ResponseCache) BuildKey(userID, method, path string, query url.Values, extra ...string) string {
	return BuildKey(c.prefix, userID, method, path, query, extra...)
}

// ShouldCache reports whether a request may be served from or stored in the
// cache: GET only, and only for paths outside the skip patterns.
func (c *ResponseCache) ShouldCache(method, path string) bool {
	if !c.Enabled() {
		return false
	}
	if !strings.EqualFold(method, http.MethodGet) {
		return false
	}
	return !c.skip.Match(path)
}

// Get returns the cached JSON for key. Absent keys, store errors and values
// that are not valid JSON are all reported as a miss.
func (c *ResponseCache) Get(ctx context.Context, key string) (json.RawMessage, bool) {
	if !c.Enabled() {
		return nil, false
	}

	val, ok, err := c.kv.Get(ctx, key)
	if err != nil {
		metrics.RecordCacheError("get")
		c.log.Warn().Err(err).Str("key", key).Msg("Cache get failed")
		metrics.RecordCacheLookup(false)
		return nil, false
	}
	if !ok {
		metrics.RecordCacheLookup(false)
		return nil, false
	}
	if !json.Valid([]byte(val)) {
		metrics.RecordCacheError("decode")
		c.log.Warn().Str("key", key).Msg("Cached value is not valid JSON, treating as miss")
		metrics.RecordCacheLookup(false)
		return nil, false
	}

	metrics.RecordCacheLookup(true)
	return json.RawMessage(val), true
}

// GetInto decodes the cached value for key into dst.
func (c *ResponseCache) GetInto(ctx context.Context, key string, dst interface{}) bool {
	raw, ok := c.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		metrics.RecordCacheError("decode")
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to decode cached value")
		return false
	}
	return true
}

// Set stores value under key for ttl (the default TTL when ttl <= 0).
//
// value may be pre-serialized JSON ([]byte or json.RawMessage) or any value
// go-json can marshal. When the value is a JSON:API document, key is added
// to the index set of every element in its primary data and included
// resources, and each index set's TTL is refreshed to ttl.
func (c *ResponseCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if !c.Enabled() {
		return
	}
	if ttl <= 0 {
		ttl = c.ttl
	}

	data, err := encode(value)
	if err != nil {
		metrics.RecordCacheError("encode")
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to serialize value for cache")
		return
	}

	if err := c.kv.SetWithTTL(ctx, key, string(data), ttl); err != nil {
		metrics.RecordCacheError("set")
		c.log.Warn().Err(err).Str("key", key).Msg("Cache set failed")
		return
	}
	metrics.CacheSets.Inc()

	c.indexElements(ctx, key, data, ttl)
}

func encode(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case json.RawMessage:
		if !json.Valid(v) {
			return nil, errors.New("invalid raw JSON")
		}
		return v, nil
	case []byte:
		if !json.Valid(v) {
			return nil, errors.New("invalid raw JSON")
		}
		return v, nil
	default:
		return json.Marshal(value)
	}
}

func (c *ResponseCache) indexElements(ctx context.Context, key string, data []byte, ttl time.Duration) {
	elements := ParseDocument(data).Elements()
	if len(elements) == 0 {
		return
	}

	p := c.kv.Pipeline()
	for _, el := range elements {
		setKey := ElementKey(el.Type, el.ID)
		p.SetAdd(setKey, key)
		p.Expire(setKey, ttl)
	}
	if err := p.Exec(ctx); err != nil {
		metrics.RecordCacheError("index")
		c.log.Warn().Err(err).Str("key", key).Int("elements", len(elements)).
			Msg("Failed to index cached response elements")
	}
}

// Delete removes one cache entry and returns the number of keys removed.
func (c *ResponseCache) Delete(ctx context.Context, key string) int64 {
	if c == nil || c.kv == nil {
		return 0
	}
	n, err := c.kv.Delete(ctx, key)
	if err != nil {
		metrics.RecordCacheError("delete")
		c.log.Warn().Err(err).Str("key", key).Msg("Cache delete failed")
		return 0
	}
	metrics.RecordCacheInvalidation("key", n)
	return n
}

// DeleteUserCache removes every cache entry of one user.
func (c *ResponseCache) DeleteUserCache(ctx context.Context, userID string) int64 {
	if c == nil || c.kv == nil {
		return 0
	}
	n, err := c.deleteByPattern(ctx, UserPattern(c.prefix, userID))
	if err != nil {
		metrics.RecordCacheError("delete_user")
		c.log.Warn().Err(err).Str("user_id", userID).Msg("Failed to delete user cache")
	}
	metrics.RecordCacheInvalidation("user", n)
	return n
}

// DeleteByPattern removes every key matching a glob pattern and returns the
// number removed. On error the keys deleted so far are still counted.
func (c *ResponseCache) DeleteByPattern(ctx context.Context, pattern string) int64 {
	if c == nil || c.kv == nil {
		return 0
	}
	n, err := c.deleteByPattern(ctx, pattern)
	if err != nil {
		metrics.RecordCacheError("delete_pattern")
		c.log.Warn().Err(err).Str("pattern", pattern).Msg("Failed to delete keys by pattern")
	}
	metrics.RecordCacheInvalidation("pattern", n)
	return n
}

func (c *ResponseCache) deleteByPattern(ctx context.Context, pattern string) (int64, error) {
	keys, err := c.kv.Keys(ctx, pattern)
	if err != nil {
		return 0, fmt.Errorf("list keys %q: %w", pattern, err)
	}

	var total int64
	for start := 0; start < len(keys); start += deleteBatch {
		end := min(start+deleteBatch, len(keys))
		n, err := c.kv.Delete(ctx, keys[start:end]...)
		total += n
		if err != nil {
			return total, fmt.Errorf("delete keys %q: %w", pattern, err)
		}
	}
	return total, nil
}

// ElementResult is the outcome of invalidating one element. Deleted counts
// the cache keys that were listed in the element's index set.
type ElementResult struct {
	Element models.Element
	Deleted int64
	Err     error
}

// InvalidationReport lists the outcome of a batch invalidation per element.
type InvalidationReport struct {
	Results []ElementResult
}

// Deleted returns the number of cache keys removed across all elements.
func (r InvalidationReport) Deleted() int64 {
	var total int64
	for _, res := range r.Results {
		total += res.Deleted
	}
	return total
}

// Failed returns the results that carry an error.
func (r InvalidationReport) Failed() []ElementResult {
	var failed []ElementResult
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

// Err joins the per-element errors, or returns nil when all succeeded.
func (r InvalidationReport) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.Element, res.Err))
		}
	}
	return errors.Join(errs...)
}

// InvalidateByElement deletes every cache entry indexed under the element,
// and the index set itself, in one pipeline. It returns the number of
// entries invalidated.
func (c *ResponseCache) InvalidateByElement(ctx context.Context, elementType, id string) int64 {
	n, err := c.invalidateElement(ctx, elementType, id)
	if err != nil {
		metrics.RecordCacheError("invalidate")
		c.log.Warn().Err(err).Str("element", elementType+":"+id).Msg("Element invalidation failed")
		return 0
	}
	return n
}

func (c *ResponseCache) invalidateElement(ctx context.Context, elementType, id string) (int64, error) {
	if c == nil || c.kv == nil {
		return 0, nil
	}

	setKey := ElementKey(elementType, id)
	members, err := c.kv.SetMembers(ctx, setKey)
	if err != nil {
		return 0, fmt.Errorf("read index %s: %w", setKey, err)
	}
	if len(members) == 0 {
		return 0, nil
	}

	p := c.kv.Pipeline()
	p.Delete(members...)
	p.Delete(setKey)
	if err := p.Exec(ctx); err != nil {
		return 0, fmt.Errorf("delete indexed keys of %s: %w", setKey, err)
	}

	n := int64(len(members))
	metrics.RecordCacheInvalidation("element", n)
	c.log.Debug().Str("element", elementType+":"+id).Int64("keys", n).Msg("Invalidated element")
	return n, nil
}

// InvalidateByElements invalidates each element in turn. A failure on one
// element is recorded in the report and the remaining elements are still
// processed, so a failing store can leave the batch partially applied.
func (c *ResponseCache) InvalidateByElements(ctx context.Context, elements []models.Element) InvalidationReport {
	report := InvalidationReport{Results: make([]ElementResult, 0, len(elements))}
	for _, el := range elements {
		n, err := c.invalidateElement(ctx, el.Type, el.ID)
		report.Results = append(report.Results, ElementResult{Element: el, Deleted: n, Err: err})
	}

	if failed := report.Failed(); len(failed) > 0 {
		metrics.RecordCacheError("invalidate")
		c.log.Warn().Err(report.Err()).
			Int("elements", len(elements)).
			Int("failed", len(failed)).
			Msg("Some elements could not be invalidated")
	}
	return report
}

// InvalidateByType invalidates every indexed element of one type.
func (c *ResponseCache) InvalidateByType(ctx context.Context, elementType string) InvalidationReport {
	if c == nil || c.kv == nil {
		return InvalidationReport{}
	}

	pattern := ElementTypePattern(elementType)
	keys, err := c.kv.Keys(ctx, pattern)
	if err != nil {
		metrics.RecordCacheError("invalidate_type")
		c.log.Warn().Err(err).Str("type", elementType).Msg("Failed to list element index sets")
		return InvalidationReport{Results: []ElementResult{{
			Element: models.Element{Type: elementType, ID: "*"},
			Err:     fmt.Errorf("list %q: %w", pattern, err),
		}}}
	}

	elements := make([]models.Element, 0, len(keys))
	for _, key := range keys {
		t, id, ok := parseElementKey(key)
		if !ok || t != elementType {
			continue
		}
		elements = append(elements, models.Element{Type: t, ID: id})
	}
	return c.InvalidateByElements(ctx, elements)
}
