// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

/*
Package cache provides the Redis-backed HTTP response cache.

Entries are keyed per user, method, path and a hash of the query:

	api_cache:{userId}:{METHOD}:{path}:{hash}

When a cached value is a JSON:API document, every resource it contains
(primary data and included) is indexed in a set named element:{type}:{id}
holding the cache keys that embed it. A write to a resource then calls
InvalidateByElement to drop exactly the responses that showed it.

Usage:

	rc := cache.New(kv, cfg.Cache)
	key := rc.BuildKey(userID, r.Method, r.URL.Path, r.URL.Query())
	if body, ok := rc.Get(ctx, key); ok {
	    w.Write(body)
	    return
	}
	rc.Set(ctx, key, body, 0)

	// after updating post 42
	rc.InvalidateByElement(ctx, "posts", "42")

Thread Safety:

ResponseCache and PathMatcher are immutable after construction and safe for
concurrent use. Concurrency control for the shared state lives in Redis.
*/
package cache
