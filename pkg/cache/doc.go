// Package cache provides a Redis-backed cache for successful POI API pages.
//
// Re-running a harvest with the same query space re-issues exactly the same
// page requests. Caching successful page bodies lets a rerun (for example
// after a run aborted half way on a quota error) replay finished pages
// without spending API quota or admission-gate slots.
//
// Features:
//
// - Deterministic cache keys from endpoint and query parameters
// - Credentials (the "key" parameter) never become part of a key
// - Fixed TTL per manager, enforced both by Redis and on read
// - Prometheus metrics for observability
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient, 24*time.Hour)
//
//	key := cache.CacheKey{
//		Endpoint:    "/v5/place/text",
//		QueryParams: req.URL.Query(),
//	}
//
//	body, err := manager.Lookup(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the API, then:
//		_ = manager.Put(ctx, key, body)
//	}
//
// # Metrics
//
//   - poi_cache_hits_total{layer="redis"} - Cache hits
//   - poi_cache_misses_total - Cache misses
//   - poi_cache_size_bytes{layer="redis"} - Bytes written to the cache
//   - poi_cache_errors_total{operation} - Cache operation errors
//
// Only pages whose status is "1" are cached; error pages are never stored.
package cache
