// Package cache provides caching infrastructure for tsql2snow.
//
// The HTTP service converts the same snippets repeatedly (examples pasted from
// the docs page, retries from the browser), so /convert results are memoized
// under a hash of the request body. MemoryCache bounds both lifetime (TTL)
// and size (maximum entries, oldest evicted first).
//
// Usage:
//
//	c := cache.NewMemoryCache[Response](cache.WithMaxEntries(1024))
//	key := cache.ComputeKeyWithPrefix("convert", body)
//	c.Set(ctx, key, resp, 10*time.Minute)
//	if val, ok := c.Get(ctx, key); ok {
//	    // use cached value
//	}
package cache
