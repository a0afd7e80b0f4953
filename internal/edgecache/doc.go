// Package edgecache provides the response cache that sits in front of the
// object store. Entries are whole HTTP-like responses whose freshness comes
// from their own Cache-Control max-age, so callers control expiry the same
// way an edge platform's cache API would. Backends: process memory, Redis,
// and a no-op cache that always misses.
package edgecache
