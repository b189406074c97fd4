// Package cache provides the caches behind remote call handles and
// backend lookups.
//
// Memo memoizes values built asynchronously per key. Concurrent first
// requests for a key share one in-flight creation, and Reset starts a new
// generation so creations begun before the reset never land in the cache.
// Agent and actor handles are cached this way.
//
// Cache is a TTL byte cache with a memory implementation, used through
// ReadThrough for immutable backend records such as passkey public keys.
package cache
