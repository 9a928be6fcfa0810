package redis

const (
	// KeyPrefixEventLock is the prefix for per-event validation locks
	KeyPrefixEventLock = "linkcheck:lock:event:"
	// KeyBatchLock guards against overlapping batch runs
	KeyBatchLock = "linkcheck:lock:batch"
	// KeyPrefixRateLimit is the prefix for fixed-window counters
	KeyPrefixRateLimit = "linkcheck:ratelimit:"
	// KeyLastBatch holds the JSON record of the last batch run
	KeyLastBatch = "linkcheck:batch:last"
)

// EventLockKey returns the Redis key for an event's validation lock
func EventLockKey(id string) string {
	return KeyPrefixEventLock + id
}

// BatchLockKey returns the Redis key for the batch lock
func BatchLockKey() string {
	return KeyBatchLock
}

// RateLimitKey returns the Redis key for a rate-limit counter
func RateLimitKey(scope, key string) string {
	return KeyPrefixRateLimit + scope + ":" + key
}

// LastBatchKey returns the key of the last batch record
func LastBatchKey() string {
	return KeyLastBatch
}
