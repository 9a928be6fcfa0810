package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrWindowScript increments a fixed-window counter, starting the window on
// the first hit, and returns the count and the window's remaining lifetime.
var incrWindowScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 or redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}
`)

// RateLimitResult is the outcome of one Allow call.
type RateLimitResult struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetIn is how long until the current window ends.
	ResetIn time.Duration
}

// Allow counts one hit for key in scope and reports whether it fits in limit
// hits per window. The counter is shared by every instance using this Redis.
func (s *Store) Allow(ctx context.Context, scope, key string, limit int, window time.Duration) (RateLimitResult, error) {
	res, err := incrWindowScript.Run(ctx, s.client, []string{RateLimitKey(scope, key)}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return RateLimitResult{}, fmt.Errorf("failed to count rate limit hit: %w", err)
	}
	if len(res) != 2 {
		return RateLimitResult{}, fmt.Errorf("unexpected rate limit reply: %v", res)
	}

	count := int(res[0])
	resetIn := time.Duration(max(res[1], 0)) * time.Millisecond

	return RateLimitResult{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: max(limit-count, 0),
		ResetIn:   resetIn,
	}, nil
}
