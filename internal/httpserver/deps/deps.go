package deps

import (
	"context"
	"net/http"
	"time"

	"github.com/oneOoneData/TaxProExchange-sub003/internal/domain"
	"github.com/oneOoneData/TaxProExchange-sub003/internal/logger"
	redisstore "github.com/oneOoneData/TaxProExchange-sub003/internal/store/redis"
	"github.com/oneOoneData/TaxProExchange-sub003/internal/validation"
	"github.com/oneOoneData/TaxProExchange-sub003/internal/version"
)

// EventValidator validates one event on demand.
type EventValidator interface {
	ValidateEventByID(ctx context.Context, id string) validation.SingleResult
}

// BatchTrigger queues manual batch runs.
type BatchTrigger interface {
	Trigger() bool
	Schedule() string
}

// BatchStatus reads the most recent batch record.
type BatchStatus interface {
	GetLastBatch(ctx context.Context) (*domain.BatchRun, error)
}

// TombstoneCounter reports how many (domain, path) pairs are tombstoned.
type TombstoneCounter interface {
	Count(ctx context.Context) (int64, error)
}

// RateLimiter counts requests in a shared fixed window.
type RateLimiter interface {
	Allow(ctx context.Context, scope, key string, limit int, window time.Duration) (redisstore.RateLimitResult, error)
}

// ReadinessCheck is one dependency probed by /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Deps struct {
	Logger    logger.Logger
	StartTime time.Time
	Build     version.Info
	TimeNow   func() time.Time // for testing, defaults to time.Now

	AllowedCIDRS    []string    // IPs allowed to access /api endpoints
	TrustProxy      bool        // true if running behind a trusted reverse proxy
	RateLimiter     RateLimiter // nil disables rate limiting
	RateLimitPerMin int         // /api requests per client IP per minute

	Validator      EventValidator
	Batches        BatchTrigger
	BatchStatus    BatchStatus
	TombstoneTTL   time.Duration    // 0 => tombstones never expire
	Tombstones     TombstoneCounter // nil omits the count from /api/status
	Readiness      []ReadinessCheck
	MetricsHandler http.Handler
}

// Now returns d.TimeNow() or time.Now() when unset.
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
