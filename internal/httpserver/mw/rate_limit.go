package mw

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/oneOoneData/TaxProExchange-sub003/internal/httpserver/deps"
	"github.com/oneOoneData/TaxProExchange-sub003/internal/logger"
	"github.com/oneOoneData/TaxProExchange-sub003/internal/utils"
)

const rateLimitWindow = time.Minute

type RateLimitConfig struct {
	Scope      string // key namespace, e.g. "api"
	PerMinute  int
	TrustProxy bool // resolve IP from proxy headers when true
}

// RateLimit allows cfg.PerMinute requests per client IP per minute, counted
// in a window shared by every instance. When the limiter itself fails the
// request is let through.
func RateLimit(limiter deps.RateLimiter, cfg RateLimitConfig, log logger.Logger) func(http.Handler) http.Handler {
	if limiter == nil || cfg.PerMinute <= 0 {
		log.Debug("RateLimit: disabled, passthrough mode")
		return func(next http.Handler) http.Handler { return next }
	}

	limitStr := strconv.Itoa(cfg.PerMinute)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := utils.ClientIP(r, cfg.TrustProxy)

			res, err := limiter.Allow(r.Context(), cfg.Scope, key, cfg.PerMinute, rateLimitWindow)
			if err != nil {
				log.Warn("rate limiter unavailable, allowing request",
					logger.String("client_ip", key),
					logger.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", limitStr)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

			if !res.Allowed {
				retry := max(1, int(math.Ceil(res.ResetIn.Seconds())))
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
