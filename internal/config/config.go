package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Postgres
	DatabaseURL      string        // Postgres DSN
	DBMaxOpenConns   int           // connection pool size
	DBConnectTimeout time.Duration // total time to retry connecting (ex: 30s)

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // total time to retry connecting (ex: 30s)

	// Start-up retry policy shared by Postgres and Redis
	ConnectRetryInterval time.Duration // initial wait between retries (ex: 2s, grows exponentially)
	ConnectMaxWait       time.Duration // max wait between retries (ex: 10s)
	ConnectPingTimeout   time.Duration // timeout for each ping attempt (ex: 5s)
	ConnectWarnThreshold int           // warn after this many attempts

	// Fetching
	FetchTimeout time.Duration // per-request timeout
	UserAgent    string        // empty => fetcher default
	MaxRedirects int
	MaxBodyBytes int64

	// Validation
	ScoreMin        int           // publishable threshold
	RecheckAfter    time.Duration // staleness gate for batches
	BatchSize       int           // limit for scheduled batches
	BatchSchedule   string        // cron expression, empty => manual triggers only
	PolitenessDelay time.Duration // pause between events of a worker
	Workers         int           // concurrent validations per batch
	LockTTL         time.Duration // per-event lock lifetime
	BatchLockTTL    time.Duration // batch lock lifetime
	TombstoneTTL    time.Duration // 0 => tombstones never expire
	GCInterval      time.Duration // tombstone collector period
	PolicyFile      string        // optional YAML link policy

	// Admin access
	AllowedCIDRS    []string // optional, restrict /api to specific networks (e.g. "10.0.0.0/8, 1.2.3.4")
	TrustProxy      bool     // true => trust X-Forwarded-For headers
	RateLimitPerMin int      // admin requests per client IP per minute
}

func Load() *Config {
	loadEnvFile(getenv("LINKCHECK_ENV_FILE", ".env"))

	cfg := &Config{
		// Server settings
		ListenPort:      getenv("LINKCHECK_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("LINKCHECK_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("LINKCHECK_LOG_LEVEL", "info"),
		PrettyLog: mustBool("LINKCHECK_PRETTY_LOG", false),

		// Postgres
		DatabaseURL:      requireEnv("LINKCHECK_DATABASE_URL"),
		DBMaxOpenConns:   getenvInt("LINKCHECK_DB_MAX_OPEN_CONNS", 10),
		DBConnectTimeout: mustDuration("LINKCHECK_DB_CONNECT_TIMEOUT", 30*time.Second),

		// Redis settings
		RedisAddr:             requireEnv("LINKCHECK_REDIS_ADDR"),
		RedisUser:             getenv("LINKCHECK_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("LINKCHECK_REDIS_PASSWORD_REQUIRED", false),
		RedisPassword:         getenv("LINKCHECK_REDIS_PASSWORD", ""),
		RedisDB:               getenvInt("LINKCHECK_REDIS_DB", 0),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),

		ConnectRetryInterval: mustDuration("CONNECT_RETRY_INTERVAL", 2*time.Second),
		ConnectMaxWait:       mustDuration("CONNECT_MAX_WAIT", 10*time.Second),
		ConnectPingTimeout:   mustDuration("CONNECT_PING_TIMEOUT", 5*time.Second),
		ConnectWarnThreshold: getenvInt("CONNECT_WARN_THRESHOLD", 3),

		// Fetching
		FetchTimeout: mustDuration("LINKCHECK_FETCH_TIMEOUT", 8*time.Second),
		UserAgent:    getenv("LINKCHECK_USER_AGENT", ""),
		MaxRedirects: getenvInt("LINKCHECK_MAX_REDIRECTS", 10),
		MaxBodyBytes: getenvInt64("LINKCHECK_MAX_BODY_BYTES", 2<<20),

		// Validation
		ScoreMin:        getenvInt("LINKCHECK_SCORE_MIN", 50),
		RecheckAfter:    mustDuration("LINKCHECK_RECHECK_AFTER", 24*time.Hour),
		BatchSize:       getenvInt("LINKCHECK_BATCH_SIZE", 50),
		BatchSchedule:   getenvAllowEmpty("LINKCHECK_BATCH_SCHEDULE", "*/30 * * * *"),
		PolitenessDelay: mustDuration("LINKCHECK_POLITENESS_DELAY", 500*time.Millisecond),
		Workers:         getenvInt("LINKCHECK_WORKERS", 1),
		LockTTL:         mustDuration("LINKCHECK_LOCK_TTL", 2*time.Minute),
		BatchLockTTL:    mustDuration("LINKCHECK_BATCH_LOCK_TTL", 30*time.Minute),
		TombstoneTTL:    mustDuration("LINKCHECK_TOMBSTONE_TTL", 0),
		GCInterval:      mustDuration("LINKCHECK_GC_INTERVAL", 24*time.Hour),
		PolicyFile:      getenv("LINKCHECK_POLICY_FILE", ""),

		// Access restrictions
		AllowedCIDRS:    parseAllowedIPs(getenv("LINKCHECK_ALLOWED_CIDRS", "")),
		TrustProxy:      mustBool("LINKCHECK_TRUST_PROXY", false),
		RateLimitPerMin: getenvInt("LINKCHECK_RATE_LIMIT_PER_MIN", 30),
	}

	// Validate Redis password configuration
	if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
		panic("❌ FATAL: LINKCHECK_REDIS_PASSWORD is required when LINKCHECK_REDIS_PASSWORD_REQUIRED=true")
	}
	if cfg.BatchSize < 1 {
		panic(fmt.Sprintf("❌ FATAL: LINKCHECK_BATCH_SIZE must be positive, got %d", cfg.BatchSize))
	}
	if cfg.ScoreMin < 0 || cfg.ScoreMin > 100 {
		panic(fmt.Sprintf("❌ FATAL: LINKCHECK_SCORE_MIN must be within 0-100, got %d", cfg.ScoreMin))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		cfgCopy.DatabaseURL = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// loadEnvFile loads variables from path without overriding the real
// environment. A missing file is not an error.
func loadEnvFile(path string) {
	if path == "" {
		return
	}
	if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
		panic(fmt.Sprintf("❌ FATAL: cannot load env file %s: %v", path, err))
	}
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getenvAllowEmpty returns def only when key is unset; an explicit empty
// value is kept.
func getenvAllowEmpty(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getenvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
