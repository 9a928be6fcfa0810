package fetcher

import "time"

const (
	DefaultTimeout      = 8 * time.Second
	DefaultUserAgent    = "Mozilla/5.0 (compatible; TaxProExchangeLinkChecker/1.0; +https://taxproexchange.com/bot)"
	DefaultMaxRedirects = 10
	DefaultMaxBodyBytes = 2 << 20
)

// Config holds the fetch identity and limits.
type Config struct {
	Timeout      time.Duration
	UserAgent    string
	MaxRedirects int
	MaxBodyBytes int64
	// Headers are sent on every request after the browser-like defaults,
	// overriding them on conflict.
	Headers map[string]string
}

// WithDefaults returns a copy with zero values replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.MaxRedirects <= 0 {
		c.MaxRedirects = DefaultMaxRedirects
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return c
}
