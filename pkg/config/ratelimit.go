package config

import (
	"time"

	"github.com/multimail/multimail/pkg/ratelimit"
)

// RateLimitConfig contains rate limiting settings for the HTTP surface
// and for the per-action budgets the mail service consults directly.
type RateLimitConfig struct {
	// HTTP middleware limits
	PerIPEnabled    bool
	PerIPCapacity   int
	PerIPRefillRate float64 // tokens per second

	PerUserEnabled    bool
	PerUserCapacity   int
	PerUserRefillRate float64 // tokens per second

	// Per-action budgets for add, confirm, send-confirmation and
	// make-primary, keyed by acting user
	ActionEnabled    bool
	ActionCapacity   int
	ActionRefillRate float64 // tokens per second

	// BucketTTL controls how long inactive buckets stay in memory
	BucketTTL time.Duration
}

// DefaultRateLimitConfig returns a RateLimitConfig with sensible defaults.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		// Per-IP: ~100 requests per minute
		PerIPEnabled:    true,
		PerIPCapacity:   100,
		PerIPRefillRate: 100.0 / 60.0,

		// Per-User: ~200 requests per minute
		PerUserEnabled:    true,
		PerUserCapacity:   200,
		PerUserRefillRate: 200.0 / 60.0,

		// Per-action: bursts of 5, ~1 per minute refill. Email operations
		// send mail, so they carry much tighter budgets than page loads.
		ActionEnabled:    true,
		ActionCapacity:   5,
		ActionRefillRate: 1.0 / 60.0,

		BucketTTL: time.Hour,
	}
}

// NewRateLimitConfigFromEnv creates a RateLimitConfig from environment
// variables, falling back to the defaults.
func NewRateLimitConfigFromEnv() RateLimitConfig {
	defaults := DefaultRateLimitConfig()
	return RateLimitConfig{
		PerIPEnabled:    GetEnvBool("RATE_LIMIT_PER_IP_ENABLED", defaults.PerIPEnabled),
		PerIPCapacity:   GetEnvInt("RATE_LIMIT_PER_IP_CAPACITY", defaults.PerIPCapacity),
		PerIPRefillRate: GetEnvFloat64("RATE_LIMIT_PER_IP_REFILL_RATE", defaults.PerIPRefillRate),

		PerUserEnabled:    GetEnvBool("RATE_LIMIT_PER_USER_ENABLED", defaults.PerUserEnabled),
		PerUserCapacity:   GetEnvInt("RATE_LIMIT_PER_USER_CAPACITY", defaults.PerUserCapacity),
		PerUserRefillRate: GetEnvFloat64("RATE_LIMIT_PER_USER_REFILL_RATE", defaults.PerUserRefillRate),

		ActionEnabled:    GetEnvBool("RATE_LIMIT_ACTION_ENABLED", defaults.ActionEnabled),
		ActionCapacity:   GetEnvInt("RATE_LIMIT_ACTION_CAPACITY", defaults.ActionCapacity),
		ActionRefillRate: GetEnvFloat64("RATE_LIMIT_ACTION_REFILL_RATE", defaults.ActionRefillRate),

		BucketTTL: GetEnvDuration("RATE_LIMIT_BUCKET_TTL", defaults.BucketTTL),
	}
}

// ToMiddlewareConfig converts the config to the HTTP middleware form.
// Disabled limits carry a zero capacity, which the middleware skips.
func (c RateLimitConfig) ToMiddlewareConfig() *ratelimit.MiddlewareConfig {
	config := &ratelimit.MiddlewareConfig{BucketTTL: c.BucketTTL}
	if c.PerIPEnabled {
		config.PerIPCapacity = c.PerIPCapacity
		config.PerIPRefillRate = c.PerIPRefillRate
	}
	if c.PerUserEnabled {
		config.PerUserCapacity = c.PerUserCapacity
		config.PerUserRefillRate = c.PerUserRefillRate
	}
	return config
}

// NewActionLimiter builds the per-action limiter handed to the mail
// service, or nil when action limiting is disabled.
func (c RateLimitConfig) NewActionLimiter() *ratelimit.RateLimiter {
	if !c.ActionEnabled {
		return nil
	}
	return ratelimit.NewRateLimiter(c.ActionCapacity, c.ActionRefillRate, c.BucketTTL)
}
