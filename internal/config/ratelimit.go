package config

import (
	"os"
	"time"
)

type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

// LoadRateLimitConfig reads RATE_LIMIT_* from the process environment.
func LoadRateLimitConfig() RateLimitConfig { return loadRateLimit(env{lookup: os.LookupEnv}) }

// The auth routes are the only limited surface, so the defaults are tighter
// than a general API limit: 10 requests then one every 6s per ip and route.
func loadRateLimit(e env) RateLimitConfig {
	def := RateLimitConfig{
		Enabled:        e.flag("RATE_LIMIT_ENABLED", true),
		Capacity:       e.num("RATE_LIMIT_CAPACITY", 10),
		RefillTokens:   e.num("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: e.dur("RATE_LIMIT_REFILL_INTERVAL", 6*time.Second),
		TTL:            e.dur("RATE_LIMIT_TTL", 15*time.Minute),
		KeyStrategy:    e.str("RATE_LIMIT_KEY_STRATEGY", "ip_route"),
		Prefix:         e.str("RATE_LIMIT_PREFIX", "rl"),
		Debug:          e.flag("RATE_LIMIT_DEBUG", false),
	}
	if b := e.num("RATE_LIMIT_BURST", -1); b > 0 {
		def.Capacity = b
	}
	if every := e.dur("RATE_LIMIT_REFILL_EVERY", 0); every > 0 {
		def.RefillTokens = 1
		def.RefillInterval = every
	}
	if def.Capacity < 1 {
		def.Capacity = 1
	}
	if def.RefillTokens < 1 {
		def.RefillTokens = 1
	}
	if def.RefillInterval <= 0 {
		def.RefillInterval = time.Second
	}
	minTTL := 5 * def.RefillInterval
	if def.TTL < minTTL {
		def.TTL = minTTL
	}
	return def
}
