package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/seat-reservation-engine/internal/config"
)

// tokenBucketScript refills and takes one token atomically.  It returns
// {allowed, remaining, retry_after_ms}.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill_tokens = tonumber(ARGV[3])
local interval_ms = tonumber(ARGV[4])
local ttl_seconds = tonumber(ARGV[5])

local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])
if tokens == nil or last_refill == nil then
  tokens = capacity
  last_refill = now_ms
end

if interval_ms > 0 and refill_tokens > 0 then
  local intervals = math.floor(math.max(0, now_ms - last_refill) / interval_ms)
  if intervals > 0 then
    tokens = math.min(capacity, tokens + intervals * refill_tokens)
    last_refill = last_refill + intervals * interval_ms
  end
end

local allowed = 0
local retry_after_ms = 0
if tokens > 0 then
  allowed = 1
  tokens = tokens - 1
else
  retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
redis.call('EXPIRE', key, ttl_seconds)
return { allowed, tokens, retry_after_ms }
`)

// NewTokenBucket limits every route it wraps with the general bucket.  A
// nil client or a disabled config makes it a pass-through; Redis errors
// fail open.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	return tokenBucket(cfg, cfg.Capacity, cfg.Prefix, rdb)
}

// NewHoldBucket is the stricter bucket for routes that take seats: begin
// hold and confirm.  Its keys live under "<prefix>:hold".
func NewHoldBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	return tokenBucket(cfg, cfg.HoldCapacity, cfg.Prefix+":hold", rdb)
}

func tokenBucket(cfg config.RateLimitConfig, capacity int, prefix string, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	if capacity < 1 {
		capacity = 1
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(prefix, cfg.KeyStrategy, c)
			vals, err := tokenBucketScript.Run(c.Request().Context(), rdb, []string{key},
				time.Now().UnixMilli(),
				capacity,
				cfg.RefillTokens,
				cfg.RefillInterval.Milliseconds(),
				int64(cfg.TTL/time.Second),
			).Int64Slice()
			if err != nil || len(vals) != 3 {
				if cfg.Debug {
					c.Logger().Warnf("[ratelimit] key=%s result=%v err=%v", key, vals, err)
				}
				return next(c)
			}
			allowed, remaining, retryMs := vals[0] == 1, vals[1], vals[2]

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if !allowed {
				secs := retryAfterSeconds(retryMs)
				h.Set("Retry-After", strconv.Itoa(secs))
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "rate limit exceeded",
					"code":        "too_many_requests",
					"retry_after": secs,
				})
			}
			return next(c)
		}
	}
}

func retryAfterSeconds(ms int64) int {
	secs := int(math.Ceil(float64(ms) / 1000.0))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// buildRateKey joins the parts selected by strategy: ip, user, route or a
// combination joined by "_" (e.g. "ip_user").  Unknown strategies use all
// three.
func buildRateKey(prefix, strategy string, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	route := c.Request().Method + " " + c.Path()

	parts := []string{prefix}
	strategy = strings.ToLower(strategy)
	known := false
	for _, s := range strings.Split(strategy, "_") {
		switch s {
		case "ip":
			parts = append(parts, "ip", ip)
			known = true
		case "user":
			parts = append(parts, "user", requesterOrAnon(c))
			known = true
		case "route":
			parts = append(parts, "route", route)
			known = true
		}
	}
	if !known {
		parts = append(parts, "ip", ip, "user", requesterOrAnon(c), "route", route)
	}
	return strings.Join(parts, ":")
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

