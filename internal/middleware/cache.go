package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/seat-reservation-engine/internal/config"
)

// cachedResponse is what the cache stores per key.
type cachedResponse struct {
	Status int         `json:"status"`
	Header http.Header `json:"header"`
	Body   []byte      `json:"body"`
}

// captureWriter tees the response body into buf, up to limit bytes, while
// forwarding everything to the client.  overflow is set once the body
// outgrows the limit; such responses are not cached.
type captureWriter struct {
	http.ResponseWriter
	status   int
	buf      bytes.Buffer
	limit    int
	overflow bool
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if !cw.overflow {
		if cw.limit > 0 && cw.buf.Len()+len(b) > cw.limit {
			cw.overflow = true
			cw.buf.Reset()
		} else {
			cw.buf.Write(b)
		}
	}
	return cw.ResponseWriter.Write(b)
}

// cacheKeyFrom hashes the request parts selected by cfg.KeyStrategy.  The
// event id stays readable so operators can find an event's entries.
func cacheKeyFrom(cfg config.CacheConfig, c echo.Context) string {
	r := c.Request()
	var parts []string
	switch strings.ToLower(cfg.KeyStrategy) {
	case "route":
		parts = []string{"route", r.URL.Path}
	case "method_route":
		parts = []string{"method", r.Method, "route", r.URL.Path}
	case "method_route_query":
		parts = []string{"method", r.Method, "route", r.URL.Path, "q", r.URL.RawQuery}
	default:
		parts = []string{"route", r.URL.Path, "q", r.URL.RawQuery}
	}
	sum := sha1.Sum([]byte(strings.Join(parts, ":")))
	event := c.Param("id")
	if event == "" {
		event = "-"
	}
	return fmt.Sprintf("%s:%s:%x", cfg.Prefix, event, sum[:])
}

// NewRedisCache caches successful responses of the methods in cfg.Methods
// for cfg.TTL.  Hits replay the stored status, headers and body and carry
// "X-Cache: HIT".  A nil client or a disabled config makes it a
// pass-through.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 2 * time.Second
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
				return next(c)
			}
			ctx := c.Request().Context()
			key := cacheKeyFrom(cfg, c)

			if bs, err := rdb.Get(ctx, key).Bytes(); err == nil {
				var cached cachedResponse
				if json.Unmarshal(bs, &cached) == nil && cached.Status != 0 {
					return replay(c, cached)
				}
			}

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if cw.status != http.StatusOK || cw.overflow {
				return nil
			}

			hdr := c.Response().Header().Clone()
			hdr.Del("X-Cache")
			hdr.Del(echo.HeaderContentLength)
			payload, err := json.Marshal(cachedResponse{Status: cw.status, Header: hdr, Body: cw.buf.Bytes()})
			if err != nil {
				return nil
			}
			if err := rdb.Set(context.WithoutCancel(ctx), key, payload, ttl).Err(); err != nil {
				c.Logger().Warnf("[cache] set %s: %v", key, err)
			}
			return nil
		}
	}
}

func replay(c echo.Context, cached cachedResponse) error {
	h := c.Response().Header()
	for k, vals := range cached.Header {
		for _, v := range vals {
			h.Add(k, v)
		}
	}
	h.Set("X-Cache", "HIT")
	c.Response().WriteHeader(cached.Status)
	_, err := c.Response().Write(cached.Body)
	return err
}
