package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-reservation-engine/internal/config"
	"github.com/iliyamo/seat-reservation-engine/internal/utils"
)

const testSecret = "test-secret"

func whoAmI(c echo.Context) error {
	return c.String(http.StatusOK, Requester(c)+"/"+Role(c))
}

func bearer(t *testing.T, secret, sub, role string, ttl time.Duration) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, sub, role, ttl)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + tok.Token
}

func TestJWTAuth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer not.a.jwt", wantStatus: http.StatusUnauthorized},
		{name: "wrong secret", header: bearer(t, "other", "u1", "CUSTOMER", time.Minute), wantStatus: http.StatusUnauthorized},
		{name: "expired", header: bearer(t, testSecret, "u1", "CUSTOMER", -time.Minute), wantStatus: http.StatusUnauthorized},
		{name: "no subject", header: bearer(t, testSecret, "", "CUSTOMER", time.Minute), wantStatus: http.StatusUnauthorized},
		{name: "valid", header: bearer(t, testSecret, "u1", "customer", time.Minute), wantStatus: http.StatusOK, wantBody: "u1/CUSTOMER"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := echo.New()
			e.GET("/me", whoAmI, JWTAuth(testSecret))

			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Fatalf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	t.Parallel()

	e := echo.New()
	e.POST("/events", whoAmI, JWTAuth(testSecret), RequireRole(RoleOwner))

	for role, want := range map[string]int{
		"OWNER":    http.StatusOK,
		"CUSTOMER": http.StatusForbidden,
		"":         http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodPost, "/events", nil)
		req.Header.Set(echo.HeaderAuthorization, bearer(t, testSecret, "u1", role, time.Minute))
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("role %q: status = %d, want %d", role, rec.Code, want)
		}
	}
}

func TestDisabledMiddlewaresPassThrough(t *testing.T) {
	t.Parallel()

	e := echo.New()
	rl := config.RateLimitConfig{Enabled: true, Capacity: 1}
	cc := config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}}
	e.GET("/x", func(c echo.Context) error { return c.String(http.StatusOK, "ok") },
		NewTokenBucket(rl, nil), NewHoldBucket(rl, nil), NewRedisCache(cc, nil))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
		if rec.Header().Get("X-Cache") != "" {
			t.Fatalf("cache header set without redis")
		}
	}
}

func TestBuildRateKey(t *testing.T) {
	t.Parallel()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/events/e1/holds", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/events/:id/holds")
	c.Set(requesterKey, "u1")

	tests := []struct {
		strategy string
		want     string
	}{
		{"ip", "rl:ip:10.0.0.1"},
		{"user", "rl:user:u1"},
		{"route", "rl:route:POST /v1/events/:id/holds"},
		{"ip_user", "rl:ip:10.0.0.1:user:u1"},
		{"", "rl:ip:10.0.0.1:user:u1:route:POST /v1/events/:id/holds"},
	}
	for _, tt := range tests {
		if got := buildRateKey("rl", tt.strategy, c); got != tt.want {
			t.Errorf("strategy %q: key = %q, want %q", tt.strategy, got, tt.want)
		}
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	t.Parallel()
	for ms, want := range map[int64]int{0: 1, 1: 1, 1000: 1, 1001: 2, 2500: 3} {
		if got := retryAfterSeconds(ms); got != want {
			t.Errorf("retryAfterSeconds(%d) = %d, want %d", ms, got, want)
		}
	}
}

func TestCacheKeyFrom(t *testing.T) {
	t.Parallel()

	e := echo.New()
	cfg := config.CacheConfig{Prefix: "cache", KeyStrategy: "route_query"}
	key := func(target string) string {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues("e1")
		return cacheKeyFrom(cfg, c)
	}

	a, b := key("/v1/events/e1/seats"), key("/v1/events/e1/seats?x=1")
	if !strings.HasPrefix(a, "cache:e1:") {
		t.Fatalf("key %q lacks event prefix", a)
	}
	if a == b {
		t.Fatal("query string ignored by route_query strategy")
	}
	if a != key("/v1/events/e1/seats") {
		t.Fatal("key is not stable")
	}
}

func TestCaptureWriterLimit(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 4}
	_, _ = cw.Write([]byte("abc"))
	if cw.overflow || cw.buf.String() != "abc" {
		t.Fatalf("buf = %q overflow = %v", cw.buf.String(), cw.overflow)
	}
	_, _ = cw.Write([]byte("de"))
	if !cw.overflow {
		t.Fatal("expected overflow past limit")
	}
	if rec.Body.String() != "abcde" {
		t.Fatalf("client body = %q, want full body", rec.Body.String())
	}
}
