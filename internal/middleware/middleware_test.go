package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supermart-dashboard/internal/auth"
	"supermart-dashboard/internal/config"
	"supermart-dashboard/internal/observability"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = observability.GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "upstream-id")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "upstream-id", seen)
}

func TestRequireSession(t *testing.T) {
	sessions := auth.NewSessions("secret", time.Hour, "sess", false)
	var claims *auth.Claims
	h := RequireSession(sessions, quietLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ = auth.ClaimsFromContext(r.Context())
	}))

	tests := []struct {
		name     string
		method   string
		path     string
		datastar bool
		status   int
		location string
	}{
		{"page redirects", http.MethodGet, "/sales/", false, http.StatusSeeOther, "/login?next=%2Fsales%2F"},
		{"api gets 401", http.MethodGet, "/api/dashboard", false, http.StatusUnauthorized, ""},
		{"sse gets 401", http.MethodGet, "/sales/sse", false, http.StatusUnauthorized, ""},
		{"datastar gets 401", http.MethodGet, "/customer/", true, http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.datastar {
				req.Header.Set("Datastar-Request", "true")
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.location, rec.Header().Get("Location"))
		})
	}

	token, err := sessions.Issue(&auth.User{ID: "1", Email: "a@example.com", Role: "admin"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/sales/", nil)
	req.AddCookie(&http.Cookie{Name: "sess", Value: token})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, claims)
	assert.Equal(t, "a@example.com", claims.Email)
}

func TestRateLimit(t *testing.T) {
	limiter := NewRateLimiter(config.SecurityConfig{EnableRateLimit: true, RateLimitRPS: 1, RateLimitBurst: 2})
	h := RateLimit(limiter, quietLogger())(okHandler())

	codes := make([]int, 3)
	for i := range codes {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes[i] = rec.Code
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimiter_SweepsIdleVisitors(t *testing.T) {
	limiter := NewRateLimiter(config.SecurityConfig{EnableRateLimit: true, RateLimitRPS: 5, RateLimitBurst: 5})
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	limiter.lastSweep = now

	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.2"))
	assert.Equal(t, 2, limiter.size())

	now = now.Add(limiterIdle + time.Second)
	assert.True(t, limiter.Allow("10.0.0.3"))
	assert.Equal(t, 1, limiter.size())
}

func TestRateLimit_SkipsStaticAndProbes(t *testing.T) {
	limiter := NewRateLimiter(config.SecurityConfig{EnableRateLimit: true, RateLimitRPS: 1, RateLimitBurst: 1})
	h := RateLimit(limiter, quietLogger())(okHandler())

	for _, path := range []string{"/health", "/health", "/static/app.css", "/static/charts.js"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
	assert.Equal(t, 0, limiter.size())
}

func TestCSRF(t *testing.T) {
	cfg := config.SecurityConfig{EnableCSRF: true, AllowedOrigins: []string{"https://reports.example.com"}}
	h := CSRF(cfg, quietLogger())(okHandler())

	tests := []struct {
		name   string
		method string
		header string
		value  string
		status int
	}{
		{"get is ignored", http.MethodGet, "Origin", "https://evil.example", http.StatusOK},
		{"same host origin", http.MethodPost, "Origin", "http://example.com", http.StatusOK},
		{"allowed origin", http.MethodPost, "Origin", "https://reports.example.com", http.StatusOK},
		{"same host referer", http.MethodPost, "Referer", "http://example.com/login?next=%2F", http.StatusOK},
		{"no headers", http.MethodPost, "", "", http.StatusOK},
		{"foreign origin", http.MethodPost, "Origin", "https://evil.example", http.StatusForbidden},
		{"foreign referer", http.MethodPost, "Referer", "https://evil.example/form", http.StatusForbidden},
		{"opaque origin", http.MethodPost, "Origin", "null", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "http://example.com/login", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	cfg.EnableCSRF = false
	req := httptest.NewRequest(http.MethodPost, "http://example.com/login", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	CSRF(cfg, quietLogger())(okHandler()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSecurityHeaders_HSTSOnlyOverHTTPS(t *testing.T) {
	h := SecurityHeaders()(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestRecovery_AfterStreamStarted(t *testing.T) {
	h := Recovery(quietLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("event: datastar-patch-signals\n\n"))
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sales/sse", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "unexpected error")
}

func TestLogger_RecordsStatusAndBytes(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := RequestID()(Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("hello"))
	})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/segments/Snacks/Cakes", nil))
	line := buf.String()
	assert.Contains(t, line, `"status":202`)
	assert.Contains(t, line, `"bytes":5`)
	assert.Contains(t, line, `"route":"/api/segments"`)
	assert.Contains(t, line, `"request_id"`)
}

func TestRecovery(t *testing.T) {
	h := Recovery(quietLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRouteLabel(t *testing.T) {
	tests := map[string]string{
		"/":                         "/",
		"/sales/":                   "/sales",
		"/geo_forecast/sse":         "/geo_forecast",
		"/api/segments/Snacks/Cake": "/api/segments",
		"/api/":                     "/api",
	}
	for path, want := range tests {
		assert.Equal(t, want, routeLabel(path), path)
	}
}

func TestMetricsMiddleware(t *testing.T) {
	h := Metrics(observability.DefaultMetrics())(okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
