package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"supermart-dashboard/internal/auth"
	"supermart-dashboard/internal/config"
	"supermart-dashboard/internal/models"
	"supermart-dashboard/internal/services"
)

const cookieName = "supermart_session"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRows() []models.Transaction {
	segs := []models.Segment{
		{Category: "Bakery", SubCategory: "Cakes"},
		{Category: "Snacks", SubCategory: "Cookies"},
	}
	start := time.Date(2015, time.January, 5, 0, 0, 0, 0, time.UTC)
	var txs []models.Transaction
	for m := range 30 {
		for i, seg := range segs {
			txs = append(txs, models.Transaction{
				OrderID:      fmt.Sprintf("OD%d-%d", m, i),
				OrderDate:    start.AddDate(0, m, i),
				CustomerName: fmt.Sprintf("Customer%d", m%5),
				Region:       "West",
				City:         "Ooty",
				Category:     seg.Category,
				SubCategory:  seg.SubCategory,
				Sales:        300 + 3*float64(m) + 30*math.Sin(2*math.Pi*float64(m)/12) + float64(50*i),
				Profit:       12,
				Discount:     0.15,
			})
		}
	}
	return txs
}

func newTestServer(t *testing.T) (*Server, *auth.Sessions) {
	t.Helper()
	opts := services.DefaultOptions("")
	opts.CacheDir = ""
	analytics := services.NewAnalytics(opts, quietLogger())
	if err := analytics.SetData(context.Background(), testRows()); err != nil {
		t.Fatalf("SetData() failed: %v", err)
	}
	sessions := auth.NewSessions("server-test-secret-0123456789abcdef", time.Hour, cookieName, false)
	return NewServer(analytics, auth.NewService(auth.NewMemoryStore()), sessions, quietLogger()), sessions
}

func signedIn(t *testing.T, sessions *auth.Sessions, req *http.Request) *http.Request {
	t.Helper()
	token, err := sessions.Issue(&auth.User{ID: "u1", Name: "Asha", Email: "asha@example.com", Role: "manager"})
	if err != nil {
		t.Fatal(err)
	}
	req.AddCookie(&http.Cookie{Name: cookieName, Value: token})
	return req
}

func TestServer_PublicRoutes(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		path   string
		status int
	}{
		{"/health", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/login", http.StatusOK},
		{"/signup", http.StatusOK},
		{"/static/charts.js", http.StatusOK},
		{"/static/app.css", http.StatusOK},
		{"/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if w.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, w.Code)
			}
		})
	}
}

func TestServer_SessionGate(t *testing.T) {
	srv, sessions := newTestServer(t)

	tests := []struct {
		path     string
		status   int
		location string
	}{
		{"/", http.StatusSeeOther, "/login?next=%2F"},
		{"/sales/", http.StatusSeeOther, "/login?next=%2Fsales%2F"},
		{"/admin/stats", http.StatusSeeOther, "/login?next=%2Fadmin%2Fstats"},
		{"/api/dashboard", http.StatusUnauthorized, ""},
		{"/api/export.xlsx", http.StatusUnauthorized, ""},
		{"/category/sse", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run("anonymous "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if w.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, w.Code)
			}
			if tt.location != "" && w.Header().Get("Location") != tt.location {
				t.Errorf("expected redirect to %q, got %q", tt.location, w.Header().Get("Location"))
			}
		})
	}

	for _, path := range []string{
		"/", "/admin/stats",
		"/dashboard/", "/sales/", "/customer/", "/geo_forecast/", "/category/",
		"/dashboard/sse", "/sales/sse", "/customer/sse", "/geo_forecast/sse", "/category/sse",
		"/api/dashboard", "/api/sales", "/api/customer", "/api/geo_forecast", "/api/category",
		"/api/segments/Bakery/Cakes", "/api/export.xlsx",
	} {
		t.Run("signed in "+path, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.ServeHTTP(w, signedIn(t, sessions, httptest.NewRequest(http.MethodGet, path, nil)))
			if w.Code != http.StatusOK {
				t.Errorf("expected status 200, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestServer_SignupLoginFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	resp, err := client.PostForm(ts.URL+"/signup", url.Values{
		"name":     {"Ravi"},
		"email":    {"ravi@example.com"},
		"password": {"long-enough-pw"},
		"role":     {"manager"},
	})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("signup: expected 303, got %d", resp.StatusCode)
	}

	resp, err = client.PostForm(ts.URL+"/login", url.Values{
		"email":    {"ravi@example.com"},
		"password": {"long-enough-pw"},
		"next":     {"/geo_forecast/"},
	})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if loc := resp.Header.Get("Location"); resp.StatusCode != http.StatusSeeOther || loc != "/geo_forecast/" {
		t.Fatalf("login: expected redirect to /geo_forecast/, got %d %q", resp.StatusCode, loc)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/geo_forecast/", nil)
	for _, c := range resp.Cookies() {
		req.AddCookie(c)
	}
	page, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer page.Body.Close()
	body, _ := io.ReadAll(page.Body)
	if page.StatusCode != http.StatusOK || !strings.Contains(string(body), "Ravi (manager)") {
		t.Errorf("expected the signed-in page, got %d", page.StatusCode)
	}
}

func TestGracefulServer_HooksRunInReverse(t *testing.T) {
	cfg := &config.Config{Server: config.ServerConfig{ShutdownTimeout: 5 * time.Second}}
	httpServer := &http.Server{Handler: http.NotFoundHandler()}
	gs := NewGracefulServer(httpServer, quietLogger(), cfg)

	var mu sync.Mutex
	var order []string
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}
	gs.RegisterShutdownHook("tracing", record("tracing"))
	gs.RegisterShutdownHook("users", record("users"))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gs.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	if err != nil {
		t.Fatalf("server not reachable: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve() returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	if strings.Join(order, ",") != "users,tracing" {
		t.Errorf("expected hooks in reverse order, got %v", order)
	}
}

func TestGracefulServer_HookErrorsReported(t *testing.T) {
	cfg := &config.Config{Server: config.ServerConfig{ShutdownTimeout: time.Second}}
	gs := NewGracefulServer(&http.Server{}, quietLogger(), cfg)
	gs.RegisterShutdownHook("broken", func(context.Context) error { return fmt.Errorf("boom") })

	err := gs.shutdown(context.Background())
	if err == nil || !strings.Contains(err.Error(), "shutdown hook broken failed: boom") {
		t.Errorf("expected hook error, got %v", err)
	}
}
