package routes

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/stockroomhq/stockroom-backend/pkg/config"
	"github.com/stockroomhq/stockroom-backend/pkg/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "8080"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "stockroom", ExpirationMinutes: 15},
		AuthRateLimit: config.AuthRateLimitConfig{
			LoginWindow:          time.Minute,
			LoginAccountLimit:    10,
			LoginIPLimit:         20,
			RegisterWindow:       5 * time.Minute,
			RegisterAccountLimit: 3,
			RegisterIPLimit:      20,
		},
	}
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logg := logger.New(logger.Options{
		ServiceName: "router-test",
		Level:       zerolog.ErrorLevel,
		Output:      io.Discard,
	})
	return NewRouter(Deps{Config: testConfig(), Logger: logg})
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Stockroom-Env") != "test" {
		t.Fatalf("expected env header, got %q", rec.Header().Get("X-Stockroom-Env"))
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	router := newTestRouter(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/cart"},
		{http.MethodPost, "/api/v1/orders"},
		{http.MethodGet, "/api/v1/admin/dashboard"},
		{http.MethodPost, "/api/v1/admin/products"},
	}
	for _, tc := range paths {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", tc.method, tc.path, rec.Code)
		}
	}
}

func TestPublicCatalogRoutesAreMounted(t *testing.T) {
	router := newTestRouter(t)

	// With no catalog service wired the handler answers with its typed
	// internal error rather than chi's 404, proving the route exists.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))
	if rec.Code == http.StatusNotFound {
		t.Fatal("expected products route to be mounted")
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/categories", nil))
	if rec.Code == http.StatusNotFound {
		t.Fatal("expected categories route to be mounted")
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
