package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidyou/llmrouter/internal/config"
)

func newTestAuthManager(t *testing.T, apiKey string) *config.Manager {
	t.Helper()
	mgr := config.NewManager(t.TempDir())
	require.NoError(t, mgr.Save(&config.Config{APIKey: apiKey}))
	return mgr
}

func authMiddleware(t *testing.T, apiKey string) func(http.Handler) http.Handler {
	mgr := newTestAuthManager(t, apiKey)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAuthMiddleware(mgr, logger)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddlewareAcceptsBearerToken(t *testing.T) {
	h := authMiddleware(t, "proxy-token")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	req.Header.Set("Authorization", "Bearer proxy-token")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddlewareAcceptsXAPIKeyHeader(t *testing.T) {
	h := authMiddleware(t, "proxy-token")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", nil)
	req.Header.Set("X-API-Key", "proxy-token")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddlewareAcceptsGeminiKeyQueryParam(t *testing.T) {
	h := authMiddleware(t, "proxy-token")(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1beta/models/alias-y:streamGenerateContent?key=proxy-token", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddlewareRejectsUnknownToken(t *testing.T) {
	h := authMiddleware(t, "proxy-token")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareAcceptsAnyKeyFromAccessKeyList(t *testing.T) {
	h := authMiddleware(t, "first-key,second-key")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	req.Header.Set("Authorization", "Bearer second-key")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddlewareSkipsHealthCheck(t *testing.T) {
	h := authMiddleware(t, "proxy-token")(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
