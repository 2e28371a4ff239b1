package dispatcher

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidyou/llmrouter/internal/alias"
	"github.com/aidyou/llmrouter/internal/config"
	"github.com/aidyou/llmrouter/internal/rotator"
)

func newTestDispatcher(t *testing.T, upstreamURL string) *Dispatcher {
	t.Helper()
	mgr := config.NewManager(t.TempDir())
	cfg := &config.Config{
		Providers: []config.Provider{
			{Name: "upstream", APIProtocol: config.ProtocolOpenAI, APIBase: upstreamURL, APIKey: "test-key"},
		},
		Aliases: map[string]config.Alias{
			"default": {Targets: []config.AliasTarget{{Provider: "upstream", Model: "gpt-4o"}}},
		},
		Router: config.RouterConfig{Default: "default"},
		LongContextTokenThreshold: 60000,
	}
	require.NoError(t, mgr.Save(cfg))

	r := rotator.New()
	resolver := alias.NewResolver(mgr, r)
	resolver.RebuildPools(mgr.Get())

	return New(mgr, resolver, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestDispatcherServeHTTPRendersOpenAIUnaryResponse(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"chatcmpl-1","model":"gpt-4o","choices":[{"index":0,"message":{"role":"assistant","content":"hi there"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":2}}`))
	}))
	defer upstream.Close()

	d := newTestDispatcher(t, upstream.URL)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{"model":"default","messages":[{"role":"user","content":"hi"}]}`))
	rec := httptest.NewRecorder()

	d.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hi there")
}

func TestDispatcherServeHTTPUnknownRouteReturns400(t *testing.T) {
	d := newTestDispatcher(t, "http://unused.invalid")

	req := httptest.NewRequest(http.MethodGet, "/not/a/route", nil)
	rec := httptest.NewRecorder()

	d.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDispatcherServeHTTPModelListServesConfiguredAliases(t *testing.T) {
	d := newTestDispatcher(t, "http://unused.invalid")

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	rec := httptest.NewRecorder()

	d.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"default"`)
}

func TestDispatcherServeHTTPUpstreamErrorPropagatesAsUpstreamStatus(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer upstream.Close()

	d := newTestDispatcher(t, upstream.URL)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{"model":"default","messages":[{"role":"user","content":"hi"}]}`))
	rec := httptest.NewRecorder()

	d.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
