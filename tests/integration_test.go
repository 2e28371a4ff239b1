package tests

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
	"github.com/aidyou/llmrouter/internal/dispatcher"
	"github.com/aidyou/llmrouter/internal/rotator"
)

func newRouterHandler(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	tmpDir := t.TempDir()
	cfgMgr := config.NewManager(tmpDir)
	require.NoError(t, cfgMgr.Save(cfg))

	r := rotator.New()
	resolver := alias.NewResolver(cfgMgr, r)
	resolver.RebuildPools(cfgMgr.Get())

	return dispatcher.New(cfgMgr, resolver, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// TestProxyIntegrationOpenAIRoundTrip exercises the full request path for an
// OpenAI-protocol client: alias resolution, the OpenAI Backend Adapter, and
// the OpenAI Output Adapter, against a mocked upstream.
func TestProxyIntegrationOpenAIRoundTrip(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-provider-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"chatcmpl-1","model":"test-model","choices":[{"index":0,"message":{"role":"assistant","content":"hello back"},"finish_reason":"stop"}],"usage":{"prompt_tokens":5,"completion_tokens":3}}`))
	}))
	defer upstream.Close()

	cfg := &config.Config{
		Host:   "127.0.0.1",
		Port:   8080,
		APIKey: "test-key",
		Providers: []config.Provider{
			{Name: "openrouter", APIProtocol: config.ProtocolOpenAI, APIBase: upstream.URL, APIKey: "test-provider-key"},
		},
		Aliases: map[string]config.Alias{
			"default": {Targets: []config.AliasTarget{{Provider: "openrouter", Model: "test-model"}}},
		},
		Router:                    config.RouterConfig{Default: "default"},
		LongContextTokenThreshold: 60000,
	}

	handler := newRouterHandler(t, cfg)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(
		`{"model":"default","messages":[{"role":"user","content":"Hello, world!"}]}`))
	req.Header.Set("Authorization", "Bearer test-key")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "hello back")
}

// TestProxyIntegrationClaudeClientHitsOpenAIUpstream exercises cross-protocol
// translation: a Claude-shaped inbound request routed to an OpenAI-shaped
// upstream, rendered back out in Claude's own response shape.
func TestProxyIntegrationClaudeClientHitsOpenAIUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"chatcmpl-2","model":"test-model","choices":[{"index":0,"message":{"role":"assistant","content":"claude says hi"},"finish_reason":"stop"}],"usage":{"prompt_tokens":4,"completion_tokens":3}}`))
	}))
	defer upstream.Close()

	cfg := &config.Config{
		Providers: []config.Provider{
			{Name: "openrouter", APIProtocol: config.ProtocolOpenAI, APIBase: upstream.URL, APIKey: "test-provider-key"},
		},
		Aliases: map[string]config.Alias{
			"default": {Targets: []config.AliasTarget{{Provider: "openrouter", Model: "test-model"}}},
		},
		Router:                    config.RouterConfig{Default: "default"},
		LongContextTokenThreshold: 60000,
	}

	handler := newRouterHandler(t, cfg)

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(
		`{"model":"default","max_tokens":256,"messages":[{"role":"user","content":"hi"}]}`))
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "claude says hi")
	assert.Contains(t, rr.Body.String(), `"type":"message"`)
}
