package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aidyou/llmrouter/internal/config"
)

type AuthMiddleware struct {
	config *config.Manager
	logger *slog.Logger
}

func NewAuthMiddleware(config *config.Manager, logger *slog.Logger) func(http.Handler) http.Handler {
	am := &AuthMiddleware{
		config: config,
		logger: logger,
	}

	return am.middleware
}

func (am *AuthMiddleware) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := am.authenticate(r); err != nil {
			am.logger.Error("Authentication failed", "error", err, "remote_addr", r.RemoteAddr)
			http.Error(w, "Proxy API key not authorized", http.StatusUnauthorized)

			return
		}

		next.ServeHTTP(w, r)
	})
}

func (am *AuthMiddleware) authenticate(r *http.Request) error {
	cfg := am.config.Get()
	keys := cfg.AccessKeys()

	// Skip auth for health checks or if no access key is configured
	if r.URL.Path == "/health" || len(keys) == 0 {
		return nil
	}

	token := bearerToken(r)
	if token == "" {
		return errors.New("no authentication token provided")
	}

	for _, k := range keys {
		if token == k {
			return nil
		}
	}
	return errors.New("invalid API key")
}

// bearerToken reads the proxy access token from whichever carrier the
// requesting client's protocol uses: Authorization: Bearer (OpenAI,
// Ollama), X-API-Key (Claude), or the ?key= query parameter (Gemini).
func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
		return apiKey
	}
	if key := r.URL.Query().Get("key"); key != "" {
		return key
	}
	return ""
}
