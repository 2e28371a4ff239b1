package dispatcher

import (
	"encoding/json"
	"net/http"

	"github.com/aidyou/llmrouter/internal/routererr"
)

// writeError translates any error into the client protocol's own error
// envelope shape and writes it with the right status code. A plain error
// (not a *routererr.Error) is treated as an opaque internal error.
func writeError(w http.ResponseWriter, protocol ClientProtocol, err error) {
	status, rerr := classify(err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	switch protocol {
	case ProtocolClaude:
		_ = json.NewEncoder(w).Encode(map[string]any{
			"type": "error",
			"error": map[string]string{
				"type":    rerr.Kind.String(),
				"message": rerr.Msg,
			},
		})
	case ProtocolGemini:
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"code":    status,
				"message": rerr.Msg,
				"status":  rerr.Kind.String(),
			},
		})
	case ProtocolOllama:
		_ = json.NewEncoder(w).Encode(map[string]string{"error": rerr.Msg})
	default: // OpenAI and the /v1/models catalog share OpenAI's error shape
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"message": rerr.Msg,
				"type":    rerr.Kind.String(),
				"code":    rerr.Kind.String(),
			},
		})
	}
}

func classify(err error) (int, *routererr.Error) {
	if rerr, ok := err.(*routererr.Error); ok {
		return rerr.Status(), rerr
	}
	wrapped := routererr.Wrap(routererr.InternalError, "unexpected error", err)
	return wrapped.Status(), wrapped
}
