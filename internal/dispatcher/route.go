// Package dispatcher wires the Input Adapter, Alias Resolver, Target
// Picker, Key Rotator, Backend Adapter, Stream Reassembler, Tool-Compat
// Engine, and Output Adapter into the single HTTP handler clients talk to.
package dispatcher

import (
	"strings"
)

// ClientProtocol identifies which of the four wire protocols an inbound
// request is speaking, derived from its path.
type ClientProtocol string

const (
	ProtocolOpenAI ClientProtocol = "openai"
	ProtocolClaude ClientProtocol = "claude"
	ProtocolGemini ClientProtocol = "gemini"
	ProtocolOllama ClientProtocol = "ollama"
)

// route is the outcome of matching an inbound request path against the
// Router's wire-endpoint table.
type route struct {
	protocol    ClientProtocol
	model       string // only populated when the path itself names the model (Gemini)
	stream      bool   // only meaningful when the path itself encodes it (Gemini)
	isModelList bool
}

// matchRoute implements the path-suffix routing table: each client
// protocol's conventional endpoint path maps onto that protocol's Input/
// Output Adapter pair. Gemini's model and stream-vs-unary choice are
// encoded in the path itself (":generateContent"/":streamGenerateContent"
// suffixed onto the model resource), since Gemini carries no request-body
// stream flag.
func matchRoute(path string) (route, bool) {
	switch {
	case path == "/v1/chat/completions":
		return route{protocol: ProtocolOpenAI}, true
	case path == "/v1/messages":
		return route{protocol: ProtocolClaude}, true
	case path == "/api/chat":
		return route{protocol: ProtocolOllama}, true
	case path == "/v1/models":
		return route{isModelList: true}, true
	case strings.HasPrefix(path, "/v1beta/models/"):
		return matchGeminiPath(path)
	default:
		return route{}, false
	}
}

func matchGeminiPath(path string) (route, bool) {
	rest := strings.TrimPrefix(path, "/v1beta/models/")
	switch {
	case strings.HasSuffix(rest, ":streamGenerateContent"):
		model := strings.TrimSuffix(rest, ":streamGenerateContent")
		return route{protocol: ProtocolGemini, model: model, stream: true}, true
	case strings.HasSuffix(rest, ":generateContent"):
		model := strings.TrimSuffix(rest, ":generateContent")
		return route{protocol: ProtocolGemini, model: model, stream: false}, true
	default:
		return route{}, false
	}
}
