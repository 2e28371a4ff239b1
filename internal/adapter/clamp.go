// Package adapter holds the parameter-clamping table shared by all four
// Input Adapters and the Protocol enum used for compile-time-dispatched
// routing between them (per the sum-type-over-dynamic-dispatch design
// note: the adapter families are fixed and few, so a switch over this enum
// replaces a registry of interfaces).
package adapter

// Protocol identifies one of the four wire dialects the Router speaks,
// either as a client protocol (inbound) or a provider protocol (outbound).
type Protocol string

const (
	OpenAI      Protocol = "openai"
	Claude      Protocol = "claude"
	Gemini      Protocol = "gemini"
	Ollama      Protocol = "ollama"
	HuggingFace Protocol = "huggingface" // backend-only: routed through the OpenAI backend adapter with a URL rewrite
)

// clampRange is an inclusive [lo, hi] range for one (protocol, parameter).
type clampRange struct{ lo, hi float64 }

var temperatureRanges = map[Protocol]clampRange{
	OpenAI: {0, 2},
	Claude: {0, 1},
	Gemini: {0, 1},
	Ollama: {0, 2},
}

// ClampTemperature applies the protocol-defined range from §4.1: values
// outside [lo, hi] are clamped, never rejected.
func ClampTemperature(p Protocol, v float64) float64 {
	r, ok := temperatureRanges[p]
	if !ok {
		return v
	}
	return clamp(v, r.lo, r.hi)
}

var topPRanges = map[Protocol]clampRange{
	OpenAI: {0, 1},
	Claude: {0, 1},
	Gemini: {0, 1},
	Ollama: {0, 1},
}

func ClampTopP(p Protocol, v float64) float64 {
	r, ok := topPRanges[p]
	if !ok {
		return v
	}
	return clamp(v, r.lo, r.hi)
}

// ClampMaxTokens rejects a negative value by clamping to 0; protocols that
// require max_tokens (Claude) apply their own default elsewhere.
func ClampMaxTokens(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
