// Package output implements the four Output Adapters: UnifiedResponse /
// UnifiedStreamChunk -> client protocol wire shape, both unary and SSE.
package output

import "encoding/json"

// SSEEvent is one "event:"/"data:" pair an Output Adapter produces; Event
// may be empty for protocols (Ollama-style NDJSON, OpenAI) that don't name
// their events.
type SSEEvent struct {
	Event string
	Data  string
}

func jsonEvent(event string, v any) SSEEvent {
	b, _ := json.Marshal(v)
	return SSEEvent{Event: event, Data: string(b)}
}

func jsonLine(v any) SSEEvent {
	b, _ := json.Marshal(v)
	return SSEEvent{Data: string(b)}
}
