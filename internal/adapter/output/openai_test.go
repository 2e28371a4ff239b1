package output

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidyou/llmrouter/internal/unified"
)

func TestOpenAIStreamChunkAssignsIncrementingToolCallIndex(t *testing.T) {
	status := unified.NewSseStatus("msg_1", "m")

	first := OpenAIStreamChunk(unified.ToolUseStart("function", "call_1", "get_weather"), status, "chatcmpl_1", "m")
	require.Len(t, first, 1)
	assert.Contains(t, first[0].Data, `"index":0`)

	second := OpenAIStreamChunk(unified.ToolUseStart("function", "call_2", "get_time"), status, "chatcmpl_1", "m")
	require.Len(t, second, 1)
	assert.Contains(t, second[0].Data, `"index":1`)
}

func TestOpenAIStreamChunkMessageStopCarriesFallbackUsage(t *testing.T) {
	status := unified.NewSseStatus("msg_1", "m")
	status.WithLock(func(s *unified.SseStatus) { s.TextDeltaCount = 7 })

	events := OpenAIStreamChunk(unified.MessageStop("stop", unified.UnifiedUsage{OutputTokens: 0}), status, "chatcmpl_1", "m")
	require.Len(t, events, 1)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(events[0].Data), &out))
	usage := out["usage"].(map[string]any)
	assert.Equal(t, float64(7), usage["completion_tokens"])
	choice := out["choices"].([]any)[0].(map[string]any)
	assert.Equal(t, "stop", choice["finish_reason"])
}

func TestOpenAIResponseMapsToolUseBlocks(t *testing.T) {
	resp := unified.UnifiedResponse{
		ID:    "chatcmpl_1",
		Model: "m",
		Content: []unified.ContentBlock{
			unified.ToolUseBlock("call_1", "get_weather", json.RawMessage(`{"city":"Paris"}`)),
		},
		StopReason: "tool_use",
	}
	body, err := OpenAIResponse(resp)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	choice := out["choices"].([]any)[0].(map[string]any)
	message := choice["message"].(map[string]any)
	toolCalls := message["tool_calls"].([]any)
	require.Len(t, toolCalls, 1)
	assert.Equal(t, "tool_calls", choice["finish_reason"])
}
