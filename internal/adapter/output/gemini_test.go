package output

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidyou/llmrouter/internal/unified"
)

func TestGeminiStreamChunkAccumulatesParallelToolCallsUntilMessageStop(t *testing.T) {
	status := unified.NewSseStatus("msg_1", "m")

	assert.Nil(t, GeminiStreamChunk(unified.ToolUseStart("function", "call_1", "get_weather"), status))
	assert.Nil(t, GeminiStreamChunk(unified.ToolUseDelta("call_1", `{"city":"Paris"}`), status))
	assert.Nil(t, GeminiStreamChunk(unified.ToolUseStart("function", "call_2", "get_weather"), status))
	assert.Nil(t, GeminiStreamChunk(unified.ToolUseDelta("call_2", `{"city":"Berlin"}`), status))

	events := GeminiStreamChunk(unified.MessageStop("stop", unified.UnifiedUsage{InputTokens: 10, OutputTokens: 20}), status)
	require.Len(t, events, 1)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(events[0].Data), &out))
	candidate := out["candidates"].([]any)[0].(map[string]any)
	parts := candidate["content"].(map[string]any)["parts"].([]any)
	assert.Len(t, parts, 2)

	status.WithRLock(func(s *unified.SseStatus) { assert.Empty(t, s.GeminiTools) })
}

func TestGeminiResponseMapsToolUseToFunctionCall(t *testing.T) {
	resp := unified.UnifiedResponse{
		Model:   "m",
		Content: []unified.ContentBlock{unified.ToolUseBlock("t1", "get_weather", json.RawMessage(`{"city":"Paris"}`))},
	}
	body, err := GeminiResponse(resp)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	candidate := out["candidates"].([]any)[0].(map[string]any)
	parts := candidate["content"].(map[string]any)["parts"].([]any)
	require.Len(t, parts, 1)
	assert.Equal(t, "get_weather", parts[0].(map[string]any)["functionCall"].(map[string]any)["name"])
}
