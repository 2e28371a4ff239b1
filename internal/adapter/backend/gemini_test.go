package backend

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidyou/llmrouter/internal/unified"
)

func TestGeminiAdapterBuildRequestPutsKeyInQueryAndPicksStreamMethod(t *testing.T) {
	a := &GeminiAdapter{}
	ur := &unified.UnifiedRequest{Model: "gemini-1.5-pro", Stream: true, Messages: []unified.UnifiedMessage{
		{Role: unified.RoleUser, Content: []unified.ContentBlock{unified.TextBlock("hi")}},
	}}

	req, err := a.BuildRequest(ur, "key123", "https://generativelanguage.googleapis.com", "gemini-1.5-pro")
	require.NoError(t, err)
	assert.True(t, strings.Contains(req.URL.String(), "streamGenerateContent"))
	assert.True(t, strings.Contains(req.URL.String(), "key=key123"))
	assert.True(t, strings.Contains(req.URL.String(), "alt=sse"))
}

func TestGeminiAdapterParseStreamChunkSynthesizesFullToolTriplet(t *testing.T) {
	a := &GeminiAdapter{}
	status := unified.NewSseStatus("msg_1", "m")

	raw := []byte(`{"candidates":[{"content":{"parts":[{"functionCall":{"name":"get_weather","args":{"city":"Paris"}}}]},"finishReason":"STOP"}]}`)
	out, err := a.ParseStreamChunk(raw, status)
	require.NoError(t, err)
	require.Len(t, out, 4) // start, delta, end, message_stop
	assert.Equal(t, unified.ChunkToolUseStart, out[0].Kind)
	assert.Equal(t, unified.ChunkToolUseDelta, out[1].Kind)
	assert.Equal(t, unified.ChunkToolUseEnd, out[2].Kind)
	assert.Equal(t, unified.ChunkMessageStop, out[3].Kind)
	assert.Equal(t, out[0].ToolID, out[1].ToolID)
	assert.Equal(t, out[0].ToolID, out[2].ToolID)
}

func TestGeminiAdapterParseResponseMapsFunctionCall(t *testing.T) {
	a := &GeminiAdapter{}
	body := []byte(`{"candidates":[{"content":{"role":"model","parts":[{"functionCall":{"name":"get_weather","args":{"city":"Paris"}}}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":5,"candidatesTokenCount":10,"totalTokenCount":15}}`)

	resp, err := a.ParseResponse(body)
	require.NoError(t, err)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, unified.ContentToolUse, resp.Content[0].Type)
	assert.Equal(t, uint64(5), resp.Usage.InputTokens)
}
