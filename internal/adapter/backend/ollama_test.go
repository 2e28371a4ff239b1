package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidyou/llmrouter/internal/unified"
)

func TestOllamaAdapterBuildRequestOmitsAuthHeader(t *testing.T) {
	a := &OllamaAdapter{}
	ur := &unified.UnifiedRequest{Model: "llama3", Messages: []unified.UnifiedMessage{
		{Role: unified.RoleUser, Content: []unified.ContentBlock{unified.TextBlock("hi")}},
	}}

	req, err := a.BuildRequest(ur, "", "http://localhost:11434", "llama3")
	require.NoError(t, err)
	assert.Empty(t, req.Header.Get("Authorization"))
	assert.Equal(t, "http://localhost:11434/api/chat", req.URL.String())
}

func TestOllamaAdapterParseStreamChunkSynthesizesToolTripletFromOneLine(t *testing.T) {
	a := &OllamaAdapter{}
	status := unified.NewSseStatus("msg_1", "m")

	line := []byte(`{"model":"llama3","created_at":"now","message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"get_weather","arguments":{"city":"Paris"}}}]},"done":false}`)
	out, err := a.ParseStreamChunk(line, status)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, unified.ChunkToolUseStart, out[0].Kind)
	assert.Equal(t, unified.ChunkToolUseEnd, out[2].Kind)
}

func TestOllamaAdapterParseStreamChunkDoneLineProducesMessageStop(t *testing.T) {
	a := &OllamaAdapter{}
	status := unified.NewSseStatus("msg_1", "m")

	line := []byte(`{"model":"llama3","created_at":"now","message":{"role":"assistant","content":""},"done":true,"prompt_eval_count":5,"eval_count":10}`)
	out, err := a.ParseStreamChunk(line, status)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, unified.ChunkMessageStop, out[0].Kind)
	assert.Equal(t, uint64(10), out[0].Usage.OutputTokens)
}

func TestOllamaAdapterParseResponseReadsTimingFields(t *testing.T) {
	a := &OllamaAdapter{}
	body := []byte(`{"model":"llama3","created_at":"now","message":{"role":"assistant","content":"hi"},"done":true,"total_duration":100,"prompt_eval_count":5,"eval_count":10}`)
	resp, err := a.ParseResponse(body)
	require.NoError(t, err)
	require.NotNil(t, resp.Usage.TotalDuration)
	assert.Equal(t, int64(100), *resp.Usage.TotalDuration)
	assert.Equal(t, uint64(10), resp.Usage.OutputTokens)
}
