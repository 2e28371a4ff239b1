package backend

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidyou/llmrouter/internal/unified"
)

func TestClaudeAdapterBuildRequestSetsAPIKeyHeaderAndDefaultMaxTokens(t *testing.T) {
	a := &ClaudeAdapter{}
	ur := &unified.UnifiedRequest{Model: "claude-3-5-sonnet", Messages: []unified.UnifiedMessage{
		{Role: unified.RoleUser, Content: []unified.ContentBlock{unified.TextBlock("hi")}},
	}}

	req, err := a.BuildRequest(ur, "sk-ant-test", "https://api.anthropic.com", "claude-3-5-sonnet")
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-test", req.Header.Get("x-api-key"))
	assert.Equal(t, "2023-06-01", req.Header.Get("anthropic-version"))
	assert.Equal(t, "https://api.anthropic.com/v1/messages", req.URL.String())

	var sent map[string]any
	require.NoError(t, json.NewDecoder(req.Body).Decode(&sent))
	assert.Equal(t, float64(4096), sent["max_tokens"])
}

func TestClaudeAdapterParseStreamChunkTracksOpenToolIDAcrossDeltas(t *testing.T) {
	a := &ClaudeAdapter{}
	status := unified.NewSseStatus("msg_1", "m")

	start, err := a.ParseStreamChunk([]byte(`{"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"toolu_1","name":"get_weather"}}`), status)
	require.NoError(t, err)
	require.Len(t, start, 1)
	assert.Equal(t, "toolu_1", start[0].ToolID)

	delta, err := a.ParseStreamChunk([]byte(`{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"{\"city\":"}}`), status)
	require.NoError(t, err)
	require.Len(t, delta, 1)
	assert.Equal(t, "toolu_1", delta[0].ToolID)

	stop, err := a.ParseStreamChunk([]byte(`{"type":"content_block_stop","index":0}`), status)
	require.NoError(t, err)
	require.Len(t, stop, 1)
	assert.Equal(t, "toolu_1", stop[0].ToolID)

	status.WithRLock(func(s *unified.SseStatus) { assert.Equal(t, "", s.CurrentToolID) })
}

func TestClaudeAdapterParseStreamChunkTextBlockStopProducesNoEvent(t *testing.T) {
	a := &ClaudeAdapter{}
	status := unified.NewSseStatus("msg_1", "m")
	out, err := a.ParseStreamChunk([]byte(`{"type":"content_block_stop","index":0}`), status)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestClaudeAdapterParseResponseMapsToolUseAndThinking(t *testing.T) {
	a := &ClaudeAdapter{}
	body := []byte(`{"id":"msg_1","type":"message","role":"assistant","model":"m","stop_reason":"tool_use","content":[
		{"type":"thinking","thinking":"because"},
		{"type":"tool_use","id":"toolu_1","name":"get_weather","input":{"city":"Paris"}}
	],"usage":{"input_tokens":10,"output_tokens":20}}`)

	resp, err := a.ParseResponse(body)
	require.NoError(t, err)
	require.Len(t, resp.Content, 2)
	assert.Equal(t, unified.ContentThinking, resp.Content[0].Type)
	assert.Equal(t, unified.ContentToolUse, resp.Content[1].Type)

	var args map[string]any
	require.NoError(t, json.Unmarshal(resp.Content[1].Input, &args))
	assert.Equal(t, "Paris", args["city"])
}
