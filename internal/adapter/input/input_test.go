package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidyou/llmrouter/internal/unified"
)

func TestFromOpenAIHoistsSystemMessage(t *testing.T) {
	body := []byte(`{"model":"alias-x","stream":true,"messages":[
		{"role":"system","content":"be nice"},
		{"role":"user","content":"hi"}
	]}`)

	ur, err := FromOpenAI(body, false)
	require.NoError(t, err)
	assert.Equal(t, "be nice", ur.SystemPrompt)
	require.Len(t, ur.Messages, 1)
	for _, m := range ur.Messages {
		assert.NotEqual(t, unified.RoleSystem, m.Role)
	}
	assert.True(t, ur.Stream)
}

func TestFromOpenAIClampsTemperature(t *testing.T) {
	body := []byte(`{"model":"m","messages":[{"role":"user","content":"hi"}],"temperature":5}`)
	ur, err := FromOpenAI(body, false)
	require.NoError(t, err)
	require.NotNil(t, ur.Temperature)
	assert.Equal(t, 2.0, *ur.Temperature)
}

func TestFromOpenAIMalformedToolArgumentsProducesFailedSentinel(t *testing.T) {
	body := []byte(`{"model":"m","messages":[{"role":"assistant","content":null,"tool_calls":[
		{"id":"call_1","type":"function","function":{"name":"x","arguments":"not json"}}
	]}]}`)
	ur, err := FromOpenAI(body, false)
	require.NoError(t, err)
	require.Len(t, ur.Messages, 1)
	require.Len(t, ur.Messages[0].Content, 2)
	assert.Contains(t, ur.Messages[0].Content[0].Text, "ccp:failed_tool_call")
}

func TestFromClaudeHoistsSystemAndToolUse(t *testing.T) {
	body := []byte(`{"model":"m","max_tokens":100,"system":"be nice","messages":[
		{"role":"user","content":"weather in Paris"}
	],"tools":[{"name":"get_weather","input_schema":{"type":"object","properties":{"city":{"type":"string"}},"required":["city"]}}]}`)

	ur, err := FromClaude(body, false)
	require.NoError(t, err)
	assert.Equal(t, "be nice", ur.SystemPrompt)
	require.Len(t, ur.Tools, 1)
	assert.Equal(t, "get_weather", ur.Tools[0].Name)
	assert.Equal(t, 100, *ur.MaxTokens)
}

func TestFromOllamaDefaultsStreamTrue(t *testing.T) {
	body := []byte(`{"model":"m","messages":[{"role":"user","content":"ping"}]}`)
	ur, err := FromOllama(body, false)
	require.NoError(t, err)
	assert.True(t, ur.Stream)
}

func TestFromGeminiHoistsSystemInstruction(t *testing.T) {
	body := []byte(`{"systemInstruction":{"parts":[{"text":"be nice"}]},"contents":[{"role":"user","parts":[{"text":"ping"}]}]}`)
	ur, err := FromGemini(body, true, false, "alias-y")
	require.NoError(t, err)
	assert.Equal(t, "be nice", ur.SystemPrompt)
	assert.True(t, ur.Stream)
	require.Len(t, ur.Messages, 1)
	assert.Equal(t, unified.RoleUser, ur.Messages[0].Role)
}
