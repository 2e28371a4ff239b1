package input

import (
	"encoding/json"
	"strconv"

	"github.com/aidyou/llmrouter/internal/adapter"
	"github.com/aidyou/llmrouter/internal/adapter/types"
	"github.com/aidyou/llmrouter/internal/unified"
)

// FromOllama converts an Ollama /api/chat request body into a
// UnifiedRequest.
func FromOllama(body []byte, toolCompatMode bool) (*unified.UnifiedRequest, error) {
	var req types.OllamaChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, invalidRequest("malformed Ollama request body: " + err.Error())
	}

	ur := &unified.UnifiedRequest{
		Model:          req.Model,
		ToolCompatMode: toolCompatMode,
	}
	if req.Stream != nil {
		ur.Stream = *req.Stream
	} else {
		ur.Stream = true // Ollama defaults to streaming when the field is absent
	}

	var systemParts []string
	for _, m := range req.Messages {
		if m.Role == "system" {
			systemParts = append(systemParts, m.Content)
			continue
		}
		ur.Messages = append(ur.Messages, convertOllamaMessage(m))
	}
	if len(systemParts) > 0 {
		ur.SystemPrompt = joinStrings(systemParts)
	}

	for _, t := range req.Tools {
		ur.Tools = append(ur.Tools, unified.UnifiedTool{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			InputSchema: t.Function.Parameters,
		})
	}

	if req.Format == "json" {
		ur.ResponseMimeType = "application/json"
	}

	if o := req.Options; o != nil {
		if o.Temperature != nil {
			v := adapter.ClampTemperature(adapter.Ollama, *o.Temperature)
			ur.Temperature = &v
		}
		if o.TopP != nil {
			v := adapter.ClampTopP(adapter.Ollama, *o.TopP)
			ur.TopP = &v
		}
		ur.TopK = o.TopK
		if o.NumPredict != nil {
			v := adapter.ClampMaxTokens(*o.NumPredict)
			ur.MaxTokens = &v
		}
		ur.StopSequences = o.Stop
		ur.PresencePenalty = o.PresencePenalty
		ur.FrequencyPenalty = o.FrequencyPenalty
		ur.Seed = o.Seed
	}

	return ur, nil
}

func convertOllamaMessage(m types.OllamaMessage) unified.UnifiedMessage {
	role := unified.Role(m.Role)
	um := unified.UnifiedMessage{Role: role, ReasoningContent: m.Thinking}

	if m.Content != "" {
		um.Content = append(um.Content, unified.TextBlock(m.Content))
	}
	for _, img := range m.Images {
		um.Content = append(um.Content, unified.ImageBlock("image/jpeg", img))
	}
	for i, tc := range m.ToolCalls {
		id := callID(i)
		var args json.RawMessage = tc.Function.Arguments
		if len(args) == 0 || !json.Valid(args) {
			um.Content = append(um.Content, failedToolCallBlocks(string(tc.Function.Arguments))...)
			continue
		}
		um.Content = append(um.Content, unified.ToolUseBlock(id, tc.Function.Name, args))
	}
	return um
}

func callID(i int) string {
	return "call_" + strconv.Itoa(i)
}
