package input

import (
	"encoding/json"

	"github.com/aidyou/llmrouter/internal/adapter"
	"github.com/aidyou/llmrouter/internal/adapter/types"
	"github.com/aidyou/llmrouter/internal/unified"
)

// FromOpenAI converts an OpenAI chat-completions request body into a
// UnifiedRequest, hoisting system messages and translating tool calls per
// §4.1.
func FromOpenAI(body []byte, toolCompatMode bool) (*unified.UnifiedRequest, error) {
	var req types.OpenAIChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, invalidRequest("malformed OpenAI request body: " + err.Error())
	}

	ur := &unified.UnifiedRequest{
		Model:          req.Model,
		Stream:         req.Stream,
		ToolCompatMode: toolCompatMode,
		User:           req.User,
	}

	var systemParts []string
	for _, m := range req.Messages {
		if m.Role == "system" {
			text, _, err := decodeJSONOrText(m.Content)
			if err != nil {
				return nil, err
			}
			systemParts = append(systemParts, text)
			continue
		}

		um, err := convertOpenAIMessage(m)
		if err != nil {
			return nil, err
		}
		ur.Messages = append(ur.Messages, um)
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
	ur.ToolChoice = parseOpenAIToolChoice(req.ToolChoice)

	if req.Temperature != nil {
		v := adapter.ClampTemperature(adapter.OpenAI, *req.Temperature)
		ur.Temperature = &v
	}
	if req.TopP != nil {
		v := adapter.ClampTopP(adapter.OpenAI, *req.TopP)
		ur.TopP = &v
	}
	if req.MaxTokens != nil {
		v := adapter.ClampMaxTokens(*req.MaxTokens)
		ur.MaxTokens = &v
	}
	ur.StopSequences = req.Stop
	ur.PresencePenalty = req.PresencePenalty
	ur.FrequencyPenalty = req.FrequencyPenalty
	ur.Seed = req.Seed
	ur.Logprobs = req.Logprobs
	ur.TopLogprobs = req.TopLogprobs

	return ur, nil
}

func parseOpenAIToolChoice(raw json.RawMessage) *unified.ToolChoice {
	if len(raw) == 0 {
		return nil
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		switch asString {
		case "auto":
			return &unified.ToolChoice{Mode: unified.ToolChoiceAuto}
		case "none":
			return &unified.ToolChoice{Mode: unified.ToolChoiceNone}
		case "required":
			return &unified.ToolChoice{Mode: unified.ToolChoiceRequired}
		}
		return nil
	}
	var obj struct {
		Type     string `json:"type"`
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Function.Name != "" {
		return &unified.ToolChoice{Mode: unified.ToolChoiceSpecific, Name: obj.Function.Name}
	}
	return nil
}

func convertOpenAIMessage(m types.OpenAIMessage) (unified.UnifiedMessage, error) {
	role := unified.Role(m.Role)
	if m.Role == "tool" {
		role = unified.RoleTool
	}

	um := unified.UnifiedMessage{Role: role}

	if m.Role == "tool" {
		text, _, err := decodeJSONOrText(m.Content)
		if err != nil {
			return um, err
		}
		um.Content = append(um.Content, unified.ToolResultBlock(m.ToolCallID, text, false))
		return um, nil
	}

	text, images, err := decodeJSONOrText(m.Content)
	if err != nil {
		return um, err
	}
	if text != "" {
		um.Content = append(um.Content, unified.TextBlock(text))
	}
	um.Content = append(um.Content, images...)

	for _, tc := range m.ToolCalls {
		var args json.RawMessage
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			um.Content = append(um.Content, failedToolCallBlocks(tc.Function.Arguments)...)
			continue
		}
		um.Content = append(um.Content, unified.ToolUseBlock(tc.ID, tc.Function.Name, args))
	}

	return um, nil
}
