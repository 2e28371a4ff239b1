package input

import (
	"encoding/json"

	"github.com/aidyou/llmrouter/internal/adapter"
	"github.com/aidyou/llmrouter/internal/adapter/types"
	"github.com/aidyou/llmrouter/internal/unified"
)

// FromClaude converts an Anthropic Claude /v1/messages request body into a
// UnifiedRequest.
func FromClaude(body []byte, toolCompatMode bool) (*unified.UnifiedRequest, error) {
	var req types.ClaudeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, invalidRequest("malformed Claude request body: " + err.Error())
	}

	ur := &unified.UnifiedRequest{
		Model:          req.Model,
		Stream:         req.Stream,
		ToolCompatMode: toolCompatMode,
	}

	if systemText, _, err := decodeJSONOrText(req.System); err == nil {
		ur.SystemPrompt = systemText
	}

	for _, m := range req.Messages {
		um, err := convertClaudeMessage(m)
		if err != nil {
			return nil, err
		}
		ur.Messages = append(ur.Messages, um)
	}

	for _, t := range req.Tools {
		ur.Tools = append(ur.Tools, unified.UnifiedTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	ur.ToolChoice = parseClaudeToolChoice(req.ToolChoice)

	if req.Temperature != nil {
		v := adapter.ClampTemperature(adapter.Claude, *req.Temperature)
		ur.Temperature = &v
	}
	if req.TopP != nil {
		v := adapter.ClampTopP(adapter.Claude, *req.TopP)
		ur.TopP = &v
	}
	ur.TopK = req.TopK
	maxTokens := adapter.ClampMaxTokens(req.MaxTokens)
	ur.MaxTokens = &maxTokens
	ur.StopSequences = req.StopSequences

	return ur, nil
}

func parseClaudeToolChoice(raw json.RawMessage) *unified.ToolChoice {
	if len(raw) == 0 {
		return nil
	}
	var obj struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	switch obj.Type {
	case "auto":
		return &unified.ToolChoice{Mode: unified.ToolChoiceAuto}
	case "any":
		return &unified.ToolChoice{Mode: unified.ToolChoiceRequired}
	case "tool":
		return &unified.ToolChoice{Mode: unified.ToolChoiceSpecific, Name: obj.Name}
	}
	return nil
}

func convertClaudeMessage(m types.ClaudeMessage) (unified.UnifiedMessage, error) {
	role := unified.Role(m.Role)
	um := unified.UnifiedMessage{Role: role}

	var asString string
	if err := json.Unmarshal(m.Content, &asString); err == nil {
		if asString != "" {
			um.Content = append(um.Content, unified.TextBlock(asString))
		}
		return um, nil
	}

	var blocks []types.ClaudeContentBlock
	if err := json.Unmarshal(m.Content, &blocks); err != nil {
		return um, invalidRequest("malformed Claude content block array")
	}

	for _, b := range blocks {
		switch b.Type {
		case "text":
			um.Content = append(um.Content, unified.TextBlock(b.Text))
		case "thinking":
			um.Content = append(um.Content, unified.ThinkingBlock(b.Thinking))
		case "image":
			if b.Source != nil {
				um.Content = append(um.Content, unified.ImageBlock(b.Source.MediaType, b.Source.Data))
			}
		case "tool_use":
			um.Content = append(um.Content, unified.ToolUseBlock(b.ID, b.Name, b.Input))
		case "tool_result":
			text, err := claudeToolResultText(b.Content)
			if err != nil {
				return um, err
			}
			isError := b.IsError != nil && *b.IsError
			um.Content = append(um.Content, unified.ToolResultBlock(b.ToolUseID, text, isError))
		}
	}
	return um, nil
}

// claudeToolResultText handles tool_result.content being either a bare
// string or an array of {type:"text", text} blocks joined by "\n".
func claudeToolResultText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString, nil
	}
	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return "", invalidRequest("malformed tool_result content")
	}
	var texts []string
	for _, b := range blocks {
		if b.Type == "text" {
			texts = append(texts, b.Text)
		}
	}
	return joinStrings(texts), nil
}
