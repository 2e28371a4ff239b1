package input

import (
	"encoding/json"

	"github.com/aidyou/llmrouter/internal/adapter"
	"github.com/aidyou/llmrouter/internal/adapter/types"
	"github.com/aidyou/llmrouter/internal/unified"
	"github.com/google/uuid"
)

// FromGemini converts a Gemini generateContent/streamGenerateContent
// request body into a UnifiedRequest. stream is derived by the caller from
// the URL suffix per §4.1 point 7, since Gemini carries no body-level
// stream flag.
func FromGemini(body []byte, stream bool, toolCompatMode bool, model string) (*unified.UnifiedRequest, error) {
	var req types.GeminiRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, invalidRequest("malformed Gemini request body: " + err.Error())
	}

	ur := &unified.UnifiedRequest{
		Model:          model,
		Stream:         stream,
		ToolCompatMode: toolCompatMode,
	}

	if req.SystemInstruction != nil {
		var texts []string
		for _, p := range req.SystemInstruction.Parts {
			if p.Text != "" {
				texts = append(texts, p.Text)
			}
		}
		ur.SystemPrompt = joinStrings(texts)
	}

	for _, c := range req.Contents {
		um, err := convertGeminiContent(c)
		if err != nil {
			return nil, err
		}
		ur.Messages = append(ur.Messages, um)
	}

	for _, t := range req.Tools {
		for _, fd := range t.FunctionDeclarations {
			ur.Tools = append(ur.Tools, unified.UnifiedTool{
				Name:        fd.Name,
				Description: fd.Description,
				InputSchema: fd.Parameters,
			})
		}
	}

	if gc := req.GenerationConfig; gc != nil {
		if gc.Temperature != nil {
			v := adapter.ClampTemperature(adapter.Gemini, *gc.Temperature)
			ur.Temperature = &v
		}
		if gc.TopP != nil {
			v := adapter.ClampTopP(adapter.Gemini, *gc.TopP)
			ur.TopP = &v
		}
		ur.TopK = gc.TopK
		if gc.MaxOutputTokens != nil {
			v := adapter.ClampMaxTokens(*gc.MaxOutputTokens)
			ur.MaxTokens = &v
		}
		ur.StopSequences = gc.StopSequences
		ur.ResponseMimeType = gc.ResponseMimeType
		ur.ResponseSchema = gc.ResponseSchema
	}
	ur.SafetySettings = req.SafetySettings
	ur.CachedContent = req.CachedContent

	return ur, nil
}

func convertGeminiContent(c types.GeminiContent) (unified.UnifiedMessage, error) {
	role := unified.RoleUser
	if c.Role == "model" {
		role = unified.RoleAssistant
	}
	um := unified.UnifiedMessage{Role: role}

	for _, p := range c.Parts {
		switch {
		case p.FunctionCall != nil:
			um.Content = append(um.Content, unified.ToolUseBlock(uuid.NewString(), p.FunctionCall.Name, p.FunctionCall.Args))
		case p.FunctionResp != nil:
			um.Content = append(um.Content, unified.ToolResultBlock(p.FunctionResp.Name, string(p.FunctionResp.Response), false))
		case p.InlineData != nil:
			um.Content = append(um.Content, unified.ImageBlock(p.InlineData.MimeType, p.InlineData.Data))
		case p.Text != "":
			if p.Thought {
				um.Content = append(um.Content, unified.ThinkingBlock(p.Text))
			} else {
				um.Content = append(um.Content, unified.TextBlock(p.Text))
			}
		}
	}
	return um, nil
}
