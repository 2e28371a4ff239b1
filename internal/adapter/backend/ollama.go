package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/aidyou/llmrouter/internal/adapter/types"
	"github.com/aidyou/llmrouter/internal/unified"
)

// OllamaAdapter talks to a local or remote Ollama /api/chat endpoint.
// Ollama takes no API key.
type OllamaAdapter struct{}

func (a *OllamaAdapter) BuildRequest(ur *unified.UnifiedRequest, _apiKey, baseURL, model string) (*http.Request, error) {
	req := types.OllamaChatRequest{Model: model, KeepAlive: "5m"}
	stream := ur.Stream
	req.Stream = &stream

	if ur.SystemPrompt != "" {
		req.Messages = append(req.Messages, types.OllamaMessage{Role: "system", Content: ur.SystemPrompt})
	}
	for _, m := range ur.Messages {
		req.Messages = append(req.Messages, toOllamaMessage(m))
	}
	for _, t := range ur.Tools {
		req.Tools = append(req.Tools, types.OllamaTool{
			Type: "function",
			Function: types.OllamaFunctionDef{Name: t.Name, Description: t.Description, Parameters: t.InputSchema},
		})
	}
	if ur.ResponseMimeType == "application/json" {
		req.Format = "json"
	}
	req.Options = &types.OllamaOptions{
		Temperature: ur.Temperature, NumPredict: ur.MaxTokens, TopP: ur.TopP, TopK: ur.TopK,
		Stop: ur.StopSequences, PresencePenalty: ur.PresencePenalty, FrequencyPenalty: ur.FrequencyPenalty, Seed: ur.Seed,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal ollama request: %w", err)
	}

	url := strings.TrimRight(baseURL, "/") + "/api/chat"
	httpReq, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return httpReq, nil
}

func toOllamaMessage(m unified.UnifiedMessage) types.OllamaMessage {
	om := types.OllamaMessage{Role: string(m.Role)}
	var text strings.Builder
	for _, c := range m.Content {
		switch c.Type {
		case unified.ContentText:
			text.WriteString(c.Text)
		case unified.ContentImage:
			om.Images = append(om.Images, c.Data)
		case unified.ContentToolUse:
			om.ToolCalls = append(om.ToolCalls, types.OllamaToolCall{
				Function: types.OllamaFunctionCall{Name: c.Name, Arguments: c.Input},
			})
		case unified.ContentToolResult:
			om.Role = "tool"
			text.WriteString(c.Text)
		}
	}
	om.Content = text.String()
	return om
}

func (a *OllamaAdapter) ParseResponse(body []byte) (*unified.UnifiedResponse, error) {
	var resp types.OllamaChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse ollama response: %w", err)
	}

	var content []unified.ContentBlock
	if resp.Message.Content != "" {
		content = append(content, unified.TextBlock(resp.Message.Content))
	}
	for _, tc := range resp.Message.ToolCalls {
		content = append(content, unified.ToolUseBlock("tool_"+uuid.NewString(), tc.Function.Name, tc.Function.Arguments))
	}

	usage := unified.UnifiedUsage{TotalDuration: resp.TotalDuration, LoadDuration: resp.LoadDuration,
		PromptEvalDuration: resp.PromptEvalDuration, EvalDuration: resp.EvalDuration}
	if resp.PromptEvalCount != nil {
		usage.InputTokens = *resp.PromptEvalCount
	}
	if resp.EvalCount != nil {
		usage.OutputTokens = *resp.EvalCount
	}

	return &unified.UnifiedResponse{Model: resp.Model, Content: content, StopReason: "stop", Usage: usage}, nil
}

// ParseStreamChunk translates one NDJSON line from Ollama's /api/chat
// stream. A tool call is delivered atomically within one line, so its
// UR triplet is synthesized on arrival; the terminal line (done=true)
// closes the response with its timing and count fields intact.
func (a *OllamaAdapter) ParseStreamChunk(raw []byte, status *unified.SseStatus) ([]unified.StreamChunk, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var resp types.OllamaChatResponse
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return nil, fmt.Errorf("parse ollama stream chunk: %w", err)
	}

	if resp.Done {
		usage := unified.UnifiedUsage{TotalDuration: resp.TotalDuration, LoadDuration: resp.LoadDuration,
			PromptEvalDuration: resp.PromptEvalDuration, EvalDuration: resp.EvalDuration}
		if resp.PromptEvalCount != nil {
			usage.InputTokens = *resp.PromptEvalCount
		}
		if resp.EvalCount != nil {
			usage.OutputTokens = *resp.EvalCount
		}
		return []unified.StreamChunk{unified.MessageStop("stop", usage)}, nil
	}

	var out []unified.StreamChunk
	if resp.Message.Content != "" {
		out = append(out, unified.TextDelta(resp.Message.Content))
	}
	if resp.Message.Thinking != "" {
		out = append(out, unified.ThinkingDelta(resp.Message.Thinking))
	}
	for _, tc := range resp.Message.ToolCalls {
		id := "tool_" + uuid.NewString()
		out = append(out,
			unified.ToolUseStart("function", id, tc.Function.Name),
			unified.ToolUseDelta(id, string(tc.Function.Arguments)),
			unified.ToolUseEnd(id),
		)
	}
	return out, nil
}
