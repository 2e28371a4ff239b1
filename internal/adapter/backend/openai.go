package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/aidyou/llmrouter/internal/adapter/types"
	"github.com/aidyou/llmrouter/internal/unified"
)

// OpenAIAdapter talks to any OpenAI-chat-completions-compatible upstream.
// With HuggingFaceRewrite set it targets HuggingFace's Inference Providers
// OpenAI-compatible route instead of the plain /chat/completions path;
// every other request/response shape is identical.
type OpenAIAdapter struct {
	HuggingFaceRewrite bool
}

func (a *OpenAIAdapter) BuildRequest(ur *unified.UnifiedRequest, apiKey, baseURL, model string) (*http.Request, error) {
	req := types.OpenAIChatRequest{
		Model:            model,
		Stream:           ur.Stream,
		Temperature:      ur.Temperature,
		TopP:             ur.TopP,
		MaxTokens:        ur.MaxTokens,
		Stop:             ur.StopSequences,
		PresencePenalty:  ur.PresencePenalty,
		FrequencyPenalty: ur.FrequencyPenalty,
		Seed:             ur.Seed,
		Logprobs:         ur.Logprobs,
		TopLogprobs:      ur.TopLogprobs,
		User:             ur.User,
	}

	if ur.SystemPrompt != "" {
		content, _ := json.Marshal(ur.SystemPrompt)
		req.Messages = append(req.Messages, types.OpenAIMessage{Role: "system", Content: content})
	}
	for _, m := range ur.Messages {
		req.Messages = append(req.Messages, toOpenAIMessage(m))
	}
	for _, t := range ur.Tools {
		req.Tools = append(req.Tools, types.OpenAITool{
			Type: "function",
			Function: types.OpenAIFunctionDef{
				Name: t.Name, Description: t.Description, Parameters: t.InputSchema,
			},
		})
	}
	if ur.ResponseMimeType == "application/json" {
		req.ResponseFormat = json.RawMessage(`{"type":"json_object"}`)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal openai request: %w", err)
	}

	url := strings.TrimRight(baseURL, "/") + "/chat/completions"
	if a.HuggingFaceRewrite {
		url = strings.TrimRight(baseURL, "/") + "/hf-inference/models/" + model + "/v1/chat/completions"
	}

	httpReq, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	}
	return httpReq, nil
}

func toOpenAIMessage(m unified.UnifiedMessage) types.OpenAIMessage {
	om := types.OpenAIMessage{Role: string(m.Role)}
	var text strings.Builder
	for _, c := range m.Content {
		switch c.Type {
		case unified.ContentText, unified.ContentThinking:
			text.WriteString(c.Text)
		case unified.ContentToolUse:
			om.ToolCalls = append(om.ToolCalls, types.OpenAIToolCall{
				ID: c.ID, Type: "function",
				Function: types.OpenAIFunctionCall{Name: c.Name, Arguments: string(c.Input)},
			})
		case unified.ContentToolResult:
			om.Role = "tool"
			om.ToolCallID = c.ToolUseID
			text.WriteString(c.Text)
		}
	}
	if text.Len() > 0 || len(om.ToolCalls) == 0 {
		b, _ := json.Marshal(text.String())
		om.Content = b
	}
	return om
}

func (a *OpenAIAdapter) ParseResponse(body []byte) (*unified.UnifiedResponse, error) {
	var resp types.OpenAIChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse openai response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai response has no choices")
	}
	choice := resp.Choices[0]

	var content []unified.ContentBlock
	var text string
	if len(choice.Message.Content) > 0 {
		_ = json.Unmarshal(choice.Message.Content, &text)
	}
	if text != "" {
		content = append(content, unified.TextBlock(text))
	}
	for _, tc := range choice.Message.ToolCalls {
		content = append(content, unified.ToolUseBlock(tc.ID, tc.Function.Name, json.RawMessage(tc.Function.Arguments)))
	}

	ur := &unified.UnifiedResponse{
		ID:         resp.ID,
		Model:      resp.Model,
		Content:    content,
		StopReason: choice.FinishReason,
	}
	if resp.Usage != nil {
		ur.Usage = unified.UnifiedUsage{InputTokens: resp.Usage.PromptTokens, OutputTokens: resp.Usage.CompletionTokens}
	}
	return ur, nil
}

// ParseStreamChunk translates one OpenAI chat.completion.chunk SSE data
// frame into zero or more UR chunks. Since OpenAI delivers an entire
// function call atomically across many tiny deltas (name first, then
// argument fragments), a ToolUseStart/ToolUseDelta/ToolUseEnd triplet is
// synthesized per index the first time that index's name arrives, and its
// End is only emitted once finish_reason closes the response.
func (a *OpenAIAdapter) ParseStreamChunk(raw []byte, status *unified.SseStatus) ([]unified.StreamChunk, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if string(trimmed) == "[DONE]" {
		return nil, nil
	}

	var chunk types.OpenAIStreamChunk
	if err := json.Unmarshal(trimmed, &chunk); err != nil {
		return nil, fmt.Errorf("parse openai stream chunk: %w", err)
	}
	if len(chunk.Choices) == 0 {
		return nil, nil
	}
	choice := chunk.Choices[0]

	var out []unified.StreamChunk
	if choice.Delta.Content != "" {
		out = append(out, unified.TextDelta(choice.Delta.Content))
	}
	if choice.Delta.ReasoningContent != "" {
		out = append(out, unified.ThinkingDelta(choice.Delta.ReasoningContent))
	}
	for _, tc := range choice.Delta.ToolCalls {
		id := tc.ID
		if id == "" {
			id = openAIToolIndexID(status, tc.Index)
		} else {
			status.WithLock(func(s *unified.SseStatus) {
				if s.ToolIndexIDs == nil {
					s.ToolIndexIDs = make(map[int]string)
				}
				s.ToolIndexIDs[tc.Index] = id
			})
		}
		if tc.Function.Name != "" {
			out = append(out, unified.ToolUseStart("function", id, tc.Function.Name))
		}
		if tc.Function.Arguments != "" {
			out = append(out, unified.ToolUseDelta(id, tc.Function.Arguments))
		}
	}
	if choice.FinishReason != "" {
		out = append(out, closeOpenToolCalls(status)...)

		usage := unified.UnifiedUsage{}
		if chunk.Usage != nil {
			usage = unified.UnifiedUsage{InputTokens: chunk.Usage.PromptTokens, OutputTokens: chunk.Usage.CompletionTokens}
		}
		out = append(out, unified.MessageStop(choice.FinishReason, usage))
	}
	return out, nil
}

// closeOpenToolCalls emits a ToolUseEnd for every tool-call ID recorded
// during this stream, since OpenAI-compatible upstreams never send their
// own closing frame for a function call: the only signal that a call is
// done is the response's overall finish_reason.
func closeOpenToolCalls(status *unified.SseStatus) []unified.StreamChunk {
	var ids []int
	status.WithRLock(func(s *unified.SseStatus) {
		for index := range s.ToolIndexIDs {
			ids = append(ids, index)
		}
	})
	sort.Ints(ids)

	var out []unified.StreamChunk
	status.WithRLock(func(s *unified.SseStatus) {
		for _, index := range ids {
			out = append(out, unified.ToolUseEnd(s.ToolIndexIDs[index]))
		}
	})
	return out
}

// openAIToolIndexID synthesizes a stable tool-call ID for upstreams that
// omit it on continuation deltas, keyed by the delta's own array index.
func openAIToolIndexID(status *unified.SseStatus, index int) string {
	var id string
	status.WithLock(func(s *unified.SseStatus) {
		if s.ToolIndexIDs == nil {
			s.ToolIndexIDs = make(map[int]string)
		}
		if _, ok := s.ToolIndexIDs[index]; !ok {
			s.ToolIndexIDs[index] = uuid.NewString()
		}
		id = s.ToolIndexIDs[index]
	})
	return id
}
