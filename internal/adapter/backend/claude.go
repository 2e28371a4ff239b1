package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/aidyou/llmrouter/internal/adapter/types"
	"github.com/aidyou/llmrouter/internal/unified"
)

// ClaudeAdapter talks to the Anthropic Messages API.
type ClaudeAdapter struct{}

func (a *ClaudeAdapter) BuildRequest(ur *unified.UnifiedRequest, apiKey, baseURL, model string) (*http.Request, error) {
	maxTokens := 4096
	if ur.MaxTokens != nil {
		maxTokens = *ur.MaxTokens
	}

	req := types.ClaudeRequest{
		Model:         model,
		MaxTokens:     maxTokens,
		Stream:        ur.Stream,
		Temperature:   ur.Temperature,
		TopP:          ur.TopP,
		TopK:          ur.TopK,
		StopSequences: ur.StopSequences,
	}
	if ur.SystemPrompt != "" {
		sys, _ := json.Marshal(ur.SystemPrompt)
		req.System = sys
	}
	for _, m := range ur.Messages {
		content, err := claudeMessageContent(m)
		if err != nil {
			return nil, err
		}
		req.Messages = append(req.Messages, types.ClaudeMessage{Role: string(m.Role), Content: content})
	}
	for _, t := range ur.Tools {
		req.Tools = append(req.Tools, types.ClaudeToolDef{
			Name: t.Name, Description: t.Description, InputSchema: t.InputSchema,
		})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal claude request: %w", err)
	}

	url := strings.TrimRight(baseURL, "/") + "/v1/messages"
	httpReq, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("anthropic-version", "2023-06-01")
	if apiKey != "" {
		httpReq.Header.Set("x-api-key", apiKey)
	}
	return httpReq, nil
}

func claudeMessageContent(m unified.UnifiedMessage) (json.RawMessage, error) {
	blocks := make([]types.ClaudeContentBlock, 0, len(m.Content))
	for _, c := range m.Content {
		switch c.Type {
		case unified.ContentText:
			blocks = append(blocks, types.ClaudeContentBlock{Type: "text", Text: c.Text})
		case unified.ContentThinking:
			blocks = append(blocks, types.ClaudeContentBlock{Type: "thinking", Thinking: c.Text})
		case unified.ContentImage:
			blocks = append(blocks, types.ClaudeContentBlock{
				Type: "image", Source: &types.ClaudeSource{Type: "base64", MediaType: c.MediaType, Data: c.Data},
			})
		case unified.ContentToolUse:
			blocks = append(blocks, types.ClaudeContentBlock{Type: "tool_use", ID: c.ID, Name: c.Name, Input: c.Input})
		case unified.ContentToolResult:
			isErr := c.IsError
			text, _ := json.Marshal(c.Text)
			blocks = append(blocks, types.ClaudeContentBlock{
				Type: "tool_result", ToolUseID: c.ToolUseID, Content: text, IsError: &isErr,
			})
		}
	}
	return json.Marshal(blocks)
}

func (a *ClaudeAdapter) ParseResponse(body []byte) (*unified.UnifiedResponse, error) {
	var resp types.ClaudeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse claude response: %w", err)
	}

	content := make([]unified.ContentBlock, 0, len(resp.Content))
	for _, b := range resp.Content {
		content = append(content, fromClaudeBlock(b))
	}

	return &unified.UnifiedResponse{
		ID: resp.ID, Model: resp.Model, Content: content, StopReason: resp.StopReason,
		Usage: unified.UnifiedUsage{InputTokens: resp.Usage.InputTokens, OutputTokens: resp.Usage.OutputTokens},
	}, nil
}

func fromClaudeBlock(b types.ClaudeContentBlock) unified.ContentBlock {
	switch b.Type {
	case "thinking":
		return unified.ThinkingBlock(b.Thinking)
	case "tool_use":
		return unified.ToolUseBlock(b.ID, b.Name, b.Input)
	case "tool_result":
		var text string
		_ = json.Unmarshal(b.Content, &text)
		isErr := b.IsError != nil && *b.IsError
		return unified.ToolResultBlock(b.ToolUseID, text, isErr)
	case "image":
		if b.Source != nil {
			return unified.ImageBlock(b.Source.MediaType, b.Source.Data)
		}
		return unified.TextBlock("")
	default:
		return unified.TextBlock(b.Text)
	}
}

// ParseStreamChunk translates one Anthropic SSE "data:" payload (the
// event name itself is not inspected; the payload's own "type" field
// disambiguates, matching Anthropic's wire contract) into UR chunks.
func (a *ClaudeAdapter) ParseStreamChunk(raw []byte, status *unified.SseStatus) ([]unified.StreamChunk, error) {
	var envelope struct {
		Type  string `json:"type"`
		Index int    `json:"index"`
		Delta struct {
			Type        string `json:"type"`
			Text        string `json:"text"`
			Thinking    string `json:"thinking"`
			PartialJSON string `json:"partial_json"`
			StopReason  string `json:"stop_reason"`
		} `json:"delta"`
		ContentBlock struct {
			Type string `json:"type"`
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"content_block"`
		Message struct {
			ID    string `json:"id"`
			Model string `json:"model"`
			Usage struct {
				InputTokens  uint64 `json:"input_tokens"`
				OutputTokens uint64 `json:"output_tokens"`
			} `json:"usage"`
		} `json:"message"`
		Usage struct {
			OutputTokens uint64 `json:"output_tokens"`
		} `json:"usage"`
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("parse claude stream chunk: %w", err)
	}

	switch envelope.Type {
	case "message_start":
		return []unified.StreamChunk{unified.MessageStart(envelope.Message.ID, envelope.Message.Model,
			unified.UnifiedUsage{InputTokens: envelope.Message.Usage.InputTokens})}, nil

	case "content_block_start":
		if envelope.ContentBlock.Type == "tool_use" {
			status.WithLock(func(s *unified.SseStatus) { s.CurrentToolID = envelope.ContentBlock.ID })
			return []unified.StreamChunk{unified.ToolUseStart("function", envelope.ContentBlock.ID, envelope.ContentBlock.Name)}, nil
		}
		return nil, nil

	case "content_block_delta":
		switch envelope.Delta.Type {
		case "text_delta":
			return []unified.StreamChunk{unified.TextDelta(envelope.Delta.Text)}, nil
		case "thinking_delta":
			return []unified.StreamChunk{unified.ThinkingDelta(envelope.Delta.Thinking)}, nil
		case "input_json_delta":
			id := currentToolID(status)
			return []unified.StreamChunk{unified.ToolUseDelta(id, envelope.Delta.PartialJSON)}, nil
		}
		return nil, nil

	case "content_block_stop":
		id := currentToolID(status)
		if id == "" {
			return nil, nil
		}
		status.WithLock(func(s *unified.SseStatus) { s.CurrentToolID = "" })
		return []unified.StreamChunk{unified.ToolUseEnd(id)}, nil

	case "message_delta":
		outputTokens := status.FallbackOutputTokens(envelope.Usage.OutputTokens)
		return []unified.StreamChunk{unified.MessageStop(envelope.Delta.StopReason, unified.UnifiedUsage{OutputTokens: outputTokens})}, nil

	case "message_stop":
		return nil, nil

	case "error":
		return []unified.StreamChunk{unified.ErrorChunk(envelope.Error.Message)}, nil
	}
	return nil, nil
}

func currentToolID(status *unified.SseStatus) string {
	var id string
	status.WithRLock(func(s *unified.SseStatus) { id = s.CurrentToolID })
	return id
}
