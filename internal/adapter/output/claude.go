package output

import (
	"encoding/json"

	"github.com/aidyou/llmrouter/internal/adapter/types"
	"github.com/aidyou/llmrouter/internal/unified"
)

// ClaudeResponse renders a unary UnifiedResponse as a Claude-shaped
// response body.
func ClaudeResponse(resp unified.UnifiedResponse) ([]byte, error) {
	content := make([]types.ClaudeContentBlock, 0, len(resp.Content))
	for _, c := range resp.Content {
		content = append(content, toClaudeBlock(c))
	}

	out := types.ClaudeResponse{
		ID:         resp.ID,
		Type:       "message",
		Role:       "assistant",
		Model:      resp.Model,
		Content:    content,
		StopReason: resp.StopReason,
		Usage: types.ClaudeUsage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}
	return json.Marshal(out)
}

func toClaudeBlock(c unified.ContentBlock) types.ClaudeContentBlock {
	switch c.Type {
	case unified.ContentText:
		return types.ClaudeContentBlock{Type: "text", Text: c.Text}
	case unified.ContentThinking:
		return types.ClaudeContentBlock{Type: "thinking", Thinking: c.Text}
	case unified.ContentToolUse:
		return types.ClaudeContentBlock{Type: "tool_use", ID: c.ID, Name: c.Name, Input: c.Input}
	case unified.ContentToolResult:
		isErr := c.IsError
		return types.ClaudeContentBlock{
			Type: "tool_result", ToolUseID: c.ToolUseID,
			Content: json.RawMessage(`"` + c.Text + `"`), IsError: &isErr,
		}
	case unified.ContentImage:
		return types.ClaudeContentBlock{
			Type:   "image",
			Source: &types.ClaudeSource{Type: "base64", MediaType: c.MediaType, Data: c.Data},
		}
	}
	return types.ClaudeContentBlock{Type: "text"}
}

// ClaudeStreamChunk is a pure function of (chunk, SseStatus-before): it
// produces the SSE events Claude's wire format expects for one
// UnifiedStreamChunk and whatever SseStatus mutation that requires (message
// index advancement on ContentBlockStop, delta counters for fallback usage
// synthesis).
func ClaudeStreamChunk(chunk unified.StreamChunk, status *unified.SseStatus) []SSEEvent {
	switch chunk.Kind {
	case unified.ChunkMessageStart:
		return []SSEEvent{jsonEvent("message_start", map[string]any{
			"type": "message_start",
			"message": map[string]any{
				"id": chunk.ID, "type": "message", "role": "assistant",
				"content": []any{}, "model": chunk.Model,
				"stop_reason": nil, "stop_sequence": nil,
				"usage": map[string]any{"input_tokens": chunk.Usage.InputTokens, "output_tokens": 0},
			},
		})}

	case unified.ChunkThinking:
		status.WithLock(func(s *unified.SseStatus) { s.ThinkingDeltaCount++ })
		idx := currentIndex(status)
		return []SSEEvent{jsonEvent("content_block_delta", map[string]any{
			"type": "content_block_delta", "index": idx,
			"delta": map[string]any{"type": "thinking_delta", "thinking": chunk.Delta},
		})}

	case unified.ChunkText:
		status.WithLock(func(s *unified.SseStatus) { s.TextDeltaCount++ })
		idx := currentIndex(status)
		return []SSEEvent{jsonEvent("content_block_delta", map[string]any{
			"type": "content_block_delta", "index": idx,
			"delta": map[string]any{"type": "text_delta", "text": chunk.Delta},
		})}

	case unified.ChunkToolUseStart:
		idx := currentIndex(status)
		return []SSEEvent{jsonEvent("content_block_start", map[string]any{
			"type": "content_block_start", "index": idx,
			"content_block": map[string]any{
				"type": "tool_use", "id": chunk.ToolID, "name": chunk.ToolName, "input": map[string]any{},
			},
		})}

	case unified.ChunkToolUseDelta:
		status.WithLock(func(s *unified.SseStatus) { s.ToolDeltaCount++ })
		idx := currentIndex(status)
		return []SSEEvent{jsonEvent("content_block_delta", map[string]any{
			"type": "content_block_delta", "index": idx,
			"delta": map[string]any{"type": "input_json_delta", "partial_json": chunk.Delta},
		})}

	case unified.ChunkToolUseEnd:
		idx := status.AdvanceMessageIndex() - 1
		return []SSEEvent{jsonEvent("content_block_stop", map[string]any{
			"type": "content_block_stop", "index": idx,
		})}

	case unified.ChunkContentBlockStart:
		return []SSEEvent{jsonEvent("content_block_start", map[string]any{
			"type": "content_block_start", "index": chunk.Index, "content_block": toClaudeBlock(*chunk.Block),
		})}

	case unified.ChunkContentBlockStop:
		status.WithLock(func(s *unified.SseStatus) { s.MessageIndex++ })
		return []SSEEvent{jsonEvent("content_block_stop", map[string]any{
			"type": "content_block_stop", "index": chunk.Index,
		})}

	case unified.ChunkMessageStop:
		idx := currentIndex(status)
		outputTokens := status.FallbackOutputTokens(chunk.Usage.OutputTokens)
		stopReason := chunk.StopReason
		if stopReason == "" {
			stopReason = "end_turn"
		}
		return []SSEEvent{
			jsonEvent("content_block_stop", map[string]any{"type": "content_block_stop", "index": idx}),
			jsonEvent("message_delta", map[string]any{
				"type": "message_delta",
				"delta": map[string]any{"stop_reason": stopReason},
				"usage": map[string]any{"output_tokens": outputTokens},
			}),
			{Event: "message_stop", Data: `{"type":"message_stop"}`},
		}

	case unified.ChunkError:
		return []SSEEvent{jsonEvent("error", map[string]any{
			"type": "error",
			"error": map[string]any{"type": "internal_error", "message": chunk.Message},
		})}
	}
	return nil
}

func currentIndex(status *unified.SseStatus) int {
	idx := 0
	status.WithRLock(func(s *unified.SseStatus) { idx = s.MessageIndex })
	return idx
}
