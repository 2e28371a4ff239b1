package output

import (
	"encoding/json"

	"github.com/aidyou/llmrouter/internal/adapter/types"
	"github.com/aidyou/llmrouter/internal/unified"
)

// OpenAIResponse renders a unary UnifiedResponse as an OpenAI
// chat.completion response body.
func OpenAIResponse(resp unified.UnifiedResponse) ([]byte, error) {
	var text, reasoning string
	var toolCalls []types.OpenAIToolCall
	for _, c := range resp.Content {
		switch c.Type {
		case unified.ContentText:
			text += c.Text
		case unified.ContentThinking:
			reasoning += c.Text
		case unified.ContentToolUse:
			toolCalls = append(toolCalls, types.OpenAIToolCall{
				ID: c.ID, Type: "function",
				Function: types.OpenAIFunctionCall{Name: c.Name, Arguments: string(c.Input)},
			})
		}
	}

	message := types.OpenAIMessage{Role: "assistant"}
	if text != "" {
		b, _ := json.Marshal(text)
		message.Content = b
	}
	if len(toolCalls) > 0 {
		message.ToolCalls = toolCalls
	}

	out := types.OpenAIChatResponse{
		ID:     resp.ID,
		Object: "chat.completion",
		Model:  resp.Model,
		Choices: []types.OpenAIChoice{{
			Index:        0,
			Message:      message,
			FinishReason: openAIFinishReason(resp.StopReason),
		}},
		Usage: &types.OpenAIUsage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}
	_ = reasoning // OpenAI's unary shape has no standard carrier for reasoning text
	return json.Marshal(out)
}

func openAIFinishReason(stopReason string) string {
	switch stopReason {
	case "", "end_turn", "stop":
		return "stop"
	case "max_tokens", "length":
		return "length"
	case "tool_use", "tool_calls":
		return "tool_calls"
	default:
		return stopReason
	}
}

// OpenAIStreamChunk renders one UnifiedStreamChunk as an OpenAI
// chat.completion.chunk SSE event. Tool calls are addressed by an index
// that increments once per ToolUseStart, matching OpenAI's array-of-deltas
// tool_calls shape.
func OpenAIStreamChunk(chunk unified.StreamChunk, status *unified.SseStatus, id, model string) []SSEEvent {
	switch chunk.Kind {
	case unified.ChunkMessageStart:
		return []SSEEvent{jsonEvent("", types.OpenAIStreamChunk{
			ID: id, Object: "chat.completion.chunk", Model: model,
			Choices: []types.OpenAIStreamChoice{{Delta: types.OpenAIStreamDelta{Role: "assistant"}}},
		})}

	case unified.ChunkText:
		status.WithLock(func(s *unified.SseStatus) { s.TextDeltaCount++ })
		return []SSEEvent{jsonEvent("", types.OpenAIStreamChunk{
			ID: id, Object: "chat.completion.chunk", Model: model,
			Choices: []types.OpenAIStreamChoice{{Delta: types.OpenAIStreamDelta{Content: chunk.Delta}}},
		})}

	case unified.ChunkThinking:
		status.WithLock(func(s *unified.SseStatus) { s.ThinkingDeltaCount++ })
		return []SSEEvent{jsonEvent("", types.OpenAIStreamChunk{
			ID: id, Object: "chat.completion.chunk", Model: model,
			Choices: []types.OpenAIStreamChoice{{Delta: types.OpenAIStreamDelta{ReasoningContent: chunk.Delta}}},
		})}

	case unified.ChunkToolUseStart:
		idx := status.AdvanceMessageIndex() - 1
		return []SSEEvent{jsonEvent("", types.OpenAIStreamChunk{
			ID: id, Object: "chat.completion.chunk", Model: model,
			Choices: []types.OpenAIStreamChoice{{Delta: types.OpenAIStreamDelta{
				ToolCalls: []types.OpenAIStreamToolCallDelta{{
					Index: idx, ID: chunk.ToolID, Type: "function",
					Function: types.OpenAIFunctionCallDelta{Name: chunk.ToolName},
				}},
			}}},
		})}

	case unified.ChunkToolUseDelta:
		status.WithLock(func(s *unified.SseStatus) { s.ToolDeltaCount++ })
		idx := currentIndex(status) - 1
		return []SSEEvent{jsonEvent("", types.OpenAIStreamChunk{
			ID: id, Object: "chat.completion.chunk", Model: model,
			Choices: []types.OpenAIStreamChoice{{Delta: types.OpenAIStreamDelta{
				ToolCalls: []types.OpenAIStreamToolCallDelta{{
					Index:    idx,
					Function: types.OpenAIFunctionCallDelta{Arguments: chunk.Delta},
				}},
			}}},
		})}

	case unified.ChunkToolUseEnd:
		return nil

	case unified.ChunkMessageStop:
		outputTokens := status.FallbackOutputTokens(chunk.Usage.OutputTokens)
		return []SSEEvent{jsonEvent("", types.OpenAIStreamChunk{
			ID: id, Object: "chat.completion.chunk", Model: model,
			Choices: []types.OpenAIStreamChoice{{
				Delta:        types.OpenAIStreamDelta{},
				FinishReason: openAIFinishReason(chunk.StopReason),
			}},
			Usage: &types.OpenAIUsage{
				PromptTokens:     chunk.Usage.InputTokens,
				CompletionTokens: outputTokens,
				TotalTokens:      chunk.Usage.InputTokens + outputTokens,
			},
		})}

	case unified.ChunkError:
		return []SSEEvent{jsonEvent("", types.OpenAIErrorBody{
			Error: types.OpenAIErrorDetail{Message: chunk.Message, Type: "internal_error"},
		})}
	}
	return nil
}

// OpenAIStreamDone is the terminal "[DONE]" sentinel OpenAI clients poll
// for to stop reading the SSE stream.
func OpenAIStreamDone() SSEEvent {
	return SSEEvent{Data: "[DONE]"}
}
