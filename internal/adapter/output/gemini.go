package output

import (
	"encoding/json"

	"github.com/aidyou/llmrouter/internal/adapter/types"
	"github.com/aidyou/llmrouter/internal/unified"
)

// GeminiResponse renders a unary UnifiedResponse as a Gemini
// generateContent response body.
func GeminiResponse(resp unified.UnifiedResponse) ([]byte, error) {
	var parts []types.GeminiPart
	for _, c := range resp.Content {
		switch c.Type {
		case unified.ContentText:
			parts = append(parts, types.GeminiPart{Text: c.Text})
		case unified.ContentThinking:
			parts = append(parts, types.GeminiPart{Text: c.Text, Thought: true})
		case unified.ContentToolUse:
			parts = append(parts, types.GeminiPart{
				FunctionCall: &types.GeminiFunctionCall{Name: c.Name, Args: c.Input},
			})
		default:
			// Gemini has no assistant-turn equivalent for image/tool_result blocks.
		}
	}

	out := types.GeminiResponse{
		Candidates: []types.GeminiCandidate{{
			Content:      types.GeminiContent{Role: "model", Parts: parts},
			FinishReason: geminiFinishReason(resp.StopReason),
		}},
		UsageMetadata: &types.GeminiUsageMetadata{
			PromptTokenCount:     resp.Usage.InputTokens,
			CandidatesTokenCount: resp.Usage.OutputTokens,
			TotalTokenCount:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
		ModelVersion: resp.Model,
	}
	return json.Marshal(out)
}

func geminiFinishReason(stopReason string) string {
	switch stopReason {
	case "", "end_turn", "stop":
		return "STOP"
	case "max_tokens", "length":
		return "MAX_TOKENS"
	case "tool_use", "tool_calls":
		return "STOP"
	default:
		return "STOP"
	}
}

// GeminiStreamChunk mirrors Gemini's accumulate-then-flush shape for
// parallel tool calls: ToolUseStart/ToolUseDelta only buffer into
// SseStatus.GeminiTools, and the buffered calls are flushed together as a
// single parts array at MessageStop (Gemini's streamGenerateContent wire
// format has no incremental function-call delta of its own).
func GeminiStreamChunk(chunk unified.StreamChunk, status *unified.SseStatus) []SSEEvent {
	switch chunk.Kind {
	case unified.ChunkMessageStart:
		return nil

	case unified.ChunkText:
		status.WithLock(func(s *unified.SseStatus) { s.TextDeltaCount++ })
		return []SSEEvent{jsonLine(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"role": "model", "parts": []any{map[string]any{"text": chunk.Delta}}},
			}},
		})}

	case unified.ChunkThinking:
		status.WithLock(func(s *unified.SseStatus) { s.ThinkingDeltaCount++ })
		return []SSEEvent{jsonLine(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"role": "model", "parts": []any{
					map[string]any{"text": chunk.Delta, "thought": true},
				}},
			}},
		})}

	case unified.ChunkToolUseStart:
		status.WithLock(func(s *unified.SseStatus) {
			if _, ok := s.GeminiTools[chunk.ToolID]; !ok {
				s.GeminiTools[chunk.ToolID] = &unified.GeminiToolCall{Name: chunk.ToolName}
			}
		})
		return nil

	case unified.ChunkToolUseDelta:
		status.WithLock(func(s *unified.SseStatus) {
			if tool, ok := s.GeminiTools[chunk.ToolID]; ok {
				tool.Args += chunk.Delta
			}
			s.ToolDeltaCount++
		})
		return nil

	case unified.ChunkToolUseEnd:
		// A function_call is complete once its deltas stop arriving; Gemini's
		// wire format carries no distinct end-of-call event.
		return nil

	case unified.ChunkMessageStop:
		var parts []any
		status.WithLock(func(s *unified.SseStatus) {
			for _, tool := range s.GeminiTools {
				var args any
				if err := json.Unmarshal([]byte(tool.Args), &args); err != nil {
					args = tool.Args
				}
				parts = append(parts, map[string]any{
					"functionCall": map[string]any{"name": tool.Name, "args": args},
				})
			}
			s.GeminiTools = make(map[string]*unified.GeminiToolCall)
		})

		inputTokens := chunk.Usage.InputTokens
		outputTokens := status.FallbackOutputTokens(chunk.Usage.OutputTokens)

		return []SSEEvent{jsonLine(map[string]any{
			"candidates": []any{map[string]any{
				"content":      map[string]any{"role": "model", "parts": parts},
				"finishReason": geminiFinishReason(chunk.StopReason),
			}},
			"usageMetadata": map[string]any{
				"promptTokenCount":     inputTokens,
				"candidatesTokenCount": outputTokens,
				"totalTokenCount":      inputTokens + outputTokens,
			},
		})}

	case unified.ChunkError:
		return []SSEEvent{jsonLine(map[string]any{"error": map[string]any{"message": chunk.Message}})}
	}
	return nil
}
