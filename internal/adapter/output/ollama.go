package output

import (
	"encoding/json"
	"time"

	"github.com/aidyou/llmrouter/internal/adapter/types"
	"github.com/aidyou/llmrouter/internal/unified"
)

// OllamaResponse renders a unary UnifiedResponse as an Ollama /api/chat
// response body.
func OllamaResponse(resp unified.UnifiedResponse) ([]byte, error) {
	var text, reasoning string
	var toolCalls []types.OllamaToolCall
	for _, c := range resp.Content {
		switch c.Type {
		case unified.ContentText:
			text += c.Text
		case unified.ContentThinking:
			reasoning += c.Text
		case unified.ContentToolUse:
			toolCalls = append(toolCalls, types.OllamaToolCall{
				Function: types.OllamaFunctionCall{Name: c.Name, Arguments: c.Input},
			})
		}
	}

	message := types.OllamaMessage{Role: "assistant", Content: text}
	if reasoning != "" {
		message.Thinking = reasoning
	}
	if len(toolCalls) > 0 {
		message.ToolCalls = toolCalls
	}

	promptEval := resp.Usage.InputTokens
	evalCount := resp.Usage.OutputTokens
	out := types.OllamaChatResponse{
		Model:              resp.Model,
		CreatedAt:          time.Now().UTC().Format(time.RFC3339),
		Message:            message,
		Done:               true,
		TotalDuration:      resp.Usage.TotalDuration,
		LoadDuration:       resp.Usage.LoadDuration,
		PromptEvalCount:    &promptEval,
		PromptEvalDuration: resp.Usage.PromptEvalDuration,
		EvalCount:          &evalCount,
		EvalDuration:       resp.Usage.EvalDuration,
	}
	return json.Marshal(out)
}

// OllamaStreamChunk renders one UnifiedStreamChunk as a newline-delimited
// Ollama stream object. Tool-call arguments accumulate in SseStatus across
// ToolUseStart/ToolUseDelta and flush fully parsed (or, on parse failure,
// wrapped as partial_data) at ToolUseEnd.
func OllamaStreamChunk(chunk unified.StreamChunk, status *unified.SseStatus, model string) []SSEEvent {
	now := time.Now().UTC().Format(time.RFC3339)

	switch chunk.Kind {
	case unified.ChunkText:
		status.WithLock(func(s *unified.SseStatus) { s.TextDeltaCount++ })
		return []SSEEvent{jsonLine(types.OllamaChatResponse{
			Model: model, CreatedAt: now,
			Message: types.OllamaMessage{Role: "assistant", Content: chunk.Delta},
			Done:    false,
		})}

	case unified.ChunkThinking:
		status.WithLock(func(s *unified.SseStatus) { s.ThinkingDeltaCount++ })
		return []SSEEvent{jsonLine(types.OllamaChatResponse{
			Model: model, CreatedAt: now,
			Message: types.OllamaMessage{Role: "assistant", Thinking: chunk.Delta},
			Done:    false,
		})}

	case unified.ChunkToolUseStart:
		status.WithLock(func(s *unified.SseStatus) {
			s.ToolName = chunk.ToolName
			s.ToolArguments = ""
		})
		return []SSEEvent{jsonLine(types.OllamaChatResponse{
			Model: model, CreatedAt: now,
			Message: types.OllamaMessage{
				Role: "assistant",
				ToolCalls: []types.OllamaToolCall{{
					Function: types.OllamaFunctionCall{Name: chunk.ToolName, Arguments: json.RawMessage(`{}`)},
				}},
			},
			Done: false,
		})}

	case unified.ChunkToolUseDelta:
		var name string
		status.WithLock(func(s *unified.SseStatus) {
			s.ToolArguments += chunk.Delta
			s.ToolDeltaCount++
			name = s.ToolName
		})
		if name == "" {
			return nil
		}
		return []SSEEvent{jsonLine(types.OllamaChatResponse{
			Model: model, CreatedAt: now,
			Message: types.OllamaMessage{
				Role: "assistant",
				ToolCalls: []types.OllamaToolCall{{
					Function: types.OllamaFunctionCall{Name: name, Arguments: partialOrFullArgs(chunk.Delta)},
				}},
			},
			Done: false,
		})}

	case unified.ChunkToolUseEnd:
		var name, args string
		status.WithLock(func(s *unified.SseStatus) {
			name, args = s.ToolName, s.ToolArguments
			s.ToolName, s.ToolArguments = "", ""
		})
		if name == "" {
			return nil
		}
		return []SSEEvent{jsonLine(types.OllamaChatResponse{
			Model: model, CreatedAt: now,
			Message: types.OllamaMessage{
				Role: "assistant",
				ToolCalls: []types.OllamaToolCall{{
					Function: types.OllamaFunctionCall{Name: name, Arguments: partialOrFullArgs(args)},
				}},
			},
			Done: false,
		})}

	case unified.ChunkMessageStop:
		outputTokens := status.FallbackOutputTokens(chunk.Usage.OutputTokens)
		inputTokens := chunk.Usage.InputTokens
		if inputTokens == 0 {
			inputTokens = 1
		}
		return []SSEEvent{jsonLine(types.OllamaChatResponse{
			Model: model, CreatedAt: now,
			Message:            types.OllamaMessage{Role: "assistant"},
			Done:               true,
			TotalDuration:      chunk.Usage.TotalDuration,
			LoadDuration:       chunk.Usage.LoadDuration,
			PromptEvalCount:    &inputTokens,
			PromptEvalDuration: chunk.Usage.PromptEvalDuration,
			EvalCount:          &outputTokens,
			EvalDuration:       chunk.Usage.EvalDuration,
		})}

	case unified.ChunkError:
		return []SSEEvent{jsonLine(map[string]any{"error": chunk.Message})}
	}
	return nil
}

func partialOrFullArgs(s string) json.RawMessage {
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	b, _ := json.Marshal(map[string]string{"partial_data": s})
	return json.RawMessage(b)
}
