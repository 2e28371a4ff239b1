package unified

import "sync"

// StreamChunkKind tags the variant held by a StreamChunk.
type StreamChunkKind string

const (
	ChunkMessageStart      StreamChunkKind = "message_start"
	ChunkContentBlockStart StreamChunkKind = "content_block_start"
	ChunkText              StreamChunkKind = "text"
	ChunkThinking          StreamChunkKind = "thinking"
	ChunkToolUseStart      StreamChunkKind = "tool_use_start"
	ChunkToolUseDelta      StreamChunkKind = "tool_use_delta"
	ChunkToolUseEnd        StreamChunkKind = "tool_use_end"
	ChunkContentBlockStop  StreamChunkKind = "content_block_stop"
	ChunkMessageStop       StreamChunkKind = "message_stop"
	ChunkError             StreamChunkKind = "error"
)

// StreamChunk is the sum type every backend adapter emits and every output
// adapter consumes, one variant at a time, in this order: exactly one
// MessageStart, then any interleaving of properly-closed content blocks
// (every ToolUseStart(id) closed by a ToolUseEnd with the same id),
// terminated by exactly one MessageStop or Error.
type StreamChunk struct {
	Kind StreamChunkKind

	// MessageStart
	ID    string
	Model string
	Usage UnifiedUsage

	// ContentBlockStart / ContentBlockStop
	Index int
	Block *ContentBlock

	// Text / Thinking / ToolUseDelta
	Delta string

	// ToolUseStart / ToolUseDelta / ToolUseEnd
	ToolType string
	ToolID   string
	ToolName string

	// MessageStop
	StopReason string

	// Error
	Message string
}

func MessageStart(id, model string, usage UnifiedUsage) StreamChunk {
	return StreamChunk{Kind: ChunkMessageStart, ID: id, Model: model, Usage: usage}
}

func TextDelta(delta string) StreamChunk { return StreamChunk{Kind: ChunkText, Delta: delta} }

func ThinkingDelta(delta string) StreamChunk {
	return StreamChunk{Kind: ChunkThinking, Delta: delta}
}

func ToolUseStart(toolType, id, name string) StreamChunk {
	return StreamChunk{Kind: ChunkToolUseStart, ToolType: toolType, ToolID: id, ToolName: name}
}

func ToolUseDelta(id, delta string) StreamChunk {
	return StreamChunk{Kind: ChunkToolUseDelta, ToolID: id, Delta: delta}
}

func ToolUseEnd(id string) StreamChunk { return StreamChunk{Kind: ChunkToolUseEnd, ToolID: id} }

func ContentBlockStart(index int, block ContentBlock) StreamChunk {
	return StreamChunk{Kind: ChunkContentBlockStart, Index: index, Block: &block}
}

func ContentBlockStop(index int) StreamChunk {
	return StreamChunk{Kind: ChunkContentBlockStop, Index: index}
}

func MessageStop(stopReason string, usage UnifiedUsage) StreamChunk {
	return StreamChunk{Kind: ChunkMessageStop, StopReason: stopReason, Usage: usage}
}

func ErrorChunk(message string) StreamChunk {
	return StreamChunk{Kind: ChunkError, Message: message}
}

// GeminiToolCall buffers one of Gemini's atomically-delivered parallel
// function calls until MessageStop, since Gemini has no incremental
// tool-call delta shape of its own.
type GeminiToolCall struct {
	Name string
	Args string // raw JSON object text
}

// SseStatus is the per-response mutable bookkeeping shared, single-writer,
// between the backend adapter's stream parser and the output adapter for
// the lifetime of one streaming response. It is guarded by its
// own RWMutex and must never be shared across requests.
type SseStatus struct {
	mu sync.RWMutex

	MessageID    string
	ModelID      string
	MessageIndex int // monotonic; increases only on ContentBlockStop

	ToolName      string
	ToolArguments string

	// CurrentToolID tracks the ID of the tool_use block a backend adapter
	// currently has open, for wire formats (Claude's content_block_delta/
	// stop) whose continuation frames carry no ID of their own.
	CurrentToolID string

	GeminiTools map[string]*GeminiToolCall

	// ToolIndexIDs synthesizes stable tool-call IDs for upstreams (OpenAI-
	// compatible backends) that only identify a parallel tool call by its
	// position in the delta array, not a carried ID.
	ToolIndexIDs map[int]string

	TextDeltaCount     int
	ToolDeltaCount     int
	ThinkingDeltaCount int

	EstimatedInputTokens  float64
	EstimatedOutputTokens float64
}

func NewSseStatus(messageID, modelID string) *SseStatus {
	return &SseStatus{
		MessageID:    messageID,
		ModelID:      modelID,
		GeminiTools:  make(map[string]*GeminiToolCall),
		ToolIndexIDs: make(map[int]string),
	}
}

// WithLock runs fn while holding the write lock, the single seam every
// mutating access to SseStatus must go through.
func (s *SseStatus) WithLock(fn func(*SseStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

// WithRLock runs fn while holding the read lock, for output-adapter reads
// that must not race a concurrent mid-stream writer.
func (s *SseStatus) WithRLock(fn func(*SseStatus)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s)
}

// AdvanceMessageIndex bumps the monotonic block counter on ContentBlockStop
// and returns the new value.
func (s *SseStatus) AdvanceMessageIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.MessageIndex++
	return s.MessageIndex
}

// FallbackOutputTokens implements the synthesis rule from §4.2: never
// report zero output tokens if at least one delta was observed.
func (s *SseStatus) FallbackOutputTokens(reported uint64) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	observed := uint64(s.TextDeltaCount + s.ToolDeltaCount + s.ThinkingDeltaCount)
	if observed > reported {
		return observed
	}
	return reported
}
