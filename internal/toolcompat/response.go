package toolcompat

import (
	"encoding/json"
	"strings"

	"github.com/aidyou/llmrouter/internal/unified"
)

// ApplyResponseRewrite performs the unary half of response-side tool-compat
// parsing: every text content block is scanned for <ccp:tool_use> blocks
// and split into plain text, tool_use, and (on a parse failure)
// failed_tool_call sentinel blocks in their original order.
func ApplyResponseRewrite(resp *unified.UnifiedResponse) {
	if resp == nil {
		return
	}
	var out []unified.ContentBlock
	for _, b := range resp.Content {
		if b.Type != unified.ContentText {
			out = append(out, b)
			continue
		}
		out = append(out, segmentsToBlocks(ExtractToolUses(b.Text))...)
	}
	resp.Content = out
}

func segmentsToBlocks(segments []Segment) []unified.ContentBlock {
	var out []unified.ContentBlock
	for _, seg := range segments {
		switch {
		case seg.ToolUse != nil:
			input := marshalParams(seg.ToolUse.Params)
			out = append(out, unified.ToolUseBlock(seg.ToolUse.ID, seg.ToolUse.Name, input))
		case seg.Err != nil:
			out = append(out, unified.TextBlock(FormatFailedToolCall(seg.Text)))
			out = append(out, unified.TextBlock(reminderFor(seg.Err)))
		case seg.Text != "":
			out = append(out, unified.TextBlock(seg.Text))
		}
	}
	return out
}

func reminderFor(e *ParseError) string {
	if e.ArgsOnly {
		return TOOL_ARG_ERROR_REMINDER
	}
	return TOOL_PARSE_ERROR_REMINDER
}

func marshalParams(params map[string]any) []byte {
	b, err := json.Marshal(params)
	if err != nil {
		return []byte("{}")
	}
	return b
}

// StreamRewriter sits between the Stream Reassembler and the Output
// Adapter when tool-compat mode is on: it buffers text deltas just long
// enough to recognize a complete <ccp:tool_use> block, emitting plain
// TextDelta chunks for everything outside one and a ToolUseStart/Delta/End
// triplet for everything inside one. Non-text chunks, thinking deltas
// included, pass through unchanged.
type StreamRewriter struct {
	buf strings.Builder
}

// Feed processes one reassembled stream chunk and returns zero or more
// chunks to forward to the Output Adapter. Call Flush when the stream
// ends to emit any content trapped in an unterminated buffer.
func (r *StreamRewriter) Feed(chunk unified.StreamChunk) []unified.StreamChunk {
	if chunk.Kind != unified.ChunkText {
		return []unified.StreamChunk{chunk}
	}

	r.buf.WriteString(chunk.Delta)
	pending := r.buf.String()

	openIdx := strings.Index(pending, "<"+TagToolUse+">")
	if openIdx < 0 {
		// No block has started; but a prefix of the opening tag could be
		// sitting at the end of the buffer, so only flush the safe portion.
		safe, hold := splitTrailingTagPrefix(pending, "<"+TagToolUse+">")
		r.buf.Reset()
		r.buf.WriteString(hold)
		if safe == "" {
			return nil
		}
		return []unified.StreamChunk{unified.TextDelta(safe)}
	}

	closeTag := "</" + TagToolUse + ">"
	closeIdx := strings.Index(pending, closeTag)
	if closeIdx < 0 {
		// Block has opened but not closed yet; nothing safe to emit before
		// its start, but flush any plain text preceding it.
		if openIdx == 0 {
			return nil
		}
		leading := pending[:openIdx]
		r.buf.Reset()
		r.buf.WriteString(pending[openIdx:])
		return []unified.StreamChunk{unified.TextDelta(leading)}
	}

	end := closeIdx + len(closeTag)
	complete := pending[:end]
	remainder := pending[end:]
	r.buf.Reset()
	r.buf.WriteString(remainder)

	return segmentsToStreamChunks(ExtractToolUses(complete))
}

// Flush emits any text still held in the buffer (an incomplete or absent
// tool-use block) as a final plain-text delta.
func (r *StreamRewriter) Flush() []unified.StreamChunk {
	remaining := r.buf.String()
	r.buf.Reset()
	if remaining == "" {
		return nil
	}
	return []unified.StreamChunk{unified.TextDelta(remaining)}
}

func segmentsToStreamChunks(segments []Segment) []unified.StreamChunk {
	var out []unified.StreamChunk
	for _, seg := range segments {
		switch {
		case seg.ToolUse != nil:
			input := marshalParams(seg.ToolUse.Params)
			out = append(out,
				unified.ToolUseStart("function", seg.ToolUse.ID, seg.ToolUse.Name),
				unified.ToolUseDelta(seg.ToolUse.ID, string(input)),
				unified.ToolUseEnd(seg.ToolUse.ID),
			)
		case seg.Err != nil:
			out = append(out, unified.TextDelta(FormatFailedToolCall(seg.Text)))
			out = append(out, unified.TextDelta(reminderFor(seg.Err)))
		case seg.Text != "":
			out = append(out, unified.TextDelta(seg.Text))
		}
	}
	return out
}

// splitTrailingTagPrefix returns (safe, held) where held is the longest
// suffix of s that is itself a prefix of tag (and therefore might grow
// into a full tag match on the next Feed call), and safe is everything
// before it.
func splitTrailingTagPrefix(s, tag string) (safe, held string) {
	max := len(tag) - 1
	if max > len(s) {
		max = len(s)
	}
	for n := max; n > 0; n-- {
		if strings.HasSuffix(s, tag[:n]) {
			return s[:len(s)-n], s[len(s)-n:]
		}
	}
	return s, ""
}
