package toolcompat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidyou/llmrouter/internal/unified"
)

func TestApplyResponseRewriteSplitsToolUseOutOfText(t *testing.T) {
	resp := &unified.UnifiedResponse{Content: []unified.ContentBlock{
		unified.TextBlock(`before <ccp:tool_use><id>call_1</id><name>get_weather</name><params><param name="city">Paris</param></params></ccp:tool_use> after`),
	}}

	ApplyResponseRewrite(resp)

	require.Len(t, resp.Content, 3)
	assert.Equal(t, unified.ContentText, resp.Content[0].Type)
	assert.Contains(t, resp.Content[0].Text, "before")
	assert.Equal(t, unified.ContentToolUse, resp.Content[1].Type)
	assert.Equal(t, "get_weather", resp.Content[1].Name)
	assert.Equal(t, unified.ContentText, resp.Content[2].Type)
	assert.Contains(t, resp.Content[2].Text, "after")
}

func TestApplyResponseRewritePassesThroughPlainText(t *testing.T) {
	resp := &unified.UnifiedResponse{Content: []unified.ContentBlock{unified.TextBlock("just text")}}
	ApplyResponseRewrite(resp)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, "just text", resp.Content[0].Text)
}

func TestStreamRewriterEmitsToolTripletAcrossMultipleDeltas(t *testing.T) {
	var r StreamRewriter

	var out []unified.StreamChunk
	feed := func(s string) {
		out = append(out, r.Feed(unified.TextDelta(s))...)
	}

	feed("hello <ccp:tool_use><id>call_1</id>")
	feed("<name>get_weather</name><params>")
	feed(`<param name="city">Paris</param></params></ccp:tool_use> bye`)
	out = append(out, r.Flush()...)

	var kinds []unified.StreamChunkKind
	for _, c := range out {
		kinds = append(kinds, c.Kind)
	}
	assert.Contains(t, kinds, unified.ChunkToolUseStart)
	assert.Contains(t, kinds, unified.ChunkToolUseEnd)

	var gotHello, gotBye bool
	for _, c := range out {
		if c.Kind == unified.ChunkText {
			if c.Delta == "hello " {
				gotHello = true
			}
			if c.Delta == " bye" {
				gotBye = true
			}
		}
	}
	assert.True(t, gotHello, "expected leading plain text delta")
	assert.True(t, gotBye, "expected trailing plain text delta")
}

func TestStreamRewriterPassesThroughNonTextChunks(t *testing.T) {
	var r StreamRewriter
	chunk := unified.MessageStop("stop", unified.UnifiedUsage{})
	out := r.Feed(chunk)
	require.Len(t, out, 1)
	assert.Equal(t, unified.ChunkMessageStop, out[0].Kind)
}

func TestStreamRewriterPlainTextLeavesNothingToFlush(t *testing.T) {
	var r StreamRewriter
	out := r.Feed(unified.TextDelta("plain text with no tags"))
	assert.Len(t, out, 1)
	assert.Empty(t, r.Flush())
}
