package toolcompat

import (
	"encoding/json"
	"fmt"

	"github.com/aidyou/llmrouter/internal/unified"
)

// ApplyRequestRewrite performs the request-side half of tool-compat mode:
// injects the instructional preamble plus generated tool-definitions XML
// into the system prompt, strips native Tools/ToolChoice so the upstream
// sees a plain chat request, and rewrites any prior ToolUse/ToolResult
// content blocks into XML-sentinel text so multi-turn tool conversations
// keep working against a non-tool-calling model.
func ApplyRequestRewrite(req *unified.UnifiedRequest) {
	if !req.ToolCompatMode || len(req.Tools) == 0 {
		return
	}

	injection := TOOL_COMPAT_MODE_PROMPT + "\n\n" + GenerateToolsXML(req.Tools)
	if req.SystemPrompt != "" {
		req.SystemPrompt = req.SystemPrompt + "\n\n" + injection
	} else {
		req.SystemPrompt = injection
	}
	req.Tools = nil
	req.ToolChoice = nil

	for i := range req.Messages {
		req.Messages[i].Content = rewriteBlocks(req.Messages[i].Content)
	}
}

func rewriteBlocks(blocks []unified.ContentBlock) []unified.ContentBlock {
	out := make([]unified.ContentBlock, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case unified.ContentToolUse:
			out = append(out, unified.TextBlock(FormatToolUse(b.ID, b.Name, b.Input)))
		case unified.ContentToolResult:
			out = append(out, unified.TextBlock(FormatToolResult(b.ToolUseID, b.Text)))
		default:
			out = append(out, b)
		}
	}
	return out
}

// FormatToolUse renders a prior ToolUse content block as a <ccp:tool_use>
// sentinel so it survives being replayed to a non-tool-calling model.
func FormatToolUse(id, name string, input json.RawMessage) string {
	var params map[string]any
	_ = json.Unmarshal(input, &params)

	var b fmt.Stringer = toolUseFormatter{id: id, name: name, params: params}
	return b.String()
}

type toolUseFormatter struct {
	id     string
	name   string
	params map[string]any
}

func (f toolUseFormatter) String() string {
	s := "<" + TagToolUse + ">\n"
	s += "  <id>" + escapeXML(f.id) + "</id><name>" + escapeXML(f.name) + "</name>\n"
	s += "  <params>\n"
	for k, v := range f.params {
		s += "    <param name=\"" + escapeXML(k) + "\">" + escapeXML(stringifyValue(v)) + "</param>\n"
	}
	s += "  </params>\n"
	s += "</" + TagToolUse + ">"
	return s
}

func stringifyValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}

// FormatToolResult renders a ToolResult content block as a
// <ccp:tool_result id="..."> sentinel.
func FormatToolResult(toolUseID, content string) string {
	return "<" + TagToolResult + " id=\"" + escapeXML(toolUseID) + "\">" + escapeXML(content) + "</" + TagToolResult + ">"
}

// FormatFailedToolCall wraps an unparseable assistant tool-call attempt so
// the model can see exactly what it emitted on the next turn.
func FormatFailedToolCall(original string) string {
	return "<" + TagFailedToolCall + ">" + escapeXML(original) + "</" + TagFailedToolCall + ">"
}
