// Package toolcompat implements the Tool-Compatibility Engine: prompt
// injection, XML tool-definition generation, lenient XML tool-call parsing,
// and the bidirectional rewriting between native function-calling and the
// XML sentinel form used by models that lack it.
package toolcompat

// Sentinel tags. Reserved: adapters MUST NOT emit these outside this
// protocol.
const (
	TagTools           = "ccp:tools"
	TagToolDefine      = "ccp:tool_define"
	TagToolUse         = "ccp:tool_use"
	TagToolResult      = "ccp:tool_result"
	TagFailedToolCall  = "ccp:failed_tool_call"
)

// The three reminder/prompt strings below are fixed constants and MUST stay
// byte-identical to this defined form; they are part of the wire contract a
// fine-tuned model is trained against.

const TOOL_PARSE_ERROR_REMINDER = `Your previous response contained a <ccp:tool_use> block that could not be parsed as valid tool call XML. The malformed content has been preserved above inside a <ccp:failed_tool_call> block for your reference.

To call a tool, emit exactly one well-formed block of this shape:

<ccp:tool_use>
  <id>a unique call id</id>
  <name>tool name</name>
  <params>
    <param name="param_name" type="string">value</param>
  </params>
</ccp:tool_use>

Please retry the tool call with corrected XML. Make sure every tag you open is closed, and that <id> and <name> are both present.`

const TOOL_ARG_ERROR_REMINDER = `Your previous <ccp:tool_use> block had a valid <id> and <name> but its <params> could not be turned into valid arguments for the tool. The original content has been preserved above inside a <ccp:failed_tool_call> block for your reference.

Please retry the tool call, double-checking that every required parameter is present, that <param type="..."> matches the value you provide (string, int, float, bool, or a JSON object/array), and that the value is well-formed.`

const TOOL_COMPAT_MODE_PROMPT = `You have access to tools, but this model endpoint does not support native function calling. Tools are instead described below and must be invoked through a plain-text XML protocol embedded directly in your reply.

To call a tool, emit a block of exactly this shape, with no other text on the same lines:

<ccp:tool_use>
  <id>a short unique id you choose, e.g. call_1</id>
  <name>the tool name, exactly as defined below</name>
  <params>
    <param name="param_name" type="string">value</param>
    <param name="other_param" type="int">123</param>
  </params>
</ccp:tool_use>

Rules:
- Only call tools that are defined below, using their exact name.
- Include every required parameter. Optional parameters may be omitted.
- "type" must be one of: string, int, float, bool. Omit "type" only if the value is plainly a string.
- Do not wrap the <ccp:tool_use> block in a code fence.
- You may emit plain text before or after a <ccp:tool_use> block; only the block itself is treated as a tool call.
- Wait for the result before continuing, which will be supplied back to you wrapped in <ccp:tool_result id="...">...</ccp:tool_result>.

The tools available to you are defined below.`
