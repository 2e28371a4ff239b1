// Package unified defines the canonical, protocol-agnostic request/response/
// stream model that every input, output, and backend adapter agrees on.
package unified

import "encoding/json"

// Role identifies who authored a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ContentBlockType tags the variant held by a ContentBlock.
type ContentBlockType string

const (
	ContentText       ContentBlockType = "text"
	ContentImage      ContentBlockType = "image"
	ContentToolUse    ContentBlockType = "tool_use"
	ContentToolResult ContentBlockType = "tool_result"
	ContentThinking   ContentBlockType = "thinking"
)

// ContentBlock is a tagged union over the five content shapes the Router
// moves between protocols. Only the fields relevant to Type are populated.
type ContentBlock struct {
	Type ContentBlockType `json:"type"`

	// Text / Thinking
	Text string `json:"text,omitempty"`

	// Image
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"` // base64

	// ToolUse
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// ToolResult
	ToolUseID string `json:"tool_use_id,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

func TextBlock(text string) ContentBlock { return ContentBlock{Type: ContentText, Text: text} }

func ThinkingBlock(text string) ContentBlock {
	return ContentBlock{Type: ContentThinking, Text: text}
}

func ImageBlock(mediaType, data string) ContentBlock {
	return ContentBlock{Type: ContentImage, MediaType: mediaType, Data: data}
}

func ToolUseBlock(id, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{Type: ContentToolUse, ID: id, Name: name, Input: input}
}

func ToolResultBlock(toolUseID, content string, isError bool) ContentBlock {
	return ContentBlock{Type: ContentToolResult, ToolUseID: toolUseID, Text: content, IsError: isError}
}

// UnifiedMessage is one turn in a conversation. System-role messages never
// appear here; system text is always hoisted to UnifiedRequest.SystemPrompt.
type UnifiedMessage struct {
	Role             Role           `json:"role"`
	Content          []ContentBlock `json:"content"`
	ReasoningContent string         `json:"reasoning_content,omitempty"`
}

// UnifiedTool is a provider-agnostic function declaration.
type UnifiedTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ToolChoiceMode enumerates how the model should pick (or not pick) a tool.
type ToolChoiceMode string

const (
	ToolChoiceAuto     ToolChoiceMode = "auto"
	ToolChoiceNone     ToolChoiceMode = "none"
	ToolChoiceRequired ToolChoiceMode = "required"
	ToolChoiceSpecific ToolChoiceMode = "specific"
)

type ToolChoice struct {
	Mode ToolChoiceMode
	Name string // populated iff Mode == ToolChoiceSpecific
}

// Thinking carries extended-reasoning generation controls.
type Thinking struct {
	BudgetTokens   *int `json:"budget_tokens,omitempty"`
	IncludeThought *bool `json:"include_thoughts,omitempty"`
}

// UnifiedRequest is the semantic container every Input Adapter produces and
// every Backend Adapter consumes.
type UnifiedRequest struct {
	Model        string           `json:"model"`
	Messages     []UnifiedMessage `json:"messages"`
	SystemPrompt string           `json:"system_prompt,omitempty"`
	Tools        []UnifiedTool    `json:"tools,omitempty"`
	ToolChoice   *ToolChoice      `json:"tool_choice,omitempty"`
	Stream       bool             `json:"stream"`

	Temperature       *float64        `json:"temperature,omitempty"`
	TopP              *float64        `json:"top_p,omitempty"`
	TopK              *int            `json:"top_k,omitempty"`
	MaxTokens         *int            `json:"max_tokens,omitempty"`
	StopSequences     []string        `json:"stop_sequences,omitempty"`
	PresencePenalty   *float64        `json:"presence_penalty,omitempty"`
	FrequencyPenalty  *float64        `json:"frequency_penalty,omitempty"`
	Seed              *int            `json:"seed,omitempty"`
	ResponseFormat    string          `json:"response_format,omitempty"`
	ResponseMimeType  string          `json:"response_mime_type,omitempty"`
	ResponseSchema    json.RawMessage `json:"response_schema,omitempty"`
	Logprobs          bool            `json:"logprobs,omitempty"`
	TopLogprobs       *int            `json:"top_logprobs,omitempty"`
	User              string          `json:"user,omitempty"`
	Metadata          map[string]any  `json:"metadata,omitempty"`
	Thinking          *Thinking       `json:"thinking,omitempty"`
	CacheControl      json.RawMessage `json:"cache_control,omitempty"`
	SafetySettings    json.RawMessage `json:"safety_settings,omitempty"`
	CachedContent     string          `json:"cached_content,omitempty"`

	// ToolCompatMode, when true, makes the Tool-Compatibility Engine emulate
	// function calling via XML sentinels for this request.
	ToolCompatMode bool `json:"-"`
}

// UnifiedUsage carries token accounting plus the timing fields Ollama's
// wire format expects to be able to synthesize.
type UnifiedUsage struct {
	InputTokens  uint64 `json:"input_tokens"`
	OutputTokens uint64 `json:"output_tokens"`

	TotalDuration      *int64 `json:"total_duration,omitempty"`
	LoadDuration       *int64 `json:"load_duration,omitempty"`
	PromptEvalDuration *int64 `json:"prompt_eval_duration,omitempty"`
	EvalDuration       *int64 `json:"eval_duration,omitempty"`
}

// UnifiedResponse is the unary response shape produced by a Backend Adapter
// and consumed by an Output Adapter.
type UnifiedResponse struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	Content    []ContentBlock `json:"content"`
	StopReason string         `json:"stop_reason,omitempty"`
	Usage      UnifiedUsage   `json:"usage"`
}
