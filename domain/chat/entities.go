package chat

import "encoding/json"

// Core chat entities independent of frameworks and vendors

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Request is the vendor-neutral description of one chat exchange.
// Message order is conversation order and is preserved end-to-end.
type Request struct {
	// System is an optional top-level system text. It is merged with any
	// system-role messages during vendor translation.
	System   string
	Messages []Message
	Tools    []Tool
}

// Message is one turn of the conversation. Which content kinds are legal
// depends on the role; vendor adapters drop illegal combinations silently
// rather than rejecting the request.
type Message struct {
	Role    Role
	Content MessageContent
	Options *MessageOptions
}

// MessageOptions carries per-message options.
type MessageOptions struct {
	// CacheControl marks the message content as eligible for vendor-side
	// prompt caching.
	CacheControl bool
}

// CacheControl reports whether the message is flagged for prompt caching.
func (m Message) CacheControl() bool {
	return m.Options != nil && m.Options.CacheControl
}

// MessageContent is a closed union over the content kinds a message can
// carry. Every consumer must switch over all implementations; adding a new
// kind forces every adapter to decide how to handle it.
type MessageContent interface {
	isMessageContent()
}

// TextContent is plain text.
type TextContent struct {
	Text string
}

// PartsContent is an ordered sequence of text/image parts.
type PartsContent struct {
	Parts []ContentPart
}

// BlocksContent is the richer, order-preserving representation. Block order
// reflects the model's actual generation order, including interleaved
// reasoning and tool calls, and must survive decode verbatim.
type BlocksContent struct {
	Blocks []ContentBlock
}

// ToolCallsContent carries tool invocations requested by the assistant.
type ToolCallsContent struct {
	Calls []ToolCall
}

// ToolResponsesContent carries results for earlier tool invocations.
type ToolResponsesContent struct {
	Responses []ToolResponse
}

func (TextContent) isMessageContent()          {}
func (PartsContent) isMessageContent()         {}
func (BlocksContent) isMessageContent()        {}
func (ToolCallsContent) isMessageContent()     {}
func (ToolResponsesContent) isMessageContent() {}

// ContentPart is a closed union over the simple multimodal parts.
type ContentPart interface {
	isContentPart()
}

// TextPart is a plain-text part.
type TextPart struct {
	Text string
}

// ImagePart is an image with its media type and source.
type ImagePart struct {
	ContentType string
	Source      ImageSource
}

func (TextPart) isContentPart()  {}
func (ImagePart) isContentPart() {}

// ImageSource is a closed union over supported image sources.
type ImageSource interface {
	isImageSource()
}

// ImageURL references an image by URL.
type ImageURL string

// ImageBase64 carries base64-encoded image bytes.
type ImageBase64 string

func (ImageURL) isImageSource()    {}
func (ImageBase64) isImageSource() {}

// ContentBlock is a closed union over the ordered, typed units of message
// content.
type ContentBlock interface {
	isContentBlock()
}

// TextBlock is generated text. Signature is an optional thought signature
// some vendors attach to text emitted after reasoning.
type TextBlock struct {
	Text      string
	Signature string
}

// ThinkingBlock is a reasoning trace.
type ThinkingBlock struct {
	Text      string
	Signature string
}

// RedactedThinkingBlock is an opaque, vendor-encrypted reasoning trace.
type RedactedThinkingBlock struct {
	Data string
}

// ToolUseBlock is a tool invocation embedded in the block sequence.
type ToolUseBlock struct {
	ID        string
	Name      string
	Input     json.RawMessage
	Signature string
}

// ToolResultBlock is a tool result embedded in the block sequence.
type ToolResultBlock struct {
	ToolUseID string
	Content   string
}

func (TextBlock) isContentBlock()             {}
func (ThinkingBlock) isContentBlock()         {}
func (RedactedThinkingBlock) isContentBlock() {}
func (ToolUseBlock) isContentBlock()          {}
func (ToolResultBlock) isContentBlock()       {}

// ToolCall is a single tool invocation requested by the assistant.
type ToolCall struct {
	CallID    string          `json:"call_id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolResponse is the caller-produced result for one tool invocation.
type ToolResponse struct {
	CallID  string `json:"call_id"`
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// Tool defines a callable function exposed to the model.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Schema      json.RawMessage `json:"schema,omitempty"`
}

// NewTextMessage is a convenience constructor for the common role+text case.
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Content: TextContent{Text: text}}
}
