package chat

import (
	"encoding/json"
	"strings"

	"llm-gateway/domain/provider"
)

// Response is the decoded, vendor-neutral result of a chat call.
type Response struct {
	// Content holds the decoded message content. When the vendor emitted
	// reasoning blocks this is a single BlocksContent preserving the exact
	// block sequence; otherwise the legacy shape applies (ToolCalls entry
	// before a joined Text entry).
	Content []MessageContent

	// ReasoningContent is the newline-joined text of all reasoning blocks,
	// empty when the vendor emitted none.
	ReasoningContent string

	// Model is the identity the caller requested; ProviderModel is the
	// identity the vendor reported back.
	Model         provider.ModelIden
	ProviderModel provider.ModelIden

	Usage Usage

	// CapturedRawBody retains the raw provider payload when the
	// capture-raw-body option was set.
	CapturedRawBody json.RawMessage
}

// FirstText returns the first Text content entry, or "".
func (r *Response) FirstText() string {
	for _, c := range r.Content {
		if t, ok := c.(TextContent); ok {
			return t.Text
		}
	}
	return ""
}

// ToolCalls returns all tool calls across content entries, including tool
// use blocks inside a Blocks entry, in order.
func (r *Response) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, c := range r.Content {
		switch v := c.(type) {
		case ToolCallsContent:
			calls = append(calls, v.Calls...)
		case BlocksContent:
			for _, b := range v.Blocks {
				if tu, ok := b.(ToolUseBlock); ok {
					calls = append(calls, ToolCall{CallID: tu.ID, Name: tu.Name, Arguments: tu.Input})
				}
			}
		case TextContent, PartsContent, ToolResponsesContent:
		}
	}
	return calls
}

// JoinedTexts concatenates all answer text with newlines, trimming
// trailing whitespace. Text blocks inside a Blocks entry count; reasoning
// blocks do not.
func (r *Response) JoinedTexts() string {
	var texts []string
	for _, c := range r.Content {
		switch v := c.(type) {
		case TextContent:
			texts = append(texts, v.Text)
		case BlocksContent:
			for _, b := range v.Blocks {
				if tb, ok := b.(TextBlock); ok {
					texts = append(texts, tb.Text)
				}
			}
		case PartsContent, ToolCallsContent, ToolResponsesContent:
		}
	}
	return strings.TrimRight(strings.Join(texts, "\n"), " \t\n")
}
