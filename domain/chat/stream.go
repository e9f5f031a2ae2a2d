package chat

import "errors"

// ErrStreamClosed is returned by Recv after Close.
var ErrStreamClosed = errors.New("chat: stream closed")

// StreamEventType classifies one canonical stream fragment.
type StreamEventType string

const (
	// StreamReasoningDelta is an incremental piece of reasoning text.
	StreamReasoningDelta StreamEventType = "reasoning_delta"
	// StreamTextDelta is an incremental piece of answer text.
	StreamTextDelta StreamEventType = "text_delta"
	// StreamToolCallStart opens a tool call; its arguments may follow
	// incrementally.
	StreamToolCallStart StreamEventType = "tool_call_start"
	// StreamToolCallDelta carries an arguments fragment for the open call.
	StreamToolCallDelta StreamEventType = "tool_call_delta"
	// StreamToolCallEnd closes the open tool call.
	StreamToolCallEnd StreamEventType = "tool_call_end"
	// StreamEnd is the terminal outcome, carrying the normalized usage.
	// No fragment follows it.
	StreamEnd StreamEventType = "end"
)

// StreamEvent is one canonical fragment of a streamed response. Fragments
// are delivered in the exact order the vendor emitted them.
type StreamEvent struct {
	Type     StreamEventType
	Text     string
	ToolCall *ToolCallFragment
	Usage    *Usage
}

// ToolCallFragment describes the begin/delta/end pieces of one streamed
// tool call.
type ToolCallFragment struct {
	Index          int
	ID             string
	Name           string
	ArgumentsDelta string
}

// Stream is a pull-model sequence of canonical fragments. Recv returns
// io.EOF after the terminal event has been consumed; decode failures and
// vendor error events surface as typed errors. Close releases the
// underlying network read promptly.
type Stream interface {
	Recv() (StreamEvent, error)
	Close() error
}

// StreamHandler is a callback for draining a Stream (see
// application/chat.Service.StreamForEach).
type StreamHandler func(ev StreamEvent) error
