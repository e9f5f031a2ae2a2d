package anthropic

import (
	"encoding/json"
	"io"

	"llm-gateway/domain/chat"
	"llm-gateway/domain/provider"
	"llm-gateway/internal/webc"

	"github.com/sirupsen/logrus"
)

// Wire types for the Messages API stream events.
type streamEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`

	Message *struct {
		Model string        `json:"model"`
		Usage *usagePayload `json:"usage"`
	} `json:"message,omitempty"`

	ContentBlock *contentBlock `json:"content_block,omitempty"`
	Delta        *streamDelta  `json:"delta,omitempty"`
	Usage        *usagePayload `json:"usage,omitempty"`
	Error        *streamError  `json:"error,omitempty"`
}

type streamDelta struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	Thinking    string `json:"thinking,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
	StopReason  string `json:"stop_reason,omitempty"`
}

type streamError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ToChatStream wraps a live response body in a canonical pull stream.
func (a *Adapter) ToChatStream(model provider.ModelIden, body io.ReadCloser, _ chat.OptionsSet) (chat.Stream, error) {
	return &stream{
		model:     model,
		body:      body,
		src:       webc.NewEventSource(body),
		openTools: make(map[int]bool),
	}, nil
}

// stream decodes Anthropic stream events into canonical fragments, in
// strict arrival order. Single consumer; production happens only inside
// Recv, so nothing runs past the last poll.
type stream struct {
	model provider.ModelIden
	body  io.ReadCloser
	src   *webc.EventSource

	pending []chat.StreamEvent
	closed  bool
	done    bool

	// Usage accumulates across message_start (input classes) and
	// message_delta (output tokens).
	inputUsage   usagePayload
	outputTokens int

	// openTools tracks which block indexes are tool calls, so their stop
	// events map to tool_call_end.
	openTools map[int]bool
}

func (s *stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}

func (s *stream) Recv() (chat.StreamEvent, error) {
	if s.closed {
		return chat.StreamEvent{}, chat.ErrStreamClosed
	}
	for {
		if len(s.pending) > 0 {
			ev := s.pending[0]
			s.pending = s.pending[1:]
			return ev, nil
		}
		if s.done {
			return chat.StreamEvent{}, io.EOF
		}

		raw, err := s.src.Next()
		if err == io.EOF {
			// Connection closed without message_stop; still deliver the
			// single terminal outcome with whatever usage accumulated.
			s.finish()
			continue
		}
		if err != nil {
			return chat.StreamEvent{}, err
		}

		if err := s.consume(raw.Data); err != nil {
			s.done = true
			_ = s.body.Close()
			return chat.StreamEvent{}, err
		}
	}
}

// consume decodes one vendor event and appends any resulting canonical
// fragments to pending.
func (s *stream) consume(data []byte) error {
	var ev streamEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return &provider.ExtractError{Model: s.model, Field: "stream event", Cause: err}
	}

	switch ev.Type {
	case "message_start":
		if ev.Message != nil && ev.Message.Usage != nil {
			s.inputUsage = *ev.Message.Usage
		}

	case "content_block_start":
		if ev.ContentBlock != nil && ev.ContentBlock.Type == "tool_use" {
			frag := &chat.ToolCallFragment{Index: ev.Index}
			if ev.ContentBlock.ID != nil {
				frag.ID = *ev.ContentBlock.ID
			}
			if ev.ContentBlock.Name != nil {
				frag.Name = *ev.ContentBlock.Name
			}
			s.openTools[ev.Index] = true
			s.pending = append(s.pending, chat.StreamEvent{Type: chat.StreamToolCallStart, ToolCall: frag})
		}

	case "content_block_delta":
		if ev.Delta == nil {
			return nil
		}
		switch ev.Delta.Type {
		case "text_delta":
			s.pending = append(s.pending, chat.StreamEvent{Type: chat.StreamTextDelta, Text: ev.Delta.Text})
		case "thinking_delta":
			s.pending = append(s.pending, chat.StreamEvent{Type: chat.StreamReasoningDelta, Text: ev.Delta.Thinking})
		case "input_json_delta":
			s.pending = append(s.pending, chat.StreamEvent{
				Type:     chat.StreamToolCallDelta,
				ToolCall: &chat.ToolCallFragment{Index: ev.Index, ArgumentsDelta: ev.Delta.PartialJSON},
			})
		case "signature_delta":
			// Signatures are only meaningful on complete blocks.
		default:
			logrus.WithFields(logrus.Fields{
				"model": s.model.Name,
				"type":  ev.Delta.Type,
			}).Warn("Skipping unknown stream delta type")
		}

	case "content_block_stop":
		if s.openTools[ev.Index] {
			delete(s.openTools, ev.Index)
			s.pending = append(s.pending, chat.StreamEvent{
				Type:     chat.StreamToolCallEnd,
				ToolCall: &chat.ToolCallFragment{Index: ev.Index},
			})
		}

	case "message_delta":
		if ev.Usage != nil && ev.Usage.OutputTokens > 0 {
			s.outputTokens = ev.Usage.OutputTokens
		}

	case "message_stop":
		s.finish()

	case "ping":

	case "error":
		serr := &provider.StreamError{Model: s.model}
		if ev.Error != nil {
			serr.Type = ev.Error.Type
			serr.Message = ev.Error.Message
		}
		return serr

	default:
		logrus.WithFields(logrus.Fields{
			"model": s.model.Name,
			"type":  ev.Type,
		}).Warn("Skipping unknown stream event type")
	}
	return nil
}

// finish queues the terminal usage event and releases the network read.
func (s *stream) finish() {
	if s.done {
		return
	}
	s.done = true
	merged := s.inputUsage
	merged.OutputTokens = s.outputTokens
	usage := normalizeUsage(&merged)
	s.pending = append(s.pending, chat.StreamEvent{Type: chat.StreamEnd, Usage: &usage})
	_ = s.body.Close()
}
