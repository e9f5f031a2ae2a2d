package openrouter

import (
	"bytes"
	"encoding/json"
	"io"

	"llm-gateway/domain/chat"
	"llm-gateway/domain/provider"
	"llm-gateway/internal/webc"
)

type apiStreamChunk struct {
	Model   string        `json:"model"`
	Choices []apiDelta    `json:"choices"`
	Usage   *apiUsage     `json:"usage,omitempty"`
	Error   *apiErrorBody `json:"error,omitempty"`
}

type apiDelta struct {
	Delta struct {
		Content   string `json:"content,omitempty"`
		Reasoning string `json:"reasoning,omitempty"`
		ToolCalls []struct {
			Index    int         `json:"index"`
			ID       string      `json:"id,omitempty"`
			Function apiFunction `json:"function"`
		} `json:"tool_calls,omitempty"`
	} `json:"delta"`
	FinishReason *string `json:"finish_reason,omitempty"`
}

// ToChatStream wraps a live response body in a canonical pull stream.
func (a *Adapter) ToChatStream(model provider.ModelIden, body io.ReadCloser, _ chat.OptionsSet) (chat.Stream, error) {
	return &stream{
		model: model,
		body:  body,
		src:   webc.NewEventSource(body),
	}, nil
}

// stream decodes OpenAI-compatible SSE chunks in strict arrival order. The
// terminal `[DONE]` marker maps to the single end event.
type stream struct {
	model provider.ModelIden
	body  io.ReadCloser
	src   *webc.EventSource

	pending []chat.StreamEvent
	closed  bool
	done    bool

	usage    *chat.Usage
	openTool int // index of the tool call being assembled, -1 when none
	started  bool
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
			// Some providers close the connection without sending [DONE].
			s.finish()
			continue
		}
		if err != nil {
			return chat.StreamEvent{}, err
		}

		data := bytes.TrimSpace(raw.Data)
		if len(data) == 0 {
			continue
		}
		if bytes.Equal(data, []byte("[DONE]")) {
			s.finish()
			continue
		}

		if err := s.consume(data); err != nil {
			s.done = true
			_ = s.body.Close()
			return chat.StreamEvent{}, err
		}
	}
}

func (s *stream) consume(data []byte) error {
	var chunk apiStreamChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return &provider.ExtractError{Model: s.model, Field: "stream chunk", Cause: err}
	}
	if chunk.Error != nil {
		return &provider.StreamError{Model: s.model, Message: chunk.Error.Message}
	}

	if chunk.Usage != nil {
		u := normalizeUsage(chunk.Usage)
		s.usage = &u
	}

	for _, choice := range chunk.Choices {
		if choice.Delta.Reasoning != "" {
			s.pending = append(s.pending, chat.StreamEvent{Type: chat.StreamReasoningDelta, Text: choice.Delta.Reasoning})
		}
		if choice.Delta.Content != "" {
			s.pending = append(s.pending, chat.StreamEvent{Type: chat.StreamTextDelta, Text: choice.Delta.Content})
		}
		for _, tc := range choice.Delta.ToolCalls {
			// A chunk carrying an ID opens a new call; close the previous
			// one first so begin/delta/end groups never interleave.
			if tc.ID != "" {
				s.closeOpenTool()
				s.openTool = tc.Index
				s.started = true
				s.pending = append(s.pending, chat.StreamEvent{
					Type:     chat.StreamToolCallStart,
					ToolCall: &chat.ToolCallFragment{Index: tc.Index, ID: tc.ID, Name: tc.Function.Name},
				})
			}
			if tc.Function.Arguments != "" {
				s.pending = append(s.pending, chat.StreamEvent{
					Type:     chat.StreamToolCallDelta,
					ToolCall: &chat.ToolCallFragment{Index: tc.Index, ArgumentsDelta: tc.Function.Arguments},
				})
			}
		}
	}
	return nil
}

func (s *stream) closeOpenTool() {
	if s.started {
		s.pending = append(s.pending, chat.StreamEvent{
			Type:     chat.StreamToolCallEnd,
			ToolCall: &chat.ToolCallFragment{Index: s.openTool},
		})
		s.started = false
	}
}

func (s *stream) finish() {
	if s.done {
		return
	}
	s.done = true
	s.closeOpenTool()
	usage := chat.Usage{}
	if s.usage != nil {
		usage = *s.usage
	}
	s.pending = append(s.pending, chat.StreamEvent{Type: chat.StreamEnd, Usage: &usage})
	_ = s.body.Close()
}
