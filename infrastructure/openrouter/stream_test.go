package openrouter

import (
	"io"
	"strings"
	"testing"

	"llm-gateway/domain/chat"
	"llm-gateway/domain/provider"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseBody(chunks ...string) io.ReadCloser {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString("data: ")
		b.WriteString(c)
		b.WriteString("\n\n")
	}
	return io.NopCloser(strings.NewReader(b.String()))
}

func drain(t *testing.T, s chat.Stream) []chat.StreamEvent {
	t.Helper()
	var events []chat.StreamEvent
	for {
		ev, err := s.Recv()
		if err == io.EOF {
			return events
		}
		require.NoError(t, err)
		events = append(events, ev)
	}
}

func TestStream_TextAndDone(t *testing.T) {
	adapter := New("", "")
	body := sseBody(
		`{"model":"m","choices":[{"delta":{"content":"Hel"}}]}`,
		`{"model":"m","choices":[{"delta":{"content":"lo"}}]}`,
		`{"model":"m","choices":[{"delta":{},"finish_reason":"stop"}],"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`,
		`[DONE]`,
	)

	s, err := adapter.ToChatStream(testModel, body, chat.NewOptionsSet(nil, nil))
	require.NoError(t, err)
	events := drain(t, s)

	require.Len(t, events, 3)
	assert.Equal(t, "Hel", events[0].Text)
	assert.Equal(t, "lo", events[1].Text)

	end := events[2]
	assert.Equal(t, chat.StreamEnd, end.Type)
	require.NotNil(t, end.Usage)
	assert.Equal(t, 7, end.Usage.TotalTokens)
}

func TestStream_ReasoningDeltas(t *testing.T) {
	adapter := New("", "")
	body := sseBody(
		`{"model":"m","choices":[{"delta":{"reasoning":"thinking"}}]}`,
		`{"model":"m","choices":[{"delta":{"content":"answer"}}]}`,
		`[DONE]`,
	)

	s, err := adapter.ToChatStream(testModel, body, chat.NewOptionsSet(nil, nil))
	require.NoError(t, err)
	events := drain(t, s)

	require.Len(t, events, 3)
	assert.Equal(t, chat.StreamReasoningDelta, events[0].Type)
	assert.Equal(t, "thinking", events[0].Text)
	assert.Equal(t, chat.StreamTextDelta, events[1].Type)
}

func TestStream_ToolCallGrouping(t *testing.T) {
	adapter := New("", "")
	body := sseBody(
		`{"model":"m","choices":[{"delta":{"tool_calls":[{"index":0,"id":"c1","function":{"name":"lookup"}}]}}]}`,
		`{"model":"m","choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"q\":"}}]}}]}`,
		`{"model":"m","choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"x\"}"}}]}}]}`,
		`{"model":"m","choices":[{"delta":{"tool_calls":[{"index":1,"id":"c2","function":{"name":"second"}}]}}]}`,
		`[DONE]`,
	)

	s, err := adapter.ToChatStream(testModel, body, chat.NewOptionsSet(nil, nil))
	require.NoError(t, err)
	events := drain(t, s)

	require.Len(t, events, 7)
	assert.Equal(t, chat.StreamToolCallStart, events[0].Type)
	assert.Equal(t, "c1", events[0].ToolCall.ID)
	assert.Equal(t, chat.StreamToolCallDelta, events[1].Type)
	assert.Equal(t, chat.StreamToolCallDelta, events[2].Type)

	// Second call opening closes the first
	assert.Equal(t, chat.StreamToolCallEnd, events[3].Type)
	assert.Equal(t, 0, events[3].ToolCall.Index)
	assert.Equal(t, chat.StreamToolCallStart, events[4].Type)
	assert.Equal(t, "c2", events[4].ToolCall.ID)

	// [DONE] closes the open call before the terminal event
	assert.Equal(t, chat.StreamToolCallEnd, events[5].Type)
	assert.Equal(t, 1, events[5].ToolCall.Index)
	assert.Equal(t, chat.StreamEnd, events[6].Type)
}

func TestStream_ErrorChunk(t *testing.T) {
	adapter := New("", "")
	body := sseBody(
		`{"model":"m","error":{"message":"rate limited","code":429}}`,
	)

	s, err := adapter.ToChatStream(testModel, body, chat.NewOptionsSet(nil, nil))
	require.NoError(t, err)

	_, err = s.Recv()
	var streamErr *provider.StreamError
	require.ErrorAs(t, err, &streamErr)
	assert.Equal(t, "rate limited", streamErr.Message)
}

func TestStream_EOFWithoutDone(t *testing.T) {
	adapter := New("", "")
	body := sseBody(
		`{"model":"m","choices":[{"delta":{"content":"cut"}}]}`,
	)

	s, err := adapter.ToChatStream(testModel, body, chat.NewOptionsSet(nil, nil))
	require.NoError(t, err)
	events := drain(t, s)

	require.Len(t, events, 2)
	assert.Equal(t, chat.StreamTextDelta, events[0].Type)
	assert.Equal(t, chat.StreamEnd, events[1].Type)
}

func TestStream_CloseThenRecv(t *testing.T) {
	adapter := New("", "")
	s, err := adapter.ToChatStream(testModel, sseBody(`[DONE]`), chat.NewOptionsSet(nil, nil))
	require.NoError(t, err)

	require.NoError(t, s.Close())
	_, err = s.Recv()
	assert.ErrorIs(t, err, chat.ErrStreamClosed)
}
