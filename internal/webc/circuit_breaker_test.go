package webc

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"llm-gateway/domain/provider"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDoer struct {
	err   error
	body  []byte
	calls int
}

func (f *fakeDoer) Do(_ context.Context, _ *provider.WebRequestData) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.body, nil
}

func (f *fakeDoer) Stream(_ context.Context, _ *provider.WebRequestData) (io.ReadCloser, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(string(f.body))), nil
}

func testBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Enabled:          true,
		FailureThreshold: 3,
		SuccessThreshold: 1,
		Timeout:          time.Minute,
		MaxRequests:      1,
	}
}

func TestBreakerClient_PassThrough(t *testing.T) {
	inner := &fakeDoer{body: []byte("ok")}
	client := NewBreakerClient(inner, testBreakerConfig())

	body, err := client.Do(context.Background(), requestData("https://api.anthropic.com/v1/messages"))
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
}

func TestBreakerClient_OpensAfterFailures(t *testing.T) {
	inner := &fakeDoer{err: errors.New("boom")}
	client := NewBreakerClient(inner, testBreakerConfig())
	data := requestData("https://api.anthropic.com/v1/messages")

	for i := 0; i < 3; i++ {
		_, err := client.Do(context.Background(), data)
		require.Error(t, err)
	}

	// Breaker is now open; inner must not be called again
	callsBefore := inner.calls
	_, err := client.Do(context.Background(), data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker open")
	assert.Equal(t, callsBefore, inner.calls)

	states := client.States()
	assert.Equal(t, gobreaker.StateOpen, states["api.anthropic.com"])
}

func TestBreakerClient_PerHostIsolation(t *testing.T) {
	inner := &fakeDoer{err: errors.New("boom")}
	client := NewBreakerClient(inner, testBreakerConfig())

	for i := 0; i < 3; i++ {
		_, _ = client.Do(context.Background(), requestData("https://api.anthropic.com/v1/messages"))
	}

	// A different host gets its own closed breaker
	inner.err = nil
	inner.body = []byte("ok")
	body, err := client.Do(context.Background(), requestData("https://openrouter.ai/api/v1/chat/completions"))
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
}

func TestBreakerClient_Disabled(t *testing.T) {
	inner := &fakeDoer{err: errors.New("boom")}
	cfg := testBreakerConfig()
	cfg.Enabled = false
	client := NewBreakerClient(inner, cfg)
	data := requestData("https://api.anthropic.com/v1/messages")

	for i := 0; i < 10; i++ {
		_, err := client.Do(context.Background(), data)
		require.Error(t, err)
	}
	assert.Equal(t, 10, inner.calls, "disabled breaker must never fail fast")
}

func TestBreakerClient_Stream(t *testing.T) {
	inner := &fakeDoer{body: []byte("data: x\n\n")}
	client := NewBreakerClient(inner, testBreakerConfig())

	body, err := client.Stream(context.Background(), requestData("https://api.anthropic.com/v1/messages"))
	require.NoError(t, err)
	defer body.Close()

	content, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "data: x\n\n", string(content))
}
