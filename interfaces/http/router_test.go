package httpiface

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"llm-gateway/domain/chat"
	"llm-gateway/domain/embed"
	"llm-gateway/domain/provider"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockChatService struct {
	mock.Mock
}

func (m *MockChatService) Chat(ctx context.Context, modelName string, req *chat.Request, opts *chat.Options) (*chat.Response, error) {
	args := m.Called(modelName, req, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chat.Response), args.Error(1)
}

func (m *MockChatService) StreamForEach(ctx context.Context, modelName string, req *chat.Request, opts *chat.Options, handler chat.StreamHandler) error {
	args := m.Called(modelName, req, opts, handler)
	return args.Error(0)
}

func (m *MockChatService) Models() map[provider.Kind][]string {
	args := m.Called()
	return args.Get(0).(map[provider.Kind][]string)
}

type MockEmbedService struct {
	mock.Mock
}

func (m *MockEmbedService) Embed(ctx context.Context, modelName string, inputs []string, opts *embed.Options) ([][]float64, error) {
	args := m.Called(modelName, inputs, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float64), args.Error(1)
}

func testResponse(text string) *chat.Response {
	model := provider.ModelIden{Kind: provider.KindAnthropic, Name: "claude-sonnet-4-20250514"}
	return &chat.Response{
		Content:       []chat.MessageContent{chat.TextContent{Text: text}},
		Model:         model,
		ProviderModel: model,
		Usage:         chat.Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5},
	}
}

func postJSON(engine http.Handler, path string, body any) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestChatCompletions(t *testing.T) {
	service := &MockChatService{}
	service.On("Chat", "claude-sonnet-4-20250514", mock.Anything, mock.Anything).Return(testResponse("hello"), nil)
	engine := NewRouter(service, nil, []string{"*"}).SetupRoutes()

	w := postJSON(engine, "/chat/completions", ChatRequest{
		Model: "claude-sonnet-4-20250514",
		Messages: []ChatMessage{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "hi"},
		},
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "hello", resp.Content)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 5, resp.Usage.TotalTokens)

	// The system message was lifted out of the message list
	calledReq := service.Calls[0].Arguments.Get(1).(*chat.Request)
	assert.Equal(t, "be brief", calledReq.System)
	require.Len(t, calledReq.Messages, 1)
	assert.Equal(t, chat.RoleUser, calledReq.Messages[0].Role)
}

func TestChatCompletions_Validation(t *testing.T) {
	service := &MockChatService{}
	engine := NewRouter(service, nil, []string{"*"}).SetupRoutes()

	t.Run("empty messages", func(t *testing.T) {
		w := postJSON(engine, "/chat/completions", map[string]any{"model": "m", "messages": []any{}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown role", func(t *testing.T) {
		w := postJSON(engine, "/chat/completions", ChatRequest{
			Model:    "m",
			Messages: []ChatMessage{{Role: "robot", Content: "x"}},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/chat/completions", strings.NewReader("not json"))
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid reasoning effort", func(t *testing.T) {
		w := postJSON(engine, "/chat/completions", ChatRequest{
			Model:           "m",
			Messages:        []ChatMessage{{Role: "user", Content: "x"}},
			ReasoningEffort: "extreme",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	service.AssertNotCalled(t, "Chat")
}

func TestChatCompletions_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"auth error", &provider.AuthError{EnvName: "ANTHROPIC_API_KEY"}, http.StatusUnauthorized},
		{"not supported", &provider.NotSupportedError{Kind: provider.KindAnthropic, Feature: "embeddings"}, http.StatusBadRequest},
		{"provider status passthrough", &provider.APIError{Status: 429, Body: "rate limited"}, http.StatusTooManyRequests},
		{"unknown error", assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := &MockChatService{}
			service.On("Chat", mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.err)
			engine := NewRouter(service, nil, []string{"*"}).SetupRoutes()

			w := postJSON(engine, "/chat/completions", ChatRequest{
				Model:    "m",
				Messages: []ChatMessage{{Role: "user", Content: "x"}},
			})
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestChatCompletions_Streaming(t *testing.T) {
	service := &MockChatService{}
	service.On("StreamForEach", "m", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		handler := args.Get(3).(chat.StreamHandler)
		require.NoError(t, handler(chat.StreamEvent{Type: chat.StreamTextDelta, Text: "hel"}))
		require.NoError(t, handler(chat.StreamEvent{Type: chat.StreamTextDelta, Text: "lo"}))
		usage := chat.Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3}
		require.NoError(t, handler(chat.StreamEvent{Type: chat.StreamEnd, Usage: &usage}))
	}).Return(nil)
	engine := NewRouter(service, nil, []string{"*"}).SetupRoutes()

	w := postJSON(engine, "/chat/completions", ChatRequest{
		Model:    "m",
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
		Stream:   true,
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	frames := strings.Split(strings.TrimSpace(body), "\n\n")
	require.Len(t, frames, 4)
	assert.Contains(t, frames[0], `"text":"hel"`)
	assert.Contains(t, frames[1], `"text":"lo"`)
	assert.Contains(t, frames[2], `"type":"end"`)
	assert.Contains(t, frames[2], `"total_tokens":3`)
	assert.Equal(t, "data: [DONE]", frames[3])
}

func TestListModels(t *testing.T) {
	service := &MockChatService{}
	service.On("Models").Return(map[provider.Kind][]string{
		provider.KindAnthropic: {"claude-sonnet-4-20250514"},
	})
	engine := NewRouter(service, nil, []string{"*"}).SetupRoutes()

	req := httptest.NewRequest("GET", "/models", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Models map[string][]string `json:"models"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"claude-sonnet-4-20250514"}, resp.Models["anthropic"])
}

func TestEmbeddings(t *testing.T) {
	service := &MockChatService{}
	embedder := &MockEmbedService{}
	embedder.On("Embed", "openai/text-embedding-3-small", []string{"a"}, mock.Anything).Return([][]float64{{0.1, 0.2}}, nil)
	engine := NewRouter(service, embedder, []string{"*"}).SetupRoutes()

	w := postJSON(engine, "/embeddings", EmbedRequest{
		Model:  "openai/text-embedding-3-small",
		Inputs: []string{"a"},
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Embeddings [][]float64 `json:"embeddings"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Embeddings, 1)
	assert.Equal(t, []float64{0.1, 0.2}, resp.Embeddings[0])
}

func TestEmbeddings_NotRegisteredWithoutService(t *testing.T) {
	engine := NewRouter(&MockChatService{}, nil, []string{"*"}).SetupRoutes()

	w := postJSON(engine, "/embeddings", EmbedRequest{Model: "m", Inputs: []string{"a"}})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRequestIDMiddleware(t *testing.T) {
	service := &MockChatService{}
	service.On("Models").Return(map[provider.Kind][]string{})
	engine := NewRouter(service, nil, []string{"*"}).SetupRoutes()

	t.Run("generated when absent", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/models", nil)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	})

	t.Run("valid uuid echoed", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/models", nil)
		req.Header.Set("X-Request-ID", "f47ac10b-58cc-4372-a567-0e02b2c3d479")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		assert.Equal(t, "f47ac10b-58cc-4372-a567-0e02b2c3d479", w.Header().Get("X-Request-ID"))
	})

	t.Run("non-uuid replaced but echoed back", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/models", nil)
		req.Header.Set("X-Request-ID", "my-custom-id")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		assert.Equal(t, "my-custom-id", w.Header().Get("X-Client-Request-ID"))
		assert.NotEqual(t, "my-custom-id", w.Header().Get("X-Request-ID"))
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	})
}

func TestCORS(t *testing.T) {
	engine := NewRouter(&MockChatService{}, nil, []string{"https://app.example.com"}).SetupRoutes()

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest("OPTIONS", "/chat/completions", nil)
		req.Header.Set("Origin", "https://app.example.com")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("disallowed origin gets no header", func(t *testing.T) {
		req := httptest.NewRequest("OPTIONS", "/chat/completions", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestHealthEndpoints(t *testing.T) {
	engine := NewRouter(&MockChatService{}, nil, []string{"*"}).SetupRoutes()

	for _, path := range []string{"/live", "/health"} {
		req := httptest.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}
