package httpiface

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"llm-gateway/domain/chat"
	"llm-gateway/domain/embed"
	"llm-gateway/domain/provider"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type ChatService interface {
	Chat(ctx context.Context, modelName string, req *chat.Request, opts *chat.Options) (*chat.Response, error)
	StreamForEach(ctx context.Context, modelName string, req *chat.Request, opts *chat.Options, handler chat.StreamHandler) error
	Models() map[provider.Kind][]string
}

type EmbedService interface {
	Embed(ctx context.Context, modelName string, inputs []string, opts *embed.Options) ([][]float64, error)
}

type Router struct {
	service     ChatService
	embedder    EmbedService
	corsOrigins []string
}

func NewRouter(service ChatService, embedder EmbedService, corsOrigins []string) *Router {
	return &Router{
		service:     service,
		embedder:    embedder,
		corsOrigins: corsOrigins,
	}
}

func (r *Router) SetupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(r.corsMiddleware())

	// Health endpoints - no request ID required for monitoring tools
	router.GET("/live", r.liveness)
	router.GET("/health", r.healthCheck)

	api := router.Group("/")
	api.Use(r.requestIDMiddleware())
	api.POST("/chat/completions", r.chatCompletions)
	api.GET("/models", r.listModels)
	if r.embedder != nil {
		api.POST("/embeddings", r.embeddings)
	}

	return router
}

func (r *Router) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqOrigin := c.GetHeader("Origin")
		if reqOrigin == "" {
			c.Header("Access-Control-Allow-Origin", strings.Join(r.corsOrigins, ", "))
		} else {
			allowOrigin := ""
			if len(r.corsOrigins) == 1 && r.corsOrigins[0] == "*" {
				allowOrigin = "*"
			} else {
				for _, allowed := range r.corsOrigins {
					if allowed == reqOrigin {
						allowOrigin = reqOrigin
						break
					}
				}
			}
			if allowOrigin != "" {
				c.Header("Access-Control-Allow-Origin", allowOrigin)
			}
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (r *Router) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		} else if _, err := uuid.Parse(requestID); err != nil {
			// Keep the client value visible but track with a real UUID
			c.Header("X-Client-Request-ID", requestID)
			requestID = uuid.New().String()
		}

		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)

		c.Next()
	}
}

func (r *Router) liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (r *Router) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "llm-gateway",
		"version":   "1.0.0",
	})
}

// ChatRequest is the gateway-facing chat payload. Content is plain text
// per message; the canonical model underneath carries the richer shapes
// for provider translation.
type ChatRequest struct {
	Model           string        `json:"model" binding:"required"`
	Messages        []ChatMessage `json:"messages" binding:"required"`
	Stream          bool          `json:"stream"`
	Temperature     *float64      `json:"temperature"`
	TopP            *float64      `json:"top_p"`
	MaxTokens       *int          `json:"max_tokens"`
	StopSequences   []string      `json:"stop"`
	ReasoningEffort string        `json:"reasoning_effort"`
}

type ChatMessage struct {
	Role    string `json:"role" binding:"required"`
	Content string `json:"content" binding:"required"`
}

// ChatResponse is the gateway-facing reply for non-streaming calls.
type ChatResponse struct {
	RequestID string      `json:"request_id"`
	Model     string      `json:"model"`
	Content   string      `json:"content"`
	Reasoning string      `json:"reasoning,omitempty"`
	ToolCalls []ToolCall  `json:"tool_calls,omitempty"`
	Usage     *chat.Usage `json:"usage,omitempty"`
}

type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// StreamChunk is one SSE data frame for streaming chat.
type StreamChunk struct {
	Type      string      `json:"type"`
	Text      string      `json:"text,omitempty"`
	ToolCall  *ToolDelta  `json:"tool_call,omitempty"`
	Usage     *chat.Usage `json:"usage,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

type ToolDelta struct {
	Index          int    `json:"index"`
	ID             string `json:"id,omitempty"`
	Name           string `json:"name,omitempty"`
	ArgumentsDelta string `json:"arguments_delta,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// toDomain lifts the wire payload into the canonical request and options.
func (req *ChatRequest) toDomain() (*chat.Request, *chat.Options, error) {
	out := &chat.Request{}
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			if out.System != "" {
				out.System += "\n\n"
			}
			out.System += m.Content
		case "user":
			out.Messages = append(out.Messages, chat.NewTextMessage(chat.RoleUser, m.Content))
		case "assistant":
			out.Messages = append(out.Messages, chat.NewTextMessage(chat.RoleAssistant, m.Content))
		default:
			return nil, nil, errors.New("unsupported message role: " + m.Role)
		}
	}

	opts := &chat.Options{
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		MaxTokens:     req.MaxTokens,
		StopSequences: req.StopSequences,
	}
	if req.ReasoningEffort != "" {
		effort, err := chat.ParseReasoningEffort(req.ReasoningEffort)
		if err != nil {
			return nil, nil, err
		}
		opts.ReasoningEffort = effort
	}
	return out, opts, nil
}

func statusForError(err error) int {
	var authErr *provider.AuthError
	if errors.As(err, &authErr) {
		return http.StatusUnauthorized
	}
	var notSup *provider.NotSupportedError
	if errors.As(err, &notSup) {
		return http.StatusBadRequest
	}
	var apiErr *provider.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status >= 400 && apiErr.Status < 600 {
			return apiErr.Status
		}
	}
	return http.StatusInternalServerError
}

func (r *Router) chatCompletions(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Error("Failed to bind request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request format"})
		return
	}

	if len(req.Messages) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Messages cannot be empty"})
		return
	}

	domainReq, opts, err := req.toDomain()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	requestID := c.GetString("request_id")

	if req.Stream {
		r.streamCompletions(c, requestID, req.Model, domainReq, opts)
		return
	}

	resp, err := r.service.Chat(c.Request.Context(), req.Model, domainReq, opts)
	if err != nil {
		logrus.WithError(err).WithField("request_id", requestID).Error("Failed to process chat completion")
		c.JSON(statusForError(err), ErrorResponse{Error: err.Error()})
		return
	}

	logrus.WithFields(logrus.Fields{
		"request_id":       requestID,
		"model":            resp.Model.String(),
		"usage_total":      resp.Usage.TotalTokens,
		"usage_prompt":     resp.Usage.PromptTokens,
		"usage_completion": resp.Usage.CompletionTokens,
		"streaming":        false,
	}).Info("Chat usage")

	out := ChatResponse{
		RequestID: requestID,
		Model:     resp.Model.String(),
		Content:   resp.JoinedTexts(),
		Reasoning: resp.ReasoningContent,
		Usage:     &resp.Usage,
	}
	for _, tc := range resp.ToolCalls() {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.CallID,
			Name:      tc.Name,
			Arguments: tc.Arguments,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (r *Router) streamCompletions(c *gin.Context, requestID, model string, req *chat.Request, opts *chat.Options) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Streaming not supported by server"})
		return
	}

	var finalUsage *chat.Usage
	writeChunk := func(chunk StreamChunk) error {
		data, err := json.Marshal(chunk)
		if err != nil {
			return err
		}
		if _, err := c.Writer.Write([]byte("data: ")); err != nil {
			return err
		}
		if _, err := c.Writer.Write(data); err != nil {
			return err
		}
		if _, err := c.Writer.Write([]byte("\n\n")); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	err := r.service.StreamForEach(c.Request.Context(), model, req, opts, func(ev chat.StreamEvent) error {
		chunk := StreamChunk{Type: string(ev.Type), Text: ev.Text}
		if ev.ToolCall != nil {
			chunk.ToolCall = &ToolDelta{
				Index:          ev.ToolCall.Index,
				ID:             ev.ToolCall.ID,
				Name:           ev.ToolCall.Name,
				ArgumentsDelta: ev.ToolCall.ArgumentsDelta,
			}
		}
		if ev.Type == chat.StreamEnd {
			chunk.Usage = ev.Usage
			chunk.RequestID = requestID
			finalUsage = ev.Usage
		}
		return writeChunk(chunk)
	})
	if err != nil {
		logrus.WithError(err).WithField("request_id", requestID).Error("Streaming failed")
		return
	}

	c.Writer.Write([]byte("data: [DONE]\n\n"))
	flusher.Flush()

	if finalUsage != nil {
		logrus.WithFields(logrus.Fields{
			"request_id":       requestID,
			"usage_total":      finalUsage.TotalTokens,
			"usage_prompt":     finalUsage.PromptTokens,
			"usage_completion": finalUsage.CompletionTokens,
			"streaming":        true,
		}).Info("Chat usage")
	} else {
		logrus.WithFields(logrus.Fields{
			"request_id": requestID,
			"streaming":  true,
		}).Warn("No usage reported on stream end")
	}
}

func (r *Router) listModels(c *gin.Context) {
	catalog := r.service.Models()
	out := gin.H{}
	for kind, names := range catalog {
		out[string(kind)] = names
	}
	c.JSON(http.StatusOK, gin.H{"models": out})
}

// EmbedRequest is the gateway-facing embedding payload.
type EmbedRequest struct {
	Model      string   `json:"model" binding:"required"`
	Inputs     []string `json:"inputs" binding:"required"`
	Dimensions *int     `json:"dimensions"`
}

func (r *Router) embeddings(c *gin.Context) {
	var req EmbedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request format"})
		return
	}
	if len(req.Inputs) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Inputs cannot be empty"})
		return
	}

	opts := &embed.Options{Dimensions: req.Dimensions}
	vectors, err := r.embedder.Embed(c.Request.Context(), req.Model, req.Inputs, opts)
	if err != nil {
		logrus.WithError(err).Error("Failed to process embedding request")
		c.JSON(statusForError(err), ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"model":      req.Model,
		"embeddings": vectors,
	})
}
