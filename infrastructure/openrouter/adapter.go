package openrouter

import (
	"encoding/json"
	"fmt"
	"strings"

	"llm-gateway/domain/adapter"
	"llm-gateway/domain/chat"
	"llm-gateway/domain/provider"

	"github.com/sirupsen/logrus"
)

// Adapter translates the canonical chat model to the OpenRouter wire format
// (OpenAI-compatible). It is the structural twin of the Anthropic adapter
// built against the same contract.
type Adapter struct {
	refererURL string
	appName    string
}

var _ adapter.Adapter = (*Adapter)(nil)

func New(refererURL, appName string) *Adapter {
	return &Adapter{refererURL: refererURL, appName: appName}
}

const (
	apiKeyEnvName = "OPENROUTER_API_KEY"
	defaultBase   = "https://openrouter.ai/api/v1/"
)

var modelNames = []string{
	"anthropic/claude-3.5-sonnet",
	"openai/gpt-4o",
	"meta-llama/llama-3.2-3b-instruct:free",
	"google/gemma-2-9b-it:free",
	"qwen/qwen-2-7b-instruct:free",
}

func (a *Adapter) Kind() provider.Kind { return provider.KindOpenRouter }

func (a *Adapter) DefaultEndpoint() provider.Endpoint {
	return provider.Endpoint{BaseURL: defaultBase}
}

func (a *Adapter) DefaultAuth() provider.AuthData {
	return provider.AuthFromEnv(apiKeyEnvName)
}

func (a *Adapter) AllModelNames() []string {
	out := make([]string, len(modelNames))
	copy(out, modelNames)
	return out
}

func (a *Adapter) ServiceURL(_ provider.ModelIden, service provider.ServiceType, endpoint provider.Endpoint) string {
	base := endpoint.BaseURL
	if base == "" {
		base = defaultBase
	}
	switch service {
	case provider.ServiceEmbed:
		return base + "embeddings"
	default:
		return base + "chat/completions"
	}
}

// Wire types (OpenAI-compatible).
type apiChatRequest struct {
	Model         string           `json:"model"`
	Messages      []apiMessage     `json:"messages"`
	Stream        bool             `json:"stream,omitempty"`
	StreamOptions *streamOptions   `json:"stream_options,omitempty"`
	Tools         []apiTool        `json:"tools,omitempty"`
	Temperature   *float64         `json:"temperature,omitempty"`
	TopP          *float64         `json:"top_p,omitempty"`
	MaxTokens     *int             `json:"max_tokens,omitempty"`
	Stop          []string         `json:"stop,omitempty"`
	Reasoning     *reasoningConfig `json:"reasoning,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type reasoningConfig struct {
	Effort    string `json:"effort,omitempty"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

type apiMessage struct {
	Role       string        `json:"role"`
	Content    any           `json:"content"` // string or []part
	ToolCalls  []apiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
}

type apiPart struct {
	Type     string       `json:"type"`
	Text     string       `json:"text,omitempty"`
	ImageURL *apiImageURL `json:"image_url,omitempty"`
}

type apiImageURL struct {
	URL string `json:"url"`
}

type apiToolCall struct {
	ID       string      `json:"id"`
	Type     string      `json:"type"`
	Function apiFunction `json:"function"`
}

type apiFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

type apiTool struct {
	Type     string         `json:"type"`
	Function apiToolDetails `json:"function"`
}

type apiToolDetails struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ToWebRequestData builds the URL, headers and payload for one chat call.
func (a *Adapter) ToWebRequestData(target provider.ServiceTarget, service provider.ServiceType, req *chat.Request, opts chat.OptionsSet) (*provider.WebRequestData, error) {
	apiKey, err := target.Auth.ResolveKey(target.Model)
	if err != nil {
		return nil, err
	}

	headers := map[string]string{
		"Authorization": "Bearer " + strings.TrimPrefix(apiKey, "Bearer "),
	}
	if a.refererURL != "" {
		headers["HTTP-Referer"] = a.refererURL
	}
	if a.appName != "" {
		headers["X-Title"] = a.appName
	}

	payload := apiChatRequest{
		Model:    target.Model.Name,
		Messages: buildMessages(req),
		Stream:   service == provider.ServiceChatStream,
	}
	if payload.Stream {
		payload.StreamOptions = &streamOptions{IncludeUsage: true}
	}

	for _, t := range req.Tools {
		payload.Tools = append(payload.Tools, apiTool{
			Type: "function",
			Function: apiToolDetails{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Schema,
			},
		})
	}

	if temp, ok := opts.Temperature(); ok {
		payload.Temperature = &temp
	}
	if topP, ok := opts.TopP(); ok {
		payload.TopP = &topP
	}
	if maxTokens, ok := opts.MaxTokens(); ok {
		payload.MaxTokens = &maxTokens
	}
	if stops := opts.StopSequences(); len(stops) > 0 {
		payload.Stop = stops
	}
	if effort, ok := opts.ReasoningEffort(); ok {
		if effort.Level == chat.EffortBudget {
			if effort.Budget > 0 {
				payload.Reasoning = &reasoningConfig{MaxTokens: effort.Budget}
			}
		} else {
			payload.Reasoning = &reasoningConfig{Effort: string(effort.Level)}
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal openrouter payload: %w", err)
	}

	return &provider.WebRequestData{
		URL:     a.ServiceURL(target.Model, service, target.Endpoint),
		Headers: headers,
		Payload: body,
	}, nil
}

// buildMessages maps canonical messages to the OpenAI-compatible shape.
// Content kinds a role cannot carry are dropped with a warning.
func buildMessages(req *chat.Request) []apiMessage {
	var messages []apiMessage

	if req.System != "" {
		messages = append(messages, apiMessage{Role: "system", Content: req.System})
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case chat.RoleSystem:
			if tc, ok := msg.Content.(chat.TextContent); ok {
				messages = append(messages, apiMessage{Role: "system", Content: tc.Text})
			} else {
				logrus.WithField("content", fmt.Sprintf("%T", msg.Content)).Warn("Dropping non-text system message content")
			}

		case chat.RoleUser:
			switch c := msg.Content.(type) {
			case chat.TextContent:
				messages = append(messages, apiMessage{Role: "user", Content: c.Text})
			case chat.PartsContent:
				messages = append(messages, apiMessage{Role: "user", Content: partsToAPI(c.Parts)})
			case chat.BlocksContent:
				if text := blocksText(c.Blocks); text != "" {
					messages = append(messages, apiMessage{Role: "user", Content: text})
				}
			case chat.ToolCallsContent, chat.ToolResponsesContent:
				logrus.WithField("content", fmt.Sprintf("%T", msg.Content)).Warn("Dropping unsupported user message content")
			}

		case chat.RoleAssistant:
			switch c := msg.Content.(type) {
			case chat.TextContent:
				messages = append(messages, apiMessage{Role: "assistant", Content: c.Text})
			case chat.ToolCallsContent:
				messages = append(messages, apiMessage{Role: "assistant", Content: "", ToolCalls: callsToAPI(c.Calls)})
			case chat.BlocksContent:
				m := apiMessage{Role: "assistant", Content: blocksText(c.Blocks)}
				for _, b := range c.Blocks {
					if tu, ok := b.(chat.ToolUseBlock); ok {
						m.ToolCalls = append(m.ToolCalls, apiToolCall{
							ID:       tu.ID,
							Type:     "function",
							Function: apiFunction{Name: tu.Name, Arguments: string(tu.Input)},
						})
					}
				}
				messages = append(messages, m)
			case chat.PartsContent, chat.ToolResponsesContent:
				logrus.WithField("content", fmt.Sprintf("%T", msg.Content)).Warn("Dropping unsupported assistant message content")
			}

		case chat.RoleTool:
			// OpenAI-compatible vendors take one tool message per result.
			if c, ok := msg.Content.(chat.ToolResponsesContent); ok {
				for _, tr := range c.Responses {
					messages = append(messages, apiMessage{Role: "tool", Content: tr.Content, ToolCallID: tr.CallID})
				}
			} else {
				logrus.WithField("content", fmt.Sprintf("%T", msg.Content)).Warn("Dropping non-tool-response tool message content")
			}
		}
	}

	return messages
}

func partsToAPI(parts []chat.ContentPart) []apiPart {
	var out []apiPart
	for _, part := range parts {
		switch p := part.(type) {
		case chat.TextPart:
			out = append(out, apiPart{Type: "text", Text: p.Text})
		case chat.ImagePart:
			switch src := p.Source.(type) {
			case chat.ImageURL:
				out = append(out, apiPart{Type: "image_url", ImageURL: &apiImageURL{URL: string(src)}})
			case chat.ImageBase64:
				out = append(out, apiPart{Type: "image_url", ImageURL: &apiImageURL{
					URL: fmt.Sprintf("data:%s;base64,%s", p.ContentType, string(src)),
				}})
			}
		}
	}
	return out
}

func blocksText(blocks []chat.ContentBlock) string {
	var texts []string
	for _, b := range blocks {
		if tb, ok := b.(chat.TextBlock); ok {
			texts = append(texts, tb.Text)
		}
	}
	return strings.Join(texts, "\n")
}

func callsToAPI(calls []chat.ToolCall) []apiToolCall {
	out := make([]apiToolCall, 0, len(calls))
	for _, call := range calls {
		out = append(out, apiToolCall{
			ID:       call.CallID,
			Type:     "function",
			Function: apiFunction{Name: call.Name, Arguments: string(call.Arguments)},
		})
	}
	return out
}
