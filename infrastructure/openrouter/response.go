package openrouter

import (
	"encoding/json"

	"llm-gateway/domain/chat"
	"llm-gateway/domain/embed"
	"llm-gateway/domain/provider"
)

type apiChatResponse struct {
	Model   string        `json:"model"`
	Choices []apiChoice   `json:"choices"`
	Usage   *apiUsage     `json:"usage"`
	Error   *apiErrorBody `json:"error,omitempty"`
}

type apiChoice struct {
	Message      apiChoiceMessage `json:"message"`
	FinishReason string           `json:"finish_reason"`
}

type apiChoiceMessage struct {
	Role      string        `json:"role"`
	Content   string        `json:"content"`
	Reasoning string        `json:"reasoning,omitempty"`
	ToolCalls []apiToolCall `json:"tool_calls,omitempty"`
}

type apiUsage struct {
	PromptTokens        int `json:"prompt_tokens"`
	CompletionTokens    int `json:"completion_tokens"`
	TotalTokens         int `json:"total_tokens"`
	PromptTokensDetails *struct {
		CachedTokens int `json:"cached_tokens"`
	} `json:"prompt_tokens_details,omitempty"`
}

type apiErrorBody struct {
	Message string `json:"message"`
	Code    any    `json:"code,omitempty"`
}

// normalizeUsage maps the OpenAI-style usage payload onto the canonical
// accounting. The headline counts already include cached tokens for this
// vendor, so only the detail record needs deriving.
func normalizeUsage(u *apiUsage) chat.Usage {
	if u == nil {
		return chat.Usage{}
	}
	usage := chat.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	if u.PromptTokensDetails != nil && u.PromptTokensDetails.CachedTokens > 0 {
		usage.PromptTokensDetails = &chat.PromptTokensDetails{CachedTokens: u.PromptTokensDetails.CachedTokens}
	}
	return usage
}

// ToChatResponse decodes a complete (non-streaming) response body.
func (a *Adapter) ToChatResponse(model provider.ModelIden, body []byte, opts chat.OptionsSet) (*chat.Response, error) {
	var wire apiChatResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, &provider.ExtractError{Model: model, Field: "body", Cause: err}
	}
	if len(wire.Choices) == 0 {
		return nil, &provider.ExtractError{Model: model, Field: "choices"}
	}

	resp := &chat.Response{
		Model:         model,
		ProviderModel: model.WithName(wire.Model),
		Usage:         normalizeUsage(wire.Usage),
	}
	if opts.CaptureRawBody() {
		resp.CapturedRawBody = append(json.RawMessage(nil), body...)
	}

	msg := wire.Choices[0].Message
	if len(msg.ToolCalls) > 0 {
		calls := make([]chat.ToolCall, 0, len(msg.ToolCalls))
		for _, tc := range msg.ToolCalls {
			calls = append(calls, chat.ToolCall{
				CallID:    tc.ID,
				Name:      tc.Function.Name,
				Arguments: json.RawMessage(tc.Function.Arguments),
			})
		}
		resp.Content = append(resp.Content, chat.ToolCallsContent{Calls: calls})
	}
	if msg.Content != "" {
		resp.Content = append(resp.Content, chat.TextContent{Text: msg.Content})
	}
	resp.ReasoningContent = msg.Reasoning

	return resp, nil
}

type apiEmbedRequest struct {
	Model          string   `json:"model"`
	Input          []string `json:"input"`
	Dimensions     *int     `json:"dimensions,omitempty"`
	EncodingFormat string   `json:"encoding_format,omitempty"`
}

type apiEmbedResponse struct {
	Model string `json:"model"`
	Data  []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Usage *apiUsage `json:"usage"`
}

func (a *Adapter) ToEmbedRequestData(target provider.ServiceTarget, req *embed.Request, opts *embed.Options) (*provider.WebRequestData, error) {
	apiKey, err := target.Auth.ResolveKey(target.Model)
	if err != nil {
		return nil, err
	}

	payload := apiEmbedRequest{
		Model: target.Model.Name,
		Input: req.Inputs,
	}
	if opts != nil {
		payload.Dimensions = opts.Dimensions
		payload.EncodingFormat = opts.EncodingFormat
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &provider.WebRequestData{
		URL:     a.ServiceURL(target.Model, provider.ServiceEmbed, target.Endpoint),
		Headers: map[string]string{"Authorization": "Bearer " + apiKey},
		Payload: body,
	}, nil
}

func (a *Adapter) ToEmbedResponse(model provider.ModelIden, body []byte, _ *embed.Options) (*embed.Response, error) {
	var wire apiEmbedResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, &provider.ExtractError{Model: model, Field: "body", Cause: err}
	}
	if wire.Data == nil {
		return nil, &provider.ExtractError{Model: model, Field: "data"}
	}

	resp := &embed.Response{
		Model:         model,
		ProviderModel: model.WithName(wire.Model),
		Usage:         normalizeUsage(wire.Usage),
	}
	for _, d := range wire.Data {
		resp.Embeddings = append(resp.Embeddings, d.Embedding)
	}
	return resp, nil
}
