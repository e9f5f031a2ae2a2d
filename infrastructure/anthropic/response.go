package anthropic

import (
	"encoding/json"
	"strings"

	"llm-gateway/domain/chat"
	"llm-gateway/domain/provider"

	"github.com/sirupsen/logrus"
)

// Wire types for the Messages API response payload.
type responseBody struct {
	Model   string         `json:"model"`
	Usage   *usagePayload  `json:"usage"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`

	Text      *string `json:"text,omitempty"`
	Thinking  *string `json:"thinking,omitempty"`
	Signature string  `json:"signature,omitempty"`
	Data      *string `json:"data,omitempty"`

	ID    *string         `json:"id,omitempty"`
	Name  *string         `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

type usagePayload struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
}

// normalizeUsage converts the vendor usage payload to the canonical
// accounting. Anthropic's input_tokens excludes the cache counters, so the
// headline prompt count folds them back in for cross-vendor symmetry.
func normalizeUsage(u *usagePayload) chat.Usage {
	if u == nil {
		return chat.Usage{}
	}
	promptTokens := u.InputTokens + u.CacheCreationInputTokens + u.CacheReadInputTokens
	usage := chat.Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: u.OutputTokens,
		TotalTokens:      promptTokens + u.OutputTokens,
	}
	// Details only when some caching activity was reported.
	if u.CacheCreationInputTokens > 0 || u.CacheReadInputTokens > 0 {
		usage.PromptTokensDetails = &chat.PromptTokensDetails{
			CacheCreationTokens: u.CacheCreationInputTokens,
			CachedTokens:        u.CacheReadInputTokens,
		}
	}
	return usage
}

// ToChatResponse decodes a complete (non-streaming) response body.
func (a *Adapter) ToChatResponse(model provider.ModelIden, body []byte, opts chat.OptionsSet) (*chat.Response, error) {
	var wire responseBody
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, &provider.ExtractError{Model: model, Field: "body", Cause: err}
	}
	if wire.Content == nil {
		return nil, &provider.ExtractError{Model: model, Field: "content"}
	}

	resp := &chat.Response{
		Model:         model,
		ProviderModel: model.WithName(wire.Model),
		Usage:         normalizeUsage(wire.Usage),
	}
	if opts.CaptureRawBody() {
		resp.CapturedRawBody = append(json.RawMessage(nil), body...)
	}

	hasThinking := false
	for _, item := range wire.Content {
		if item.Type == "thinking" || item.Type == "redacted_thinking" {
			hasThinking = true
			break
		}
	}

	if hasThinking {
		return a.decodeBlockResponse(model, wire, resp)
	}
	return a.decodeLegacyResponse(model, wire, resp)
}

// decodeBlockResponse preserves the exact ordered block sequence and
// accumulates the reasoning text separately.
func (a *Adapter) decodeBlockResponse(model provider.ModelIden, wire responseBody, resp *chat.Response) (*chat.Response, error) {
	var blocks []chat.ContentBlock
	var reasoning strings.Builder

	for _, item := range wire.Content {
		switch item.Type {
		case "text":
			if item.Text == nil {
				return nil, &provider.ExtractError{Model: model, Field: "content.text"}
			}
			blocks = append(blocks, chat.TextBlock{Text: *item.Text})
		case "thinking":
			// Thinking blocks carry a "thinking" field, with "text" as a
			// fallback spelling.
			text := item.Thinking
			if text == nil {
				text = item.Text
			}
			if text == nil {
				return nil, &provider.ExtractError{Model: model, Field: "content.thinking"}
			}
			reasoning.WriteString(*text)
			reasoning.WriteByte('\n')
			blocks = append(blocks, chat.ThinkingBlock{Text: *text, Signature: item.Signature})
		case "redacted_thinking":
			if item.Data == nil {
				return nil, &provider.ExtractError{Model: model, Field: "content.data"}
			}
			blocks = append(blocks, chat.RedactedThinkingBlock{Data: *item.Data})
		case "tool_use":
			if item.ID == nil || item.Name == nil {
				return nil, &provider.ExtractError{Model: model, Field: "content.tool_use"}
			}
			blocks = append(blocks, chat.ToolUseBlock{ID: *item.ID, Name: *item.Name, Input: item.Input})
		default:
			// Forward-compatible: unknown block types are skipped, never
			// fatal.
			logrus.WithFields(logrus.Fields{
				"model": model.Name,
				"type":  item.Type,
			}).Warn("Skipping unknown content block type in response")
		}
	}

	resp.Content = append(resp.Content, chat.BlocksContent{Blocks: blocks})
	resp.ReasoningContent = strings.TrimRight(reasoning.String(), " \t\n")
	return resp, nil
}

// decodeLegacyResponse is the pre-block compatibility shape: texts joined
// into one entry, tool calls collected into an entry placed before it
// regardless of original interleaving. Kept as documented legacy behavior;
// callers that need fidelity get the Blocks path.
func (a *Adapter) decodeLegacyResponse(model provider.ModelIden, wire responseBody, resp *chat.Response) (*chat.Response, error) {
	var texts []string
	var toolCalls []chat.ToolCall

	for _, item := range wire.Content {
		switch item.Type {
		case "text":
			if item.Text == nil {
				return nil, &provider.ExtractError{Model: model, Field: "content.text"}
			}
			texts = append(texts, *item.Text)
		case "tool_use":
			if item.ID == nil || item.Name == nil {
				return nil, &provider.ExtractError{Model: model, Field: "content.tool_use"}
			}
			toolCalls = append(toolCalls, chat.ToolCall{CallID: *item.ID, Name: *item.Name, Arguments: item.Input})
		default:
			logrus.WithFields(logrus.Fields{
				"model": model.Name,
				"type":  item.Type,
			}).Warn("Skipping unknown content block type in response")
		}
	}

	if len(toolCalls) > 0 {
		resp.Content = append(resp.Content, chat.ToolCallsContent{Calls: toolCalls})
	}
	if len(texts) > 0 {
		resp.Content = append(resp.Content, chat.TextContent{Text: strings.Join(texts, "\n")})
	}
	return resp, nil
}
