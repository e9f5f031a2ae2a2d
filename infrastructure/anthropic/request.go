package anthropic

import (
	"encoding/json"
	"fmt"
	"strings"

	"llm-gateway/domain/chat"
	"llm-gateway/domain/provider"

	"github.com/sirupsen/logrus"
)

// oauthIdentity is required as the first system segment when authenticating
// with an OAuth token; the disclaimer prefix keeps the caller's own system
// prompt from being confused with it.
const (
	oauthIdentity         = "You are Claude Code, Anthropic's official CLI for Claude."
	oauthIdentityDisclaim = "You are NOT Claude Code. "
)

// Wire types for the Messages API request payload. The payload is
// accumulated in this struct and serialized exactly once.
type requestPayload struct {
	Model         string          `json:"model"`
	Messages      []wireMessage   `json:"messages"`
	Stream        bool            `json:"stream"`
	System        any             `json:"system,omitempty"` // string or []wireBlock
	Tools         []wireTool      `json:"tools,omitempty"`
	MaxTokens     int             `json:"max_tokens"` // required by Anthropic
	Thinking      *thinkingConfig `json:"thinking,omitempty"`
	Temperature   *float64        `json:"temperature,omitempty"`
	TopP          *float64        `json:"top_p,omitempty"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []wireBlock
}

type wireBlock struct {
	Type string `json:"type"`

	Text      string `json:"text,omitempty"`      // text
	Thinking  string `json:"thinking,omitempty"`  // thinking
	Signature string `json:"signature,omitempty"` // thinking
	Data      string `json:"data,omitempty"`      // redacted_thinking

	ID    string          `json:"id,omitempty"`    // tool_use
	Name  string          `json:"name,omitempty"`  // tool_use
	Input json.RawMessage `json:"input,omitempty"` // tool_use

	ToolUseID string `json:"tool_use_id,omitempty"` // tool_result
	Content   string `json:"content,omitempty"`     // tool_result

	Source *imageSource `json:"source,omitempty"` // image

	CacheControl *cacheControl `json:"cache_control,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"` // "url" or "base64"
	URL       string `json:"url,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
}

type wireTool struct {
	Name         string          `json:"name"`
	InputSchema  json.RawMessage `json:"input_schema"`
	Description  string          `json:"description,omitempty"`
	CacheControl *cacheControl   `json:"cache_control,omitempty"`
}

type thinkingConfig struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens"`
}

type cacheControl struct {
	Type string `json:"type"`
	TTL  string `json:"ttl,omitempty"`
}

func ephemeralCache() *cacheControl {
	return &cacheControl{Type: "ephemeral", TTL: "1h"}
}

// ToWebRequestData builds the URL, headers and payload for one chat call.
func (a *Adapter) ToWebRequestData(target provider.ServiceTarget, service provider.ServiceType, req *chat.Request, opts chat.OptionsSet) (*provider.WebRequestData, error) {
	apiKey, err := target.Auth.ResolveKey(target.Model)
	if err != nil {
		return nil, err
	}

	url := a.ServiceURL(target.Model, service, target.Endpoint)
	modelName := target.Model.Name

	// A credential prefixed with "Bearer " is an OAuth token; it selects a
	// different header scheme and system-prompt format.
	isOAuth := strings.HasPrefix(apiKey, "Bearer ")

	var headers map[string]string
	if isOAuth {
		headers = map[string]string{
			"Authorization":     apiKey,
			"anthropic-version": apiVersion,
			"anthropic-beta":    oauthBeta,
		}
	} else {
		headers = map[string]string{
			"x-api-key":         apiKey,
			"anthropic-version": apiVersion,
		}
	}

	thinkingEnabled := false
	effort, hasEffort := opts.ReasoningEffort()
	if supportsThinking(modelName) && hasEffort {
		if effort.Level == chat.EffortBudget {
			thinkingEnabled = effort.Budget > 0
		} else {
			thinkingEnabled = true
		}
	}

	parts := buildRequestParts(req, isOAuth)

	payload := requestPayload{
		Model:    modelName,
		Messages: parts.messages,
		Stream:   service == provider.ServiceChatStream,
		System:   parts.system,
		Tools:    parts.tools,
	}

	maxTokens, ok := opts.MaxTokens()
	if !ok {
		maxTokens = defaultMaxTokens(modelName)
	}
	payload.MaxTokens = maxTokens

	if thinkingEnabled {
		budget := 16384
		switch effort.Level {
		case chat.EffortLow:
			budget = 4096
		case chat.EffortMedium:
			budget = 16384
		case chat.EffortHigh:
			budget = 32768
		case chat.EffortBudget:
			budget = effort.Budget
		}
		// Anthropic minimum, then keep the reasoning budget from
		// exhausting the output budget.
		if budget < 1024 {
			budget = 1024
		}
		if ceiling := maxTokens - 100; budget > ceiling {
			budget = ceiling
		}
		payload.Thinking = &thinkingConfig{Type: "enabled", BudgetTokens: budget}
	}

	// Temperature cannot be set when thinking is enabled.
	temperatureSet := false
	if !thinkingEnabled {
		if temp, ok := opts.Temperature(); ok {
			payload.Temperature = &temp
			temperatureSet = true
		}
	}

	if stops := opts.StopSequences(); len(stops) > 0 {
		payload.StopSequences = stops
	}

	if topP, ok := opts.TopP(); ok {
		switch {
		case thinkingEnabled:
			// With thinking enabled the vendor only accepts top_p in
			// [0.95, 1.0]; out-of-band values are dropped rather than
			// failing in two places.
			if topP >= 0.95 && topP <= 1.0 {
				payload.TopP = &topP
			}
		case isClaude45(modelName) && temperatureSet:
			logrus.WithFields(logrus.Fields{
				"model": modelName,
			}).Warn("Model does not support both temperature and top_p; using temperature, ignoring top_p")
		default:
			payload.TopP = &topP
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal anthropic payload: %w", err)
	}

	return &provider.WebRequestData{URL: url, Headers: headers, Payload: body}, nil
}

type requestParts struct {
	system   any // string, []wireBlock or nil
	messages []wireMessage
	tools    []wireTool
}

type systemSegment struct {
	text  string
	cache bool
}

// buildRequestParts collects the system assembly, maps every message to its
// vendor representation, and converts the tool catalog. Content kinds a
// role cannot carry are dropped, observable only via warnings.
func buildRequestParts(req *chat.Request, isOAuth bool) requestParts {
	var systems []systemSegment
	var messages []wireMessage

	// The top-level system text comes first and is never cache-flagged.
	if req.System != "" {
		systems = append(systems, systemSegment{text: req.System})
	}

	for _, msg := range req.Messages {
		cached := msg.CacheControl()

		switch msg.Role {
		case chat.RoleSystem:
			// System messages merge into the system assembly; Anthropic
			// has no system role.
			if tc, ok := msg.Content.(chat.TextContent); ok {
				systems = append(systems, systemSegment{text: tc.Text, cache: cached})
			} else {
				logrus.WithField("content", fmt.Sprintf("%T", msg.Content)).Warn("Dropping non-text system message content")
			}

		case chat.RoleUser:
			switch c := msg.Content.(type) {
			case chat.TextContent:
				messages = append(messages, wireMessage{Role: "user", Content: textOrCachedBlock(c.Text, cached)})
			case chat.PartsContent:
				blocks := partsToBlocks(c.Parts)
				messages = append(messages, wireMessage{Role: "user", Content: applyCacheToLast(blocks, cached)})
			case chat.BlocksContent:
				blocks := contentBlocksToWire(c.Blocks)
				messages = append(messages, wireMessage{Role: "user", Content: applyCacheToLast(blocks, cached)})
			case chat.ToolCallsContent, chat.ToolResponsesContent:
				// Not representable as user content for this vendor.
				logrus.WithField("content", fmt.Sprintf("%T", msg.Content)).Warn("Dropping unsupported user message content")
			}

		case chat.RoleAssistant:
			switch c := msg.Content.(type) {
			case chat.TextContent:
				messages = append(messages, wireMessage{Role: "assistant", Content: textOrCachedBlock(c.Text, cached)})
			case chat.ToolCallsContent:
				blocks := make([]wireBlock, 0, len(c.Calls))
				for _, call := range c.Calls {
					blocks = append(blocks, toolUseBlock(call.CallID, call.Name, call.Arguments))
				}
				messages = append(messages, wireMessage{Role: "assistant", Content: applyCacheToLast(blocks, cached)})
			case chat.BlocksContent:
				blocks := contentBlocksToWire(c.Blocks)
				messages = append(messages, wireMessage{Role: "assistant", Content: applyCacheToLast(blocks, cached)})
			case chat.PartsContent, chat.ToolResponsesContent:
				logrus.WithField("content", fmt.Sprintf("%T", msg.Content)).Warn("Dropping unsupported assistant message content")
			}

		case chat.RoleTool:
			// Anthropic has no tool role; tool results travel back as
			// user content.
			if c, ok := msg.Content.(chat.ToolResponsesContent); ok {
				blocks := make([]wireBlock, 0, len(c.Responses))
				for _, tr := range c.Responses {
					blocks = append(blocks, wireBlock{Type: "tool_result", ToolUseID: tr.CallID, Content: tr.Content})
				}
				messages = append(messages, wireMessage{Role: "user", Content: applyCacheToLast(blocks, cached)})
			} else {
				logrus.WithField("content", fmt.Sprintf("%T", msg.Content)).Warn("Dropping non-tool-response tool message content")
			}
		}
	}

	var tools []wireTool
	for _, t := range req.Tools {
		schema := t.Schema
		if len(schema) == 0 {
			schema = json.RawMessage(`{"type":"object"}`)
		}
		tools = append(tools, wireTool{Name: t.Name, InputSchema: schema, Description: t.Description})
	}
	// The cache annotation on the last tool amortizes caching across the
	// whole catalog.
	if len(tools) > 0 {
		tools[len(tools)-1].CacheControl = ephemeralCache()
	}

	return requestParts{
		system:   buildSystem(systems, isOAuth),
		messages: messages,
		tools:    tools,
	}
}

// buildSystem assembles the system prompt. OAuth mode always produces the
// array form with the identity segment first; otherwise segments join into
// one string unless a later segment is cache-flagged, in which case the
// array form carries the annotation at the last flagged position only.
func buildSystem(systems []systemSegment, isOAuth bool) any {
	if len(systems) == 0 {
		return nil
	}

	if isOAuth {
		blocks := make([]wireBlock, 0, len(systems)+1)
		blocks = append(blocks, wireBlock{Type: "text", Text: oauthIdentity})
		for idx, seg := range systems {
			text := seg.text
			if idx == 0 {
				text = oauthIdentityDisclaim + text
			}
			b := wireBlock{Type: "text", Text: text}
			if seg.cache || idx == len(systems)-1 {
				b.CacheControl = ephemeralCache()
			}
			blocks = append(blocks, b)
		}
		return blocks
	}

	lastCacheIdx := -1
	for idx, seg := range systems {
		if seg.cache {
			lastCacheIdx = idx
		}
	}

	if lastCacheIdx > 0 {
		blocks := make([]wireBlock, 0, len(systems))
		for idx, seg := range systems {
			b := wireBlock{Type: "text", Text: seg.text}
			if idx == lastCacheIdx {
				b.CacheControl = ephemeralCache()
			}
			blocks = append(blocks, b)
		}
		return blocks
	}

	texts := make([]string, 0, len(systems))
	for _, seg := range systems {
		texts = append(texts, seg.text)
	}
	return strings.Join(texts, "\n\n")
}

// textOrCachedBlock emits plain-string content, or a one-element annotated
// array when the message is cache-flagged.
func textOrCachedBlock(text string, cached bool) any {
	if !cached {
		return text
	}
	return []wireBlock{{Type: "text", Text: text, CacheControl: ephemeralCache()}}
}

// applyCacheToLast annotates the last element only. Annotation is best
// effort: an empty sequence is returned untouched.
func applyCacheToLast(blocks []wireBlock, cached bool) []wireBlock {
	if cached && len(blocks) > 0 {
		blocks[len(blocks)-1].CacheControl = ephemeralCache()
	}
	return blocks
}

func toolUseBlock(id, name string, input json.RawMessage) wireBlock {
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}
	return wireBlock{Type: "tool_use", ID: id, Name: name, Input: input}
}

func partsToBlocks(parts []chat.ContentPart) []wireBlock {
	var blocks []wireBlock
	for _, part := range parts {
		switch p := part.(type) {
		case chat.TextPart:
			blocks = append(blocks, wireBlock{Type: "text", Text: p.Text})
		case chat.ImagePart:
			switch src := p.Source.(type) {
			case chat.ImageURL:
				blocks = append(blocks, wireBlock{Type: "image", Source: &imageSource{Type: "url", URL: string(src)}})
			case chat.ImageBase64:
				blocks = append(blocks, wireBlock{Type: "image", Source: &imageSource{Type: "base64", MediaType: p.ContentType, Data: string(src)}})
			}
		}
	}
	return blocks
}

func contentBlocksToWire(blocks []chat.ContentBlock) []wireBlock {
	out := make([]wireBlock, 0, len(blocks))
	for _, block := range blocks {
		switch b := block.(type) {
		case chat.TextBlock:
			out = append(out, wireBlock{Type: "text", Text: b.Text})
		case chat.ThinkingBlock:
			out = append(out, wireBlock{Type: "thinking", Thinking: b.Text, Signature: b.Signature})
		case chat.RedactedThinkingBlock:
			out = append(out, wireBlock{Type: "redacted_thinking", Data: b.Data})
		case chat.ToolUseBlock:
			out = append(out, toolUseBlock(b.ID, b.Name, b.Input))
		case chat.ToolResultBlock:
			out = append(out, wireBlock{Type: "tool_result", ToolUseID: b.ToolUseID, Content: b.Content})
		}
	}
	return out
}
