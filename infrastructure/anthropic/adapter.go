package anthropic

import (
	"strings"

	"llm-gateway/domain/adapter"
	"llm-gateway/domain/embed"
	"llm-gateway/domain/provider"
)

var _ adapter.Adapter = (*Adapter)(nil)

// Adapter translates between the canonical chat model and the Anthropic
// Messages API wire format. It builds requests and decodes responses;
// executing the HTTP call is the transport's job.
type Adapter struct{}

func New() *Adapter { return &Adapter{} }

const (
	apiVersion    = "2023-06-01"
	oauthBeta     = "oauth-2025-04-20"
	apiKeyEnvName = "ANTHROPIC_API_KEY"
	defaultBase   = "https://api.anthropic.com/v1/"
)

// Anthropic requires max_tokens on every request. When the caller sets no
// limit, the default is the model family's maximum so callers are not
// surprised by truncation.
const (
	maxTokens64K = 64000 // claude-3-7-sonnet, claude-sonnet-4
	maxTokens32K = 32000 // claude-opus-4
	maxTokens8K  = 8192  // claude-3-5-sonnet, claude-3-5-haiku
	maxTokens4K  = 4096  // claude-3-opus, claude-3-haiku
)

var modelNames = []string{
	"claude-opus-4-1-20250805",
	"claude-opus-4-20250514",
	"claude-sonnet-4-5-20250929",
	"claude-sonnet-4-20250514",
	"claude-3-7-sonnet-latest",
	"claude-haiku-4-5-20251001",
	"claude-3-5-haiku-latest",
	"claude-3-opus-20240229",
	"claude-3-haiku-20240307",
}

func (a *Adapter) Kind() provider.Kind { return provider.KindAnthropic }

func (a *Adapter) DefaultEndpoint() provider.Endpoint {
	return provider.Endpoint{BaseURL: defaultBase}
}

func (a *Adapter) DefaultAuth() provider.AuthData {
	return provider.AuthFromEnv(apiKeyEnvName)
}

// AllModelNames returns the common models. The catalog is approximate.
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
	case provider.ServiceChat, provider.ServiceChatStream:
		return base + "messages"
	case provider.ServiceEmbed:
		// Anthropic does not serve embeddings; the URL is never used.
		return base + "embeddings"
	}
	return base + "messages"
}

func (a *Adapter) ToEmbedRequestData(_ provider.ServiceTarget, _ *embed.Request, _ *embed.Options) (*provider.WebRequestData, error) {
	return nil, &provider.NotSupportedError{Kind: provider.KindAnthropic, Feature: "embeddings"}
}

func (a *Adapter) ToEmbedResponse(_ provider.ModelIden, _ []byte, _ *embed.Options) (*embed.Response, error) {
	return nil, &provider.NotSupportedError{Kind: provider.KindAnthropic, Feature: "embeddings"}
}

// supportsThinking reports whether the model family offers extended
// reasoning. Unknown models fail open to "no" so the optional capability
// degrades instead of erroring.
func supportsThinking(modelName string) bool {
	return strings.Contains(modelName, "claude-opus-4") ||
		strings.Contains(modelName, "claude-sonnet-4") ||
		strings.Contains(modelName, "claude-3-7-sonnet") ||
		strings.Contains(modelName, "claude-haiku-4-5")
}

// isClaude45 reports whether the model requires temperature/top_p
// exclusivity.
func isClaude45(modelName string) bool {
	return strings.Contains(modelName, "-4-5-")
}

// defaultMaxTokens picks the output-token ceiling for a model family when
// the caller supplies none. Pure function of the model name.
func defaultMaxTokens(modelName string) int {
	switch {
	case strings.Contains(modelName, "claude-sonnet") || strings.Contains(modelName, "claude-3-7-sonnet"):
		return maxTokens64K
	case strings.Contains(modelName, "claude-opus-4"):
		return maxTokens32K
	case strings.Contains(modelName, "claude-3-5"):
		return maxTokens8K
	case strings.Contains(modelName, "3-opus") || strings.Contains(modelName, "3-haiku"):
		return maxTokens4K
	default:
		return maxTokens64K
	}
}
