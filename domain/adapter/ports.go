package adapter

import (
	"io"

	"llm-gateway/domain/chat"
	"llm-gateway/domain/embed"
	"llm-gateway/domain/provider"
)

// Adapter is the uniform operation set every vendor adapter implements.
// Request construction and response decoding are pure transforms; the
// transport collaborator executes the HTTP call in between.
type Adapter interface {
	// Kind identifies the vendor.
	Kind() provider.Kind

	// DefaultEndpoint and DefaultAuth are the static provider defaults
	// used when the caller resolves no explicit target.
	DefaultEndpoint() provider.Endpoint
	DefaultAuth() provider.AuthData

	// AllModelNames lists the commonly served models. The catalog may be
	// approximate.
	AllModelNames() []string

	// ServiceURL builds the request URL. Pure function of its inputs.
	ServiceURL(model provider.ModelIden, service provider.ServiceType, endpoint provider.Endpoint) string

	// ToWebRequestData translates the canonical request into the vendor
	// wire format. Fails when the target lacks a usable credential or a
	// required provider-side invariant cannot be satisfied.
	ToWebRequestData(target provider.ServiceTarget, service provider.ServiceType, req *chat.Request, opts chat.OptionsSet) (*provider.WebRequestData, error)

	// ToChatResponse decodes a complete vendor response body. Fails with a
	// typed extraction error when a mandatory field is absent or malformed.
	ToChatResponse(model provider.ModelIden, body []byte, opts chat.OptionsSet) (*chat.Response, error)

	// ToChatStream wraps a live vendor byte stream. It never blocks beyond
	// initiating the decode; fragments are pulled by the consumer.
	ToChatStream(model provider.ModelIden, body io.ReadCloser, opts chat.OptionsSet) (chat.Stream, error)

	// Embedding translation. Vendors without embedding support return
	// *provider.NotSupportedError.
	ToEmbedRequestData(target provider.ServiceTarget, req *embed.Request, opts *embed.Options) (*provider.WebRequestData, error)
	ToEmbedResponse(model provider.ModelIden, body []byte, opts *embed.Options) (*embed.Response, error)
}
