package embed

import (
	"llm-gateway/domain/chat"
	"llm-gateway/domain/provider"
)

// Request is a vendor-neutral embedding request.
type Request struct {
	Inputs []string
}

// Options are the embedding generation options.
type Options struct {
	// Dimensions requests a reduced output dimensionality where the vendor
	// supports it.
	Dimensions *int
	// EncodingFormat selects the vendor's vector encoding, e.g. "float".
	EncodingFormat string
}

// Response is the decoded result of an embedding call.
type Response struct {
	Model         provider.ModelIden
	ProviderModel provider.ModelIden
	Embeddings    [][]float64
	Usage         chat.Usage
}
