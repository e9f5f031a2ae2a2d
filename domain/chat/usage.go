package chat

// Usage is the normalized token accounting for one call. PromptTokens
// includes every input-side token class (fresh, cache-written, cache-read)
// so the headline counts are comparable across vendors that do or do not
// fold caching into them.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	// PromptTokensDetails is present only when some caching activity was
	// reported. A nil value means "no caching activity", not "zero
	// activity measured".
	PromptTokensDetails *PromptTokensDetails `json:"prompt_tokens_details,omitempty"`
}

// PromptTokensDetails breaks down the input-side token classes.
type PromptTokensDetails struct {
	CacheCreationTokens int `json:"cache_creation_tokens,omitempty"`
	CachedTokens        int `json:"cached_tokens,omitempty"`
	AudioTokens         int `json:"audio_tokens,omitempty"`
}
