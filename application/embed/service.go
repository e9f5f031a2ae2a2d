package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	appchat "llm-gateway/application/chat"
	"llm-gateway/domain/embed"
	"llm-gateway/domain/provider"
	"llm-gateway/infrastructure/registry"
	"llm-gateway/internal/webc"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
)

const defaultCacheSize = 1000

// Service orchestrates embedding calls for adapters that support them and
// caches vectors so repeated inputs do not hit the provider again.
type Service struct {
	registry *registry.Registry
	client   webc.Doer
	targets  map[provider.Kind]appchat.TargetConfig
	cache    *lru.Cache[string, []float64]
}

func NewService(reg *registry.Registry, client webc.Doer, targets map[provider.Kind]appchat.TargetConfig, cacheSize int) (*Service, error) {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New[string, []float64](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	return &Service{
		registry: reg,
		client:   client,
		targets:  targets,
		cache:    cache,
	}, nil
}

func cacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// Embed returns one vector per input, in input order. Cached vectors are
// served without a provider call; only the misses go out.
func (s *Service) Embed(ctx context.Context, modelName string, inputs []string, opts *embed.Options) ([][]float64, error) {
	a, model, err := s.registry.Resolve(modelName)
	if err != nil {
		return nil, err
	}

	out := make([][]float64, len(inputs))
	var missing []string
	var missingIdx []int
	for i, text := range inputs {
		if vec, ok := s.cache.Get(cacheKey(modelName, text)); ok {
			out[i] = vec
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return out, nil
	}

	target := provider.ServiceTarget{
		Endpoint: a.DefaultEndpoint(),
		Auth:     a.DefaultAuth(),
		Model:    model,
	}
	if cfg, ok := s.targets[model.Kind]; ok {
		if cfg.BaseURL != "" {
			target.Endpoint = provider.Endpoint{BaseURL: cfg.BaseURL}
		}
		if cfg.APIKey != "" {
			target.Auth = provider.AuthFromKey(cfg.APIKey)
		}
	}

	data, err := a.ToEmbedRequestData(target, &embed.Request{Inputs: missing}, opts)
	if err != nil {
		return nil, err
	}

	body, err := s.client.Do(ctx, data)
	if err != nil {
		var se *webc.StatusError
		if errors.As(err, &se) {
			return nil, &provider.APIError{Model: model, Status: se.Status, Body: se.Body}
		}
		return nil, err
	}

	resp, err := a.ToEmbedResponse(model, body, opts)
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(missing) {
		return nil, &provider.ExtractError{Model: model, Field: "data",
			Cause: fmt.Errorf("expected %d embeddings, got %d", len(missing), len(resp.Embeddings))}
	}

	for i, vec := range resp.Embeddings {
		out[missingIdx[i]] = vec
		s.cache.Add(cacheKey(modelName, missing[i]), vec)
	}

	logrus.WithFields(logrus.Fields{
		"model":  model.String(),
		"inputs": len(inputs),
		"misses": len(missing),
	}).Debug("Embedding call completed")

	return out, nil
}
