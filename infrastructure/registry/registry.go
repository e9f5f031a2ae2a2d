package registry

import (
	"fmt"
	"strings"

	"llm-gateway/domain/adapter"
	"llm-gateway/domain/provider"
)

// Registry maps adapter kinds to adapter instances and infers the kind
// serving a model name. The tables are read-only after construction.
type Registry struct {
	adapters map[provider.Kind]adapter.Adapter
}

func New(adapters ...adapter.Adapter) *Registry {
	m := make(map[provider.Kind]adapter.Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Kind()] = a
	}
	return &Registry{adapters: m}
}

// Get returns the adapter for a kind.
func (r *Registry) Get(kind provider.Kind) (adapter.Adapter, error) {
	a, ok := r.adapters[kind]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for kind %q", kind)
	}
	return a, nil
}

// Kinds lists the registered kinds.
func (r *Registry) Kinds() []provider.Kind {
	kinds := make([]provider.Kind, 0, len(r.adapters))
	for k := range r.adapters {
		kinds = append(kinds, k)
	}
	return kinds
}

// InferKind guesses which adapter serves a model name. Direct Anthropic
// model ids start with "claude"; everything else routes through OpenRouter,
// whose ids are namespaced ("vendor/model").
func (r *Registry) InferKind(modelName string) provider.Kind {
	if strings.HasPrefix(modelName, "claude") {
		if _, ok := r.adapters[provider.KindAnthropic]; ok {
			return provider.KindAnthropic
		}
	}
	return provider.KindOpenRouter
}

// Resolve returns the adapter and model identity for a model name.
func (r *Registry) Resolve(modelName string) (adapter.Adapter, provider.ModelIden, error) {
	kind := r.InferKind(modelName)
	a, err := r.Get(kind)
	if err != nil {
		return nil, provider.ModelIden{}, err
	}
	return a, provider.ModelIden{Kind: kind, Name: modelName}, nil
}
