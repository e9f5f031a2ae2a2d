package chat

import (
	"context"
	"errors"
	"io"

	"llm-gateway/domain/adapter"
	"llm-gateway/domain/chat"
	"llm-gateway/domain/provider"
	"llm-gateway/infrastructure/registry"
	"llm-gateway/internal/webc"

	"github.com/sirupsen/logrus"
)

// TargetConfig overrides an adapter's default endpoint/credential.
type TargetConfig struct {
	BaseURL string
	APIKey  string
}

// Service orchestrates one chat call: resolve the target, translate the
// request, execute it through the transport, decode the reply. Calls are
// independent and stateless relative to each other.
type Service struct {
	registry *registry.Registry
	client   webc.Doer
	targets  map[provider.Kind]TargetConfig
	defaults *chat.Options
}

func NewService(reg *registry.Registry, client webc.Doer, targets map[provider.Kind]TargetConfig, defaults *chat.Options) *Service {
	return &Service{
		registry: reg,
		client:   client,
		targets:  targets,
		defaults: defaults,
	}
}

// target builds the resolved destination, starting from the adapter's
// static defaults and applying configured overrides.
func (s *Service) target(a adapter.Adapter, model provider.ModelIden) provider.ServiceTarget {
	t := provider.ServiceTarget{
		Endpoint: a.DefaultEndpoint(),
		Auth:     a.DefaultAuth(),
		Model:    model,
	}
	if cfg, ok := s.targets[model.Kind]; ok {
		if cfg.BaseURL != "" {
			t.Endpoint = provider.Endpoint{BaseURL: cfg.BaseURL}
		}
		if cfg.APIKey != "" {
			t.Auth = provider.AuthFromKey(cfg.APIKey)
		}
	}
	return t
}

// wrapStatus lifts a transport status error into the typed provider error.
func wrapStatus(err error, model provider.ModelIden) error {
	var se *webc.StatusError
	if errors.As(err, &se) {
		return &provider.APIError{Model: model, Status: se.Status, Body: se.Body}
	}
	return err
}

// Chat executes a non-streaming chat call.
func (s *Service) Chat(ctx context.Context, modelName string, req *chat.Request, opts *chat.Options) (*chat.Response, error) {
	a, model, err := s.registry.Resolve(modelName)
	if err != nil {
		return nil, err
	}
	optsSet := chat.NewOptionsSet(opts, s.defaults)

	data, err := a.ToWebRequestData(s.target(a, model), provider.ServiceChat, req, optsSet)
	if err != nil {
		return nil, err
	}

	body, err := s.client.Do(ctx, data)
	if err != nil {
		return nil, wrapStatus(err, model)
	}

	resp, err := a.ToChatResponse(model, body, optsSet)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"model":             model.String(),
		"provider_model":    resp.ProviderModel.Name,
		"prompt_tokens":     resp.Usage.PromptTokens,
		"completion_tokens": resp.Usage.CompletionTokens,
	}).Debug("Chat call completed")

	return resp, nil
}

// Stream executes a streaming chat call and returns the live canonical
// stream. The caller owns closing it.
func (s *Service) Stream(ctx context.Context, modelName string, req *chat.Request, opts *chat.Options) (chat.Stream, error) {
	a, model, err := s.registry.Resolve(modelName)
	if err != nil {
		return nil, err
	}
	optsSet := chat.NewOptionsSet(opts, s.defaults)

	data, err := a.ToWebRequestData(s.target(a, model), provider.ServiceChatStream, req, optsSet)
	if err != nil {
		return nil, err
	}

	body, err := s.client.Stream(ctx, data)
	if err != nil {
		return nil, wrapStatus(err, model)
	}

	return a.ToChatStream(model, body, optsSet)
}

// StreamForEach drains a streaming call through a callback. It stops on
// the first handler error or context cancellation and always releases the
// stream.
func (s *Service) StreamForEach(ctx context.Context, modelName string, req *chat.Request, opts *chat.Options, handler chat.StreamHandler) error {
	stream, err := s.Stream(ctx, modelName, req, opts)
	if err != nil {
		return err
	}
	defer stream.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		ev, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := handler(ev); err != nil {
			return err
		}
	}
}

// Models lists the catalog of every registered adapter.
func (s *Service) Models() map[provider.Kind][]string {
	out := make(map[provider.Kind][]string)
	for _, kind := range s.registry.Kinds() {
		a, err := s.registry.Get(kind)
		if err != nil {
			continue
		}
		out[kind] = a.AllModelNames()
	}
	return out
}
