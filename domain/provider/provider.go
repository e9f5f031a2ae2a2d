package provider

// Provider identity and resolution types shared by every vendor adapter.

import (
	"fmt"
	"os"
	"strings"
)

// Kind identifies a vendor adapter.
type Kind string

const (
	KindAnthropic  Kind = "anthropic"
	KindOpenRouter Kind = "openrouter"
)

// ServiceType selects which vendor service an operation targets.
type ServiceType string

const (
	ServiceChat       ServiceType = "chat"
	ServiceChatStream ServiceType = "chat_stream"
	ServiceEmbed      ServiceType = "embed"
)

// ModelIden pairs a model name with the adapter that serves it. The
// identity the caller requested and the identity the provider reports back
// are distinct records.
type ModelIden struct {
	Kind Kind
	Name string
}

// WithName returns a ModelIden for the same adapter with the given name,
// or the receiver unchanged when name is empty.
func (m ModelIden) WithName(name string) ModelIden {
	if name == "" || name == m.Name {
		return m
	}
	return ModelIden{Kind: m.Kind, Name: name}
}

func (m ModelIden) String() string {
	return fmt.Sprintf("%s:%s", m.Kind, m.Name)
}

// Endpoint is a provider base URL.
type Endpoint struct {
	BaseURL string
}

// AuthData locates a credential: either a literal key or the name of an
// environment variable holding one. Resolution happens per call.
type AuthData struct {
	Key     string
	EnvName string
}

// AuthFromKey returns AuthData carrying a literal credential.
func AuthFromKey(key string) AuthData { return AuthData{Key: key} }

// AuthFromEnv returns AuthData referencing an environment variable.
func AuthFromEnv(name string) AuthData { return AuthData{EnvName: name} }

// ResolveKey returns the usable credential, or an AuthError when none is
// available.
func (a AuthData) ResolveKey(model ModelIden) (string, error) {
	if a.Key != "" {
		return a.Key, nil
	}
	if a.EnvName != "" {
		if v := strings.TrimSpace(os.Getenv(a.EnvName)); v != "" {
			return v, nil
		}
		return "", &AuthError{Model: model, EnvName: a.EnvName}
	}
	return "", &AuthError{Model: model}
}

// ServiceTarget is the fully resolved destination of one call.
type ServiceTarget struct {
	Endpoint Endpoint
	Auth     AuthData
	Model    ModelIden
}

// WebRequestData is the adapter's sole request output: everything the
// transport needs to execute the call. Ownership transfers to the transport.
type WebRequestData struct {
	URL     string
	Headers map[string]string
	Payload []byte
}
