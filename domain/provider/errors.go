package provider

import "fmt"

// NotSupportedError reports a capability a vendor does not offer. It is
// surfaced immediately and never retried.
type NotSupportedError struct {
	Kind    Kind
	Feature string
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("adapter %s does not support %s", e.Kind, e.Feature)
}

// AuthError reports that no usable credential could be resolved for a call.
type AuthError struct {
	Model   ModelIden
	EnvName string
}

func (e *AuthError) Error() string {
	if e.EnvName != "" {
		return fmt.Sprintf("no credential for %s: environment variable %s is not set", e.Model, e.EnvName)
	}
	return fmt.Sprintf("no credential for %s", e.Model)
}

// ExtractError reports a mandatory field missing or malformed in a vendor
// response. Retry policy is a transport concern, not handled here.
type ExtractError struct {
	Model ModelIden
	Field string
	Cause error
}

func (e *ExtractError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("decode %s response: field %q: %v", e.Model, e.Field, e.Cause)
	}
	return fmt.Sprintf("decode %s response: missing or malformed field %q", e.Model, e.Field)
}

func (e *ExtractError) Unwrap() error { return e.Cause }

// StreamError surfaces a vendor error event received mid-stream. It is the
// stream's terminal outcome; no fragment follows it.
type StreamError struct {
	Model   ModelIden
	Type    string
	Message string
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("%s stream error (%s): %s", e.Model.Kind, e.Type, e.Message)
}

// APIError carries a non-2xx provider reply back to the caller.
type APIError struct {
	Model  ModelIden
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error: status %d: %s", e.Model.Kind, e.Status, e.Body)
}
