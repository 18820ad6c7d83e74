package llmprovider

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies failures so callers can branch on category without
// string matching.
type ErrorKind string

const (
	// ErrorKindValidation: the request violates a vendor constraint; caught before any network call.
	ErrorKindValidation ErrorKind = "validation"
	// ErrorKindUnknownModel: no routing rule (or no registered provider) matches the model.
	ErrorKindUnknownModel ErrorKind = "unknown_model"
	// ErrorKindNoProviders: the registry has no adapters at all.
	ErrorKindNoProviders ErrorKind = "no_providers"
	// ErrorKindTransport: propagated opaquely from the transport.
	ErrorKindTransport ErrorKind = "transport"
	// ErrorKindProtocol: a fragment does not match the vendor's documented shape or arrives after a terminal event.
	ErrorKindProtocol ErrorKind = "protocol"
	// ErrorKindVendor: the vendor reported a failure explicitly.
	ErrorKindVendor ErrorKind = "vendor"
)

// Sentinel errors for common failure modes.
// These can be checked with errors.Is().
var (
	// ErrInvalidRequest indicates the request parameters are invalid.
	ErrInvalidRequest = errors.New("llmprovider: invalid request")

	// ErrUnknownModel indicates no provider can serve the requested model.
	ErrUnknownModel = errors.New("llmprovider: unknown model")

	// ErrNoProvidersConfigured indicates the registry holds no adapters.
	ErrNoProvidersConfigured = errors.New("llmprovider: no providers configured")

	// ErrTransport indicates the transport failed to deliver the request or the stream.
	ErrTransport = errors.New("llmprovider: transport error")

	// ErrProtocol indicates the vendor sent data that violates its wire protocol.
	ErrProtocol = errors.New("llmprovider: protocol error")

	// ErrVendor indicates the vendor reported an error.
	ErrVendor = errors.New("llmprovider: vendor error")

	// ErrInvalidAPIKey indicates the API key is missing, malformed, or unauthorized.
	ErrInvalidAPIKey = errors.New("llmprovider: invalid API key")

	// ErrRateLimited indicates the provider's rate limit has been exceeded.
	ErrRateLimited = errors.New("llmprovider: rate limit exceeded")
)

// sentinelForKind maps an ErrorKind to the sentinel errors.Is matches against.
func sentinelForKind(kind ErrorKind) error {
	switch kind {
	case ErrorKindValidation:
		return ErrInvalidRequest
	case ErrorKindUnknownModel:
		return ErrUnknownModel
	case ErrorKindNoProviders:
		return ErrNoProvidersConfigured
	case ErrorKindTransport:
		return ErrTransport
	case ErrorKindProtocol:
		return ErrProtocol
	case ErrorKindVendor:
		return ErrVendor
	default:
		return nil
	}
}

// ModelError represents a routing failure for a model.
type ModelError struct {
	Model    string // The model that was requested
	Provider string // The provider name, if one was matched
	Reason   string // Human-readable explanation
	Err      error  // Wrapped sentinel (ErrUnknownModel or ErrNoProvidersConfigured)
}

func (e *ModelError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("model '%s' for provider '%s': %s (%v)", e.Model, e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("model '%s': %s (%v)", e.Model, e.Reason, e.Err)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// ValidationError represents an error in request validation.
type ValidationError struct {
	Field  string // The parameter field that failed validation
	Value  any    // The invalid value
	Reason string // Human-readable explanation
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation failed for '%s' (value: %v): %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("validation failed for '%s': %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is(err, ErrInvalidRequest) match every validation failure.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidRequest
}

// TransportError wraps a failure reported by the transport without interpreting it.
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("provider '%s' transport: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// ProviderError represents an error response from the provider API, either an
// HTTP error status or an error body.
type ProviderError struct {
	Provider   string        // The provider name
	StatusCode int           // HTTP status code (if applicable)
	Code       string        // Vendor error type/code (e.g. "overloaded_error")
	Message    string        // Error message from provider
	RetryAfter time.Duration // Retry-After hint, zero when absent
	Retryable  bool          // Whether this error is potentially retryable
	Err        error         // Wrapped sentinel (ErrRateLimited, ErrInvalidAPIKey, ...)
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider '%s' error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider '%s' error: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrVendor, e.Err}
	}
	return []error{ErrVendor}
}

// StreamError is the payload of an Error stream event and the error returned
// by a decoder that receives data after its terminal event.
type StreamError struct {
	Kind     ErrorKind
	Message  string
	Provider string
	Code     string // Vendor error code for ErrorKindVendor
}

func (e *StreamError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s stream %s error: %s", e.Provider, e.Kind, e.Message)
	}
	return fmt.Sprintf("stream %s error: %s", e.Kind, e.Message)
}

// Is matches the sentinel for the error's kind.
func (e *StreamError) Is(target error) bool {
	sentinel := sentinelForKind(e.Kind)
	return sentinel != nil && target == sentinel
}

// NewProtocolError builds a protocol StreamError.
func NewProtocolError(provider ProviderID, format string, args ...any) *StreamError {
	return &StreamError{Kind: ErrorKindProtocol, Provider: provider.String(), Message: fmt.Sprintf(format, args...)}
}

// NewVendorError builds a vendor StreamError.
func NewVendorError(provider ProviderID, code, message string) *StreamError {
	return &StreamError{Kind: ErrorKindVendor, Provider: provider.String(), Code: code, Message: message}
}

// KindOf reports the ErrorKind of err, or "" when err is not one of ours.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var streamErr *StreamError
	if errors.As(err, &streamErr) {
		return streamErr.Kind
	}
	for _, kind := range []ErrorKind{
		ErrorKindValidation,
		ErrorKindNoProviders,
		ErrorKindUnknownModel,
		ErrorKindTransport,
		ErrorKindProtocol,
		ErrorKindVendor,
	} {
		if errors.Is(err, sentinelForKind(kind)) {
			return kind
		}
	}
	return ""
}

// IsRetryable checks if an error is potentially retryable.
// The library itself never retries; this is classification for callers.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Retryable
	}

	if errors.Is(err, ErrRateLimited) {
		return true
	}

	// Network failures are worth another attempt
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}

// IsInvalidRequest checks if an error indicates invalid request parameters.
// These errors are not retryable and require request changes.
func IsInvalidRequest(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrInvalidRequest) || errors.Is(err, ErrUnknownModel)
}

// IsAuthError checks if an error is related to authentication.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrInvalidAPIKey) {
		return true
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		// HTTP 401/403 indicate auth issues
		return providerErr.StatusCode == 401 || providerErr.StatusCode == 403
	}

	return false
}
