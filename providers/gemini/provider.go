package gemini

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/haowjy/unillm-go"
)

// DefaultBaseURL is the public Gemini API endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Adapter implements llmprovider.Adapter for the Gemini generateContent API.
type Adapter struct {
	apiKey  string
	baseURL string
	headers llmprovider.Headers
	catalog *llmprovider.Catalog
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithBaseURL overrides the API base URL (up to and including the version).
func WithBaseURL(baseURL string) Option {
	return func(a *Adapter) { a.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithHeaders adds default headers sent with every request.
func WithHeaders(h llmprovider.Headers) Option {
	return func(a *Adapter) { a.headers = a.headers.Merge(h) }
}

// WithCatalog sets the catalog used for thinking budgets.
func WithCatalog(c *llmprovider.Catalog) Option {
	return func(a *Adapter) { a.catalog = c }
}

// NewAdapter creates a Gemini adapter with the given API key.
func NewAdapter(apiKey string, opts ...Option) (*Adapter, error) {
	if apiKey == "" {
		return nil, llmprovider.ErrInvalidAPIKey
	}

	a := &Adapter{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		headers: llmprovider.Headers{},
		catalog: llmprovider.DefaultCatalog(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Factory builds an adapter from a discovered credential.
func Factory(cred llmprovider.Credential) (llmprovider.Adapter, error) {
	var opts []Option
	if cred.BaseURL != "" {
		opts = append(opts, WithBaseURL(cred.BaseURL))
	}
	return NewAdapter(cred.APIKey, opts...)
}

// Name returns the provider identifier.
func (a *Adapter) Name() llmprovider.ProviderID {
	return llmprovider.ProviderGoogle
}

// Encode builds the generateContent (or streamGenerateContent) payload.
func (a *Adapter) Encode(req *llmprovider.GenerateRequest, stream bool) (*llmprovider.Payload, error) {
	if req == nil {
		return nil, &llmprovider.ValidationError{Field: "request", Reason: "request is nil"}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	model := strings.TrimPrefix(req.Model, "models/")
	if model == "" {
		return nil, &llmprovider.ValidationError{Field: "model", Reason: "gemini requests name the model in the URL"}
	}

	body, err := buildGenerateContentRequest(req, a.catalog)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal gemini request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", a.baseURL, url.PathEscape(model))
	if stream {
		endpoint = fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", a.baseURL, url.PathEscape(model))
	}

	h := llmprovider.NewHeaders(
		"x-goog-api-key", a.apiKey,
		"Content-Type", "application/json",
	)
	if stream {
		h.Set("Accept", "text/event-stream")
	}

	return &llmprovider.Payload{
		Provider: a.Name(),
		Method:   http.MethodPost,
		URL:      endpoint,
		Header:   h.Merge(a.headers).Merge(req.Headers).HTTPHeader(),
		Body:     data,
		Stream:   stream,
	}, nil
}

// Decode converts a buffered generateContent response. A whole response has
// the same shape as one stream chunk carrying a finishReason.
func (a *Adapter) Decode(body []byte) (*llmprovider.Response, error) {
	dec := llmprovider.NewStreamDecoder(llmprovider.ProviderGoogle, newChunkDecoder().step)
	events, err := llmprovider.DecodeAll(dec, llmprovider.Fragment{Data: body})
	if err != nil {
		return nil, err
	}
	return llmprovider.ResponseFromEvents(events)
}

// NewStreamDecoder returns a decoder for one alt=sse chunk stream.
func (a *Adapter) NewStreamDecoder() llmprovider.StreamDecoder {
	return llmprovider.NewStreamDecoder(llmprovider.ProviderGoogle, newChunkDecoder().step)
}
