package anthropic

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/sjson"

	"github.com/haowjy/unillm-go"
)

const (
	// DefaultBaseURL is the public Anthropic API endpoint.
	DefaultBaseURL = "https://api.anthropic.com/v1"

	// DefaultVersion is the anthropic-version header value.
	DefaultVersion = "2023-06-01"
)

// Adapter implements llmprovider.Adapter for the Anthropic Messages API.
type Adapter struct {
	apiKey  string
	baseURL string
	version string
	betas   []string
	headers llmprovider.Headers
	catalog *llmprovider.Catalog
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithBaseURL overrides the API base URL (without the /messages suffix).
func WithBaseURL(url string) Option {
	return func(a *Adapter) { a.baseURL = strings.TrimRight(url, "/") }
}

// WithVersion overrides the anthropic-version header.
func WithVersion(version string) Option {
	return func(a *Adapter) { a.version = version }
}

// WithBetas enables beta features through the anthropic-beta header.
func WithBetas(betas ...string) Option {
	return func(a *Adapter) { a.betas = append(a.betas, betas...) }
}

// WithHeaders adds default headers sent with every request. Request headers
// override them.
func WithHeaders(h llmprovider.Headers) Option {
	return func(a *Adapter) { a.headers = a.headers.Merge(h) }
}

// WithCatalog sets the catalog used for max_tokens and thinking budget
// defaults.
func WithCatalog(c *llmprovider.Catalog) Option {
	return func(a *Adapter) { a.catalog = c }
}

// NewAdapter creates an Anthropic adapter with the given API key.
func NewAdapter(apiKey string, opts ...Option) (*Adapter, error) {
	if apiKey == "" {
		return nil, llmprovider.ErrInvalidAPIKey
	}

	a := &Adapter{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		version: DefaultVersion,
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
	return llmprovider.ProviderAnthropic
}

// Encode builds the Messages API payload for req.
func (a *Adapter) Encode(req *llmprovider.GenerateRequest, stream bool) (*llmprovider.Payload, error) {
	if req == nil {
		return nil, &llmprovider.ValidationError{Field: "request", Reason: "request is nil"}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	params, err := buildMessageParams(req, a.catalog)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal anthropic request: %w", err)
	}
	if req.Params != nil {
		if body, err = applySchemaExtras(body, req.Params.Tools); err != nil {
			return nil, fmt.Errorf("failed to encode tool schemas: %w", err)
		}
	}
	// MessageNewParams has no stream field; the SDK sets it per call
	if stream {
		if body, err = sjson.SetBytes(body, "stream", true); err != nil {
			return nil, fmt.Errorf("failed to set stream flag: %w", err)
		}
	}

	return &llmprovider.Payload{
		Provider: a.Name(),
		Method:   http.MethodPost,
		URL:      a.baseURL + "/messages",
		Header:   a.requestHeaders(req.Headers, stream).HTTPHeader(),
		Body:     body,
		Stream:   stream,
	}, nil
}

func (a *Adapter) requestHeaders(overlay llmprovider.Headers, stream bool) llmprovider.Headers {
	h := llmprovider.NewHeaders(
		"x-api-key", a.apiKey,
		"anthropic-version", a.version,
		"content-type", "application/json",
	)
	if stream {
		h.Set("accept", "text/event-stream")
	}
	if len(a.betas) > 0 {
		h.Set("anthropic-beta", strings.Join(a.betas, ","))
	}
	return h.Merge(a.headers).Merge(overlay)
}

// Decode converts a buffered Messages API response.
func (a *Adapter) Decode(body []byte) (*llmprovider.Response, error) {
	dec := llmprovider.NewStreamDecoder(llmprovider.ProviderAnthropic, stepMessage)
	events, err := llmprovider.DecodeAll(dec, llmprovider.Fragment{Data: body})
	if err != nil {
		return nil, err
	}
	return llmprovider.ResponseFromEvents(events)
}

// NewStreamDecoder returns a decoder for one Messages API event stream.
func (a *Adapter) NewStreamDecoder() llmprovider.StreamDecoder {
	d := &eventDecoder{skipped: make(map[int64]bool)}
	return llmprovider.NewStreamDecoder(llmprovider.ProviderAnthropic, d.step)
}
