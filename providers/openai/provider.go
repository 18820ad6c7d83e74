package openai

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/haowjy/unillm-go"
)

// DefaultBaseURL is the public OpenAI API endpoint.
const DefaultBaseURL = "https://api.openai.com/v1"

// Adapter implements llmprovider.Adapter for the OpenAI Chat Completions API.
// It also serves OpenAI-compatible endpoints through WithBaseURL.
type Adapter struct {
	apiKey       string
	baseURL      string
	organization string
	project      string
	headers      llmprovider.Headers
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithBaseURL overrides the API base URL (without the /chat/completions suffix).
func WithBaseURL(url string) Option {
	return func(a *Adapter) { a.baseURL = strings.TrimRight(url, "/") }
}

// WithOrganization sets the OpenAI-Organization header.
func WithOrganization(org string) Option {
	return func(a *Adapter) { a.organization = org }
}

// WithProject sets the OpenAI-Project header.
func WithProject(project string) Option {
	return func(a *Adapter) { a.project = project }
}

// WithHeaders adds default headers sent with every request. Request headers
// override them.
func WithHeaders(h llmprovider.Headers) Option {
	return func(a *Adapter) { a.headers = a.headers.Merge(h) }
}

// NewAdapter creates an OpenAI adapter with the given API key.
func NewAdapter(apiKey string, opts ...Option) (*Adapter, error) {
	if apiKey == "" {
		return nil, llmprovider.ErrInvalidAPIKey
	}

	a := &Adapter{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		headers: llmprovider.Headers{},
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
	return llmprovider.ProviderOpenAI
}

// Encode builds the Chat Completions payload for req.
func (a *Adapter) Encode(req *llmprovider.GenerateRequest, stream bool) (*llmprovider.Payload, error) {
	if req == nil {
		return nil, &llmprovider.ValidationError{Field: "request", Reason: "request is nil"}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	chatReq, err := buildChatCompletionRequest(req, stream)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal openai request: %w", err)
	}

	return &llmprovider.Payload{
		Provider: a.Name(),
		Method:   http.MethodPost,
		URL:      a.baseURL + "/chat/completions",
		Header:   a.requestHeaders(req.Headers, stream).HTTPHeader(),
		Body:     body,
		Stream:   stream,
	}, nil
}

// requestHeaders layers auth and content headers, adapter defaults and the
// request's own headers, later layers winning.
func (a *Adapter) requestHeaders(overlay llmprovider.Headers, stream bool) llmprovider.Headers {
	h := llmprovider.NewHeaders(
		"Authorization", "Bearer "+a.apiKey,
		"Content-Type", "application/json",
	)
	if stream {
		h.Set("Accept", "text/event-stream")
	}
	if a.organization != "" {
		h.Set("OpenAI-Organization", a.organization)
	}
	if a.project != "" {
		h.Set("OpenAI-Project", a.project)
	}
	return h.Merge(a.headers).Merge(overlay)
}

// Decode converts a buffered chat.completion body. The body runs through the
// same block transitions as a stream.
func (a *Adapter) Decode(body []byte) (*llmprovider.Response, error) {
	dec := llmprovider.NewStreamDecoder(llmprovider.ProviderOpenAI, stepCompletion)
	events, err := llmprovider.DecodeAll(dec, llmprovider.Fragment{Data: body})
	if err != nil {
		return nil, err
	}
	return llmprovider.ResponseFromEvents(events)
}

// NewStreamDecoder returns a decoder for one chat.completion.chunk stream.
func (a *Adapter) NewStreamDecoder() llmprovider.StreamDecoder {
	return llmprovider.NewStreamDecoder(llmprovider.ProviderOpenAI, stepChunk)
}
