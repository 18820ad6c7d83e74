// Package client is the one entry point most callers need: it routes a model
// name through a Registry, encodes with the chosen adapter, moves the payload
// over a Transport and decodes the result.
package client

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/haowjy/unillm-go"
	"github.com/haowjy/unillm-go/logger"
	"github.com/haowjy/unillm-go/transport"
)

// Client performs completions against whichever provider serves a model.
// It is safe for concurrent use; each Stream belongs to one goroutine.
type Client struct {
	registry  *llmprovider.Registry
	transport llmprovider.Transport
	logger    *slog.Logger
	validator *llmprovider.ValidationEngine
}

// Option configures a Client.
type Option func(*Client)

// WithTransport replaces the default HTTP transport.
func WithTransport(t llmprovider.Transport) Option {
	return func(c *Client) {
		if t != nil {
			c.transport = t
		}
	}
}

// WithLogger sets the logger for routing, lint warnings and stream lifecycle.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithValidator sets the engine whose warnings are logged before each call.
// A nil engine turns request linting off.
func WithValidator(v *llmprovider.ValidationEngine) Option {
	return func(c *Client) { c.validator = v }
}

// New creates a client over reg.
func New(reg *llmprovider.Registry, opts ...Option) *Client {
	c := &Client{
		registry:  reg,
		logger:    logger.Nop(),
		validator: llmprovider.DefaultValidationEngine(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.transport == nil {
		c.transport = transport.New(transport.WithLogger(c.logger))
	}
	return c
}

// Registry returns the registry the client routes with.
func (c *Client) Registry() *llmprovider.Registry {
	return c.registry
}

// call is a routed request ready to be sent.
type call struct {
	route   llmprovider.Route
	payload *llmprovider.Payload
}

// prepare routes model, rewrites the request to the bare model name, logs
// lint warnings and encodes. An empty model falls back to req.Model.
func (c *Client) prepare(model string, req *llmprovider.GenerateRequest, stream bool) (*call, error) {
	if req == nil {
		return nil, &llmprovider.ValidationError{Field: "request", Reason: "request is nil"}
	}
	if model == "" {
		model = req.Model
	}

	route, err := c.registry.Route(model)
	if err != nil {
		return nil, err
	}
	routed := req.With(llmprovider.WithModel(route.Model))
	c.logger.Debug("routed model", "model", model, "provider", route.Provider, "stream", stream)

	if c.validator != nil {
		for _, w := range c.validator.Validate(route.Provider, routed) {
			c.logger.Log(context.Background(), w.Severity.Level(), w.Message, w.LogAttrs(route.Provider)...)
		}
	}

	payload, err := route.Adapter.Encode(routed, stream)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", route.Provider, err)
	}
	return &call{route: route, payload: payload}, nil
}

// Generate performs a single-shot completion.
func (c *Client) Generate(ctx context.Context, model string, req *llmprovider.GenerateRequest) (*llmprovider.Response, error) {
	call, err := c.prepare(model, req, false)
	if err != nil {
		return nil, err
	}

	body, err := c.transport.Send(ctx, call.payload)
	if err != nil {
		return nil, err
	}
	resp, err := call.route.Adapter.Decode(body)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("completion finished",
		"provider", call.route.Provider,
		"model", resp.Model,
		"stop_reason", resp.StopReason,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
	)
	return resp, nil
}

// Stream opens a streaming completion. The caller must Close the stream or
// drain it to its terminal event.
func (c *Client) Stream(ctx context.Context, model string, req *llmprovider.GenerateRequest) (*Stream, error) {
	call, err := c.prepare(model, req, true)
	if err != nil {
		return nil, err
	}

	reader, err := c.transport.Open(ctx, call.payload)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("stream opened", "provider", call.route.Provider, "model", call.route.Model)
	return newStream(call.route.Provider, reader, call.route.Adapter.NewStreamDecoder(), c.logger), nil
}

// GenerateStreamed drives the streaming path to completion and returns the
// same Response Generate would.
func (c *Client) GenerateStreamed(ctx context.Context, model string, req *llmprovider.GenerateRequest) (*llmprovider.Response, error) {
	s, err := c.Stream(ctx, model, req)
	if err != nil {
		return nil, err
	}
	return Collect(s)
}
