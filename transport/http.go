// Package transport moves encoded payloads over HTTP. Single-shot calls
// return the buffered body; streaming calls return a reader over the
// response's Server-Sent Events.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/haowjy/unillm-go"
)

// HTTP implements llmprovider.Transport with net/http.
type HTTP struct {
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures an HTTP transport.
type Option func(*HTTP)

// WithClient replaces the underlying http.Client.
func WithClient(c *http.Client) Option {
	return func(t *HTTP) {
		if c != nil {
			t.client = c
		}
	}
}

// WithTimeout bounds single-shot calls. Streams are bounded only by their
// context.
func WithTimeout(d time.Duration) Option {
	return func(t *HTTP) { t.timeout = d }
}

// WithLogger sets the logger for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(t *HTTP) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// New creates an HTTP transport. The default client has connect and
// response-header timeouts but no overall timeout, so long streams are not
// cut off.
func New(opts ...Option) *HTTP {
	t := &HTTP{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 120 * time.Second,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
			},
		},
		timeout: 120 * time.Second,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Send performs a single-shot call and returns the body of a 2xx response.
func (t *HTTP) Send(ctx context.Context, p *llmprovider.Payload) ([]byte, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	resp, err := t.do(ctx, p)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &llmprovider.TransportError{Provider: p.Provider.String(), Err: fmt.Errorf("read response: %w", err)}
	}
	return body, nil
}

// Open starts a streaming call. The returned reader owns the response body
// until Close.
func (t *HTTP) Open(ctx context.Context, p *llmprovider.Payload) (llmprovider.FragmentReader, error) {
	resp, err := t.do(ctx, p)
	if err != nil {
		return nil, err
	}
	return &eventStream{
		ctx:      ctx,
		provider: p.Provider.String(),
		body:     resp.Body,
		reader:   newSSEReader(resp.Body),
		logger:   t.logger,
	}, nil
}

// do sends the request and turns network failures and non-2xx statuses into
// typed errors. On success the caller closes the body.
func (t *HTTP) do(ctx context.Context, p *llmprovider.Payload) (*http.Response, error) {
	provider := p.Provider.String()
	req, err := p.NewRequest(ctx)
	if err != nil {
		return nil, &llmprovider.TransportError{Provider: provider, Err: fmt.Errorf("build request: %w", err)}
	}

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Debug("http request failed", "provider", provider, "url", p.URL, "error", err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, &llmprovider.TransportError{Provider: provider, Err: err}
	}
	t.logger.Debug("http response",
		"provider", provider,
		"url", p.URL,
		"status", resp.StatusCode,
		"stream", p.Stream,
		"elapsed", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, errorFromResponse(provider, resp)
	}
	return resp, nil
}

// eventStream is the FragmentReader of an open SSE response.
type eventStream struct {
	ctx      context.Context
	provider string
	body     io.ReadCloser
	reader   *sseReader
	logger   *slog.Logger

	closeOnce sync.Once
	closeErr  error
	closed    bool
}

func (s *eventStream) Next() (llmprovider.Fragment, error) {
	if s.closed {
		return llmprovider.Fragment{}, io.EOF
	}
	f, err := s.reader.next()
	if err == nil || errors.Is(err, io.EOF) {
		return f, err
	}
	// A canceled context surfaces as a read error on the body.
	if ctxErr := s.ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	return llmprovider.Fragment{}, &llmprovider.TransportError{Provider: s.provider, Err: err}
}

func (s *eventStream) Close() error {
	s.closeOnce.Do(func() {
		s.closed = true
		s.closeErr = s.body.Close()
		s.logger.Debug("stream closed", "provider", s.provider)
	})
	return s.closeErr
}
