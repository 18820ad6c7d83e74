package llmprovider

import (
	"bytes"
	"context"
	"net/http"
)

// Adapter defines the contract every vendor adapter implements. An adapter
// owns vendor configuration (API key, base URL, API version, feature flags)
// and is otherwise stateless, so one instance serves any number of
// concurrent calls.
//
// Types used by this interface:
//   - GenerateRequest, Message: defined in request.go
//   - Response: defined in response.go
//   - StreamEvent: defined in streaming.go
type Adapter interface {
	// Name returns the provider identifier.
	Name() ProviderID

	// Encode translates a request into a vendor HTTP payload. It is pure and
	// deterministic: the same request always yields a byte-identical body.
	// Requests violating a vendor hard constraint fail with *ValidationError.
	Encode(req *GenerateRequest, stream bool) (*Payload, error)

	// Decode converts a fully buffered non-streaming vendor response. It runs
	// the same block mapping as the stream decoder, so both paths produce an
	// identical Response for the same completion.
	Decode(body []byte) (*Response, error)

	// NewStreamDecoder returns a fresh decoder owning its own StreamState.
	NewStreamDecoder() StreamDecoder
}

// StreamDecoder is a stateful incremental parser for one stream. It is owned
// by a single goroutine and never blocks.
type StreamDecoder interface {
	// Step consumes one fragment and returns zero or more events. A fragment
	// after the terminal event is rejected with a protocol *StreamError.
	Step(f Fragment) ([]StreamEvent, error)

	// End tells the decoder the transport reached end-of-stream. If no
	// terminal event was emitted yet, End emits one.
	End() ([]StreamEvent, error)
}

// Payload is an encoded vendor request ready for a Transport.
type Payload struct {
	Provider ProviderID
	Method   string
	URL      string
	Header   http.Header
	Body     []byte
	Stream   bool
}

// NewRequest builds an *http.Request for the payload.
func (p *Payload) NewRequest(ctx context.Context) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, p.Method, p.URL, bytes.NewReader(p.Body))
	if err != nil {
		return nil, err
	}
	req.Header = p.Header.Clone()
	return req, nil
}

// Fragment is one raw event record received from a vendor stream: an SSE
// event name (possibly empty) and its data payload.
type Fragment struct {
	Event string
	Data  []byte
}

// IsDone reports whether the fragment is the OpenAI-style "[DONE]" sentinel.
func (f Fragment) IsDone() bool {
	return string(bytes.TrimSpace(f.Data)) == "[DONE]"
}

// Transport is the collaborator that moves payloads over the network.
type Transport interface {
	// Send performs a single-shot call and returns the response body.
	Send(ctx context.Context, p *Payload) ([]byte, error)

	// Open starts a streaming call.
	Open(ctx context.Context, p *Payload) (FragmentReader, error)
}

// FragmentReader yields the fragments of one open stream.
type FragmentReader interface {
	// Next blocks until the next fragment arrives. It returns io.EOF at the
	// end of the stream.
	Next() (Fragment, error)

	// Close releases the underlying connection. It is safe to call more than once.
	Close() error
}
