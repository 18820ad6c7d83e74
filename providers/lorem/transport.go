// Package lorem is a fake llmprovider.Transport that answers any encoded
// payload with lorem ipsum shaped exactly like the target vendor's wire
// format. It lets the full Encode, transport and decode path run without API
// keys or network access.
package lorem

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	loremgen "github.com/bozaro/golorem"

	"github.com/haowjy/unillm-go"
)

// Transport implements llmprovider.Transport with generated output.
type Transport struct {
	mu        sync.Mutex // guards generator
	generator *loremgen.Lorem

	delay         time.Duration
	delaySet      bool
	wordsPerBlock int
	maxWords      int
	rounds        int
}

// Option configures a Transport.
type Option func(*Transport)

// WithDelay fixes the pause between stream fragments. Without it the delay
// follows the model name (see StreamDelay).
func WithDelay(d time.Duration) Option {
	return func(t *Transport) { t.delay, t.delaySet = d, true }
}

// WithWordsPerBlock sets the length of each text and thinking block.
func WithWordsPerBlock(n int) Option {
	return func(t *Transport) { t.wordsPerBlock = n }
}

// WithMaxWords caps the output when the request sets no token limit.
func WithMaxWords(n int) Option {
	return func(t *Transport) { t.maxWords = n }
}

// WithRounds sets how many text (and tool call) rounds a completion has.
func WithRounds(n int) Option {
	return func(t *Transport) { t.rounds = n }
}

// NewTransport creates a lorem transport.
func NewTransport(opts ...Option) *Transport {
	t := &Transport{
		generator:     newGenerator(),
		wordsPerBlock: 20,
		maxWords:      400,
		rounds:        1,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// StreamDelay returns the pause between fragments for a model name:
// "slow" models stream 2 words/second, "fast" ones 30, everything else 10.
func StreamDelay(model string) time.Duration {
	switch {
	case strings.Contains(model, "slow"):
		return 500 * time.Millisecond
	case strings.Contains(model, "fast"):
		return 33 * time.Millisecond
	default:
		return 100 * time.Millisecond
	}
}

// Send returns a whole vendor response body for the payload.
func (t *Transport) Send(ctx context.Context, p *llmprovider.Payload) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &llmprovider.TransportError{Provider: p.Provider.String(), Err: err}
	}
	s, err := t.buildScript(p)
	if err != nil {
		return nil, err
	}
	return renderBody(s)
}

// Open starts a fake stream for the payload.
func (t *Transport) Open(ctx context.Context, p *llmprovider.Payload) (llmprovider.FragmentReader, error) {
	if err := ctx.Err(); err != nil {
		return nil, &llmprovider.TransportError{Provider: p.Provider.String(), Err: err}
	}
	s, err := t.buildScript(p)
	if err != nil {
		return nil, err
	}
	fragments, err := renderStream(s)
	if err != nil {
		return nil, err
	}

	delay := t.delay
	if !t.delaySet {
		delay = StreamDelay(s.model)
	}
	return &fragmentReader{ctx: ctx, provider: p.Provider.String(), fragments: fragments, delay: delay}, nil
}

// fragmentReader replays pre-rendered fragments with a fixed pause.
type fragmentReader struct {
	ctx       context.Context
	provider  string
	fragments []llmprovider.Fragment
	delay     time.Duration
	next      int
	closed    bool
}

func (r *fragmentReader) Next() (llmprovider.Fragment, error) {
	if r.closed || r.next >= len(r.fragments) {
		return llmprovider.Fragment{}, io.EOF
	}
	if r.next > 0 && r.delay > 0 {
		timer := time.NewTimer(r.delay)
		select {
		case <-r.ctx.Done():
			timer.Stop()
			return llmprovider.Fragment{}, &llmprovider.TransportError{Provider: r.provider, Err: r.ctx.Err()}
		case <-timer.C:
		}
	} else if err := r.ctx.Err(); err != nil {
		return llmprovider.Fragment{}, &llmprovider.TransportError{Provider: r.provider, Err: err}
	}
	f := r.fragments[r.next]
	r.next++
	return f, nil
}

func (r *fragmentReader) Close() error {
	r.closed = true
	return nil
}
