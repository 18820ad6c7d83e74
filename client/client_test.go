package client_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/haowjy/unillm-go"
	"github.com/haowjy/unillm-go/client"
	"github.com/haowjy/unillm-go/logger"
	"github.com/haowjy/unillm-go/providers/anthropic"
	"github.com/haowjy/unillm-go/providers/gemini"
	"github.com/haowjy/unillm-go/providers/lorem"
	"github.com/haowjy/unillm-go/providers/openai"
)

// scripted is a Transport replaying a fixed body and fixed fragments.
type scripted struct {
	body      []byte
	fragments []string
	failAfter int // fail Next with a transport error after this many fragments; 0 = never
	payloads  []*llmprovider.Payload
	closed    int
}

func (s *scripted) Send(_ context.Context, p *llmprovider.Payload) ([]byte, error) {
	s.payloads = append(s.payloads, p)
	return s.body, nil
}

func (s *scripted) Open(_ context.Context, p *llmprovider.Payload) (llmprovider.FragmentReader, error) {
	s.payloads = append(s.payloads, p)
	return &scriptedReader{t: s}, nil
}

type scriptedReader struct {
	t    *scripted
	next int
}

func (r *scriptedReader) Next() (llmprovider.Fragment, error) {
	if r.t.failAfter > 0 && r.next == r.t.failAfter {
		return llmprovider.Fragment{}, &llmprovider.TransportError{Provider: "openai", Err: io.ErrUnexpectedEOF}
	}
	if r.next >= len(r.t.fragments) {
		return llmprovider.Fragment{}, io.EOF
	}
	f := llmprovider.Fragment{Data: []byte(r.t.fragments[r.next])}
	r.next++
	return f, nil
}

func (r *scriptedReader) Close() error {
	r.t.closed++
	return nil
}

const haikuBody = `{"id":"chatcmpl-1","object":"chat.completion","model":"gpt-4o-mini",
"choices":[{"index":0,"message":{"role":"assistant","content":"Autumn leaves fall silently."},"finish_reason":"stop"}],
"usage":{"prompt_tokens":12,"completion_tokens":6,"total_tokens":18}}`

var haikuFragments = []string{
	`{"model":"gpt-4o-mini","choices":[{"index":0,"delta":{"role":"assistant","content":"Autumn "}}]}`,
	`{"model":"gpt-4o-mini","choices":[{"index":0,"delta":{"content":"leaves fall "}}]}`,
	`{"model":"gpt-4o-mini","choices":[{"index":0,"delta":{"content":"silently."}}]}`,
	`{"model":"gpt-4o-mini","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
	`{"model":"gpt-4o-mini","choices":[],"usage":{"prompt_tokens":12,"completion_tokens":6,"total_tokens":18}}`,
	`[DONE]`,
}

func openAIRegistry(t *testing.T) *llmprovider.Registry {
	t.Helper()
	a, err := openai.NewAdapter("sk-test")
	require.NoError(t, err)
	reg := llmprovider.NewRegistry()
	reg.Register(llmprovider.ProviderOpenAI, a)
	return reg
}

func fullRegistry(t *testing.T) *llmprovider.Registry {
	t.Helper()
	reg, err := llmprovider.NewRegistryFromCredentials([]llmprovider.Credential{
		{Provider: llmprovider.ProviderOpenAI, APIKey: "sk-test"},
		{Provider: llmprovider.ProviderAnthropic, APIKey: "sk-ant-test"},
		{Provider: llmprovider.ProviderGoogle, APIKey: "AIza-test"},
	}, map[llmprovider.ProviderID]llmprovider.AdapterFactory{
		llmprovider.ProviderOpenAI:    openai.Factory,
		llmprovider.ProviderAnthropic: anthropic.Factory,
		llmprovider.ProviderGoogle:    gemini.Factory,
	})
	require.NoError(t, err)
	return reg
}

func haiku() *llmprovider.GenerateRequest {
	return llmprovider.NewRequest(llmprovider.WithUserText("Write a haiku about autumn"))
}

func TestClient_GenerateAndStreamAreEquivalent(t *testing.T) {
	tr := &scripted{body: []byte(haikuBody), fragments: haikuFragments}
	c := client.New(openAIRegistry(t), client.WithTransport(tr))

	single, err := c.Generate(context.Background(), "gpt-4o-mini", haiku())
	require.NoError(t, err)
	streamed, err := c.GenerateStreamed(context.Background(), "gpt-4o-mini", haiku())
	require.NoError(t, err)

	assert.Equal(t, "Autumn leaves fall silently.", single.Text)
	assert.Equal(t, single, streamed)
	assert.Equal(t, 1, tr.closed)

	require.Len(t, tr.payloads, 2)
	assert.False(t, tr.payloads[0].Stream)
	assert.True(t, tr.payloads[1].Stream)
}

func TestClient_StreamEventSequence(t *testing.T) {
	tr := &scripted{fragments: haikuFragments}
	c := client.New(openAIRegistry(t), client.WithTransport(tr))

	s, err := c.Stream(context.Background(), "gpt-4o-mini", haiku())
	require.NoError(t, err)
	defer s.Close()

	var types []llmprovider.EventType
	var text strings.Builder
	for ev := range s.Events() {
		types = append(types, ev.Type)
		if ev.Type == llmprovider.EventTextDelta {
			text.WriteString(ev.Delta)
		}
	}
	require.NoError(t, s.Err())

	assert.Equal(t, []llmprovider.EventType{
		llmprovider.EventBlockStart,
		llmprovider.EventTextDelta,
		llmprovider.EventTextDelta,
		llmprovider.EventTextDelta,
		llmprovider.EventBlockEnd,
		llmprovider.EventUsage,
		llmprovider.EventFinish,
	}, types)
	require.NotNil(t, s.Response())
	assert.Equal(t, s.Response().Text, text.String())
	assert.Equal(t, llmprovider.StopReasonStop, s.Response().StopReason)
	assert.False(t, s.Next(), "stream is single pass")
}

func TestClient_FragmentAfterTerminalIsProtocolError(t *testing.T) {
	fragments := append(append([]string{}, haikuFragments...), `{"choices":[{"index":0,"delta":{"content":"late"}}]}`)
	tr := &scripted{fragments: fragments}
	c := client.New(openAIRegistry(t), client.WithTransport(tr))

	s, err := c.Stream(context.Background(), "gpt-4o-mini", haiku())
	require.NoError(t, err)

	var last llmprovider.StreamEvent
	for s.Next() {
		last = s.Current()
	}
	assert.Equal(t, llmprovider.EventFinish, last.Type, "the terminal event is still the last one delivered")
	require.Error(t, s.Err())
	assert.True(t, errors.Is(s.Err(), llmprovider.ErrProtocol))
	assert.Equal(t, 1, tr.closed)
}

func TestClient_TransportFailureMidStream(t *testing.T) {
	tr := &scripted{fragments: haikuFragments, failAfter: 2}
	c := client.New(openAIRegistry(t), client.WithTransport(tr))

	s, err := c.Stream(context.Background(), "gpt-4o-mini", haiku())
	require.NoError(t, err)

	var events []llmprovider.StreamEvent
	for ev := range s.Events() {
		events = append(events, ev)
	}

	last := events[len(events)-1]
	require.Equal(t, llmprovider.EventError, last.Type)
	assert.Equal(t, llmprovider.ErrorKindTransport, last.Err.Kind)
	assert.True(t, errors.Is(s.Err(), io.ErrUnexpectedEOF))
	assert.Equal(t, llmprovider.ErrorKindTransport, llmprovider.KindOf(s.Err()))
	assert.Nil(t, s.Response())

	_, err = client.Collect(s)
	assert.Error(t, err)
}

func TestClient_BreakingOutClosesTransport(t *testing.T) {
	tr := &scripted{fragments: haikuFragments}
	c := client.New(openAIRegistry(t), client.WithTransport(tr))

	s, err := c.Stream(context.Background(), "gpt-4o-mini", haiku())
	require.NoError(t, err)

	for ev := range s.Events() {
		if ev.Type == llmprovider.EventTextDelta {
			break
		}
	}
	assert.Equal(t, 1, tr.closed)
	assert.NoError(t, s.Err())
	assert.False(t, s.Next())
	assert.NoError(t, s.Close())
	assert.Equal(t, 1, tr.closed, "Close is idempotent")
}

func TestClient_CollectAfterEarlyClose(t *testing.T) {
	tr := &scripted{fragments: haikuFragments}
	c := client.New(openAIRegistry(t), client.WithTransport(tr))

	s, err := c.Stream(context.Background(), "gpt-4o-mini", haiku())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = client.Collect(s)
	assert.True(t, errors.Is(err, llmprovider.ErrProtocol))
}

func TestClient_RoutesAcrossProviders(t *testing.T) {
	c := client.New(fullRegistry(t), client.WithTransport(lorem.NewTransport(lorem.WithDelay(0))))

	for _, model := range []string{"gpt-lorem", "claude-lorem-fast", "gemini-lorem-fast"} {
		t.Run(model, func(t *testing.T) {
			resp, err := c.GenerateStreamed(context.Background(), model, haiku())
			require.NoError(t, err)
			assert.NotEmpty(t, resp.Text)
			assert.Equal(t, model, resp.Model)
			assert.Equal(t, llmprovider.StopReasonStop, resp.StopReason)

			resp, err = c.Generate(context.Background(), model, haiku())
			require.NoError(t, err)
			assert.NotEmpty(t, resp.Text)
		})
	}
}

func TestClient_ExplicitProviderPrefixIsStripped(t *testing.T) {
	tr := &scripted{body: []byte(haikuBody)}
	c := client.New(openAIRegistry(t), client.WithTransport(tr))

	_, err := c.Generate(context.Background(), "openai:llama-3.1-8b", haiku())
	require.NoError(t, err)

	require.Len(t, tr.payloads, 1)
	assert.Equal(t, "llama-3.1-8b", gjson.GetBytes(tr.payloads[0].Body, "model").String())
}

func TestClient_ModelFallsBackToRequest(t *testing.T) {
	tr := &scripted{body: []byte(haikuBody)}
	c := client.New(openAIRegistry(t), client.WithTransport(tr))

	req := haiku().With(llmprovider.WithModel("gpt-4o-mini"))
	_, err := c.Generate(context.Background(), "", req)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", gjson.GetBytes(tr.payloads[0].Body, "model").String())
}

func TestClient_ResolutionErrors(t *testing.T) {
	tr := &scripted{}

	_, err := client.New(llmprovider.NewRegistry(), client.WithTransport(tr)).Generate(context.Background(), "gpt-4o", haiku())
	assert.True(t, errors.Is(err, llmprovider.ErrNoProvidersConfigured))

	_, err = client.New(openAIRegistry(t), client.WithTransport(tr)).Stream(context.Background(), "claude-haiku-4-5", haiku())
	assert.True(t, errors.Is(err, llmprovider.ErrUnknownModel))

	assert.Empty(t, tr.payloads, "no network call on resolution failure")
}

func TestClient_EncodeValidationFailsBeforeTransport(t *testing.T) {
	tr := &scripted{}
	c := client.New(fullRegistry(t), client.WithTransport(tr))

	req := haiku().With(llmprovider.WithMaxTokens(1000), llmprovider.WithThinking("low"))
	_, err := c.Generate(context.Background(), "claude-haiku-4-5", req)

	require.Error(t, err)
	assert.True(t, llmprovider.IsInvalidRequest(err))
	assert.Empty(t, tr.payloads)

	_, err = c.Generate(context.Background(), "gpt-4o", nil)
	assert.True(t, llmprovider.IsInvalidRequest(err))
}

func TestClient_LogsLintWarnings(t *testing.T) {
	var buf bytes.Buffer
	c := client.New(fullRegistry(t),
		client.WithTransport(lorem.NewTransport()),
		client.WithLogger(logger.New(logger.WithWriter(&buf))),
	)

	_, err := c.Generate(context.Background(), "claude-lorem", haiku().With(llmprovider.WithTemperature(1.5)))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Temperature 1.50 above anthropic maximum 1.00")

	buf.Reset()
	c = client.New(fullRegistry(t),
		client.WithTransport(lorem.NewTransport()),
		client.WithLogger(logger.New(logger.WithWriter(&buf))),
		client.WithValidator(nil),
	)
	_, err = c.Generate(context.Background(), "claude-lorem", haiku().With(llmprovider.WithTemperature(1.5)))
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "Temperature")
}

func TestClient_CancelMidStream(t *testing.T) {
	c := client.New(fullRegistry(t), client.WithTransport(lorem.NewTransport(lorem.WithDelay(200*time.Millisecond))))

	ctx, cancel := context.WithCancel(context.Background())
	s, err := c.Stream(ctx, "claude-lorem-slow", haiku())
	require.NoError(t, err)

	require.True(t, s.Next())
	cancel()

	var last llmprovider.StreamEvent
	for s.Next() {
		last = s.Current()
	}
	assert.Equal(t, llmprovider.EventError, last.Type)
	assert.True(t, errors.Is(s.Err(), context.Canceled))
}
