package llmprovider

import (
	"bytes"
	"encoding/json"
	"strings"
)

// blockState accumulates one content block.
type blockState struct {
	kind      BlockType
	text      strings.Builder
	signature string
	id        string
	name      string
	args      strings.Builder
	open      bool
}

// StreamState is the accumulator behind every stream decoder. Vendor
// decoders translate their wire events into calls on StreamState, which
// enforces the shared event grammar:
//
//	(BlockStart | TextDelta | ToolCallDelta | ThinkingDelta | BlockEnd)* [Usage] (Finish | Error)
//
// Block indices are allocated 0, 1, 2, ... in order of first appearance,
// whatever index scheme the vendor uses. Once Finish or Error has been
// produced the state is terminal and every further call is a no-op.
//
// A StreamState is owned by one decoder and must not be shared.
type StreamState struct {
	provider ProviderID
	model    string

	blocks []*blockState
	keys   map[string]int

	usage    Usage
	hasUsage bool

	stopReason StopReason
	rawStop    string
	stopSeen   bool

	terminal bool
	response *Response
}

// NewStreamState creates an empty accumulator for provider.
func NewStreamState(provider ProviderID) *StreamState {
	return &StreamState{
		provider: provider,
		keys:     make(map[string]int),
	}
}

// Provider returns the provider the state decodes for.
func (s *StreamState) Provider() ProviderID {
	return s.provider
}

// Terminal reports whether Finish or Error has been produced.
func (s *StreamState) Terminal() bool {
	return s.terminal
}

// SetModel records the model reported by the vendor. Empty values are ignored.
func (s *StreamState) SetModel(model string) {
	if model != "" {
		s.model = model
	}
}

// Index returns the normalized index registered for a vendor block key.
func (s *StreamState) Index(key string) (int, bool) {
	idx, ok := s.keys[key]
	return idx, ok
}

// IsOpen reports whether the block at idx has started and not ended.
func (s *StreamState) IsOpen(idx int) bool {
	return idx >= 0 && idx < len(s.blocks) && s.blocks[idx].open
}

// Kind returns the kind of the block at idx.
func (s *StreamState) Kind(idx int) BlockType {
	if idx < 0 || idx >= len(s.blocks) {
		return ""
	}
	return s.blocks[idx].kind
}

// HasToolCalls reports whether any tool_call block was started.
func (s *StreamState) HasToolCalls() bool {
	for _, b := range s.blocks {
		if b.kind == BlockTypeToolCall {
			return true
		}
	}
	return false
}

// StopSeen reports whether the vendor already sent a finish reason.
func (s *StreamState) StopSeen() bool {
	return s.stopSeen
}

// Open starts a new block for the vendor key and returns its normalized
// index together with the BlockStart event. Reusing a key is a protocol error.
func (s *StreamState) Open(key string, kind BlockType) (int, []StreamEvent) {
	if s.terminal {
		return -1, nil
	}
	if _, exists := s.keys[key]; exists {
		return -1, s.Fail(NewProtocolError(s.provider, "content block %q started twice", key))
	}
	idx := len(s.blocks)
	s.blocks = append(s.blocks, &blockState{kind: kind, open: true})
	s.keys[key] = idx
	return idx, []StreamEvent{NewBlockStart(idx, kind)}
}

// block returns the open block at idx with the expected kind, or fails the stream.
func (s *StreamState) block(idx int, kind BlockType) (*blockState, []StreamEvent) {
	if idx < 0 || idx >= len(s.blocks) {
		return nil, s.Fail(NewProtocolError(s.provider, "delta for unknown content block %d", idx))
	}
	b := s.blocks[idx]
	if !b.open {
		return nil, s.Fail(NewProtocolError(s.provider, "delta for closed content block %d", idx))
	}
	if b.kind != kind {
		return nil, s.Fail(NewProtocolError(s.provider, "%s delta for %s content block %d", kind, b.kind, idx))
	}
	return b, nil
}

// AppendText adds a text fragment to the block at idx.
func (s *StreamState) AppendText(idx int, delta string) []StreamEvent {
	if s.terminal || delta == "" {
		return nil
	}
	b, failed := s.block(idx, BlockTypeText)
	if b == nil {
		return failed
	}
	b.text.WriteString(delta)
	return []StreamEvent{NewTextDelta(idx, delta)}
}

// AppendThinking adds a reasoning fragment to the block at idx.
func (s *StreamState) AppendThinking(idx int, delta string) []StreamEvent {
	if s.terminal || delta == "" {
		return nil
	}
	b, failed := s.block(idx, BlockTypeThinking)
	if b == nil {
		return failed
	}
	b.text.WriteString(delta)
	return []StreamEvent{NewThinkingDelta(idx, delta)}
}

// AppendSignature adds to the opaque signature of a thinking block. It
// produces no event.
func (s *StreamState) AppendSignature(idx int, sig string) []StreamEvent {
	if s.terminal || sig == "" {
		return nil
	}
	b, failed := s.block(idx, BlockTypeThinking)
	if b == nil {
		return failed
	}
	b.signature += sig
	return nil
}

// AppendToolCall records tool call identity and an arguments fragment for the
// block at idx. The id and name may arrive in any fragment; each is reported
// on the first ToolCallDelta after it becomes known and kept from then on.
func (s *StreamState) AppendToolCall(idx int, id, name, argsDelta string) []StreamEvent {
	if s.terminal {
		return nil
	}
	b, failed := s.block(idx, BlockTypeToolCall)
	if b == nil {
		return failed
	}
	var newID, newName string
	if id != "" && b.id == "" {
		b.id, newID = id, id
	}
	if name != "" && b.name == "" {
		b.name, newName = name, name
	}
	if newID == "" && newName == "" && argsDelta == "" {
		return nil
	}
	b.args.WriteString(argsDelta)
	return []StreamEvent{NewToolCallDelta(idx, newID, newName, argsDelta)}
}

// Close ends the block at idx. A tool call block must by now have an id, a
// name and arguments forming valid JSON (empty arguments count as "{}").
func (s *StreamState) Close(idx int) []StreamEvent {
	if s.terminal {
		return nil
	}
	if idx < 0 || idx >= len(s.blocks) {
		return s.Fail(NewProtocolError(s.provider, "end of unknown content block %d", idx))
	}
	b := s.blocks[idx]
	if !b.open {
		return s.Fail(NewProtocolError(s.provider, "content block %d ended twice", idx))
	}
	if b.kind == BlockTypeToolCall {
		if b.id == "" || b.name == "" {
			return s.Fail(NewProtocolError(s.provider, "tool call block %d ended without id or name", idx))
		}
		if args := strings.TrimSpace(b.args.String()); args != "" && !json.Valid([]byte(args)) {
			return s.Fail(NewProtocolError(s.provider, "tool call %s arguments are not valid JSON", b.name))
		}
	}
	b.open = false
	return []StreamEvent{NewBlockEnd(idx)}
}

// CloseAll ends every open block in index order.
func (s *StreamState) CloseAll() []StreamEvent {
	var events []StreamEvent
	for idx, b := range s.blocks {
		if !b.open {
			continue
		}
		events = append(events, s.Close(idx)...)
		if s.terminal {
			break
		}
	}
	return events
}

// SetUsage replaces the usage snapshot.
func (s *StreamState) SetUsage(u Usage) {
	s.usage = u
	s.hasUsage = true
}

// MergeUsage overwrites the non-zero fields of the usage snapshot.
func (s *StreamState) MergeUsage(u Usage) {
	if u.InputTokens != 0 {
		s.usage.InputTokens = u.InputTokens
	}
	if u.OutputTokens != 0 {
		s.usage.OutputTokens = u.OutputTokens
	}
	if u.ReasoningTokens != 0 {
		s.usage.ReasoningTokens = u.ReasoningTokens
	}
	if u.CacheReadTokens != 0 {
		s.usage.CacheReadTokens = u.CacheReadTokens
	}
	s.hasUsage = true
}

// SetStopReason records the normalized and raw vendor finish reason.
func (s *StreamState) SetStopReason(reason StopReason, raw string) {
	s.stopReason = reason
	s.rawStop = raw
	s.stopSeen = true
}

// Finish closes open blocks, then emits the withheld Usage (if the vendor
// reported any) and the terminal Finish event.
func (s *StreamState) Finish() []StreamEvent {
	if s.terminal {
		return nil
	}
	events := s.CloseAll()
	if s.terminal {
		return events
	}
	if s.stopReason == "" {
		s.stopReason = StopReasonStop
	}
	s.response = s.buildResponse()
	if s.hasUsage {
		events = append(events, NewUsageEvent(s.usage))
	}
	s.terminal = true
	return append(events, NewFinish(s.response.Clone()))
}

// Fail makes the state terminal and returns the Error event.
func (s *StreamState) Fail(err *StreamError) []StreamEvent {
	if s.terminal {
		return nil
	}
	if err.Provider == "" {
		err.Provider = s.provider.String()
	}
	s.terminal = true
	return []StreamEvent{NewErrorEvent(err)}
}

// End handles transport end-of-stream. A stream that already reported a
// finish reason but no terminal marker is finished; otherwise it is truncated.
func (s *StreamState) End() []StreamEvent {
	if s.terminal {
		return nil
	}
	if s.stopSeen {
		return s.Finish()
	}
	return s.Fail(NewProtocolError(s.provider, "stream ended before terminal event"))
}

// AfterTerminal returns the error reported for data arriving after the
// terminal event.
func (s *StreamState) AfterTerminal() error {
	return NewProtocolError(s.provider, "fragment received after terminal event")
}

// Response returns a copy of the assembled response once the state has
// finished, or nil.
func (s *StreamState) Response() *Response {
	return s.response.Clone()
}

func (s *StreamState) buildResponse() *Response {
	resp := &Response{
		Provider:      s.provider,
		Model:         s.model,
		Usage:         s.usage,
		StopReason:    s.stopReason,
		RawStopReason: s.rawStop,
	}
	var text strings.Builder
	for _, b := range s.blocks {
		switch b.kind {
		case BlockTypeText:
			if b.text.Len() == 0 {
				continue
			}
			text.WriteString(b.text.String())
			resp.Blocks = append(resp.Blocks, TextBlock(b.text.String()))
		case BlockTypeThinking:
			if b.text.Len() == 0 && b.signature == "" {
				continue
			}
			resp.Blocks = append(resp.Blocks, ThinkingBlock(b.text.String(), b.signature))
		case BlockTypeToolCall:
			args := bytes.TrimSpace([]byte(b.args.String()))
			block := ToolCallBlock(b.id, b.name, json.RawMessage(args))
			resp.Blocks = append(resp.Blocks, block)
			resp.ToolCalls = append(resp.ToolCalls, *block.ToolCall)
		}
	}
	resp.Text = text.String()
	return resp
}

// Decoder adapts a vendor step function to StreamDecoder, adding the
// terminal-state guard shared by all vendors.
type Decoder struct {
	state *StreamState
	step  StepFunc
}

// StepFunc maps one vendor fragment onto StreamState transitions.
type StepFunc func(state *StreamState, f Fragment) []StreamEvent

// NewStreamDecoder returns a decoder with a fresh StreamState for provider.
func NewStreamDecoder(provider ProviderID, step StepFunc) *Decoder {
	return &Decoder{state: NewStreamState(provider), step: step}
}

// Step implements StreamDecoder.
func (d *Decoder) Step(f Fragment) ([]StreamEvent, error) {
	if d.state.Terminal() {
		return nil, d.state.AfterTerminal()
	}
	return d.step(d.state, f), nil
}

// End implements StreamDecoder.
func (d *Decoder) End() ([]StreamEvent, error) {
	return d.state.End(), nil
}

// State exposes the accumulator, mainly for tests.
func (d *Decoder) State() *StreamState {
	return d.state
}

// DecodeAll runs fragments through a fresh decoder, ends the stream and
// returns every event. It is how adapters decode buffered responses with the
// exact same transitions as live streams.
func DecodeAll(dec StreamDecoder, fragments ...Fragment) ([]StreamEvent, error) {
	var events []StreamEvent
	for _, f := range fragments {
		evs, err := dec.Step(f)
		if err != nil {
			return events, err
		}
		events = append(events, evs...)
	}
	evs, err := dec.End()
	return append(events, evs...), err
}

// ResponseFromEvents returns the response carried by the terminal event, or
// the stream error when the stream failed.
func ResponseFromEvents(events []StreamEvent) (*Response, error) {
	for _, ev := range events {
		switch ev.Type {
		case EventFinish:
			return ev.Response, nil
		case EventError:
			return nil, ev.Err
		}
	}
	return nil, &StreamError{Kind: ErrorKindProtocol, Message: "stream produced no terminal event"}
}
