package llmprovider

import "fmt"

// EventType discriminates StreamEvent variants.
type EventType string

const (
	EventBlockStart    EventType = "block_start"
	EventTextDelta     EventType = "text_delta"
	EventToolCallDelta EventType = "tool_call_delta"
	EventThinkingDelta EventType = "thinking_delta"
	EventBlockEnd      EventType = "block_end"
	EventUsage         EventType = "usage"
	EventFinish        EventType = "finish"
	EventError         EventType = "error"
)

// StreamEvent represents a single event in a streaming response.
//
// Which fields are meaningful depends on Type:
//   - block_start: Index, Kind
//   - text_delta, thinking_delta: Index, Delta
//   - tool_call_delta: Index, Delta (arguments fragment), ToolCallID/ToolName once known
//   - block_end: Index
//   - usage: Usage
//   - finish: StopReason, Response (assembled result)
//   - error: Err
//
// finish and error are terminal: exactly one of them ends every stream.
type StreamEvent struct {
	Type  EventType
	Index int

	// Kind is the block kind for block_start
	Kind BlockType

	// Delta is the text, thinking, or tool-call-arguments fragment
	Delta string

	// ToolCallID and ToolName are set on tool_call_delta when first known
	ToolCallID string
	ToolName   string

	Usage *Usage

	StopReason StopReason

	// Response is the assembled result carried by finish
	Response *Response

	Err *StreamError
}

// IsTerminal reports whether the event ends the stream.
func (e StreamEvent) IsTerminal() bool {
	return e.Type == EventFinish || e.Type == EventError
}

// String renders the event for logs and debugging.
func (e StreamEvent) String() string {
	switch e.Type {
	case EventBlockStart:
		return fmt.Sprintf("block_start[%d] %s", e.Index, e.Kind)
	case EventTextDelta, EventThinkingDelta:
		return fmt.Sprintf("%s[%d] %q", e.Type, e.Index, e.Delta)
	case EventToolCallDelta:
		return fmt.Sprintf("tool_call_delta[%d] id=%q name=%q args=%q", e.Index, e.ToolCallID, e.ToolName, e.Delta)
	case EventBlockEnd:
		return fmt.Sprintf("block_end[%d]", e.Index)
	case EventUsage:
		if e.Usage == nil {
			return "usage"
		}
		return fmt.Sprintf("usage in=%d out=%d", e.Usage.InputTokens, e.Usage.OutputTokens)
	case EventFinish:
		return fmt.Sprintf("finish %s", e.StopReason)
	case EventError:
		if e.Err == nil {
			return "error"
		}
		return fmt.Sprintf("error %s: %s", e.Err.Kind, e.Err.Message)
	default:
		return string(e.Type)
	}
}

// NewBlockStart creates a block_start event.
func NewBlockStart(index int, kind BlockType) StreamEvent {
	return StreamEvent{Type: EventBlockStart, Index: index, Kind: kind}
}

// NewTextDelta creates a text_delta event.
func NewTextDelta(index int, delta string) StreamEvent {
	return StreamEvent{Type: EventTextDelta, Index: index, Delta: delta}
}

// NewThinkingDelta creates a thinking_delta event.
func NewThinkingDelta(index int, delta string) StreamEvent {
	return StreamEvent{Type: EventThinkingDelta, Index: index, Delta: delta}
}

// NewToolCallDelta creates a tool_call_delta event.
func NewToolCallDelta(index int, id, name, argumentsDelta string) StreamEvent {
	return StreamEvent{Type: EventToolCallDelta, Index: index, ToolCallID: id, ToolName: name, Delta: argumentsDelta}
}

// NewBlockEnd creates a block_end event.
func NewBlockEnd(index int) StreamEvent {
	return StreamEvent{Type: EventBlockEnd, Index: index}
}

// NewUsageEvent creates a usage event.
func NewUsageEvent(usage Usage) StreamEvent {
	return StreamEvent{Type: EventUsage, Usage: &usage}
}

// NewFinish creates a finish event carrying the assembled response.
func NewFinish(resp *Response) StreamEvent {
	return StreamEvent{Type: EventFinish, StopReason: resp.StopReason, Response: resp}
}

// NewErrorEvent creates an error event.
func NewErrorEvent(err *StreamError) StreamEvent {
	return StreamEvent{Type: EventError, Err: err}
}
