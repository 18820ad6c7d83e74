package openai

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/haowjy/unillm-go"
)

// ChatCompletionChunk represents a streaming chunk.
type ChatCompletionChunk struct {
	ID      string        `json:"id"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
	Usage   *Usage        `json:"usage"` // Only on the trailing chunk when include_usage is set
}

// ChunkChoice represents a choice in a streaming chunk.
type ChunkChoice struct {
	Index        int     `json:"index"`
	Delta        Message `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// stepChunk maps one SSE data payload onto stream state transitions.
//
// Chunk order on the wire: content and tool call deltas, a chunk with
// finish_reason, a usage-only chunk (choices empty), then [DONE].
func stepChunk(state *llmprovider.StreamState, f llmprovider.Fragment) []llmprovider.StreamEvent {
	if f.IsDone() {
		return state.Finish()
	}
	data := bytes.TrimSpace(f.Data)
	if len(data) == 0 {
		return nil
	}
	if failed := probeFragment(state, data); failed != nil {
		return failed
	}

	var chunk ChatCompletionChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return state.Fail(llmprovider.NewProtocolError(state.Provider(), "malformed chunk: %v", err))
	}

	state.SetModel(chunk.Model)
	if chunk.Usage != nil {
		state.SetUsage(chunk.Usage.toUsage())
	}

	var events []llmprovider.StreamEvent
	for _, choice := range chunk.Choices {
		// Only the first candidate is surfaced
		if choice.Index != 0 {
			continue
		}
		events = append(events, applyDelta(state, choice.Delta, false)...)
		if state.Terminal() {
			return events
		}
		if choice.FinishReason != nil && *choice.FinishReason != "" {
			state.SetStopReason(stopReason(state, *choice.FinishReason), *choice.FinishReason)
		}
	}
	return events
}

// applyDelta appends the reasoning, text and tool call parts of a delta (or
// of a whole message) to the state. Whole messages carry no tool call index,
// so positions stand in for it.
func applyDelta(state *llmprovider.StreamState, delta Message, whole bool) []llmprovider.StreamEvent {
	var events []llmprovider.StreamEvent

	if reasoning := reasoningText(delta); reasoning != "" {
		idx, opened := switchRun(state, runReasoning, llmprovider.BlockTypeThinking)
		events = append(events, opened...)
		events = append(events, state.AppendThinking(idx, reasoning)...)
	}

	if content, ok := delta.Content.(string); ok && content != "" {
		idx, opened := switchRun(state, runText, llmprovider.BlockTypeText)
		events = append(events, opened...)
		events = append(events, state.AppendText(idx, content)...)
	}

	if delta.Refusal != nil && *delta.Refusal != "" {
		idx, opened := switchRun(state, runRefusal, llmprovider.BlockTypeText)
		events = append(events, opened...)
		events = append(events, state.AppendText(idx, *delta.Refusal)...)
	}

	for i, tc := range delta.ToolCalls {
		if state.Terminal() {
			return events
		}
		pos := i
		if !whole && tc.Index != nil {
			pos = *tc.Index
		}
		key := toolCallKey(pos)
		idx, ok := state.Index(key)
		if !ok {
			var opened []llmprovider.StreamEvent
			idx, opened = state.Open(key, llmprovider.BlockTypeToolCall)
			events = append(events, opened...)
		}
		events = append(events, state.AppendToolCall(idx, tc.ID, tc.Function.Name, tc.Function.Arguments)...)
	}

	return events
}

func reasoningText(m Message) string {
	if m.ReasoningContent != nil && *m.ReasoningContent != "" {
		return *m.ReasoningContent
	}
	if m.Reasoning != nil {
		return *m.Reasoning
	}
	return ""
}

// Runs of reasoning, text and refusal deltas. At most one run is open at a
// time, so block indices only grow as the kinds interleave.
const (
	runReasoning = "reasoning"
	runText      = "text"
	runRefusal   = "refusal"
)

// switchRun closes the other runs and returns the open block of base.
func switchRun(state *llmprovider.StreamState, base string, kind llmprovider.BlockType) (int, []llmprovider.StreamEvent) {
	var events []llmprovider.StreamEvent
	for _, other := range []string{runReasoning, runText, runRefusal} {
		if other != base {
			events = append(events, closeRun(state, other)...)
		}
	}
	idx, opened := openRun(state, base, kind)
	return idx, append(events, opened...)
}

// refused reports whether the model declined; the refusal text is kept as
// a text block and the stop reason becomes content_filter.
func refused(state *llmprovider.StreamState) bool {
	_, ok := state.Index(runRefusal + ":0")
	return ok
}

// stopReason maps the raw finish reason, accounting for refusals.
func stopReason(state *llmprovider.StreamState, raw string) llmprovider.StopReason {
	if refused(state) {
		return llmprovider.StopReasonContentFilter
	}
	return mapFinishReason(raw)
}

// openRun returns the open block of a text or reasoning run, starting a new
// one when the previous run of that kind was closed.
func openRun(state *llmprovider.StreamState, base string, kind llmprovider.BlockType) (int, []llmprovider.StreamEvent) {
	for n := 0; ; n++ {
		key := fmt.Sprintf("%s:%d", base, n)
		idx, ok := state.Index(key)
		if !ok {
			return state.Open(key, kind)
		}
		if state.IsOpen(idx) {
			return idx, nil
		}
	}
}

// closeRun ends the open block of a run, if any.
func closeRun(state *llmprovider.StreamState, base string) []llmprovider.StreamEvent {
	for n := 0; ; n++ {
		idx, ok := state.Index(fmt.Sprintf("%s:%d", base, n))
		if !ok {
			return nil
		}
		if state.IsOpen(idx) {
			return state.Close(idx)
		}
	}
}
