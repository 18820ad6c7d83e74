package gemini

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/haowjy/unillm-go"
)

// callNamespace seeds the deterministic ids given to function calls that
// arrive without one.
var callNamespace = uuid.MustParse("6f1c2b1e-4a5d-5c8e-9b0a-3d2e1f4c5b6a")

// chunkDecoder maps GenerateContentResponse chunks onto stream state
// transitions. Gemini has no block indices: consecutive text (or thought)
// parts coalesce into the open block, and a part of another kind closes it.
type chunkDecoder struct {
	current int // normalized index of the open text or thinking block, -1 if none
	parts   int // vendor keys handed out so far
}

func newChunkDecoder() *chunkDecoder {
	return &chunkDecoder{current: -1}
}

func (d *chunkDecoder) step(state *llmprovider.StreamState, f llmprovider.Fragment) []llmprovider.StreamEvent {
	data := bytes.TrimSpace(f.Data)
	if len(data) == 0 {
		return nil
	}
	if failed := probeFragment(state, data); failed != nil {
		return failed
	}

	var chunk GenerateContentResponse
	if err := json.Unmarshal(data, &chunk); err != nil {
		return state.Fail(llmprovider.NewProtocolError(state.Provider(), "malformed chunk: %v", err))
	}

	state.SetModel(chunk.ModelVersion)
	// usageMetadata is cumulative; the last snapshot wins
	if chunk.UsageMetadata != nil {
		state.SetUsage(chunk.UsageMetadata.toUsage())
	}

	if len(chunk.Candidates) == 0 {
		if fb := chunk.PromptFeedback; fb != nil && fb.BlockReason != "" {
			return state.Fail(llmprovider.NewVendorError(state.Provider(), fb.BlockReason, "prompt blocked: "+fb.BlockReason))
		}
		return nil
	}

	var events []llmprovider.StreamEvent
	for _, cand := range chunk.Candidates {
		if cand.Index != 0 {
			continue
		}
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				events = append(events, d.applyPart(state, part)...)
				if state.Terminal() {
					return events
				}
			}
		}
		if cand.FinishReason != "" {
			state.SetStopReason(mapFinishReason(cand.FinishReason, state.HasToolCalls()), cand.FinishReason)
			return append(events, state.Finish()...)
		}
	}
	return events
}

func (d *chunkDecoder) applyPart(state *llmprovider.StreamState, part Part) []llmprovider.StreamEvent {
	switch {
	case part.FunctionCall != nil:
		events := d.closeCurrent(state)
		idx, opened := d.open(state, llmprovider.BlockTypeToolCall)
		events = append(events, opened...)
		if state.Terminal() {
			return events
		}
		call := part.FunctionCall
		args := string(bytes.TrimSpace(call.Args))
		id := call.ID
		if id == "" {
			id = callID(idx, call.Name, args)
		}
		events = append(events, state.AppendToolCall(idx, id, call.Name, args)...)
		return append(events, state.Close(idx)...)

	case part.Thought:
		idx, events := d.run(state, llmprovider.BlockTypeThinking)
		if state.Terminal() {
			return events
		}
		events = append(events, state.AppendThinking(idx, part.Text)...)
		return append(events, state.AppendSignature(idx, part.ThoughtSignature)...)

	case part.Text != "":
		idx, events := d.run(state, llmprovider.BlockTypeText)
		if state.Terminal() {
			return events
		}
		return append(events, state.AppendText(idx, part.Text)...)
	}

	// Signature-only parts belong to the thinking block they follow
	if part.ThoughtSignature != "" && d.current >= 0 && state.Kind(d.current) == llmprovider.BlockTypeThinking {
		return state.AppendSignature(d.current, part.ThoughtSignature)
	}
	return nil
}

// run returns the open block of kind, closing a block of another kind first.
func (d *chunkDecoder) run(state *llmprovider.StreamState, kind llmprovider.BlockType) (int, []llmprovider.StreamEvent) {
	if d.current >= 0 && state.Kind(d.current) == kind {
		return d.current, nil
	}
	events := d.closeCurrent(state)
	if state.Terminal() {
		return -1, events
	}
	idx, opened := d.open(state, kind)
	d.current = idx
	return idx, append(events, opened...)
}

func (d *chunkDecoder) open(state *llmprovider.StreamState, kind llmprovider.BlockType) (int, []llmprovider.StreamEvent) {
	key := fmt.Sprintf("part:%d", d.parts)
	d.parts++
	return state.Open(key, kind)
}

func (d *chunkDecoder) closeCurrent(state *llmprovider.StreamState) []llmprovider.StreamEvent {
	if d.current < 0 {
		return nil
	}
	idx := d.current
	d.current = -1
	return state.Close(idx)
}

// callID derives a stable id from the call's position, name and arguments,
// so a buffered and a streamed decode of the same completion agree.
func callID(index int, name, args string) string {
	return "call_" + uuid.NewSHA1(callNamespace, fmt.Appendf(nil, "%d:%s:%s", index, name, args)).String()
}
