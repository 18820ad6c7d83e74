package anthropic

import (
	"bytes"
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/tidwall/gjson"

	"github.com/haowjy/unillm-go"
)

// eventDecoder maps Messages API stream events onto stream state transitions.
//
// Event order on the wire:
//   - message_start: model and input usage
//   - content_block_start / content_block_delta / content_block_stop per block
//   - message_delta: stop_reason and cumulative output usage
//   - message_stop
//
// ping events may appear anywhere.
type eventDecoder struct {
	// vendor indices of blocks with no library counterpart
	skipped map[int64]bool
}

func (d *eventDecoder) step(state *llmprovider.StreamState, f llmprovider.Fragment) []llmprovider.StreamEvent {
	data := bytes.TrimSpace(f.Data)
	if len(data) == 0 {
		return nil
	}
	if failed := probeFragment(state, data); failed != nil {
		return failed
	}

	eventType := gjson.GetBytes(data, "type").String()
	switch eventType {
	case "":
		return state.Fail(llmprovider.NewProtocolError(state.Provider(), "stream event without a type"))
	case "ping":
		return nil
	}

	var event anthropic.MessageStreamEventUnion
	if err := json.Unmarshal(data, &event); err != nil {
		return state.Fail(llmprovider.NewProtocolError(state.Provider(), "malformed %s event: %v", eventType, err))
	}

	switch e := event.AsAny().(type) {
	case anthropic.MessageStartEvent:
		state.SetModel(string(e.Message.Model))
		u := e.Message.Usage
		state.MergeUsage(toUsage(u.InputTokens, u.OutputTokens, u.CacheReadInputTokens))
		return nil

	case anthropic.ContentBlockStartEvent:
		block := e.ContentBlock
		idx, events, ok := openBlock(state, e.Index, block.Type, block.ID, block.Name)
		if !ok {
			if !state.Terminal() {
				d.skipped[e.Index] = true
			}
			return events
		}
		// Start events usually carry empty content; deltas follow
		switch block.Type {
		case "text":
			events = append(events, state.AppendText(idx, block.Text)...)
		case "thinking":
			events = append(events, state.AppendThinking(idx, block.Thinking)...)
			events = append(events, state.AppendSignature(idx, block.Signature)...)
		}
		return events

	case anthropic.ContentBlockDeltaEvent:
		if d.skipped[e.Index] {
			return nil
		}
		idx, ok := state.Index(blockKey(e.Index))
		if !ok {
			return state.Fail(llmprovider.NewProtocolError(state.Provider(), "delta for content block %d before its start", e.Index))
		}
		switch e.Delta.Type {
		case "text_delta":
			return state.AppendText(idx, e.Delta.Text)
		case "thinking_delta":
			return state.AppendThinking(idx, e.Delta.Thinking)
		case "signature_delta":
			return state.AppendSignature(idx, e.Delta.Signature)
		case "input_json_delta":
			return state.AppendToolCall(idx, "", "", e.Delta.PartialJSON)
		}
		return nil

	case anthropic.ContentBlockStopEvent:
		if d.skipped[e.Index] {
			return nil
		}
		idx, ok := state.Index(blockKey(e.Index))
		if !ok {
			return state.Fail(llmprovider.NewProtocolError(state.Provider(), "end of content block %d before its start", e.Index))
		}
		return state.Close(idx)

	case anthropic.MessageDeltaEvent:
		u := e.Usage
		state.MergeUsage(toUsage(u.InputTokens, u.OutputTokens, u.CacheReadInputTokens))
		if e.Delta.StopReason != "" {
			state.SetStopReason(mapStopReason(e.Delta.StopReason), string(e.Delta.StopReason))
		}
		return nil

	case anthropic.MessageStopEvent:
		return state.Finish()
	}

	// Event types added after this decoder was written are ignored
	return nil
}
