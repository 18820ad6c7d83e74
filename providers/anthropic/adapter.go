package anthropic

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/tidwall/gjson"

	"github.com/haowjy/unillm-go"
)

// anthropicRole maps library roles onto the two Messages API roles. Tool
// results travel inside the user turn.
func anthropicRole(role llmprovider.Role) string {
	if role == llmprovider.RoleAssistant {
		return "assistant"
	}
	return "user"
}

// convertMessages converts the conversation (system messages excluded) to
// alternating Anthropic turns.
func convertMessages(messages []llmprovider.Message) ([]anthropic.MessageParam, error) {
	turns := llmprovider.CoalesceTurns(messages, anthropicRole)
	result := make([]anthropic.MessageParam, 0, len(turns))

	for i, turn := range turns {
		blocks, err := convertBlocks(turn, i)
		if err != nil {
			return nil, err
		}
		if len(blocks) == 0 {
			continue
		}
		if turn.Role == "assistant" {
			result = append(result, anthropic.NewAssistantMessage(blocks...))
		} else {
			result = append(result, anthropic.NewUserMessage(blocks...))
		}
	}

	return result, nil
}

func convertBlocks(turn llmprovider.Turn, turnIndex int) ([]anthropic.ContentBlockParamUnion, error) {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(turn.Blocks))
	field := func(j int) string { return fmt.Sprintf("turns[%d].blocks[%d]", turnIndex, j) }

	for j, block := range turn.Blocks {
		switch block.BlockType {
		case llmprovider.BlockTypeText:
			// The API rejects empty text blocks
			if block.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(block.Text))
			}

		case llmprovider.BlockTypeImage:
			if turn.Role == "assistant" {
				return nil, &llmprovider.ValidationError{Field: field(j), Reason: "assistant messages cannot carry images"}
			}
			blocks = append(blocks, convertImage(block.Image))

		case llmprovider.BlockTypeThinking:
			// Unsigned thinking cannot be replayed; the API verifies the signature
			if turn.Role == "assistant" && block.Signature != "" {
				blocks = append(blocks, anthropic.NewThinkingBlock(block.Signature, block.Text))
			}

		case llmprovider.BlockTypeToolCall:
			call := block.ToolCall
			if call.ID == "" {
				return nil, &llmprovider.ValidationError{Field: field(j) + ".id", Reason: "anthropic tool_use blocks need an id"}
			}
			args := json.RawMessage(bytes.TrimSpace(call.Arguments))
			if len(args) == 0 {
				args = json.RawMessage("{}")
			}
			blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, args, call.Name))

		case llmprovider.BlockTypeToolResult:
			result := block.ToolResult
			blocks = append(blocks, anthropic.NewToolResultBlock(result.ToolCallID, result.Content, result.IsError))
		}
	}

	return blocks, nil
}

func convertImage(img *llmprovider.ImageRef) anthropic.ContentBlockParamUnion {
	if mediaType, data, ok := img.Inline(); ok {
		return anthropic.NewImageBlockBase64(mediaType, data)
	}
	return anthropic.NewImageBlock(anthropic.URLImageSourceParam{URL: img.URL})
}

// stepMessage decodes a whole Messages API response body. Blocks run through
// the same state transitions as a stream: each content block opens, receives
// its full content as one delta and closes.
func stepMessage(state *llmprovider.StreamState, f llmprovider.Fragment) []llmprovider.StreamEvent {
	data := bytes.TrimSpace(f.Data)
	if failed := probeFragment(state, data); failed != nil {
		return failed
	}

	var msg anthropic.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return state.Fail(llmprovider.NewProtocolError(state.Provider(), "malformed message: %v", err))
	}

	state.SetModel(string(msg.Model))

	var events []llmprovider.StreamEvent
	for i, block := range msg.Content {
		idx, opened, ok := openBlock(state, int64(i), block.Type, block.ID, block.Name)
		events = append(events, opened...)
		if !ok {
			continue
		}
		switch block.Type {
		case "text":
			events = append(events, state.AppendText(idx, block.Text)...)
		case "thinking":
			events = append(events, state.AppendThinking(idx, block.Thinking)...)
			events = append(events, state.AppendSignature(idx, block.Signature)...)
		case "tool_use":
			events = append(events, state.AppendToolCall(idx, "", "", string(block.Input))...)
		}
		events = append(events, state.Close(idx)...)
		if state.Terminal() {
			return events
		}
	}

	state.SetUsage(toUsage(msg.Usage.InputTokens, msg.Usage.OutputTokens, msg.Usage.CacheReadInputTokens))
	state.SetStopReason(mapStopReason(msg.StopReason), string(msg.StopReason))
	return append(events, state.Finish()...)
}

// openBlock opens the normalized block for a vendor content block. Content
// types without a library counterpart (redacted_thinking, server tool
// blocks) are skipped and reported with ok=false.
func openBlock(state *llmprovider.StreamState, index int64, blockType, id, name string) (int, []llmprovider.StreamEvent, bool) {
	var kind llmprovider.BlockType
	switch blockType {
	case "text":
		kind = llmprovider.BlockTypeText
	case "thinking":
		kind = llmprovider.BlockTypeThinking
	case "tool_use":
		kind = llmprovider.BlockTypeToolCall
	default:
		return -1, nil, false
	}

	idx, events := state.Open(blockKey(index), kind)
	if state.Terminal() {
		return -1, events, false
	}
	if kind == llmprovider.BlockTypeToolCall {
		events = append(events, state.AppendToolCall(idx, id, name, "")...)
	}
	return idx, events, true
}

// probeFragment rejects non-JSON payloads and turns error objects into vendor
// error events. It returns nil when the fragment should be decoded normally.
func probeFragment(state *llmprovider.StreamState, data []byte) []llmprovider.StreamEvent {
	if !gjson.ValidBytes(data) {
		return state.Fail(llmprovider.NewProtocolError(state.Provider(), "fragment is not valid JSON"))
	}
	parsed := gjson.ParseBytes(data)
	if parsed.Get("type").String() == "error" {
		code := parsed.Get("error.type").String()
		return state.Fail(llmprovider.NewVendorError(state.Provider(), code, parsed.Get("error.message").String()))
	}
	return nil
}
