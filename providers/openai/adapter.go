package openai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/haowjy/unillm-go"
)

// convertMessages converts the request conversation to Chat Completions
// messages. The system prompt becomes a leading system message.
func convertMessages(req *llmprovider.GenerateRequest) ([]Message, error) {
	result := make([]Message, 0, len(req.Messages)+1)

	if system := req.SystemPrompt(); system != "" {
		result = append(result, Message{Role: "system", Content: system})
	}

	for i, msg := range req.ConversationMessages() {
		converted, err := convertMessage(msg, i)
		if err != nil {
			return nil, err
		}
		result = append(result, converted...)
	}

	return result, nil
}

// convertMessage converts a single library message. Tool results become one
// role:"tool" message each, so a message may expand to several.
func convertMessage(msg llmprovider.Message, msgIndex int) ([]Message, error) {
	var result []Message
	var parts []ContentPart
	var toolCalls []ToolCall
	hasImage := false

	for j, block := range msg.Blocks {
		switch block.BlockType {
		case llmprovider.BlockTypeText:
			parts = append(parts, ContentPart{Type: "text", Text: block.Text})
		case llmprovider.BlockTypeImage:
			if msg.Role == llmprovider.RoleAssistant {
				return nil, &llmprovider.ValidationError{
					Field:  fmt.Sprintf("messages[%d].blocks[%d]", msgIndex, j),
					Reason: "assistant messages cannot carry images",
				}
			}
			hasImage = true
			parts = append(parts, ContentPart{Type: "image_url", ImageURL: convertImage(block.Image)})
		case llmprovider.BlockTypeToolCall:
			args := string(block.ToolCall.Arguments)
			if strings.TrimSpace(args) == "" {
				args = "{}"
			}
			toolCalls = append(toolCalls, ToolCall{
				ID:       block.ToolCall.ID,
				Type:     "function",
				Function: FunctionCall{Name: block.ToolCall.Name, Arguments: args},
			})
		case llmprovider.BlockTypeToolResult:
			result = append(result, Message{
				Role:       "tool",
				Content:    block.ToolResult.Content,
				ToolCallID: block.ToolResult.ToolCallID,
			})
		// Thinking blocks are not replayed: Chat Completions has no input slot for them
		}
	}

	if msg.Role == llmprovider.RoleTool || (len(parts) == 0 && len(toolCalls) == 0) {
		return result, nil
	}

	out := Message{Role: string(msg.Role)}
	if msg.Role == llmprovider.RoleAssistant && len(toolCalls) > 0 {
		out.ToolCalls = toolCalls
	}
	switch {
	case hasImage:
		out.Content = parts
	case len(parts) > 0:
		texts := make([]string, len(parts))
		for i, p := range parts {
			texts[i] = p.Text
		}
		out.Content = strings.Join(texts, "\n\n")
	}

	// Tool results of a user message answer calls made before its text.
	return append(result, out), nil
}

func convertImage(ref *llmprovider.ImageRef) *ImageURL {
	url := ref.URL
	if mediaType, data, ok := ref.Inline(); ok && len(ref.Data) > 0 {
		url = "data:" + mediaType + ";base64," + data
	}
	return &ImageURL{URL: url, Detail: ref.Detail}
}

// stepCompletion decodes a whole chat.completion body as one fragment.
func stepCompletion(state *llmprovider.StreamState, f llmprovider.Fragment) []llmprovider.StreamEvent {
	if failed := probeFragment(state, f.Data); failed != nil {
		return failed
	}

	var resp ChatCompletionResponse
	if err := json.Unmarshal(f.Data, &resp); err != nil {
		return state.Fail(llmprovider.NewProtocolError(state.Provider(), "malformed chat completion: %v", err))
	}
	if len(resp.Choices) == 0 {
		return state.Fail(llmprovider.NewProtocolError(state.Provider(), "chat completion has no choices"))
	}

	state.SetModel(resp.Model)
	if resp.Usage != nil {
		state.SetUsage(resp.Usage.toUsage())
	}

	choice := resp.Choices[0]
	events := applyDelta(state, choice.Message, true)
	if state.Terminal() {
		return events
	}

	raw := ""
	if choice.FinishReason != nil {
		raw = *choice.FinishReason
	}
	state.SetStopReason(stopReason(state, raw), raw)
	return append(events, state.Finish()...)
}

// probeFragment rejects fragments that are not JSON and turns inline error
// objects into vendor errors. It returns nil for a well-formed fragment.
func probeFragment(state *llmprovider.StreamState, data []byte) []llmprovider.StreamEvent {
	if !gjson.ValidBytes(data) {
		return state.Fail(llmprovider.NewProtocolError(state.Provider(), "fragment is not valid JSON"))
	}
	if e := gjson.GetBytes(data, "error"); e.Exists() && e.Type != gjson.Null {
		code := e.Get("code").String()
		if code == "" {
			code = e.Get("type").String()
		}
		message := e.Get("message").String()
		if message == "" {
			message = e.String()
		}
		return state.Fail(llmprovider.NewVendorError(state.Provider(), code, message))
	}
	return nil
}
