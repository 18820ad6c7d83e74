package gemini

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/haowjy/unillm-go"
)

func geminiRole(role llmprovider.Role) string {
	if role == llmprovider.RoleAssistant {
		return "model"
	}
	return "user"
}

// convertMessages converts the conversation into alternating user/model
// contents. names maps tool call IDs to function names so tool results,
// which Gemini matches by name, can be resolved.
func convertMessages(messages []llmprovider.Message, names map[string]string) ([]Content, error) {
	turns := llmprovider.CoalesceTurns(messages, geminiRole)
	contents := make([]Content, 0, len(turns))

	for i, turn := range turns {
		parts := make([]Part, 0, len(turn.Blocks))
		for j, block := range turn.Blocks {
			field := fmt.Sprintf("turns[%d].blocks[%d]", i, j)

			switch block.BlockType {
			case llmprovider.BlockTypeText:
				if block.Text != "" {
					parts = append(parts, Part{Text: block.Text})
				}

			case llmprovider.BlockTypeImage:
				if turn.Role == "model" {
					return nil, &llmprovider.ValidationError{Field: field, Reason: "assistant messages cannot carry images"}
				}
				parts = append(parts, convertImage(block.Image))

			case llmprovider.BlockTypeThinking:
				if turn.Role == "model" && block.Signature != "" {
					parts = append(parts, Part{Text: block.Text, Thought: true, ThoughtSignature: block.Signature})
				}

			case llmprovider.BlockTypeToolCall:
				args := json.RawMessage(bytes.TrimSpace(block.ToolCall.Arguments))
				if len(args) == 0 {
					args = json.RawMessage("{}")
				}
				parts = append(parts, Part{FunctionCall: &FunctionCall{Name: block.ToolCall.Name, Args: args}})

			case llmprovider.BlockTypeToolResult:
				result := block.ToolResult
				name, ok := llmprovider.ToolResultName(result, names)
				if !ok {
					return nil, &llmprovider.ValidationError{
						Field:  field,
						Value:  result.ToolCallID,
						Reason: "tool result has no name and matches no earlier tool call",
					}
				}
				key := "result"
				if result.IsError {
					key = "error"
				}
				parts = append(parts, Part{FunctionResponse: &FunctionResponse{
					Name:     name,
					Response: map[string]any{key: result.Content},
				}})
			}
		}

		if len(parts) > 0 {
			contents = append(contents, Content{Role: turn.Role, Parts: parts})
		}
	}

	return contents, nil
}

func convertImage(img *llmprovider.ImageRef) Part {
	if mediaType, data, ok := img.Inline(); ok {
		return Part{InlineData: &Blob{MimeType: mediaType, Data: data}}
	}
	return Part{FileData: &FileData{MimeType: img.MediaType, FileURI: img.URL}}
}

// probeFragment rejects non-JSON payloads and turns {"error": ...} bodies
// into vendor error events.
func probeFragment(state *llmprovider.StreamState, data []byte) []llmprovider.StreamEvent {
	if !gjson.ValidBytes(data) {
		return state.Fail(llmprovider.NewProtocolError(state.Provider(), "fragment is not valid JSON"))
	}
	if apiErr := gjson.GetBytes(data, "error"); apiErr.Exists() {
		code := apiErr.Get("status").String()
		if code == "" {
			code = apiErr.Get("code").String()
		}
		return state.Fail(llmprovider.NewVendorError(state.Provider(), code, apiErr.Get("message").String()))
	}
	return nil
}
