package openai

import (
	"github.com/haowjy/unillm-go"
)

// convertTools converts library tools to the Chat Completions format, which
// is the library's own tool shape.
func convertTools(tools []llmprovider.Tool) []Tool {
	result := make([]Tool, 0, len(tools))
	for _, tool := range tools {
		parameters := tool.Function.Parameters
		if parameters == nil {
			parameters = map[string]any{"type": "object"}
		}
		result = append(result, Tool{
			Type: "function",
			Function: FunctionDefinition{
				Name:        tool.Function.Name,
				Description: tool.Function.Description,
				Parameters:  parameters,
			},
		})
	}
	return result
}

// convertToolChoice converts library tool choice to the OpenAI format.
func convertToolChoice(tc *llmprovider.ToolChoice) any {
	switch tc.Mode {
	case llmprovider.ToolChoiceModeRequired:
		return "required"
	case llmprovider.ToolChoiceModeNone:
		return "none"
	case llmprovider.ToolChoiceModeSpecific:
		return map[string]any{
			"type": "function",
			"function": map[string]any{
				"name": tc.ToolName,
			},
		}
	default:
		return "auto"
	}
}
