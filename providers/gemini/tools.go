package gemini

import (
	"github.com/haowjy/unillm-go"
)

// convertTools converts tools to function declarations. Gemini accepts the
// JSON Schema parameters unchanged through parametersJsonSchema.
func convertTools(tools []llmprovider.Tool) []FunctionDeclaration {
	decls := make([]FunctionDeclaration, len(tools))
	for i, tool := range tools {
		decls[i] = FunctionDeclaration{
			Name:                 tool.Function.Name,
			Description:          tool.Function.Description,
			ParametersJSONSchema: tool.Function.Parameters,
		}
	}
	return decls
}

// convertToolChoice maps the tool choice onto functionCallingConfig. A
// specific tool is ANY restricted to that one name.
func convertToolChoice(choice *llmprovider.ToolChoice) *ToolConfig {
	var config FunctionCallingConfig
	switch choice.Mode {
	case llmprovider.ToolChoiceModeNone:
		config.Mode = "NONE"
	case llmprovider.ToolChoiceModeRequired:
		config.Mode = "ANY"
	case llmprovider.ToolChoiceModeSpecific:
		config.Mode = "ANY"
		config.AllowedFunctionNames = []string{choice.ToolName}
	default:
		config.Mode = "AUTO"
	}
	return &ToolConfig{FunctionCallingConfig: config}
}
