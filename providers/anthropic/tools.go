package anthropic

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/tidwall/sjson"

	"github.com/haowjy/unillm-go"
)

// convertTools converts library tools to Anthropic custom tools.
func convertTools(tools []llmprovider.Tool) ([]anthropic.ToolUnionParam, error) {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for i := range tools {
		if err := tools[i].Validate(); err != nil {
			return nil, &llmprovider.ValidationError{
				Field:  fmt.Sprintf("tools[%d]", i),
				Value:  tools[i].Function.Name,
				Reason: err.Error(),
			}
		}
		result = append(result, convertCustomTool(&tools[i]))
	}
	return result, nil
}

// convertCustomTool flattens the function schema into input_schema. Only
// properties and required are typed fields; the remaining schema keywords are
// written by applySchemaExtras after marshaling.
func convertCustomTool(tool *llmprovider.Tool) anthropic.ToolUnionParam {
	schema := anthropic.ToolInputSchemaParam{
		Properties: tool.Function.Parameters["properties"],
	}

	switch required := tool.Function.Parameters["required"].(type) {
	case []string:
		schema.Required = append([]string(nil), required...)
	case []any:
		for _, v := range required {
			if s, ok := v.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}

	toolParam := anthropic.ToolUnionParamOfTool(schema, tool.Function.Name)
	if tool.Function.Description != "" {
		toolParam.OfTool.Description = anthropic.String(tool.Function.Description)
	}
	return toolParam
}

// applySchemaExtras copies schema keywords other than type, properties and
// required (additionalProperties, $defs, ...) into each tool's input_schema.
// The SDK's ExtraFields are set in map order, so keys are written here in
// sorted order to keep the body byte-stable.
func applySchemaExtras(body []byte, tools []llmprovider.Tool) ([]byte, error) {
	for i, tool := range tools {
		keys := make([]string, 0, len(tool.Function.Parameters))
		for key := range tool.Function.Parameters {
			if key != "type" && key != "properties" && key != "required" {
				keys = append(keys, key)
			}
		}
		slices.Sort(keys)

		for _, key := range keys {
			raw, err := json.Marshal(tool.Function.Parameters[key])
			if err != nil {
				return nil, fmt.Errorf("tool %s: schema keyword %s: %w", tool.Function.Name, key, err)
			}
			path := fmt.Sprintf("tools.%d.input_schema.%s", i, escapePathKey(key))
			if body, err = sjson.SetRawBytes(body, path, raw); err != nil {
				return nil, err
			}
		}
	}
	return body, nil
}

func escapePathKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// convertToolChoice maps the tool choice. Anthropic spells "required" as
// "any" and expresses parallel_tool_calls as its negation on the choice.
func convertToolChoice(choice *llmprovider.ToolChoice, parallel *bool) (anthropic.ToolChoiceUnionParam, error) {
	if err := choice.Validate(); err != nil {
		return anthropic.ToolChoiceUnionParam{}, &llmprovider.ValidationError{
			Field:  "tool_choice",
			Value:  string(choice.Mode),
			Reason: err.Error(),
		}
	}

	var result anthropic.ToolChoiceUnionParam
	switch choice.Mode {
	case llmprovider.ToolChoiceModeAuto:
		result.OfAuto = &anthropic.ToolChoiceAutoParam{}
		if parallel != nil {
			result.OfAuto.DisableParallelToolUse = anthropic.Bool(!*parallel)
		}
	case llmprovider.ToolChoiceModeRequired:
		result.OfAny = &anthropic.ToolChoiceAnyParam{}
		if parallel != nil {
			result.OfAny.DisableParallelToolUse = anthropic.Bool(!*parallel)
		}
	case llmprovider.ToolChoiceModeNone:
		none := anthropic.NewToolChoiceNoneParam()
		result.OfNone = &none
	case llmprovider.ToolChoiceModeSpecific:
		result = anthropic.ToolChoiceParamOfTool(choice.ToolName)
		if parallel != nil {
			result.OfTool.DisableParallelToolUse = anthropic.Bool(!*parallel)
		}
	}
	return result, nil
}
