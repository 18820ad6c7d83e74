package llmprovider

import (
	"fmt"
	"slices"
)

// ParameterValidationRule checks parameters against the vendor's documented limits
type ParameterValidationRule struct {
	catalog *Catalog
}

func (r *ParameterValidationRule) Name() string {
	return "Parameter Validation"
}

func (r *ParameterValidationRule) Check(provider ProviderID, req *GenerateRequest) []ValidationWarning {
	var warnings []ValidationWarning

	if req.Params == nil {
		return warnings
	}

	constraints, ok := r.catalog.Constraints(provider)
	if !ok {
		return warnings
	}

	if req.Params.Temperature != nil && constraints.TemperatureMax > 0 {
		temp := *req.Params.Temperature
		if temp > constraints.TemperatureMax {
			warnings = append(warnings, ValidationWarning{
				Code:     WarningCodeTemperatureOutOfRange,
				Category: "parameter",
				Field:    "temperature",
				Value:    temp,
				Message:  fmt.Sprintf("Temperature %.2f above %s maximum %.2f", temp, provider, constraints.TemperatureMax),
				Severity: SeverityError,
			})
		}
	}

	set := map[string]bool{
		"top_k":             req.Params.TopK != nil,
		"seed":              req.Params.Seed != nil,
		"frequency_penalty": req.Params.FrequencyPenalty != nil,
		"presence_penalty":  req.Params.PresencePenalty != nil,
		"response_format":   req.Params.ResponseFormat != nil,
	}
	for _, name := range constraints.Unsupported {
		if set[name] {
			warnings = append(warnings, ValidationWarning{
				Code:     WarningCodeParameterUnsupported,
				Category: "parameter",
				Field:    name,
				Message:  fmt.Sprintf("Parameter %s is not supported by %s and will be dropped", name, provider),
				Severity: SeverityInfo,
			})
		}
	}

	return warnings
}

// ToolValidationRule checks tool definitions and tool choice
type ToolValidationRule struct{}

func (r *ToolValidationRule) Name() string {
	return "Tool Validation"
}

func (r *ToolValidationRule) Check(provider ProviderID, req *GenerateRequest) []ValidationWarning {
	var warnings []ValidationWarning

	if req.Params == nil {
		return warnings
	}

	seen := make(map[string]bool, len(req.Params.Tools))
	for _, tool := range req.Params.Tools {
		name := tool.Function.Name
		if seen[name] {
			warnings = append(warnings, ValidationWarning{
				Code:     WarningCodeToolDuplicate,
				Category: "tool",
				Field:    "tools",
				Value:    name,
				Message:  fmt.Sprintf("Tool %s is defined more than once", name),
				Severity: SeverityError,
			})
		}
		seen[name] = true
	}

	choice := req.Params.ToolChoice
	if choice == nil {
		return warnings
	}

	if len(req.Params.Tools) == 0 && choice.Mode != ToolChoiceModeNone {
		warnings = append(warnings, ValidationWarning{
			Code:     WarningCodeToolChoiceNoTools,
			Category: "tool",
			Field:    "tool_choice",
			Value:    choice.Mode,
			Message:  "Tool choice set but no tools are defined",
			Severity: SeverityWarning,
		})
	}

	if choice.Mode == ToolChoiceModeSpecific && !seen[choice.ToolName] {
		warnings = append(warnings, ValidationWarning{
			Code:     WarningCodeToolChoiceUnknown,
			Category: "tool",
			Field:    "tool_choice",
			Value:    choice.ToolName,
			Message:  fmt.Sprintf("Tool choice names %s, which is not among the defined tools", choice.ToolName),
			Severity: SeverityError,
		})
	}

	return warnings
}

// ThinkingValidationRule checks thinking budget against vendor limits
type ThinkingValidationRule struct {
	catalog *Catalog
}

func (r *ThinkingValidationRule) Name() string {
	return "Thinking Validation"
}

func (r *ThinkingValidationRule) Check(provider ProviderID, req *GenerateRequest) []ValidationWarning {
	var warnings []ValidationWarning

	if !req.Params.IsThinkingEnabled() {
		return warnings
	}

	budget := r.catalog.ThinkingBudgetFor(provider, req.Params)
	constraints, _ := r.catalog.Constraints(provider)

	if constraints.ThinkingMinimum > 0 && budget < constraints.ThinkingMinimum {
		warnings = append(warnings, ValidationWarning{
			Code:     WarningCodeThinkingBudgetTooLow,
			Category: "thinking",
			Field:    "thinking_budget",
			Value:    budget,
			Message:  fmt.Sprintf("Thinking budget %d below %s minimum %d", budget, provider, constraints.ThinkingMinimum),
			Severity: SeverityError,
		})
	}

	maxTokens := req.Params.GetMaxTokens(r.catalog.MaxTokens(provider, req.Model))
	if provider == ProviderAnthropic && maxTokens > 0 && budget >= maxTokens {
		warnings = append(warnings, ValidationWarning{
			Code:     WarningCodeThinkingBudgetTooHigh,
			Category: "thinking",
			Field:    "thinking_budget",
			Value:    budget,
			Message:  fmt.Sprintf("Thinking budget %d must be below max_tokens %d", budget, maxTokens),
			Severity: SeverityError,
		})
	}

	return warnings
}

// MessageValidationRule checks the conversation history
type MessageValidationRule struct{}

func (r *MessageValidationRule) Name() string {
	return "Message Validation"
}

func (r *MessageValidationRule) Check(provider ProviderID, req *GenerateRequest) []ValidationWarning {
	var warnings []ValidationWarning

	callIDs := make([]string, 0)
	for _, msg := range req.Messages {
		for _, block := range msg.Blocks {
			switch {
			case block.IsToolCallBlock():
				callIDs = append(callIDs, block.ToolCall.ID)
			case block.IsToolResultBlock():
				if !slices.Contains(callIDs, block.ToolResult.ToolCallID) {
					warnings = append(warnings, ValidationWarning{
						Code:     WarningCodeToolResultDangling,
						Category: "message",
						Field:    "messages",
						Value:    block.ToolResult.ToolCallID,
						Message:  fmt.Sprintf("Tool result %s does not follow a matching tool call", block.ToolResult.ToolCallID),
						Severity: SeverityWarning,
					})
				}
			case block.IsImageBlock() && msg.Role == RoleAssistant:
				warnings = append(warnings, ValidationWarning{
					Code:     WarningCodeImageInAssistant,
					Category: "message",
					Field:    "messages",
					Message:  "Assistant messages cannot carry images; the block will be rejected",
					Severity: SeverityWarning,
				})
			}
		}
	}

	return warnings
}
