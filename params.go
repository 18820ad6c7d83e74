package llmprovider

import "fmt"

// RequestParams represents all supported generation parameters across providers.
// All fields are optional pointers to distinguish "not set" from "set to zero value".
// Adapters map what their vendor supports and ignore the rest.
type RequestParams struct {
	// ===== Core Parameters (All Providers) =====

	// MaxTokens sets the maximum number of tokens to generate.
	// Anthropic requires it; the adapter falls back to a per-model default.
	MaxTokens *int `json:"max_tokens,omitempty"`

	// Temperature controls randomness (0.0-2.0)
	Temperature *float64 `json:"temperature,omitempty"`

	// TopP (nucleus sampling) - cumulative probability cutoff (0.0-1.0)
	TopP *float64 `json:"top_p,omitempty"`

	// TopK limits sampling to top K tokens (Anthropic, Gemini)
	TopK *int `json:"top_k,omitempty"`

	// Stop sequences - generation stops if any of these are generated
	Stop []string `json:"stop,omitempty"`

	// Seed for deterministic sampling (OpenAI, Gemini)
	Seed *int `json:"seed,omitempty"`

	// System prompt, prepended to any system messages
	System *string `json:"system,omitempty"`

	// ===== Thinking / Reasoning =====

	// ThinkingEnabled enables extended thinking (Anthropic thinking, Gemini thinkingConfig,
	// OpenAI reasoning_effort)
	ThinkingEnabled *bool `json:"thinking_enabled,omitempty"`

	// ThinkingLevel sets the thinking budget: "low", "medium", "high"
	// Maps to token budgets: low=2000, medium=5000, high=12000
	ThinkingLevel *string `json:"thinking_level,omitempty"`

	// ThinkingBudget overrides ThinkingLevel with an explicit token budget
	ThinkingBudget *int `json:"thinking_budget,omitempty"`

	// ===== OpenAI-Specific Parameters =====

	// FrequencyPenalty reduces repetition of token sequences (-2.0 to 2.0)
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`

	// PresencePenalty reduces repetition of topics (-2.0 to 2.0)
	PresencePenalty *float64 `json:"presence_penalty,omitempty"`

	// ResponseFormat for structured outputs (JSON mode)
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`

	// ===== Tool Parameters =====

	// Tools available for the model to use
	Tools []Tool `json:"tools,omitempty"`

	// ToolChoice controls whether/which tools to use
	ToolChoice *ToolChoice `json:"tool_choice,omitempty"`

	// ParallelToolCalls allows model to use multiple tools simultaneously
	ParallelToolCalls *bool `json:"parallel_tool_calls,omitempty"`
}

// ResponseFormat specifies the format for structured outputs
type ResponseFormat struct {
	Type       string         `json:"type"`                  // "text", "json_object", "json_schema"
	Name       string         `json:"name,omitempty"`        // Schema name (json_schema)
	JSONSchema map[string]any `json:"json_schema,omitempty"` // Schema for structured output
}

// ValidateRequestParams checks vendor-independent ranges. Vendor limits
// (for example Anthropic's temperature cap) are checked by each adapter.
func ValidateRequestParams(params *RequestParams) error {
	if params == nil {
		return nil
	}

	checks := []error{
		inRange("temperature", params.Temperature, 0, 2),
		inRange("top_p", params.TopP, 0, 1),
		atLeast("top_k", params.TopK, 0),
		atLeast("max_tokens", params.MaxTokens, 1),
		atLeast("thinking_budget", params.ThinkingBudget, 0),
		inRange("frequency_penalty", params.FrequencyPenalty, -2, 2),
		inRange("presence_penalty", params.PresencePenalty, -2, 2),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}

	if params.ThinkingLevel != nil {
		switch *params.ThinkingLevel {
		case "low", "medium", "high":
		default:
			return &ValidationError{Field: "thinking_level", Value: *params.ThinkingLevel, Reason: "must be 'low', 'medium', or 'high'"}
		}
	}

	for i := range params.Tools {
		if err := params.Tools[i].Validate(); err != nil {
			return &ValidationError{Field: "tools", Value: params.Tools[i].Function.Name, Reason: err.Error()}
		}
	}

	if params.ToolChoice != nil {
		if err := params.ToolChoice.Validate(); err != nil {
			return &ValidationError{Field: "tool_choice", Value: params.ToolChoice.Mode, Reason: err.Error()}
		}
	}

	return nil
}

func inRange(field string, v *float64, lo, hi float64) error {
	if v == nil || (*v >= lo && *v <= hi) {
		return nil
	}
	return &ValidationError{Field: field, Value: *v, Reason: fmt.Sprintf("must be between %.1f and %.1f", lo, hi)}
}

func atLeast(field string, v *int, lo int) error {
	if v == nil || *v >= lo {
		return nil
	}
	return &ValidationError{Field: field, Value: *v, Reason: fmt.Sprintf("must be at least %d", lo)}
}

// GetMaxTokens returns max_tokens with default fallback
func (rp *RequestParams) GetMaxTokens(defaultValue int) int {
	if rp != nil && rp.MaxTokens != nil {
		return *rp.MaxTokens
	}
	return defaultValue
}

// GetTemperature returns temperature with default fallback
func (rp *RequestParams) GetTemperature(defaultValue float64) float64 {
	if rp != nil && rp.Temperature != nil {
		return *rp.Temperature
	}
	return defaultValue
}

// IsThinkingEnabled reports whether extended thinking was requested.
func (rp *RequestParams) IsThinkingEnabled() bool {
	return rp != nil && rp.ThinkingEnabled != nil && *rp.ThinkingEnabled
}

// GetThinkingBudgetTokens converts thinking settings to a token budget.
// An explicit ThinkingBudget wins; otherwise low = 2000, medium = 5000, high = 12000.
func (rp *RequestParams) GetThinkingBudgetTokens() int {
	if rp == nil {
		return 0
	}
	if rp.ThinkingBudget != nil {
		return *rp.ThinkingBudget
	}
	if rp.ThinkingLevel == nil {
		return 0 // Thinking not enabled
	}

	switch *rp.ThinkingLevel {
	case "low":
		return 2000
	case "medium":
		return 5000
	case "high":
		return 12000
	default:
		return 0
	}
}

// Clone returns a deep copy of the params.
func (rp *RequestParams) Clone() *RequestParams {
	if rp == nil {
		return nil
	}
	out := *rp
	out.MaxTokens = clonePtr(rp.MaxTokens)
	out.Temperature = clonePtr(rp.Temperature)
	out.TopP = clonePtr(rp.TopP)
	out.TopK = clonePtr(rp.TopK)
	out.Seed = clonePtr(rp.Seed)
	out.System = clonePtr(rp.System)
	out.ThinkingEnabled = clonePtr(rp.ThinkingEnabled)
	out.ThinkingLevel = clonePtr(rp.ThinkingLevel)
	out.ThinkingBudget = clonePtr(rp.ThinkingBudget)
	out.FrequencyPenalty = clonePtr(rp.FrequencyPenalty)
	out.PresencePenalty = clonePtr(rp.PresencePenalty)
	out.ParallelToolCalls = clonePtr(rp.ParallelToolCalls)
	if rp.Stop != nil {
		out.Stop = append([]string(nil), rp.Stop...)
	}
	if rp.Tools != nil {
		out.Tools = make([]Tool, len(rp.Tools))
		for i := range rp.Tools {
			out.Tools[i] = rp.Tools[i].Clone()
		}
	}
	if rp.ToolChoice != nil {
		choice := *rp.ToolChoice
		out.ToolChoice = &choice
	}
	if rp.ResponseFormat != nil {
		format := *rp.ResponseFormat
		format.JSONSchema = cloneSchema(rp.ResponseFormat.JSONSchema)
		out.ResponseFormat = &format
	}
	return &out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
