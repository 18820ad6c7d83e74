package llmprovider

import (
	"log/slog"
	"reflect"
	"testing"
)

func warningCodes(warnings []ValidationWarning) map[WarningCode]bool {
	codes := make(map[WarningCode]bool, len(warnings))
	for _, w := range warnings {
		codes[w.Code] = true
	}
	return codes
}

func TestDefaultValidationEngine(t *testing.T) {
	engine := DefaultValidationEngine(nil)
	lookup := Tool{Type: "function", Function: FunctionDetails{Name: "lookup", Parameters: map[string]any{"type": "object"}}}

	tests := []struct {
		name     string
		provider ProviderID
		req      *GenerateRequest
		want     []WarningCode
	}{
		{
			name:     "clean request",
			provider: ProviderOpenAI,
			req:      NewRequest(WithModel("gpt-4o"), WithUserText("hi")),
		},
		{
			name:     "temperature above anthropic max",
			provider: ProviderAnthropic,
			req:      NewRequest(WithUserText("hi"), WithTemperature(1.5)),
			want:     []WarningCode{WarningCodeTemperatureOutOfRange},
		},
		{
			name:     "unsupported parameter",
			provider: ProviderOpenAI,
			req:      NewRequest(WithUserText("hi"), WithTopK(40)),
			want:     []WarningCode{WarningCodeParameterUnsupported},
		},
		{
			name:     "duplicate tool and unknown choice",
			provider: ProviderOpenAI,
			req:      NewRequest(WithUserText("hi"), WithTools(lookup, lookup), WithToolChoice(ToolChoice{Mode: ToolChoiceModeSpecific, ToolName: "search"})),
			want:     []WarningCode{WarningCodeToolDuplicate, WarningCodeToolChoiceUnknown},
		},
		{
			name:     "tool choice without tools",
			provider: ProviderOpenAI,
			req:      NewRequest(WithUserText("hi"), WithToolChoice(ToolChoice{Mode: ToolChoiceModeRequired})),
			want:     []WarningCode{WarningCodeToolChoiceNoTools},
		},
		{
			name:     "thinking budget below anthropic minimum",
			provider: ProviderAnthropic,
			req: func() *GenerateRequest {
				req := NewRequest(WithModel("claude-sonnet-4-5"), WithUserText("hi"), WithThinking("low"))
				req.Params.ThinkingBudget = intPtr(512)
				return req
			}(),
			want: []WarningCode{WarningCodeThinkingBudgetTooLow},
		},
		{
			name:     "thinking budget above max tokens",
			provider: ProviderAnthropic,
			req:      NewRequest(WithModel("claude-sonnet-4-5"), WithUserText("hi"), WithThinking("high"), WithMaxTokens(4000)),
			want:     []WarningCode{WarningCodeThinkingBudgetTooHigh},
		},
		{
			name:     "dangling tool result",
			provider: ProviderGoogle,
			req:      NewRequest(WithMessages(UserMessage("hi"), ToolResultMessage("call_x", "lookup", "42", false))),
			want:     []WarningCode{WarningCodeToolResultDangling},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := warningCodes(engine.Validate(tt.provider, tt.req))
			if len(got) != len(tt.want) {
				t.Fatalf("warnings = %v, want %v", got, tt.want)
			}
			for _, code := range tt.want {
				if !got[code] {
					t.Errorf("missing warning %s in %v", code, got)
				}
			}
		})
	}
}

func TestValidationEngine_RemoveRule(t *testing.T) {
	engine := DefaultValidationEngine(nil)
	req := NewRequest(WithUserText("hi"), WithTemperature(1.5))

	if !engine.RemoveRule("Parameter Validation") {
		t.Fatal("RemoveRule() = false")
	}
	if engine.RemoveRule("Parameter Validation") {
		t.Error("second RemoveRule() = true")
	}
	if warnings := engine.Validate(ProviderAnthropic, req); len(warnings) != 0 {
		t.Errorf("warnings after removal = %v", warnings)
	}
}

func TestValidationEngine_AddRuleReplacesByName(t *testing.T) {
	engine := DefaultValidationEngine(nil)
	engine.AddRule(&ToolValidationRule{})

	want := []string{"Parameter Validation", "Tool Validation", "Thinking Validation", "Message Validation"}
	if got := engine.Rules(); !reflect.DeepEqual(got, want) {
		t.Errorf("Rules() = %v, want %v", got, want)
	}
}

func TestWarnings_Filter(t *testing.T) {
	warnings := Warnings{
		{Code: WarningCodeToolDuplicate, Category: "tool", Severity: SeverityError},
		{Code: WarningCodeParameterUnsupported, Category: "parameter", Severity: SeverityInfo},
		{Code: WarningCodeToolChoiceNoTools, Category: "tool", Severity: SeverityWarning},
	}

	if got := warnings.BySeverity(SeverityError, SeverityWarning); len(got) != 2 {
		t.Errorf("BySeverity = %d, want 2", len(got))
	}
	if got := warnings.ByCategory("parameter"); len(got) != 1 || got[0].Code != WarningCodeParameterUnsupported {
		t.Errorf("ByCategory = %v", got)
	}
	if !warnings.Has(WarningCodeToolChoiceNoTools) || warnings.Has(WarningCodeImageInAssistant) {
		t.Error("Has() mismatch")
	}
}

func TestSeverity_Level(t *testing.T) {
	if SeverityInfo.Level() != slog.LevelDebug {
		t.Error("info should log at debug")
	}
	if SeverityError.Level() != slog.LevelWarn || SeverityWarning.Level() != slog.LevelWarn {
		t.Error("warning and error should log at warn")
	}
}
