package llmprovider

import "log/slog"

// Severity ranks a validation warning.
type Severity string

const (
	SeverityInfo    Severity = "info"    // the vendor silently adjusts or drops something
	SeverityWarning Severity = "warning" // probably not what the caller meant
	SeverityError   Severity = "error"   // the vendor is expected to reject the request
)

// Level maps the severity to a log level: info is debug noise, the rest warn.
func (s Severity) Level() slog.Level {
	if s == SeverityInfo {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}

// WarningCode identifies a warning for programmatic handling.
type WarningCode string

const (
	WarningCodeTemperatureOutOfRange WarningCode = "TEMPERATURE_OUT_OF_RANGE"
	WarningCodeParameterUnsupported  WarningCode = "PARAMETER_UNSUPPORTED"

	WarningCodeToolDuplicate      WarningCode = "TOOL_DUPLICATE"
	WarningCodeToolChoiceUnknown  WarningCode = "TOOL_CHOICE_UNKNOWN"
	WarningCodeToolChoiceNoTools  WarningCode = "TOOL_CHOICE_WITHOUT_TOOLS"
	WarningCodeToolResultDangling WarningCode = "TOOL_RESULT_DANGLING"

	WarningCodeThinkingBudgetTooLow  WarningCode = "THINKING_BUDGET_TOO_LOW"
	WarningCodeThinkingBudgetTooHigh WarningCode = "THINKING_BUDGET_TOO_HIGH"

	WarningCodeImageInAssistant WarningCode = "IMAGE_IN_ASSISTANT_MESSAGE"
)

// ValidationWarning is one lint finding. Warnings never block a request.
type ValidationWarning struct {
	Code     WarningCode
	Category string // "parameter", "tool", "thinking" or "message"
	Field    string
	Value    any
	Message  string
	Severity Severity
}

// LogAttrs returns the structured fields logged alongside Message.
func (w ValidationWarning) LogAttrs(provider ProviderID) []any {
	return []any{"code", w.Code, "field", w.Field, "severity", w.Severity, "provider", provider}
}

// ValidationRule is one named lint check.
type ValidationRule interface {
	Name() string
	Check(provider ProviderID, req *GenerateRequest) []ValidationWarning
}
