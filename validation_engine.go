package llmprovider

import (
	"slices"
	"sync"
)

// ValidationEngine lints requests against a set of rules before they are
// encoded. Rules only warn; hard vendor limits are enforced by Encode.
type ValidationEngine struct {
	mu    sync.RWMutex
	rules []ValidationRule
}

// NewValidationEngine creates an engine with the given rules.
func NewValidationEngine(rules ...ValidationRule) *ValidationEngine {
	return &ValidationEngine{rules: slices.Clone(rules)}
}

// DefaultValidationEngine creates an engine with the built-in rules using
// catalog for vendor constraints. A nil catalog means DefaultCatalog().
func DefaultValidationEngine(catalog *Catalog) *ValidationEngine {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return NewValidationEngine(
		&ParameterValidationRule{catalog: catalog},
		&ToolValidationRule{},
		&ThinkingValidationRule{catalog: catalog},
		&MessageValidationRule{},
	)
}

// AddRule appends a rule. A rule with the same name is replaced in place.
func (ve *ValidationEngine) AddRule(rule ValidationRule) {
	ve.mu.Lock()
	defer ve.mu.Unlock()

	if i := ve.index(rule.Name()); i >= 0 {
		ve.rules[i] = rule
		return
	}
	ve.rules = append(ve.rules, rule)
}

// RemoveRule removes the rule called name and reports whether it existed.
func (ve *ValidationEngine) RemoveRule(name string) bool {
	ve.mu.Lock()
	defer ve.mu.Unlock()

	i := ve.index(name)
	if i < 0 {
		return false
	}
	ve.rules = slices.Delete(ve.rules, i, i+1)
	return true
}

// Rules returns the rule names in evaluation order.
func (ve *ValidationEngine) Rules() []string {
	ve.mu.RLock()
	defer ve.mu.RUnlock()

	names := make([]string, len(ve.rules))
	for i, r := range ve.rules {
		names[i] = r.Name()
	}
	return names
}

func (ve *ValidationEngine) index(name string) int {
	return slices.IndexFunc(ve.rules, func(r ValidationRule) bool { return r.Name() == name })
}

// Validate runs every rule against req as it would be sent to provider.
func (ve *ValidationEngine) Validate(provider ProviderID, req *GenerateRequest) Warnings {
	ve.mu.RLock()
	defer ve.mu.RUnlock()

	var warnings Warnings
	for _, rule := range ve.rules {
		warnings = append(warnings, rule.Check(provider, req)...)
	}
	return warnings
}

// Warnings is the result of one validation run.
type Warnings []ValidationWarning

// BySeverity keeps warnings with any of the given severities.
func (ws Warnings) BySeverity(severities ...Severity) Warnings {
	return ws.filter(func(w ValidationWarning) bool { return slices.Contains(severities, w.Severity) })
}

// ByCategory keeps warnings in any of the given categories.
func (ws Warnings) ByCategory(categories ...string) Warnings {
	return ws.filter(func(w ValidationWarning) bool { return slices.Contains(categories, w.Category) })
}

// Has reports whether a warning with code is present.
func (ws Warnings) Has(code WarningCode) bool {
	return slices.ContainsFunc(ws, func(w ValidationWarning) bool { return w.Code == code })
}

func (ws Warnings) filter(keep func(ValidationWarning) bool) Warnings {
	var out Warnings
	for _, w := range ws {
		if keep(w) {
			out = append(out, w)
		}
	}
	return out
}
