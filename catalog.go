package llmprovider

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

//go:embed config/catalog/routing.yaml
var routingCatalogYAML []byte

// Catalog holds the model routing rules and per-vendor defaults.
//
// It is metadata, not validation: vendor APIs remain the source of truth.
// The embedded catalog can be replaced with LoadCatalogFile or extended with
// extra routing rules on the Registry.
type Catalog struct {
	Version     string                          `yaml:"version"`      // Semantic version (e.g., "1.0.0")
	LastUpdated string                          `yaml:"last_updated"` // ISO 8601 date
	Routes      []RoutingRule                   `yaml:"routes"`
	Providers   map[ProviderID]ProviderDefaults `yaml:"providers"`
}

// RoutingRule maps a model-name glob pattern to a provider.
type RoutingRule struct {
	Pattern  string     `yaml:"pattern" mapstructure:"pattern"`
	Provider ProviderID `yaml:"provider" mapstructure:"provider"`
}

// Matches reports whether model matches the rule's pattern. Matching is
// case-insensitive: "GPT-4o" routes like "gpt-4o".
func (r RoutingRule) Matches(model string) bool {
	return globMatch(r.Pattern, model)
}

func globMatch(pattern, model string) bool {
	ok, err := doublestar.Match(strings.ToLower(pattern), strings.ToLower(model))
	return err == nil && ok
}

// ProviderDefaults are vendor defaults applied by adapters.
type ProviderDefaults struct {
	// DefaultMaxTokens is used when no MaxTokens pattern matches (0 = vendor does not require it)
	DefaultMaxTokens int `yaml:"default_max_tokens"`

	// MaxTokens lists per-model max token defaults, first match wins
	MaxTokens []TokenLimit `yaml:"max_tokens"`

	// ThinkingBudget maps thinking levels ("low", "medium", "high") to token budgets
	ThinkingBudget map[string]int `yaml:"thinking_budget"`

	// Constraints are documented parameter limits, used for warnings only
	Constraints ProviderConstraints `yaml:"constraints"`
}

// ProviderConstraints defines provider-wide parameter limits
type ProviderConstraints struct {
	TemperatureMax  float64  `yaml:"temperature_max"`
	ThinkingMinimum int      `yaml:"thinking_minimum"`
	Unsupported     []string `yaml:"unsupported"` // request parameters the vendor ignores or rejects
}

// TokenLimit is a model pattern and its token value.
type TokenLimit struct {
	Pattern string `yaml:"pattern"`
	Value   int    `yaml:"value"`
}

var defaultCatalog = sync.OnceValue(func() *Catalog {
	c, err := LoadCatalog(routingCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("llmprovider: embedded routing catalog: %v", err))
	}
	return c
})

// DefaultCatalog returns the embedded catalog. Callers must not modify it.
func DefaultCatalog() *Catalog {
	return defaultCatalog()
}

// LoadCatalog parses and validates a catalog document.
func LoadCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadCatalogFile loads a catalog from a YAML file, e.g. to pick up models
// released after this library.
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return LoadCatalog(data)
}

// Validate checks every pattern and provider name.
func (c *Catalog) Validate() error {
	for _, r := range c.Routes {
		if err := ValidateRoutingRule(r); err != nil {
			return err
		}
	}
	for provider, defaults := range c.Providers {
		if !provider.IsValid() {
			return fmt.Errorf("catalog: unknown provider %q", provider)
		}
		for _, limit := range defaults.MaxTokens {
			if !doublestar.ValidatePattern(limit.Pattern) {
				return fmt.Errorf("catalog: invalid max_tokens pattern %q for %s", limit.Pattern, provider)
			}
		}
	}
	return nil
}

// ValidateRoutingRule checks the rule's pattern and provider.
func ValidateRoutingRule(r RoutingRule) error {
	if !doublestar.ValidatePattern(r.Pattern) {
		return fmt.Errorf("catalog: invalid route pattern %q", r.Pattern)
	}
	if !r.Provider.IsValid() {
		return fmt.Errorf("catalog: route %q names unknown provider %q", r.Pattern, r.Provider)
	}
	return nil
}

// Match returns the provider of the first route matching model.
func (c *Catalog) Match(model string) (ProviderID, bool) {
	return matchRules(c.Routes, model)
}

// MaxTokens returns the default max_tokens for a model, or 0 when the vendor
// has no mandatory bound.
func (c *Catalog) MaxTokens(provider ProviderID, model string) int {
	defaults, ok := c.Providers[provider]
	if !ok {
		return 0
	}
	for _, limit := range defaults.MaxTokens {
		if globMatch(limit.Pattern, model) {
			return limit.Value
		}
	}
	return defaults.DefaultMaxTokens
}

// ThinkingBudget converts a thinking level to the provider's token budget.
// Falls back to the generic budgets when the provider defines none.
func (c *Catalog) ThinkingBudget(provider ProviderID, level string) (int, error) {
	if defaults, ok := c.Providers[provider]; ok {
		if budget, ok := defaults.ThinkingBudget[level]; ok {
			return budget, nil
		}
	}
	rp := RequestParams{ThinkingLevel: &level}
	if budget := rp.GetThinkingBudgetTokens(); budget > 0 {
		return budget, nil
	}
	return 0, fmt.Errorf("unknown thinking level: %s (valid: low, medium, high)", level)
}

// ThinkingBudgetFor resolves the thinking budget of params for provider:
// an explicit ThinkingBudget wins, then the level, then "medium".
func (c *Catalog) ThinkingBudgetFor(provider ProviderID, params *RequestParams) int {
	if params == nil {
		return 0
	}
	if params.ThinkingBudget != nil {
		return *params.ThinkingBudget
	}
	level := "medium"
	if params.ThinkingLevel != nil {
		level = *params.ThinkingLevel
	}
	budget, err := c.ThinkingBudget(provider, level)
	if err != nil {
		return 0
	}
	return budget
}

// Constraints returns the documented parameter limits of provider.
func (c *Catalog) Constraints(provider ProviderID) (ProviderConstraints, bool) {
	defaults, ok := c.Providers[provider]
	return defaults.Constraints, ok
}

func matchRules(rules []RoutingRule, model string) (ProviderID, bool) {
	for _, r := range rules {
		if r.Matches(model) {
			return r.Provider, true
		}
	}
	return "", false
}
