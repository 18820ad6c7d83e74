package llmprovider

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
)

// ProviderID represents a unique provider identifier.
// Using a typed constant prevents typos and provides compile-time safety.
type ProviderID string

// Known provider identifiers
const (
	// ProviderAnthropic is Anthropic's Messages API
	ProviderAnthropic ProviderID = "anthropic"

	// ProviderOpenAI is OpenAI's Chat Completions API
	ProviderOpenAI ProviderID = "openai"

	// ProviderGoogle is Google's Gemini API
	ProviderGoogle ProviderID = "google"
)

// String returns the string representation of the provider ID
func (p ProviderID) String() string {
	return string(p)
}

// IsValid returns true if the provider ID is a known provider
func (p ProviderID) IsValid() bool {
	switch p {
	case ProviderAnthropic, ProviderOpenAI, ProviderGoogle:
		return true
	default:
		return false
	}
}

// ParseProviderID parses a provider name, accepting "gemini" as an alias
// for google. Matching is case-insensitive.
func ParseProviderID(name string) (ProviderID, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "anthropic":
		return ProviderAnthropic, nil
	case "openai":
		return ProviderOpenAI, nil
	case "google", "gemini":
		return ProviderGoogle, nil
	default:
		return "", fmt.Errorf("unknown provider %q", name)
	}
}

// Providers lists the known provider identifiers.
func Providers() []ProviderID {
	return []ProviderID{ProviderAnthropic, ProviderGoogle, ProviderOpenAI}
}

// Credential is one discovered provider credential.
type Credential struct {
	Provider ProviderID
	APIKey   string
	BaseURL  string // optional endpoint override
	Source   string // where the credential came from, for diagnostics
}

// AdapterFactory builds an adapter from a credential.
type AdapterFactory func(cred Credential) (Adapter, error)

// Route is the result of resolving a model name.
type Route struct {
	Provider ProviderID
	Model    string // model name with any "provider:" prefix removed
	Adapter  Adapter
}

// Registry maps provider names to adapters and model names to providers.
// Registration is rare and resolution frequent; both are safe for
// concurrent use.
type Registry struct {
	mu       sync.RWMutex
	adapters map[ProviderID]Adapter
	rules    []RoutingRule
	logger   *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRoutingRules adds routing rules checked before the catalog's.
func WithRoutingRules(rules ...RoutingRule) RegistryOption {
	return func(r *Registry) {
		r.rules = append(slices.Clone(rules), r.rules...)
	}
}

// WithCatalog replaces the catalog whose routes the registry uses.
// Rules added with WithRoutingRules before this option are dropped.
func WithCatalog(c *Catalog) RegistryOption {
	return func(r *Registry) {
		r.rules = slices.Clone(c.Routes)
	}
}

// WithRegistryLogger sets the logger for registration events.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates an empty registry routing with the embedded catalog.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		adapters: make(map[ProviderID]Adapter),
		rules:    slices.Clone(DefaultCatalog().Routes),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewRegistryFromCredentials creates a registry and registers one adapter per
// credential whose provider has a factory. Credentials are assembled once by
// the caller (see the credentials package); a missing credential only means
// fewer adapters. A registry with zero adapters is valid, but every Resolve
// fails with ErrNoProvidersConfigured.
func NewRegistryFromCredentials(creds []Credential, factories map[ProviderID]AdapterFactory, opts ...RegistryOption) (*Registry, error) {
	r := NewRegistry(opts...)
	var errs []error
	for _, cred := range creds {
		if cred.APIKey == "" {
			continue
		}
		factory, ok := factories[cred.Provider]
		if !ok {
			r.logger.Debug("no adapter factory for credential", "provider", cred.Provider, "source", cred.Source)
			continue
		}
		adapter, err := factory(cred)
		if err != nil {
			errs = append(errs, fmt.Errorf("create %s adapter: %w", cred.Provider, err))
			continue
		}
		r.Register(cred.Provider, adapter)
	}
	return r, errors.Join(errs...)
}

// Register inserts or replaces the adapter for name. Last write wins.
func (r *Registry) Register(name ProviderID, adapter Adapter) {
	r.mu.Lock()
	_, replaced := r.adapters[name]
	r.adapters[name] = adapter
	r.mu.Unlock()

	r.logger.Debug("registered provider", "provider", name, "replaced", replaced)
}

// AddRoutingRule adds a rule checked before all existing rules.
func (r *Registry) AddRoutingRule(rule RoutingRule) error {
	if err := ValidateRoutingRule(rule); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append([]RoutingRule{rule}, r.rules...)
	return nil
}

// Get returns the adapter registered under name.
func (r *Registry) Get(name ProviderID) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	return a, ok
}

// Available lists the registered provider names in sorted order.
func (r *Registry) Available() []ProviderID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.adapters))
}

// Rules returns a copy of the routing rules in evaluation order.
func (r *Registry) Rules() []RoutingRule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.rules)
}

// Resolve returns the adapter serving model.
func (r *Registry) Resolve(model string) (Adapter, error) {
	route, err := r.Route(model)
	if err != nil {
		return nil, err
	}
	return route.Adapter, nil
}

// Route resolves model to a provider, its adapter and the bare model name.
// A "provider:model" name selects the provider explicitly; otherwise the
// routing rules are applied in order.
func (r *Registry) Route(model string) (Route, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.adapters) == 0 {
		return Route{}, &ModelError{Model: model, Reason: "no providers configured", Err: ErrNoProvidersConfigured}
	}

	provider, bare, explicit := SplitModel(model)
	if !explicit {
		var ok bool
		provider, ok = matchRules(r.rules, bare)
		if !ok {
			return Route{}, &ModelError{Model: model, Reason: "no routing rule matches", Err: ErrUnknownModel}
		}
	}

	adapter, ok := r.adapters[provider]
	if !ok {
		return Route{}, &ModelError{Model: model, Provider: provider.String(), Reason: "provider not configured", Err: ErrUnknownModel}
	}
	return Route{Provider: provider, Model: bare, Adapter: adapter}, nil
}

// SplitModel splits "provider:model" into its parts. Names without a known
// provider prefix are returned unchanged with explicit == false.
func SplitModel(model string) (provider ProviderID, bare string, explicit bool) {
	prefix, rest, found := strings.Cut(model, ":")
	if !found || rest == "" {
		return "", model, false
	}
	id, err := ParseProviderID(prefix)
	if err != nil {
		return "", model, false
	}
	return id, rest, true
}
