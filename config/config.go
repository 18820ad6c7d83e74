package config

import (
	"fmt"
	"log/slog"

	"github.com/haowjy/unillm-go"
	"github.com/haowjy/unillm-go/credentials"
	"github.com/haowjy/unillm-go/logger"
)

// Validate checks routes, provider names and the log level.
func (c *Config) Validate() error {
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config log.level: %w", err)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("config timeout: must not be negative, got %s", c.Timeout)
	}
	for name := range c.Providers {
		if _, err := llmprovider.ParseProviderID(name); err != nil {
			return fmt.Errorf("config providers: %w", err)
		}
	}
	for i, r := range c.Routes {
		if err := llmprovider.ValidateRoutingRule(r); err != nil {
			return fmt.Errorf("config routes[%d]: %w", i, err)
		}
	}
	return nil
}

// Logger builds the logger the settings describe, writing to stderr.
func (c *Config) Logger() *slog.Logger {
	level, err := logger.ParseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	return logger.New(
		logger.WithLevel(level),
		logger.WithPretty(c.Log.Pretty),
		logger.WithJSON(c.Log.JSON),
	)
}

// CredentialSources returns the discovery order: environment, .env file,
// credentials file.
func (c *Config) CredentialSources() ([]credentials.Source, error) {
	path := c.Credentials.File
	if path == "" {
		var err error
		if path, err = credentials.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return credentials.DefaultSources(c.Credentials.DotEnv, path), nil
}

// DiscoverCredentials runs credential discovery and applies configured base
// URLs to credentials that do not carry their own.
func (c *Config) DiscoverCredentials() ([]llmprovider.Credential, error) {
	sources, err := c.CredentialSources()
	if err != nil {
		return nil, err
	}
	creds, err := credentials.Discover(sources...)
	if err != nil {
		return nil, err
	}
	for i := range creds {
		if creds[i].BaseURL == "" {
			creds[i].BaseURL = c.BaseURL(creds[i].Provider)
		}
	}
	return creds, nil
}

// BaseURL returns the configured endpoint override for provider.
func (c *Config) BaseURL(provider llmprovider.ProviderID) string {
	for name, pc := range c.Providers {
		if id, err := llmprovider.ParseProviderID(name); err == nil && id == provider {
			if pc.BaseURL != "" {
				return pc.BaseURL
			}
		}
	}
	return ""
}

// LoadCatalog returns the catalog file's contents, or the embedded catalog
// when none is configured.
func (c *Config) LoadCatalog() (*llmprovider.Catalog, error) {
	if c.Catalog == "" {
		return llmprovider.DefaultCatalog(), nil
	}
	return llmprovider.LoadCatalogFile(c.Catalog)
}

// RegistryOptions turns the settings into registry options. Configured
// routes take precedence over the catalog's.
func (c *Config) RegistryOptions(log *slog.Logger) ([]llmprovider.RegistryOption, error) {
	catalog, err := c.LoadCatalog()
	if err != nil {
		return nil, err
	}
	return []llmprovider.RegistryOption{
		llmprovider.WithCatalog(catalog),
		llmprovider.WithRoutingRules(c.Routes...),
		llmprovider.WithRegistryLogger(log),
	}, nil
}
