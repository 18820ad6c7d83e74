// Package config loads llmctl and client settings with viper: defaults, an
// optional config file, UNILLM_* environment variables and bound CLI flags.
package config

import (
	"time"

	"github.com/haowjy/unillm-go"
)

// Config is the full set of settings.
//
// Precedence (highest to lowest): CLI flags bound with BindRegisteredFlags,
// UNILLM_* environment variables, the config file, NewDefaultConfig.
type Config struct {
	Log         LogConfig                 `mapstructure:"log"`
	Timeout     time.Duration             `mapstructure:"timeout"`
	Credentials CredentialsConfig         `mapstructure:"credentials"`
	Providers   map[string]ProviderConfig `mapstructure:"providers"`

	// Routes are checked before the catalog's routes.
	Routes []llmprovider.RoutingRule `mapstructure:"routes"`

	// Catalog is an optional YAML file replacing the embedded catalog.
	Catalog string `mapstructure:"catalog"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
	JSON   bool   `mapstructure:"json"`
}

// CredentialsConfig says where credentials are looked up besides the
// process environment.
type CredentialsConfig struct {
	File   string `mapstructure:"file"`
	DotEnv string `mapstructure:"dotenv"`
}

// ProviderConfig holds per-provider overrides.
type ProviderConfig struct {
	BaseURL string `mapstructure:"base_url"`
}
