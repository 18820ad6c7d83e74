package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. UNILLM_LOG_LEVEL.
const EnvPrefix = "UNILLM"

// InitViper creates a viper instance with defaults, the config file at path
// (or config.{yaml,toml} in the working directory and the user config dir
// when path is empty) and UNILLM_* environment variables. A missing config
// file is not an error.
func InitViper(path string) (*viper.Viper, error) {
	v := viper.New()
	setViperDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(dir + "/unillm")
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
		case path != "" && errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers NewDefaultConfig in dotted-key form. Every
// scalar key needs a default so AutomaticEnv can see it on Unmarshal.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.pretty", d.Log.Pretty)
	v.SetDefault("log.json", d.Log.JSON)

	v.SetDefault("timeout", d.Timeout)

	v.SetDefault("credentials.file", d.Credentials.File)
	v.SetDefault("credentials.dotenv", d.Credentials.DotEnv)

	v.SetDefault("providers.openai.base_url", "")
	v.SetDefault("providers.anthropic.base_url", "")
	v.SetDefault("providers.google.base_url", "")

	v.SetDefault("catalog", d.Catalog)
}

// Load reads the configuration at path (see InitViper).
func Load(path string) (*Config, error) {
	v, err := InitViper(path)
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// FromViper decodes a configured viper instance and validates it.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
