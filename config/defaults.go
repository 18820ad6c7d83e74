package config

import "time"

const (
	defaultLogLevel = "info"
	defaultTimeout  = 120 * time.Second
	defaultDotEnv   = ".env"
)

// NewDefaultConfig returns a Config with defaults for all fields. The
// credentials file defaults to empty, which means credentials.DefaultPath.
func NewDefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level: defaultLogLevel,
		},
		Timeout: defaultTimeout,
		Credentials: CredentialsConfig{
			DotEnv: defaultDotEnv,
		},
		Providers: map[string]ProviderConfig{},
	}
}
