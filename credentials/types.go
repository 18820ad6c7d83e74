package credentials

// File is the on-disk shape of credentials.toml:
//
//	version = 0
//
//	[providers.anthropic]
//	api_key = "sk-ant-..."
//	base_url = "https://proxy.example.com/v1"
type File struct {
	Version   int                      `toml:"version"`
	Providers map[string]ProviderEntry `toml:"providers"`
}

// ProviderEntry holds one provider's stored credential.
type ProviderEntry struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url,omitempty"`
}
