// Package credentials discovers provider API keys once at startup. Sources
// are consulted in order and the first one holding a key for a provider
// wins; a provider no source knows about is simply absent.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/haowjy/unillm-go"
)

// Source yields the credentials it knows about. A source whose backing file
// does not exist returns no credentials and no error.
type Source interface {
	Name() string
	Load() ([]llmprovider.Credential, error)
}

// envNames lists, per provider, the key variables in priority order and the
// base URL variable.
var envNames = map[llmprovider.ProviderID]struct {
	keys    []string
	baseURL string
}{
	llmprovider.ProviderOpenAI:    {[]string{"OPENAI_API_KEY"}, "OPENAI_BASE_URL"},
	llmprovider.ProviderAnthropic: {[]string{"ANTHROPIC_API_KEY"}, "ANTHROPIC_BASE_URL"},
	llmprovider.ProviderGoogle:    {[]string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}, "GEMINI_BASE_URL"},
}

// EnvVarForProvider returns the primary API key variable for a provider, or
// "" for unknown providers.
func EnvVarForProvider(provider llmprovider.ProviderID) string {
	names, ok := envNames[provider]
	if !ok {
		return ""
	}
	return names.keys[0]
}

// fromVars maps environment-style variables to credentials.
func fromVars(source string, lookup func(string) string) []llmprovider.Credential {
	var creds []llmprovider.Credential
	for _, provider := range llmprovider.Providers() {
		names := envNames[provider]
		for _, key := range names.keys {
			if v := strings.TrimSpace(lookup(key)); v != "" {
				creds = append(creds, llmprovider.Credential{
					Provider: provider,
					APIKey:   v,
					BaseURL:  strings.TrimSpace(lookup(names.baseURL)),
					Source:   source + ":" + key,
				})
				break
			}
		}
	}
	return creds
}

type envSource struct {
	lookup func(string) string
}

// Env reads the process environment.
func Env() Source {
	return envSource{lookup: os.Getenv}
}

// Vars reads a fixed variable map, as if it were the environment.
func Vars(vars map[string]string) Source {
	return envSource{lookup: func(k string) string { return vars[k] }}
}

func (s envSource) Name() string { return "env" }

func (s envSource) Load() ([]llmprovider.Credential, error) {
	return fromVars("env", s.lookup), nil
}

type dotEnvSource struct {
	path string
}

// DotEnv reads a .env file without exporting it into the process environment.
func DotEnv(path string) Source {
	return dotEnvSource{path: path}
}

func (s dotEnvSource) Name() string { return "dotenv" }

func (s dotEnvSource) Load() ([]llmprovider.Credential, error) {
	if s.path == "" {
		return nil, nil
	}
	vars, err := godotenv.Read(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}
	return fromVars(s.path, func(k string) string { return vars[k] }), nil
}

type fileSource struct {
	path string
}

// TOMLFile reads a credentials.toml file.
func TOMLFile(path string) Source {
	return fileSource{path: path}
}

func (s fileSource) Name() string { return "credentials.toml" }

func (s fileSource) Load() ([]llmprovider.Credential, error) {
	if s.path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading credentials: %w", err)
	}
	var file File
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}
	return file.credentials(s.path)
}

func (f *File) credentials(source string) ([]llmprovider.Credential, error) {
	var creds []llmprovider.Credential
	for name, entry := range f.Providers {
		provider, err := llmprovider.ParseProviderID(name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", source, err)
		}
		if entry.APIKey == "" {
			continue
		}
		creds = append(creds, llmprovider.Credential{
			Provider: provider,
			APIKey:   entry.APIKey,
			BaseURL:  entry.BaseURL,
			Source:   source,
		})
	}
	slices.SortFunc(creds, func(a, b llmprovider.Credential) int {
		return strings.Compare(string(a.Provider), string(b.Provider))
	})
	return creds, nil
}

// Discover consults sources in order and keeps the first credential found
// for each provider. The result is ordered by provider name.
func Discover(sources ...Source) ([]llmprovider.Credential, error) {
	found := make(map[llmprovider.ProviderID]llmprovider.Credential)
	for _, src := range sources {
		creds, err := src.Load()
		if err != nil {
			return nil, fmt.Errorf("credential source %s: %w", src.Name(), err)
		}
		for _, c := range creds {
			if _, ok := found[c.Provider]; !ok {
				found[c.Provider] = c
			}
		}
	}

	out := make([]llmprovider.Credential, 0, len(found))
	for _, provider := range llmprovider.Providers() {
		if c, ok := found[provider]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// DefaultSources is the usual lookup order: the process environment, then
// dotenvPath, then the credentials file.
func DefaultSources(dotenvPath, credentialsPath string) []Source {
	return []Source{Env(), DotEnv(dotenvPath), TOMLFile(credentialsPath)}
}
