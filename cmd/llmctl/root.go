package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/haowjy/unillm-go"
	"github.com/haowjy/unillm-go/client"
	"github.com/haowjy/unillm-go/config"
	"github.com/haowjy/unillm-go/providers/anthropic"
	"github.com/haowjy/unillm-go/providers/gemini"
	"github.com/haowjy/unillm-go/providers/lorem"
	"github.com/haowjy/unillm-go/providers/openai"
	"github.com/haowjy/unillm-go/transport"
)

const rootLongDesc string = `llmctl sends prompts to OpenAI, Anthropic and Gemini models through one
normalized request and event model.

Models are routed by name ("gpt-*", "claude-*", "gemini-*") or explicitly
with a provider prefix ("openai:llama-3.1-8b"). API keys come from the
environment, a .env file or credentials.toml (see "llmctl credentials").

Examples:
  llmctl generate claude-haiku-4-5 "Write a haiku about autumn"
  llmctl stream gpt-4o-mini "Explain SSE in one paragraph"
  llmctl stream --lorem gemini-lorem-fast "anything"
  llmctl resolve openai:llama-3.1-8b
  llmctl providers`

var factories = map[llmprovider.ProviderID]llmprovider.AdapterFactory{
	llmprovider.ProviderOpenAI:    openai.Factory,
	llmprovider.ProviderAnthropic: anthropic.Factory,
	llmprovider.ProviderGoogle:    gemini.Factory,
}

// app carries state resolved once per invocation in PersistentPreRunE.
type app struct {
	cfg   *config.Config
	log   *slog.Logger
	lorem bool
}

var globalFlagKeys = []string{
	config.FlagLogLevel,
	config.FlagPretty,
	config.FlagTimeout,
	config.FlagCredentialsFile,
	config.FlagDotEnv,
	config.FlagCatalog,
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "llmctl",
		Short:         "Unified LLM completions from the command line",
		Long:          rootLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	config.AddStringFlag(cmd, config.GlobalFlags, config.FlagConfig)
	config.AddStringFlag(cmd, config.GlobalFlags, config.FlagLogLevel)
	config.AddBoolFlag(cmd, config.GlobalFlags, config.FlagPretty)
	config.AddDurationFlag(cmd, config.GlobalFlags, config.FlagTimeout)
	config.AddStringFlag(cmd, config.GlobalFlags, config.FlagCredentialsFile)
	config.AddStringFlag(cmd, config.GlobalFlags, config.FlagDotEnv)
	config.AddStringFlag(cmd, config.GlobalFlags, config.FlagCatalog)
	cmd.PersistentFlags().BoolVar(&a.lorem, "lorem", false, "Answer with generated lorem ipsum instead of calling the vendor")

	cmd.AddCommand(newGenerateCmd(a))
	cmd.AddCommand(newStreamCmd(a))
	cmd.AddCommand(newProvidersCmd(a))
	cmd.AddCommand(newResolveCmd(a))
	cmd.AddCommand(newCredentialsCmd(a))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func (a *app) init(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	v, err := config.InitViper(path)
	if err != nil {
		return err
	}
	config.BindRegisteredFlags(v, cmd, config.GlobalFlags, globalFlagKeys)

	cfg, err := config.FromViper(v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = cfg.Logger()
	return nil
}

// registry registers an adapter for every discovered credential. In lorem
// mode every provider gets a placeholder key, since nothing leaves the
// process.
func (a *app) registry() (*llmprovider.Registry, []llmprovider.Credential, error) {
	creds, err := a.cfg.DiscoverCredentials()
	if err != nil {
		return nil, nil, err
	}
	if a.lorem {
		creds = withPlaceholders(creds)
	}

	opts, err := a.cfg.RegistryOptions(a.log)
	if err != nil {
		return nil, nil, err
	}
	reg, err := llmprovider.NewRegistryFromCredentials(creds, factories, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("registering providers: %w", err)
	}
	return reg, creds, nil
}

func withPlaceholders(creds []llmprovider.Credential) []llmprovider.Credential {
	have := make(map[llmprovider.ProviderID]bool, len(creds))
	for _, c := range creds {
		have[c.Provider] = true
	}
	for _, p := range llmprovider.Providers() {
		if !have[p] {
			creds = append(creds, llmprovider.Credential{Provider: p, APIKey: "lorem", Source: "lorem"})
		}
	}
	return creds
}

func (a *app) client() (*client.Client, error) {
	reg, _, err := a.registry()
	if err != nil {
		return nil, err
	}

	var t llmprovider.Transport
	if a.lorem {
		t = lorem.NewTransport()
	} else {
		t = transport.New(transport.WithTimeout(a.cfg.Timeout), transport.WithLogger(a.log))
	}
	return client.New(reg, client.WithTransport(t), client.WithLogger(a.log)), nil
}
