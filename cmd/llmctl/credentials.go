package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haowjy/unillm-go"
	"github.com/haowjy/unillm-go/credentials"
)

const credentialsLongDesc string = `Manage API keys stored in credentials.toml.

Keys set here are used when the provider's environment variable (see
"llmctl providers") is not set. The file is written with 0600 permissions.

Examples:
  llmctl credentials set anthropic sk-ant-...
  echo "$OPENAI_API_KEY" | llmctl credentials set openai
  llmctl credentials list
  llmctl credentials remove gemini`

func newCredentialsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage stored API keys",
		Long:  credentialsLongDesc,
	}

	cmd.AddCommand(newCredentialsSetCmd(a))
	cmd.AddCommand(newCredentialsListCmd(a))
	cmd.AddCommand(newCredentialsRemoveCmd(a))

	return cmd
}

func (a *app) credentialsManager() (*credentials.Manager, error) {
	return credentials.NewManager(a.cfg.Credentials.File)
}

func newCredentialsSetCmd(a *app) *cobra.Command {
	var baseURL string

	cmd := &cobra.Command{
		Use:   "set PROVIDER [KEY]",
		Short: "Store an API key; read from stdin when KEY is omitted",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := llmprovider.ParseProviderID(args[0])
			if err != nil {
				return err
			}

			var key string
			if len(args) == 2 && args[1] != "-" {
				key = args[1]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading key from stdin: %w", err)
				}
				key = line
			}
			key = strings.TrimSpace(key)
			if key == "" {
				return errors.New("empty API key")
			}

			m, err := a.credentialsManager()
			if err != nil {
				return err
			}
			if err := m.Set(provider, credentials.ProviderEntry{APIKey: key, BaseURL: baseURL}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s key in %s\n", provider, m.Path())
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "Endpoint override stored with the key")

	return cmd
}

func newCredentialsListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List providers with a stored key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.credentialsManager()
			if err != nil {
				return err
			}
			names, err := m.List()
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newCredentialsRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove PROVIDER",
		Short: "Delete a stored key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := llmprovider.ParseProviderID(args[0])
			if err != nil {
				return err
			}
			m, err := a.credentialsManager()
			if err != nil {
				return err
			}
			if err := m.Remove(provider); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s key from %s\n", provider, m.Path())
			return nil
		},
	}
}
