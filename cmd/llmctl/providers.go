package main

import (
	"fmt"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/haowjy/unillm-go"
	"github.com/haowjy/unillm-go/credentials"
)

const providersShortDesc string = "List providers and where their credentials come from"

func newProvidersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: providersShortDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, creds, err := a.registry()
			if err != nil {
				return err
			}

			sources := make(map[llmprovider.ProviderID]string, len(creds))
			for _, c := range creds {
				sources[c.Provider] = c.Source
			}

			table := uitable.New()
			table.AddRow("PROVIDER", "STATUS", "SOURCE", "ENV")
			for _, p := range llmprovider.Providers() {
				status := "missing"
				if _, ok := reg.Get(p); ok {
					status = "ready"
				}
				source := sources[p]
				if source == "" {
					source = "-"
				}
				table.AddRow(p, status, source, credentials.EnvVarForProvider(p))
			}
			fmt.Fprintln(cmd.OutOrStdout(), table)

			rules := uitable.New()
			rules.AddRow("PATTERN", "PROVIDER")
			for _, r := range reg.Rules() {
				rules.AddRow(r.Pattern, r.Provider)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			fmt.Fprintln(cmd.OutOrStdout(), rules)
			return nil
		},
	}
}
