package main

import (
	"fmt"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
)

const resolveShortDesc string = "Show which provider serves a model"

func newResolveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve MODEL",
		Short: resolveShortDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, _, err := a.registry()
			if err != nil {
				return err
			}
			route, err := reg.Route(args[0])
			if err != nil {
				return err
			}

			table := uitable.New()
			table.RightAlign(0)
			table.Separator = " "
			table.AddRow("provider:", route.Provider)
			table.AddRow("model:", route.Model)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
}
