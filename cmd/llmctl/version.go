package main

import (
	"fmt"
	"runtime"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
)

// Set with -ldflags "-X main.gitVersion=... -X main.gitCommit=... -X main.buildDate=...".
var (
	gitVersion = "v0.0.0-dev"
	gitCommit  = "unknown"
	buildDate  = "1970-01-01T00:00:00Z"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		// Version needs no config or credentials.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			table := uitable.New()
			table.RightAlign(0)
			table.MaxColWidth = 80
			table.Separator = " "
			table.AddRow("gitVersion:", gitVersion)
			table.AddRow("gitCommit:", gitCommit)
			table.AddRow("buildDate:", buildDate)
			table.AddRow("goVersion:", runtime.Version())
			table.AddRow("platform:", fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH))
			fmt.Fprintln(cmd.OutOrStdout(), table)
		},
	}
}
