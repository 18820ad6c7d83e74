package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haowjy/unillm-go"
)

const streamLongDesc string = `Send one prompt and print the response as it streams.

Text deltas are written as they arrive. With --events every normalized
stream event is printed on its own line instead.`

const streamShortDesc string = "Stream a response"

func newStreamCmd(a *app) *cobra.Command {
	var (
		flags  requestFlags
		events bool
	)

	cmd := &cobra.Command{
		Use:   "stream MODEL PROMPT...",
		Short: streamShortDesc,
		Long:  streamLongDesc,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}

			req := flags.request(strings.Join(args[1:], " "))
			s, err := c.Stream(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			for ev := range s.Events() {
				if events {
					fmt.Fprintln(out, ev)
					continue
				}
				switch ev.Type {
				case llmprovider.EventTextDelta:
					fmt.Fprint(out, ev.Delta)
				case llmprovider.EventToolCallDelta:
					if ev.ToolName != "" {
						fmt.Fprintf(out, "\n[tool call %s] %s", ev.ToolCallID, ev.ToolName)
					}
					fmt.Fprint(out, ev.Delta)
				case llmprovider.EventBlockEnd:
					fmt.Fprintln(out)
				}
			}
			if err := s.Err(); err != nil {
				return err
			}

			if resp := s.Response(); resp != nil {
				a.log.Debug("stream complete",
					"provider", resp.Provider,
					"stop_reason", resp.StopReason,
					"output_tokens", resp.Usage.OutputTokens,
				)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&events, "events", false, "Print every stream event")

	return cmd
}
