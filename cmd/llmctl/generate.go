package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haowjy/unillm-go"
)

const generateLongDesc string = `Send one prompt and print the complete response.

The model is routed by name or by an explicit "provider:" prefix. With
--json the normalized response (blocks, tool calls, usage, stop reason) is
printed instead of the text.`

const generateShortDesc string = "Generate a complete response"

// requestFlags are shared by generate and stream.
type requestFlags struct {
	system      string
	maxTokens   int
	temperature float64
	thinking    string
}

func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.system, "system", "s", "", "System prompt")
	cmd.Flags().IntVar(&f.maxTokens, "max-tokens", 0, "Maximum output tokens (0 uses the provider default)")
	cmd.Flags().Float64VarP(&f.temperature, "temperature", "t", -1, "Sampling temperature (unset when negative)")
	cmd.Flags().StringVar(&f.thinking, "thinking", "", "Extended thinking level: low, medium, high")
}

func (f *requestFlags) request(prompt string) *llmprovider.GenerateRequest {
	opts := []llmprovider.RequestOption{llmprovider.WithUserText(prompt)}
	if f.system != "" {
		opts = append(opts, llmprovider.WithSystem(f.system))
	}
	if f.maxTokens > 0 {
		opts = append(opts, llmprovider.WithMaxTokens(f.maxTokens))
	}
	if f.temperature >= 0 {
		opts = append(opts, llmprovider.WithTemperature(f.temperature))
	}
	if f.thinking != "" {
		opts = append(opts, llmprovider.WithThinking(f.thinking))
	}
	return llmprovider.NewRequest(opts...)
}

func newGenerateCmd(a *app) *cobra.Command {
	var (
		flags  requestFlags
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "generate MODEL PROMPT...",
		Short: generateShortDesc,
		Long:  generateLongDesc,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}

			req := flags.request(strings.Join(args[1:], " "))
			resp, err := c.Generate(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}

			if thinking := resp.Thinking(); thinking != "" {
				fmt.Fprintf(out, "[thinking]\n%s\n\n", thinking)
			}
			fmt.Fprintln(out, resp.Text)
			for _, call := range resp.ToolCalls {
				fmt.Fprintf(out, "[tool call %s] %s(%s)\n", call.ID, call.Name, call.Arguments)
			}
			a.log.Debug("generate complete",
				"provider", resp.Provider,
				"model", resp.Model,
				"stop_reason", resp.StopReason,
				"input_tokens", resp.Usage.InputTokens,
				"output_tokens", resp.Usage.OutputTokens,
			)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the normalized response as JSON")

	return cmd
}
