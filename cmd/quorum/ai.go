package main

import (
	"context"
	"errors"
	"strings"

	"github.com/smallbiznis/quorum/internal/llm/orchestrator"
	"github.com/spf13/cobra"
)

func newAICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ai",
		Short: "Talk to the configured LLM providers",
	}

	health := &cobra.Command{
		Use:   "health",
		Short: "Probe every provider",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var orch *orchestrator.Orchestrator
			return runOnce(cmd.Context(), func(ctx context.Context) error {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"order":     orch.Providers(),
					"providers": orch.CheckHealth(ctx),
				})
			}, &orch)
		},
	}

	var background string
	analyze := &cobra.Command{
		Use:   "analyze [prompt]",
		Short: "Run an analysis prompt through the fallback chain",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.TrimSpace(strings.Join(args, " "))
			if prompt == "" {
				return errors.New("prompt is required")
			}
			var orch *orchestrator.Orchestrator
			return runOnce(cmd.Context(), func(ctx context.Context) error {
				out, err := orch.GenerateAnalysis(ctx, prompt, background)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write([]byte(out + "\n"))
				return err
			}, &orch)
		},
	}
	analyze.Flags().StringVar(&background, "context", "", "background passed as a system message")

	cmd.AddCommand(health, analyze)
	return cmd
}
