package main

import (
	"context"

	"github.com/smallbiznis/quorum/internal/points/domain"
	"github.com/spf13/cobra"
)

func newPointsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "points",
		Short: "Inspect the points ledger",
	}

	var userID int64
	cmd.PersistentFlags().Int64Var(&userID, "user", 0, "user id")

	summary := &cobra.Command{
		Use:   "summary",
		Short: "Show balance, level and lifetime totals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var svc domain.Service
			return runOnce(cmd.Context(), func(ctx context.Context) error {
				out, err := svc.GetSummary(ctx, userID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), out)
			}, &svc)
		},
	}

	var (
		page      int
		pageSize  int
		source    string
		direction string
	)
	history := &cobra.Command{
		Use:   "history",
		Short: "List transactions newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var svc domain.Service
			return runOnce(cmd.Context(), func(ctx context.Context) error {
				out, err := svc.GetHistory(ctx, domain.HistoryRequest{
					UserID:    userID,
					Page:      page,
					PageSize:  pageSize,
					Source:    domain.Source(source),
					Direction: domain.Direction(direction),
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), out)
			}, &svc)
		},
	}
	history.Flags().IntVar(&page, "page", 1, "page number")
	history.Flags().IntVar(&pageSize, "size", 20, "page size")
	history.Flags().StringVar(&source, "source", "", "filter by source")
	history.Flags().StringVar(&direction, "direction", "", "filter by direction (earn or spend)")

	rules := &cobra.Command{
		Use:   "rules",
		Short: "List reward rules with today's usage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var svc domain.Service
			return runOnce(cmd.Context(), func(ctx context.Context) error {
				out, err := svc.ListRules(ctx, userID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), out)
			}, &svc)
		},
	}

	cmd.AddCommand(summary, history, rules)
	return cmd
}
