package main

import (
	"github.com/smallbiznis/quorum/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the operational HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := fx.New(
				coreModules(),
				server.Module,
			)
			app.Run()
			return app.Err()
		},
	}
}
