package main

import (
	"fmt"

	"github.com/smallbiznis/quorum/internal/config"
	"github.com/smallbiznis/quorum/internal/migration"
	"github.com/smallbiznis/quorum/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				conn *gorm.DB
				cfg  config.Config
			)
			app := fx.New(
				config.Module,
				fx.Provide(zap.NewNop),
				db.Module,
				fx.NopLogger,
				fx.Populate(&conn, &cfg),
			)
			if err := app.Err(); err != nil {
				return err
			}
			if err := migration.Run(conn, cfg.DBType); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %s database\n", cfg.DBType)
			return nil
		},
	}
}
