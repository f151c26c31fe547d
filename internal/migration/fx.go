package migration

import (
	"github.com/smallbiznis/quorum/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if !cfg.DBAutoMigrate {
			log.Info("auto migration disabled")
			return nil
		}
		if err := Run(conn, cfg.DBType); err != nil {
			return err
		}
		log.Info("database migrated", zap.String("dialect", cfg.DBType))
		return nil
	}),
)
