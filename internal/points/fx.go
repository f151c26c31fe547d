package points

import (
	"context"
	"time"

	"github.com/smallbiznis/quorum/internal/config"
	"github.com/smallbiznis/quorum/internal/points/catalog"
	"github.com/smallbiznis/quorum/internal/points/repository"
	"github.com/smallbiznis/quorum/internal/points/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("points.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(provideCatalog),
	fx.Provide(catalog.NewSyncer),
	fx.Invoke(registerCatalogSync),
)

func provideCatalog(cfg config.Config, log *zap.Logger) (*catalog.Holder, error) {
	return catalog.Load(cfg.Points.RewardsFile, log)
}

// registerCatalogSync writes the reward rules on start and again after every
// reload of the rewards file.
func registerCatalogSync(lc fx.Lifecycle, holder *catalog.Holder, syncer *catalog.Syncer, log *zap.Logger) {
	holder.OnChange(func(c catalog.Catalog) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := syncer.Sync(ctx, c); err != nil {
			log.Error("reward rules sync failed", zap.Error(err))
		}
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := syncer.Sync(ctx, holder.Get()); err != nil {
				return err
			}
			holder.Watch()
			return nil
		},
	})
}
