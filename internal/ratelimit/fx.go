package ratelimit

import (
	"github.com/smallbiznis/quorum/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("rate.limit",
	fx.Provide(
		NewRedisClient,
		NewLocker,
		NewTokenBucket,
		NewAssistLimiter,
		provideUserLocker,
	),
)

func provideUserLocker(locker *Locker, cfg config.Config, log *zap.Logger) *UserLocker {
	return NewUserLocker(locker, cfg.Points.LockTTL, log)
}
