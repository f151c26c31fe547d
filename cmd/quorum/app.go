package main

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/smallbiznis/quorum/internal/assist"
	"github.com/smallbiznis/quorum/internal/clock"
	"github.com/smallbiznis/quorum/internal/config"
	"github.com/smallbiznis/quorum/internal/llm"
	"github.com/smallbiznis/quorum/internal/migration"
	"github.com/smallbiznis/quorum/internal/observability"
	"github.com/smallbiznis/quorum/internal/points"
	"github.com/smallbiznis/quorum/internal/ratelimit"
	"github.com/smallbiznis/quorum/pkg/db"
	"go.uber.org/fx"
)

const startTimeout = 30 * time.Second

// coreModules wires everything except the HTTP server.
func coreModules() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		ratelimit.Module,
		points.Module,
		llm.Module,
		assist.Module,
	)
}

// runOnce starts a short-lived app, populates targets and runs fn before
// stopping it again.
func runOnce(ctx context.Context, fn func(ctx context.Context) error, targets ...any) error {
	app := fx.New(
		coreModules(),
		fx.NopLogger,
		fx.Populate(targets...),
	)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), startTimeout)
		defer cancel()
		_ = app.Stop(stopCtx)
	}()

	return fn(ctx)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
