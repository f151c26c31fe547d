package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/quorum/internal/config"
	"github.com/smallbiznis/quorum/internal/llm/orchestrator"
	"github.com/smallbiznis/quorum/internal/observability"
	obslogger "github.com/smallbiznis/quorum/internal/observability/logger"
	obstracing "github.com/smallbiznis/quorum/internal/observability/tracing"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module serves the operational endpoints. Product routes live elsewhere.
var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(run),
)

// HealthChecker reports provider reachability.
type HealthChecker interface {
	CheckHealth(ctx context.Context) map[string]bool
	Providers() []string
}

func NewEngine(obsCfg observability.Config, log *zap.Logger) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(log))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())
	return r
}

type routeParams struct {
	fx.In

	Engine       *gin.Engine
	DB           *gorm.DB
	Orchestrator *orchestrator.Orchestrator
}

func registerRoutes(p routeParams) {
	Register(p.Engine, p.DB, p.Orchestrator)
}

// Register mounts /health, /health/llm and /metrics on r.
func Register(r *gin.Engine, db *gorm.DB, llm HealthChecker) {
	h := &handlers{db: db, llm: llm}
	r.GET("/health", h.health)
	r.GET("/health/llm", h.llmHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

type handlers struct {
	db  *gorm.DB
	llm HealthChecker
}

func (h *handlers) health(c *gin.Context) {
	status := gin.H{"status": "ok"}
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := pingDB(ctx, h.db); err != nil {
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		status["database"] = "ok"
	}
	c.JSON(http.StatusOK, status)
}

func pingDB(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (h *handlers) llmHealth(c *gin.Context) {
	if h.llm == nil || len(h.llm.Providers()) == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "providers": gin.H{}})
		return
	}
	health := h.llm.CheckHealth(c.Request.Context())
	status := "unavailable"
	for _, ok := range health {
		if ok {
			status = "ok"
			break
		}
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":    status,
		"order":     h.llm.Providers(),
		"providers": health,
	})
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Info("http server listening", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
