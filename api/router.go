package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fyxxlabs/sitescan/api/handler"
	"github.com/fyxxlabs/sitescan/api/middleware"
	"github.com/fyxxlabs/sitescan/config"
	"github.com/fyxxlabs/sitescan/jobs"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → RequestID → Logging
//	API:     Auth (if enabled) → RateLimit
//
// Health and metrics stay outside auth so probes and scrapers always work.
// pool may be nil when the browser is disabled.
func NewRouter(ctx context.Context, cfg *config.Config, m *jobs.Manager, pool handler.PoolStatser, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(slog.Default()))

	if cfg.Metrics.Enabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(pool, m.Active, startTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(ctx, cfg.RateLimit))

	protected.POST("/scans", handler.PostScan(m))
	protected.GET("/scans/:id", handler.GetScan(m))
	protected.DELETE("/scans/:id", handler.DeleteScan(m))
	protected.GET("/scans/:id/result", handler.GetScanResult(m))
	protected.GET("/scans/:id/preview", handler.GetScanPreview(m))

	return r
}
