// Package api exposes the price map over HTTP.
package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"lmp-gridmap/internal/api/handlers"
	"lmp-gridmap/internal/api/middleware"
	"lmp-gridmap/internal/api/models"
	"lmp-gridmap/internal/observability"
)

// Service is everything the handlers need from the map service.
type Service interface {
	handlers.MapService
	handlers.NodeService
}

// Options configures NewRouter.
type Options struct {
	Service     Service
	Defaults    handlers.Defaults
	Registry    *prometheus.Registry // nil disables /metrics
	CORSOrigins []string
	StaticDir   string // optional SPA bundle
	Logger      zerolog.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(opts Options) *gin.Engine {
	router := gin.New()

	router.Use(middleware.ErrorHandler())
	router.Use(middleware.CORS(opts.CORSOrigins...))
	router.Use(middleware.Logger(opts.Logger))

	priceHandler := handlers.NewPriceHandler(opts.Service, opts.Defaults)
	nodeHandler := handlers.NewNodeHandler(opts.Service, priceHandler.DefaultMapMarket())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if opts.Registry != nil {
		router.GET("/metrics", gin.WrapH(observability.MetricsHandler(opts.Registry)))
	}

	api := router.Group("/api/v1")
	{
		api.GET("/prices/voronoi-map", priceHandler.VoronoiMap)
		api.GET("/prices/map-stats", priceHandler.MapStats)
		api.GET("/prices/hourly-snapshot", priceHandler.HourlySnapshot)

		api.GET("/nodes", nodeHandler.ListNodes)
		api.POST("/grid/refresh", nodeHandler.RefreshGrid)
	}

	mountStatic(router, opts.StaticDir, opts.Logger)
	return router
}

// mountStatic serves a built map client from dir, with index.html for every
// non-API route. API misses still get the JSON error envelope.
func mountStatic(router *gin.Engine, dir string, l zerolog.Logger) {
	notFound := func(c *gin.Context) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error: models.ErrorDetail{Code: "NOT_FOUND", Message: "Not found"},
		})
	}

	if dir == "" {
		router.NoRoute(notFound)
		return
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		l.Info().Str("static_dir", dir).Msg("static directory not found, skipping static file serving")
		router.NoRoute(notFound)
		return
	}

	router.Static("/assets", filepath.Join(dir, "assets"))
	router.StaticFile("/favicon.ico", filepath.Join(dir, "favicon.ico"))
	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			notFound(c)
			return
		}
		c.File(filepath.Join(dir, "index.html"))
	})
	l.Info().Str("static_dir", dir).Msg("serving static files")
}
