package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"lmp-gridmap/internal/api"
	"lmp-gridmap/internal/api/handlers"
	"lmp-gridmap/internal/cache"
	"lmp-gridmap/internal/config"
	"lmp-gridmap/internal/observability"
	"lmp-gridmap/internal/pricemap"
	"lmp-gridmap/internal/store"
)

type dataStore interface {
	pricemap.NodeSource
	pricemap.PriceSource
}

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfgPath := flag.String("config", os.Getenv("GRIDMAP_CONFIG"), "Path to YAML config (optional)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log.Logger = observability.NewLogger(cfg.Env, cfg.LogLevel)

	boundary, err := cfg.LoadBoundary()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid boundary")
	}
	log.Info().
		Str("boundary", boundary.Name()).
		Interface("bound", boundary.Bound()).
		Msg("boundary loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, closeSrc, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open data store")
	}
	defer closeSrc()

	gc, closeCache, err := openCache(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open grid cache")
	}
	defer closeCache()

	svc := pricemap.NewService(src, src, gc, boundary, cfg.Cells)
	reg := observability.InitRegistry()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.Options{
		Service: svc,
		Defaults: handlers.Defaults{
			MapMarket:      cfg.Defaults.MapMarket,
			SnapshotMarket: cfg.Defaults.SnapshotMarket,
		},
		Registry:    reg,
		CORSOrigins: cfg.Server.CORSOrigins,
		StaticDir:   cfg.Server.StaticDir,
		Logger:      log.With().Str("component", "http").Logger(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Msg("starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func openStore(ctx context.Context, cfg *config.Config) (dataStore, func(), error) {
	if cfg.Data.DatabaseURL != "" {
		pg, err := store.OpenPostgres(ctx, cfg.Data.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Msg("using postgres store")
		return pg, func() { _ = pg.Close() }, nil
	}

	mem, err := store.OpenSnapshot(cfg.Data.SnapshotFile)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("file", cfg.Data.SnapshotFile).Msg("using snapshot store")
	return mem, func() {}, nil
}

func openCache(ctx context.Context, cfg *config.Config) (pricemap.GridCache, func(), error) {
	switch cfg.Cache.Backend {
	case "redis":
		r := cache.NewRedis(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB, cfg.Cache.TTL)
		if err := r.Ping(ctx); err != nil {
			_ = r.Close()
			return nil, nil, fmt.Errorf("redis %s: %w", cfg.Cache.RedisAddr, err)
		}
		log.Info().Str("addr", cfg.Cache.RedisAddr).Dur("ttl", cfg.Cache.TTL).Msg("using redis grid cache")
		return r, func() { _ = r.Close() }, nil
	case "memory":
		m := cache.NewMemory(cfg.Cache.TTL, cfg.Cache.CleanupInterval)
		log.Info().Dur("ttl", cfg.Cache.TTL).Msg("using in-memory grid cache")
		return m, func() { _ = m.Close() }, nil
	default:
		log.Info().Msg("grid cache disabled")
		return nil, func() {}, nil
	}
}
