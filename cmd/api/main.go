package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"mediagrab/internal/extractor"
	"mediagrab/internal/http/handlers"
	httpapi "mediagrab/internal/http/httpapi"
	"mediagrab/internal/hub"
	"mediagrab/internal/infra"
	"mediagrab/internal/infra/geoip"
	"mediagrab/internal/queue"
	"mediagrab/internal/ratelimit"
	"mediagrab/internal/session"
	"mediagrab/internal/storage"
)

func main() {
	// Load .env (optional)
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	// Root context carries the worker pool, hub dispatcher, and session
	// janitor lifecycles; SIGINT/SIGTERM cancels them all.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open geoip database")
	}
	var countries geoip.CountryResolver
	if resolver != nil {
		countries = resolver
		defer resolver.Close()
	}

	store, err := storage.NewArtifactStore(cfg.DownloadDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare download directory")
	}

	ext := extractor.NewYtDlp(cfg.YtDlpPath)

	h := hub.New(cfg.EventBuffer, logger)
	go h.Run(ctx)

	sessions := session.NewRegistry(cfg.SessionTTL)
	if cfg.SessionTTL > 0 {
		go sessions.Janitor(ctx, time.Minute)
	}

	q := queue.New(queue.Config{
		Workers:      cfg.Workers,
		Policy:       queue.Policy(cfg.DownloadPolicy),
		DelaySeconds: cfg.InterJobDelaySecs,
		Capacity:     cfg.QueueCapacity,
		JobTimeout:   cfg.JobTimeout,
	}, ext, h, store, logger)
	q.Start(ctx)

	limiter := ratelimit.New(cfg.RateLimitPerWindow, cfg.RateLimitWindow)

	app := &handlers.App{
		Log:       logger,
		Extractor: ext,
		Sessions:  sessions,
		Queue:     q,
		Hub:       h,
		Store:     store,
		Limits: handlers.Limits{
			MaxPlaylistSize: cfg.MaxPlaylistSize,
			ResultsPerPage:  cfg.ResultsPerPage,
		},
	}

	router := httpapi.NewRouter(app, limiter, logger, countries, cfg.CORSOrigins)
	server := infra.NewHTTPServer(cfg, router)

	// Start async
	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
