package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"hostel_finder/internal/adapters/auth"
	"hostel_finder/internal/adapters/blob"
	server "hostel_finder/internal/adapters/http_server"
	"hostel_finder/internal/adapters/memcache"
	"hostel_finder/internal/adapters/observability"
	redisad "hostel_finder/internal/adapters/redis"
	"hostel_finder/internal/adapters/storageapi"
	"hostel_finder/internal/app"
	"hostel_finder/internal/domain"
	"hostel_finder/internal/shared"
	mysqlrepo "hostel_finder/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	db.SetMaxOpenConns(20)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
	repo := mysqlrepo.New(db)
	cache := newCache(ctx, cfg)

	srv := server.New(cfg.HTTPTimeout)
	blobs := newBlobStore(cfg, srv)
	images := app.NewImageUploader(blobs, cfg.StorageBucket, cfg.MaxImageBytes)
	hostels := app.NewHostelService(repo, cache, cfg.CacheTTL, images)

	authSvc, err := auth.New(repo, cache, cfg.JWTSecret, cfg.SessionTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("auth init failed")
	}
	// an admin who just signed in lists hostels next
	cancelWarm := authSvc.OnSessionChange(func(ev domain.SessionEvent) {
		if ev.Type != domain.SessionSignedIn {
			return
		}
		go func() {
			wctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if _, err := hostels.List(wctx); err != nil {
				log.Debug().Err(err).Msg("list warm-up failed")
			}
		}()
	})
	defer cancelWarm()
	gate := app.NewAdminGate(authSvc, repo)

	// http
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{
		Hostels:       hostels,
		Gate:          gate,
		MaxImageBytes: cfg.MaxImageBytes,
		LoginRPS:      cfg.LoginRPS,
	})
	metricsSrv := observability.Serve(cfg.MetricsAddr, reg)

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server forced to shut down")
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	log.Info().Msg("server stopped")
}

func newCache(ctx context.Context, cfg shared.Config) domain.Cache {
	if cfg.RedisAddr == "" {
		log.Info().Msg("REDIS_ADDR empty, using in-process cache")
		return memcache.New(time.Minute)
	}
	c := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err := c.Ping(ctx); err != nil {
		log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis ping failed")
	}
	return c
}

func newBlobStore(cfg shared.Config, srv *server.Server) domain.BlobStore {
	if cfg.BlobBackend == "api" {
		c, err := storageapi.New(cfg.StorageAPIBase, cfg.StorageAPIKey, cfg.StorageRPS, cfg.MaxImageBytes)
		if err != nil {
			log.Fatal().Err(err).Msg("storage API client init failed")
		}
		return c
	}
	local, err := blob.NewLocal(cfg.UploadDir, cfg.PublicBaseURL+"/uploads", cfg.MaxImageBytes)
	if err != nil {
		log.Fatal().Err(err).Msg("local blob store init failed")
	}
	srv.Mount("/uploads/*", http.StripPrefix("/uploads", local.Handler()))
	log.Info().Str("dir", cfg.UploadDir).Msg("serving uploads from disk")
	return local
}
