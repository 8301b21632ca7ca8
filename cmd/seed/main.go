package main

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"hostel_finder/internal/adapters/auth"
	"hostel_finder/internal/adapters/blob"
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
	ctx := context.Background()
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	path := cfg.SeedFile
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	f, err := os.Open(path)
	if err != nil {
		log.Fatal().Err(err).Msg("open seed file")
	}
	seed, err := loadSeed(f)
	f.Close()
	if err != nil {
		log.Fatal().Err(err).Msg("read seed file")
	}
	log.Info().
		Str("file", path).
		Int("admins", len(seed.Admins)).
		Int("hostels", len(seed.Hostels)).
		Int("workers", cfg.SeedWorkers).
		Msg("seed starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	repo := mysqlrepo.New(db)

	// the API's list cache must see the new rows, so share its backend
	var cache domain.Cache = memcache.New(time.Minute)
	if cfg.RedisAddr != "" {
		cache = redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	}

	var blobs domain.BlobStore
	if cfg.BlobBackend == "api" {
		blobs, err = storageapi.New(cfg.StorageAPIBase, cfg.StorageAPIKey, cfg.StorageRPS, cfg.MaxImageBytes)
	} else {
		blobs, err = blob.NewLocal(cfg.UploadDir, cfg.PublicBaseURL+"/uploads", cfg.MaxImageBytes)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("blob store init failed")
	}

	authSvc, err := auth.New(repo, cache, cfg.JWTSecret, cfg.SessionTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("auth init failed")
	}
	if err := seedAdmins(ctx, repo, authSvc, seed.Admins); err != nil {
		log.Fatal().Err(err).Msg("seeding admins failed")
	}

	images := app.NewImageUploader(blobs, cfg.StorageBucket, cfg.MaxImageBytes)
	hostels := app.NewHostelService(repo, cache, cfg.CacheTTL, images)
	failed := seedHostels(ctx, hostels, seed.Hostels, filepath.Dir(path), cfg.SeedWorkers)
	if failed > 0 {
		log.Fatal().Int("failed", failed).Msg("seeding completed with failures")
	}
	log.Info().Msg("seeding completed")
}
