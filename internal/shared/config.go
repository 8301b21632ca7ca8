package shared

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string
	HTTPTimeout time.Duration
	MySQLDSN    string

	// empty RedisAddr selects the in-process cache
	RedisAddr string
	RedisDB   int
	RedisPass string
	CacheTTL  time.Duration

	JWTSecret  string
	SessionTTL time.Duration
	LoginRPS   float64

	// BlobBackend is "local" (UploadDir served under PublicBaseURL) or "api" (remote object store).
	BlobBackend    string
	UploadDir      string
	PublicBaseURL  string
	StorageAPIBase string
	StorageAPIKey  string
	StorageRPS     int
	StorageBucket  string
	MaxImageBytes  int64

	SeedFile    string
	SeedWorkers int
}

// Load reads an optional .env, then the environment.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg(".env could not be read")
	}

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Msg("not an integer, using default")
		}
		return def
	}
	atof := func(k string, def float64) float64 {
		if v := os.Getenv(k); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
			log.Warn().Str("key", k).Msg("not a number, using default")
		}
		return def
	}

	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		LogLevel:    env("LOG_LEVEL", "info"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ""),
		HTTPTimeout: time.Duration(atoi("HTTP_TIMEOUT_SECONDS", 30)) * time.Second,
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/hostels?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),

		RedisAddr: env("REDIS_ADDR", ""),
		RedisDB:   atoi("REDIS_DB", 0),
		RedisPass: env("REDIS_PASSWORD", ""),
		CacheTTL:  time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,

		JWTSecret:  env("JWT_SECRET", ""),
		SessionTTL: time.Duration(atoi("SESSION_TTL_MINUTES", 24*60)) * time.Minute,
		LoginRPS:   atof("LOGIN_RPS", 1),

		BlobBackend:    env("BLOB_BACKEND", "local"),
		UploadDir:      env("UPLOAD_DIR", "uploads"),
		PublicBaseURL:  env("PUBLIC_BASE_URL", "http://localhost:8080"),
		StorageAPIBase: env("STORAGE_API_BASE", ""),
		StorageAPIKey:  env("STORAGE_API_KEY", ""),
		StorageRPS:     atoi("STORAGE_RPS", 5),
		StorageBucket:  env("STORAGE_BUCKET", "hostel_images"),
		MaxImageBytes:  int64(atoi("MAX_IMAGE_BYTES", 5<<20)),

		SeedFile:    env("SEED_FILE", "seed.yaml"),
		SeedWorkers: atoi("SEED_WORKERS", 4),
	}
	if c.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET is empty")
	}
	return c
}

// Validate reports settings the API cannot start without.
func (c Config) Validate() error {
	var errs []error
	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}
	switch c.BlobBackend {
	case "local":
	case "api":
		if c.StorageAPIBase == "" || c.StorageAPIKey == "" {
			errs = append(errs, errors.New("BLOB_BACKEND=api needs STORAGE_API_BASE and STORAGE_API_KEY"))
		}
	default:
		errs = append(errs, errors.New(`BLOB_BACKEND must be "local" or "api"`))
	}
	if c.MaxImageBytes <= 0 {
		errs = append(errs, errors.New("MAX_IMAGE_BYTES must be positive"))
	}
	return errors.Join(errs...)
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
