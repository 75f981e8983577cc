package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultHTTPAddr         = ":8080"
	defaultMetricsAddr      = ":9090"
	defaultSessionLifetime  = 24 * time.Hour
	defaultContentTypesFile = "content_types.yaml"
	defaultMigrationsDir    = "db/migrations"

	defaultLoaderPageSize    = 40
	defaultLoaderMinPageSize = 1
	defaultSearchDebounce    = time.Second
	defaultMaxResponseBytes  = 7 << 20
)

type Config struct {
	DatabaseURL       string
	HTTPAddr          string
	MetricsAddr       string
	AuthCookieSecure  bool
	SessionLifetime   time.Duration
	ContentTypesFile  string
	MigrationsDir     string
	LoaderPageSize    int
	LoaderMinPageSize int
	SearchDebounce    time.Duration
	MaxResponseBytes  int
}

type LoadOptions struct {
	RequireDatabaseURL bool
}

func Load() (Config, error) {
	return LoadWithOptions(LoadOptions{RequireDatabaseURL: true})
}

func LoadOptionalDB() (Config, error) {
	return LoadWithOptions(LoadOptions{RequireDatabaseURL: false})
}

func LoadWithOptions(opts LoadOptions) (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, err
		}
	}

	cfg := Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		HTTPAddr:          getenvDefault("HTTP_ADDR", defaultHTTPAddr),
		MetricsAddr:       getenvDefault("METRICS_ADDR", defaultMetricsAddr),
		AuthCookieSecure:  getenvBoolDefault("AUTH_COOKIE_SECURE", false),
		SessionLifetime:   getenvDurationDefault("SESSION_LIFETIME", defaultSessionLifetime),
		ContentTypesFile:  strings.TrimSpace(getenvDefault("CONTENT_TYPES_FILE", defaultContentTypesFile)),
		MigrationsDir:     strings.TrimSpace(getenvDefault("MIGRATIONS_DIR", defaultMigrationsDir)),
		LoaderPageSize:    getenvIntDefault("LOADER_PAGE_SIZE", defaultLoaderPageSize),
		LoaderMinPageSize: getenvIntDefault("LOADER_MIN_PAGE_SIZE", defaultLoaderMinPageSize),
		SearchDebounce:    getenvDurationDefault("SEARCH_DEBOUNCE", defaultSearchDebounce),
		MaxResponseBytes:  getenvIntDefault("MAX_RESPONSE_BYTES", defaultMaxResponseBytes),
	}

	if cfg.LoaderMinPageSize > cfg.LoaderPageSize {
		return cfg, errors.New("LOADER_MIN_PAGE_SIZE must not exceed LOADER_PAGE_SIZE")
	}
	if opts.RequireDatabaseURL && cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}

	return cfg, nil
}

// MigrationsSource returns the golang-migrate source URL for MigrationsDir.
func (c Config) MigrationsSource() string {
	dir := c.MigrationsDir
	if dir == "" {
		dir = defaultMigrationsDir
	}
	return "file://" + dir
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func getenvBoolDefault(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	switch v {
	case "1":
		return true
	case "0":
		return false
	default:
		return def
	}
}

func getenvDurationDefault(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
