package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATABASE_URL", "HTTP_ADDR", "METRICS_ADDR", "AUTH_COOKIE_SECURE", "SESSION_LIFETIME",
		"CONTENT_TYPES_FILE", "MIGRATIONS_DIR", "LOADER_PAGE_SIZE", "LOADER_MIN_PAGE_SIZE",
		"SEARCH_DEBOUNCE", "MAX_RESPONSE_BYTES",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadWithOptions_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadWithOptions(LoadOptions{RequireDatabaseURL: false})
	if err != nil {
		t.Fatalf("LoadWithOptions() error = %v", err)
	}
	if cfg.HTTPAddr != defaultHTTPAddr || cfg.MetricsAddr != defaultMetricsAddr {
		t.Fatalf("addrs = %q %q", cfg.HTTPAddr, cfg.MetricsAddr)
	}
	if cfg.LoaderPageSize != 40 || cfg.LoaderMinPageSize != 1 {
		t.Fatalf("page sizes = %d/%d, want 40/1", cfg.LoaderPageSize, cfg.LoaderMinPageSize)
	}
	if cfg.SearchDebounce != time.Second {
		t.Fatalf("SearchDebounce = %s, want 1s", cfg.SearchDebounce)
	}
	if cfg.MaxResponseBytes != 7<<20 {
		t.Fatalf("MaxResponseBytes = %d", cfg.MaxResponseBytes)
	}
	if cfg.SessionLifetime != 24*time.Hour {
		t.Fatalf("SessionLifetime = %s", cfg.SessionLifetime)
	}
	if got := cfg.MigrationsSource(); got != "file://db/migrations" {
		t.Fatalf("MigrationsSource() = %q", got)
	}
}

func TestLoadWithOptions_ParsesOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOADER_PAGE_SIZE", "100")
	t.Setenv("LOADER_MIN_PAGE_SIZE", "5")
	t.Setenv("SEARCH_DEBOUNCE", "250ms")
	t.Setenv("AUTH_COOKIE_SECURE", "1")
	t.Setenv("MIGRATIONS_DIR", "/srv/migrations")

	cfg, err := LoadWithOptions(LoadOptions{RequireDatabaseURL: false})
	if err != nil {
		t.Fatalf("LoadWithOptions() error = %v", err)
	}
	if cfg.LoaderPageSize != 100 || cfg.LoaderMinPageSize != 5 {
		t.Fatalf("page sizes = %d/%d", cfg.LoaderPageSize, cfg.LoaderMinPageSize)
	}
	if cfg.SearchDebounce != 250*time.Millisecond {
		t.Fatalf("SearchDebounce = %s", cfg.SearchDebounce)
	}
	if !cfg.AuthCookieSecure {
		t.Fatal("AuthCookieSecure = false, want true")
	}
	if got := cfg.MigrationsSource(); got != "file:///srv/migrations" {
		t.Fatalf("MigrationsSource() = %q", got)
	}
}

func TestLoadWithOptions_InvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOADER_PAGE_SIZE", "zero")
	t.Setenv("SEARCH_DEBOUNCE", "-1s")

	cfg, err := LoadWithOptions(LoadOptions{RequireDatabaseURL: false})
	if err != nil {
		t.Fatalf("LoadWithOptions() error = %v", err)
	}
	if cfg.LoaderPageSize != defaultLoaderPageSize {
		t.Fatalf("LoaderPageSize = %d", cfg.LoaderPageSize)
	}
	if cfg.SearchDebounce != defaultSearchDebounce {
		t.Fatalf("SearchDebounce = %s", cfg.SearchDebounce)
	}
}

func TestLoadWithOptions_Errors(t *testing.T) {
	clearEnv(t)
	if _, err := Load(); err == nil {
		t.Fatal("expected DATABASE_URL error")
	}

	t.Setenv("LOADER_PAGE_SIZE", "10")
	t.Setenv("LOADER_MIN_PAGE_SIZE", "20")
	if _, err := LoadOptionalDB(); err == nil {
		t.Fatal("expected min page size error")
	}
}
