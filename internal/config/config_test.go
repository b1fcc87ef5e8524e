package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kitbuilder587/bid-search/internal/domain"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr error
	}{
		{
			name:    "no api key still loads",
			envVars: map[string]string{},
		},
		{
			name: "redis cache",
			envVars: map[string]string{
				"CACHE_TYPE":    "redis",
				"REDIS_ADDRESS": "localhost:6379",
			},
		},
		{
			name:    "redis without address",
			envVars: map[string]string{"CACHE_TYPE": "redis"},
			wantErr: ErrMissingRedisAddr,
		},
		{
			name:    "unknown cache type",
			envVars: map[string]string{"CACHE_TYPE": "memcached"},
			wantErr: ErrInvalidCacheType,
		},
		{
			name:    "unknown pagination",
			envVars: map[string]string{"PAGINATION_MODE": "cursor"},
			wantErr: ErrInvalidPagination,
		},
		{
			name:    "zero min calls",
			envVars: map[string]string{"MIN_SUCCESSFUL_CALLS": "-1"},
			wantErr: ErrInvalidMinCalls,
		},
		{
			name:    "too many rows",
			envVars: map[string]string{"G2B_MAX_ROWS": "5000"},
			wantErr: ErrInvalidConfigValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars()

			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}
			defer clearEnvVars()

			cfg, err := Load()

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Errorf("Load() unexpected error = %v", err)
				return
			}

			if cfg == nil {
				t.Error("Load() returned nil config")
			}
		})
	}
}

func TestDefaults(t *testing.T) {
	clearEnvVars()
	defer clearEnvVars()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.G2BConfigured() {
		t.Error("G2BConfigured() = true without G2B_API_KEY")
	}
	if cfg.G2B.Timeout != 30*time.Second {
		t.Errorf("G2B.Timeout = %v, want 30s", cfg.G2B.Timeout)
	}
	if cfg.G2B.MaxRows != 999 {
		t.Errorf("G2B.MaxRows = %d, want 999", cfg.G2B.MaxRows)
	}
	if cfg.Search.Window != 30*24*time.Hour {
		t.Errorf("Search.Window = %v, want 30 days", cfg.Search.Window)
	}
	if cfg.Search.RetryAttempts != 3 || cfg.Search.RetryDelay != time.Second {
		t.Errorf("retry = %d x %v, want 3 x 1s", cfg.Search.RetryAttempts, cfg.Search.RetryDelay)
	}
	if cfg.Search.MinSuccessfulCalls != 1 {
		t.Errorf("MinSuccessfulCalls = %d, want 1", cfg.Search.MinSuccessfulCalls)
	}
	if cfg.Search.Pagination != domain.PaginationMerged {
		t.Errorf("Pagination = %v, want merged", cfg.Search.Pagination)
	}
	if cfg.Cache.Type != CacheMemory || cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("Cache = %s/%v, want memory/5m", cfg.Cache.Type, cfg.Cache.TTL)
	}
	if cfg.HTTP.Port != 3001 {
		t.Errorf("HTTP.Port = %d, want 3001", cfg.HTTP.Port)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %v, want %v", cfg.Log.Level, "info")
	}
}

func TestLoad_YAMLOverlay(t *testing.T) {
	clearEnvVars()
	defer clearEnvVars()

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
g2b:
  timeout_sec: 10
  endpoints:
    goods: getBidPblancListInfoThng
search:
  pagination: upstream
  min_successful_calls: 2
cache:
  type: none
http:
  port: 8080
  allowed_origins: ["http://localhost:5173"]
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	os.Setenv("CONFIG_FILE", path)
	os.Setenv("HTTP_PORT", "9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.G2B.Timeout != 10*time.Second {
		t.Errorf("G2B.Timeout = %v, want 10s from file", cfg.G2B.Timeout)
	}
	if cfg.G2B.Endpoints[domain.CategoryGoods] != "getBidPblancListInfoThng" {
		t.Errorf("goods endpoint = %q", cfg.G2B.Endpoints[domain.CategoryGoods])
	}
	if cfg.Search.Pagination != domain.PaginationUpstream {
		t.Errorf("Pagination = %v, want upstream", cfg.Search.Pagination)
	}
	if cfg.Search.MinSuccessfulCalls != 2 {
		t.Errorf("MinSuccessfulCalls = %d, want 2", cfg.Search.MinSuccessfulCalls)
	}
	if cfg.Cache.Type != CacheNone {
		t.Errorf("Cache.Type = %s, want none", cfg.Cache.Type)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("HTTP.Port = %d, env should win over file", cfg.HTTP.Port)
	}
	if len(cfg.HTTP.AllowedOrigins) != 1 || cfg.HTTP.AllowedOrigins[0] != "http://localhost:5173" {
		t.Errorf("AllowedOrigins = %v", cfg.HTTP.AllowedOrigins)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %s, want debug", cfg.Log.Level)
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	clearEnvVars()
	defer clearEnvVars()

	os.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
	if _, err := Load(); err == nil {
		t.Error("Load() should fail for missing CONFIG_FILE")
	}
}

func TestLoad_EndpointOverride(t *testing.T) {
	clearEnvVars()
	defer clearEnvVars()

	os.Setenv("G2B_ENDPOINT_CONSTRUCTION", "getBidPblancListInfoCnstwk")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.G2B.Endpoints[domain.CategoryConstruction]; got != "getBidPblancListInfoCnstwk" {
		t.Errorf("construction endpoint = %q", got)
	}
}

func TestGetEnvIntOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		envValue   string
		defaultVal int
		want       int
	}{
		{"valid int", "42", 10, 42},
		{"empty string", "", 10, 10},
		{"invalid int", "abc", 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Setenv("TEST_INT", tt.envValue)
			defer os.Unsetenv("TEST_INT")

			got := getEnvIntOrDefault("TEST_INT", tt.defaultVal)
			if got != tt.want {
				t.Errorf("getEnvIntOrDefault() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvListOrDefault(t *testing.T) {
	os.Setenv("TEST_LIST", " http://a.kr , ,http://b.kr")
	defer os.Unsetenv("TEST_LIST")

	got := getEnvListOrDefault("TEST_LIST", nil)
	if len(got) != 2 || got[0] != "http://a.kr" || got[1] != "http://b.kr" {
		t.Errorf("getEnvListOrDefault() = %v", got)
	}
	if def := getEnvListOrDefault("TEST_LIST_MISSING", []string{"x"}); len(def) != 1 {
		t.Errorf("default not used: %v", def)
	}
}

func clearEnvVars() {
	envVars := []string{
		"CONFIG_FILE",
		"G2B_API_KEY",
		"G2B_BASE_URL",
		"G2B_TIMEOUT_SEC",
		"G2B_MAX_ROWS",
		"G2B_ENDPOINT_GOODS",
		"G2B_ENDPOINT_SERVICES",
		"G2B_ENDPOINT_CONSTRUCTION",
		"SEARCH_WINDOW_DAYS",
		"RETRY_ATTEMPTS",
		"RETRY_DELAY_MS",
		"MIN_SUCCESSFUL_CALLS",
		"PAGINATION_MODE",
		"CACHE_TYPE",
		"CACHE_TTL_SEC",
		"REDIS_ADDRESS",
		"REDIS_PASSWORD",
		"REDIS_DB",
		"HTTP_PORT",
		"ALLOWED_ORIGINS",
		"RATE_LIMIT_PER_MINUTE",
		"DATABASE_URL",
		"TELEGRAM_BOT_TOKEN",
		"LOG_LEVEL",
		"LOG_FORMAT",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}
}
