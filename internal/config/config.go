package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kitbuilder587/bid-search/internal/domain"
)

var (
	ErrInvalidCacheType   = errors.New("invalid cache type")
	ErrInvalidPagination  = errors.New("invalid pagination mode")
	ErrMissingRedisAddr   = errors.New("REDIS_ADDRESS is required for redis cache")
	ErrInvalidMinCalls    = errors.New("MIN_SUCCESSFUL_CALLS must be at least 1")
	ErrInvalidConfigValue = errors.New("invalid config value")
)

const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

type Config struct {
	G2B       G2BConfig
	Search    SearchConfig
	Cache     CacheConfig
	HTTP      HTTPConfig
	RateLimit RateLimitConfig
	Database  DatabaseConfig
	Telegram  TelegramConfig
	Log       LogConfig
}

type G2BConfig struct {
	APIKey    string
	BaseURL   string
	Timeout   time.Duration
	MaxRows   int
	Endpoints map[domain.Category]string
}

type SearchConfig struct {
	Window             time.Duration
	RetryAttempts      int
	RetryDelay         time.Duration
	MinSuccessfulCalls int
	Pagination         domain.PaginationMode
}

type CacheConfig struct {
	Type  string
	TTL   time.Duration
	Redis RedisConfig
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

type HTTPConfig struct {
	Port           int
	AllowedOrigins []string
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

// DatabaseConfig - журнал поисков, опционален
type DatabaseConfig struct {
	URL string
}

// TelegramConfig - бот, опционален
type TelegramConfig struct {
	Token string
}

type LogConfig struct {
	Level string
	// Format - json или console; пусто - по уровню
	Format string
}

// fileConfig - YAML из CONFIG_FILE. Переменные окружения сильнее.
type fileConfig struct {
	G2B struct {
		BaseURL    string            `yaml:"base_url"`
		TimeoutSec int               `yaml:"timeout_sec"`
		MaxRows    int               `yaml:"max_rows"`
		Endpoints  map[string]string `yaml:"endpoints"`
	} `yaml:"g2b"`
	Search struct {
		WindowDays         int    `yaml:"window_days"`
		RetryAttempts      int    `yaml:"retry_attempts"`
		RetryDelayMs       int    `yaml:"retry_delay_ms"`
		MinSuccessfulCalls int    `yaml:"min_successful_calls"`
		Pagination         string `yaml:"pagination"`
	} `yaml:"search"`
	Cache struct {
		Type   string `yaml:"type"`
		TTLSec int    `yaml:"ttl_sec"`
		Redis  struct {
			Address string `yaml:"address"`
			DB      int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	HTTP struct {
		Port           int      `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"http"`
	RateLimit struct {
		RequestsPerMinute int `yaml:"requests_per_minute"`
	} `yaml:"rate_limit"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load читает .env (если есть), YAML из CONFIG_FILE и переменные окружения.
// Пустой G2B_API_KEY не ошибка: сервис поднимется и будет отвечать "not configured".
func Load() (*Config, error) {
	_ = godotenv.Load()

	var fc fileConfig
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := readFile(path, &fc); err != nil {
			return nil, err
		}
	}

	endpoints := make(map[domain.Category]string)
	for name, op := range fc.G2B.Endpoints {
		cat, err := domain.ParseCategory(name)
		if err != nil {
			return nil, fmt.Errorf("%w: g2b.endpoints: %v", ErrInvalidConfigValue, err)
		}
		endpoints[cat] = op
	}
	for _, cat := range domain.AllCategories() {
		if op := os.Getenv("G2B_ENDPOINT_" + strings.ToUpper(cat.String())); op != "" {
			endpoints[cat] = op
		}
	}

	cfg := &Config{
		G2B: G2BConfig{
			APIKey:    os.Getenv("G2B_API_KEY"),
			BaseURL:   getEnvOrDefault("G2B_BASE_URL", orString(fc.G2B.BaseURL, "https://apis.data.go.kr/1230000/ad/BidPublicInfoService")),
			Timeout:   time.Duration(getEnvIntOrDefault("G2B_TIMEOUT_SEC", orInt(fc.G2B.TimeoutSec, 30))) * time.Second,
			MaxRows:   getEnvIntOrDefault("G2B_MAX_ROWS", orInt(fc.G2B.MaxRows, domain.MaxPageSize)),
			Endpoints: endpoints,
		},
		Search: SearchConfig{
			Window:             time.Duration(getEnvIntOrDefault("SEARCH_WINDOW_DAYS", orInt(fc.Search.WindowDays, 30))) * 24 * time.Hour,
			RetryAttempts:      getEnvIntOrDefault("RETRY_ATTEMPTS", orInt(fc.Search.RetryAttempts, 3)),
			RetryDelay:         time.Duration(getEnvIntOrDefault("RETRY_DELAY_MS", orInt(fc.Search.RetryDelayMs, 1000))) * time.Millisecond,
			MinSuccessfulCalls: getEnvIntOrDefault("MIN_SUCCESSFUL_CALLS", orInt(fc.Search.MinSuccessfulCalls, 1)),
			Pagination:         domain.PaginationMode(getEnvOrDefault("PAGINATION_MODE", orString(fc.Search.Pagination, string(domain.PaginationMerged)))),
		},
		Cache: CacheConfig{
			Type: getEnvOrDefault("CACHE_TYPE", orString(fc.Cache.Type, CacheMemory)),
			TTL:  time.Duration(getEnvIntOrDefault("CACHE_TTL_SEC", orInt(fc.Cache.TTLSec, 300))) * time.Second,
			Redis: RedisConfig{
				Address:  getEnvOrDefault("REDIS_ADDRESS", fc.Cache.Redis.Address),
				Password: os.Getenv("REDIS_PASSWORD"),
				DB:       getEnvIntOrDefault("REDIS_DB", fc.Cache.Redis.DB),
			},
		},
		HTTP: HTTPConfig{
			Port:           getEnvIntOrDefault("HTTP_PORT", orInt(fc.HTTP.Port, 3001)),
			AllowedOrigins: getEnvListOrDefault("ALLOWED_ORIGINS", fc.HTTP.AllowedOrigins),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvIntOrDefault("RATE_LIMIT_PER_MINUTE", orInt(fc.RateLimit.RequestsPerMinute, 60)),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Telegram: TelegramConfig{
			Token: os.Getenv("TELEGRAM_BOT_TOKEN"),
		},
		Log: LogConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", orString(fc.Log.Level, "info")),
			Format: getEnvOrDefault("LOG_FORMAT", fc.Log.Format),
		},
	}

	cfg.Cache.Type = strings.ToLower(cfg.Cache.Type)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Cache.Type {
	case CacheMemory, CacheNone:
	case CacheRedis:
		if c.Cache.Redis.Address == "" {
			return ErrMissingRedisAddr
		}
	default:
		return ErrInvalidCacheType
	}
	if !c.Search.Pagination.IsValid() {
		return ErrInvalidPagination
	}
	if c.Search.MinSuccessfulCalls < 1 {
		return ErrInvalidMinCalls
	}
	if c.G2B.MaxRows < 1 || c.G2B.MaxRows > domain.MaxPageSize {
		return fmt.Errorf("%w: G2B_MAX_ROWS must be between 1 and %d", ErrInvalidConfigValue, domain.MaxPageSize)
	}
	if c.Search.RetryAttempts < 1 {
		return fmt.Errorf("%w: RETRY_ATTEMPTS must be at least 1", ErrInvalidConfigValue)
	}
	return nil
}

// G2BConfigured - задан ли ключ data.go.kr
func (c *Config) G2BConfigured() bool {
	return c.G2B.APIKey != ""
}

func readFile(path string, fc *fileConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvListOrDefault - список через запятую
func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func orString(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func orInt(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}
