package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const envPrefix = "TASKAPI"

type Config struct {
	App        AppConfig        `mapstructure:"app" yaml:"app"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Database   DatabaseConfig   `mapstructure:"database" yaml:"database"`
	SQLite     SQLiteConfig     `mapstructure:"sqlite" yaml:"sqlite"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
	Repository RepositoryConfig `mapstructure:"repository" yaml:"repository"`
	Pagination PaginationConfig `mapstructure:"pagination" yaml:"pagination"`
	CORS       CORSConfig       `mapstructure:"cors" yaml:"cors"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit" yaml:"ratelimit"`
}

type AppConfig struct {
	Name    string `mapstructure:"name" yaml:"name"`
	Version string `mapstructure:"version" yaml:"version"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port" yaml:"port"`
	Host            string        `mapstructure:"host" yaml:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL            string        `mapstructure:"url" yaml:"url"`
	MaxConnections int32         `mapstructure:"max_connections" yaml:"max_connections"`
	MinConnections int32         `mapstructure:"min_connections" yaml:"min_connections"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	SlowQuery      time.Duration `mapstructure:"slow_query" yaml:"slow_query"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type LoggingConfig struct {
	Development bool   `mapstructure:"development" yaml:"development"`
	Level       string `mapstructure:"level" yaml:"level"`
}

type RepositoryConfig struct {
	Type string `mapstructure:"type" yaml:"type"` // "inmemory", "postgres" или "sqlite"
}

type PaginationConfig struct {
	DefaultLimit int `mapstructure:"default_limit" yaml:"default_limit"`
	MaxLimit     int `mapstructure:"max_limit" yaml:"max_limit"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

type RateLimitConfig struct {
	RequestsPerMinute int         `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	Backend           string      `mapstructure:"backend" yaml:"backend"` // "memory" или "redis"
	Redis             RedisConfig `mapstructure:"redis" yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
	Prefix   string `mapstructure:"prefix" yaml:"prefix"`
}

const (
	RepositoryInMemory = "inmemory"
	RepositoryPostgres = "postgres"
	RepositorySQLite   = "sqlite"

	RateLimitMemory = "memory"
	RateLimitRedis  = "redis"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "Task Management API")
	v.SetDefault("app.version", "1.0.0")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.min_connections", 2)
	v.SetDefault("database.idle_timeout", 5*time.Minute)
	v.SetDefault("database.slow_query", 100*time.Millisecond)

	v.SetDefault("sqlite.path", "tasks.db")

	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")

	v.SetDefault("repository.type", RepositoryInMemory)

	v.SetDefault("pagination.default_limit", 100)
	v.SetDefault("pagination.max_limit", 1000)

	v.SetDefault("cors.allowed_origins", []string{"*"})

	v.SetDefault("ratelimit.requests_per_minute", 100)
	v.SetDefault("ratelimit.backend", RateLimitMemory)
	v.SetDefault("ratelimit.redis.addr", "localhost:6379")
	v.SetDefault("ratelimit.redis.password", "")
	v.SetDefault("ratelimit.redis.db", 0)
	v.SetDefault("ratelimit.redis.prefix", "taskapi:ratelimit")
}

// Load читает config.yml из переданных каталогов (по умолчанию текущий),
// затем накладывает переменные окружения TASKAPI_*. Файл не обязателен.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yml")
	if len(paths) == 0 {
		paths = []string{"."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("ошибка парсинга config.yml: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора конфигурации: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Repository.Type {
	case RepositoryInMemory:
	case RepositoryPostgres:
		if c.Database.URL == "" {
			return errors.New("конфигурация: database.url обязателен для postgres")
		}
	case RepositorySQLite:
		if c.SQLite.Path == "" {
			return errors.New("конфигурация: sqlite.path обязателен для sqlite")
		}
	default:
		return fmt.Errorf("конфигурация: неизвестный тип репозитория %q", c.Repository.Type)
	}

	if c.Database.MinConnections > c.Database.MaxConnections {
		return fmt.Errorf("конфигурация: min_connections (%d) больше max_connections (%d)",
			c.Database.MinConnections, c.Database.MaxConnections)
	}

	if c.Pagination.DefaultLimit < 1 || c.Pagination.MaxLimit < c.Pagination.DefaultLimit {
		return fmt.Errorf("конфигурация: неверная пагинация default_limit=%d max_limit=%d",
			c.Pagination.DefaultLimit, c.Pagination.MaxLimit)
	}

	switch c.RateLimit.Backend {
	case RateLimitMemory:
	case RateLimitRedis:
		if c.RateLimit.Redis.Addr == "" {
			return errors.New("конфигурация: ratelimit.redis.addr обязателен для redis")
		}
	default:
		return fmt.Errorf("конфигурация: неизвестный backend ограничителя %q", c.RateLimit.Backend)
	}
	if c.RateLimit.RequestsPerMinute < 0 {
		return errors.New("конфигурация: requests_per_minute не может быть отрицательным")
	}

	return nil
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// Dump возвращает итоговую конфигурацию в YAML без паролей.
func (c *Config) Dump() (string, error) {
	masked := *c
	masked.Database.URL = maskURL(c.Database.URL)
	if masked.RateLimit.Redis.Password != "" {
		masked.RateLimit.Redis.Password = "xxxxx"
	}

	out, err := yaml.Marshal(&masked)
	if err != nil {
		return "", fmt.Errorf("сериализация конфигурации: %w", err)
	}
	return string(out), nil
}

func maskURL(raw string) string {
	if raw == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "xxxxx"
	}
	return u.Redacted()
}
