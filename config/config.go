// config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"countdown.share/internal/models"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Share     ShareConfig     `yaml:"share"`
	Session   SessionConfig   `yaml:"session"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	BaseURL string `yaml:"base_url"`
}

type StoreConfig struct {
	Type     string         `yaml:"type"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	REST     RESTConfig     `yaml:"rest"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// RESTConfig locates a PostgREST endpoint such as a Supabase project.
type RESTConfig struct {
	URL   string `yaml:"url"`
	Key   string `yaml:"key"`
	Table string `yaml:"table"`
}

type ShareConfig struct {
	TTL       time.Duration `yaml:"ttl"`
	Retention time.Duration `yaml:"retention"`
	Timeout   time.Duration `yaml:"timeout"`
}

type SessionConfig struct {
	Secret       string        `yaml:"secret"`
	CookieMaxAge time.Duration `yaml:"cookie_max_age"`
	LocalDB      string        `yaml:"local_db"`
}

type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled"`
	RequestsPerMin int  `yaml:"requests_per_min"`
	SharePerMin    int  `yaml:"share_per_min"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreREST     = "rest"
)

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8080,
			BaseURL: "http://localhost:8080",
		},
		Store: StoreConfig{
			Type: StoreMemory,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				Password: "",
				DB:       0,
			},
			REST: RESTConfig{
				Table: "countdowns",
			},
		},
		Share: ShareConfig{
			TTL:     models.ShareTTL,
			Timeout: 10 * time.Second,
		},
		Session: SessionConfig{
			CookieMaxAge: 365 * 24 * time.Hour,
			LocalDB:      defaultLocalDB(),
		},
		RateLimit: RateLimitConfig{
			Enabled:        true,
			RequestsPerMin: 100,
			SharePerMin:    10,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultLocalDB() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "countdown.db"
	}
	return filepath.Join(dir, "countdown", "session.db")
}

func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, err
		}
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File not found is OK, use defaults
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

func (c *Config) loadFromEnv() {
	// Server
	if v := os.Getenv("HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		c.Server.BaseURL = v
	}

	// Store
	if v := os.Getenv("STORE_TYPE"); v != "" {
		c.Store.Type = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Store.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Store.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Store.Redis.DB = db
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Store.Postgres.DSN = v
	}
	if v := firstEnv("REMOTE_URL", "SUPABASE_URL"); v != "" {
		c.Store.REST.URL = v
	}
	if v := firstEnv("REMOTE_KEY", "SUPABASE_ANON_KEY"); v != "" {
		c.Store.REST.Key = v
	}

	// Share
	if v := os.Getenv("SHARE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Share.TTL = d
		}
	}
	if v := os.Getenv("SHARE_RETENTION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Share.Retention = d
		}
	}
	if v := os.Getenv("SHARE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Share.Timeout = d
		}
	}

	// Session
	if v := os.Getenv("SESSION_SECRET"); v != "" {
		c.Session.Secret = v
	}
	if v := os.Getenv("COUNTDOWN_DB"); v != "" {
		c.Session.LocalDB = v
	}

	if v := os.Getenv("RATE_LIMIT_ENABLED"); v != "" {
		c.RateLimit.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("RATE_LIMIT_REQUESTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimit.RequestsPerMin = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_SHARE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimit.SharePerMin = n
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// Validate rejects settings the server cannot run with. Missing remote
// credentials are not an error; they disable sharing instead.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if c.Server.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}

	switch c.Store.Type {
	case StoreMemory, StoreRedis, StorePostgres, StoreREST:
	default:
		return fmt.Errorf("invalid store type: %s (must be 'memory', 'redis', 'postgres' or 'rest')", c.Store.Type)
	}

	if c.Share.TTL <= 0 {
		return fmt.Errorf("share ttl must be positive")
	}

	if c.Share.Retention < 0 {
		return fmt.Errorf("share retention must not be negative")
	}

	if c.Share.Timeout < 0 {
		return fmt.Errorf("share timeout must not be negative")
	}

	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerMin < 1 || c.RateLimit.SharePerMin < 1) {
		return fmt.Errorf("rate limits must be at least 1 per minute when enabled")
	}

	return nil
}

// RemoteMissing names what is missing for the configured store to be used,
// or returns "" when the store is fully configured.
func (c *Config) RemoteMissing() string {
	switch c.Store.Type {
	case StoreRedis:
		if c.Store.Redis.Addr == "" {
			return "redis addr is not set"
		}
	case StorePostgres:
		if c.Store.Postgres.DSN == "" {
			return "DATABASE_URL is not set"
		}
	case StoreREST:
		if c.Store.REST.URL == "" {
			return "REMOTE_URL is not set"
		}
		if c.Store.REST.Key == "" {
			return "REMOTE_KEY is not set"
		}
	}
	return ""
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
