package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

type Config struct {
	Env       string          `mapstructure:"env"`
	Port      string          `mapstructure:"port"`
	StaticDir string          `mapstructure:"static_dir"`
	Store     StoreConfig     `mapstructure:"store"`
	Admin     AdminConfig     `mapstructure:"admin"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Sessions  SessionsConfig  `mapstructure:"sessions"`
}

// StoreConfig selects the backing store. Name is the key prefix for redis
// and the schema for postgres.
type StoreConfig struct {
	Driver        string        `mapstructure:"driver"`
	URL           string        `mapstructure:"url"`
	Name          string        `mapstructure:"name"`
	Timeout       time.Duration `mapstructure:"timeout"`
	SocketTimeout time.Duration `mapstructure:"socket_timeout"`
	PoolSize      int           `mapstructure:"pool_size"`
}

// AdminConfig enables the destructive endpoints when JWTSecret is set.
type AdminConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type RateLimitConfig struct {
	GamesPerMinute int `mapstructure:"games_per_minute"`
}

type SessionsConfig struct {
	RecentLimit int `mapstructure:"recent_limit"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("port", "3000")
	v.SetDefault("static_dir", "public")

	v.SetDefault("store.driver", DriverRedis)
	v.SetDefault("store.url", "redis://localhost:6379/0")
	v.SetDefault("store.name", "poker_leaderboard")
	v.SetDefault("store.timeout", 5*time.Second)
	v.SetDefault("store.socket_timeout", 45*time.Second)
	v.SetDefault("store.pool_size", 10)

	v.SetDefault("admin.jwt_secret", "")
	v.SetDefault("admin.token_ttl", 24*time.Hour)

	v.SetDefault("rate_limit.games_per_minute", 120)
	v.SetDefault("sessions.recent_limit", 50)
}

// Load reads defaults, then the optional config file at path, then the
// environment. STORE_URL also falls back to REDIS_URL, DATABASE_URL and
// MONGODB_URI; STORE_NAME falls back to DATABASE_NAME.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("store.url", "STORE_URL", "REDIS_URL", "DATABASE_URL", "MONGODB_URI"); err != nil {
		return nil, fmt.Errorf("failed to bind store url: %w", err)
	}
	if err := v.BindEnv("store.name", "STORE_NAME", "DATABASE_NAME"); err != nil {
		return nil, fmt.Errorf("failed to bind store name: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case DriverRedis, DriverPostgres:
	default:
		return fmt.Errorf("unsupported store driver %q", c.Store.Driver)
	}

	if c.Store.URL == "" {
		return fmt.Errorf("store url is required")
	}
	if c.Store.Name == "" {
		return fmt.Errorf("store name is required")
	}
	if c.Sessions.RecentLimit <= 0 {
		return fmt.Errorf("sessions.recent_limit must be positive, got %d", c.Sessions.RecentLimit)
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) AdminEnabled() bool {
	return c.Admin.JWTSecret != ""
}
