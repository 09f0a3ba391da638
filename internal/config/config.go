package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Server ServerConfig `mapstructure:"server"`
	DB     DBConfig     `mapstructure:"db"`
	Cache  CacheConfig  `mapstructure:"cache"`
	CORS   CORSConfig   `mapstructure:"cors"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DBConfig holds the database connection settings.
type DBConfig struct {
	URL string `mapstructure:"url"`
}

// CacheConfig holds the redis catalog cache settings.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Addr    string        `mapstructure:"addr"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// CORSConfig holds the allowed browser origins.
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// Load reads configuration from the environment, with a .env file as an
// optional source of defaults.
func Load() (*Config, error) {
	// A missing .env file is fine; the environment still applies.
	_ = godotenv.Load()

	setDefaults()

	viper.SetEnvPrefix("PANTRYCHEF")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.BindEnv("db.url", "DATABASE_URL")
	viper.BindEnv("cache.addr", "REDIS_ADDR")
	viper.BindEnv("cache.enabled", "CACHE_ENABLED")
	viper.BindEnv("app.log_level", "LOG_LEVEL")

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.log_level", "info")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "15s")
	viper.SetDefault("server.idle_timeout", "60s")

	viper.SetDefault("db.url", "postgres://localhost:5432/pantrychef?sslmode=disable")

	viper.SetDefault("cache.enabled", false)
	viper.SetDefault("cache.addr", "localhost:6379")
	viper.SetDefault("cache.ttl", "5m")

	viper.SetDefault("cors.allow_origins", []string{"http://localhost:5173"})
}

func validate(cfg *Config) error {
	if cfg.Server.Port == 0 {
		return fmt.Errorf("server port is required")
	}
	if cfg.DB.URL == "" {
		return fmt.Errorf("database url is required")
	}
	if cfg.Cache.Enabled && cfg.Cache.TTL <= 0 {
		return fmt.Errorf("invalid cache ttl")
	}
	return nil
}
