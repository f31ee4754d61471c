package config

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/kosarica/analytics-service/internal/http/ratelimit"
	"github.com/kosarica/analytics-service/internal/ingestion/bundle"
	"github.com/kosarica/analytics-service/internal/middleware"
	"github.com/kosarica/analytics-service/internal/parsers"
	"github.com/kosarica/analytics-service/internal/telemetry"
)

// Checkpoint store kinds
const (
	CheckpointMemory = "memory"
	CheckpointLocal  = "local"
	CheckpointRedis  = "redis"
)

// Config holds the application configuration
type Config struct {
	Server          ServerConfig                 `mapstructure:"server"`
	Backend         BackendConfig                `mapstructure:"backend"`
	RateLimit       ratelimit.Config             `mapstructure:"rate_limit"`
	ServerRateLimit middleware.RateLimiterConfig `mapstructure:"server_rate_limit"`
	Parser          parsers.Options              `mapstructure:"parser"`
	Bundle          bundle.ExpandOptions         `mapstructure:"bundle"`
	Ingestion       IngestionConfig              `mapstructure:"ingestion"`
	Cache           CacheConfig                  `mapstructure:"cache"`
	Redis           RedisConfig                  `mapstructure:"redis"`
	Storage         StorageConfig                `mapstructure:"storage"`
	Logging         LoggingConfig                `mapstructure:"logging"`
	Telemetry       telemetry.Config             `mapstructure:"telemetry"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	Host           string        `mapstructure:"host"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

// BackendConfig locates the analytics backend
type BackendConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// IngestionConfig selects where resume checkpoints are kept
type IngestionConfig struct {
	CheckpointStore string        `mapstructure:"checkpoint_store"`
	CheckpointTTL   time.Duration `mapstructure:"checkpoint_ttl"`
}

// CacheConfig holds client cache settings
type CacheConfig struct {
	LoadTimeout time.Duration `mapstructure:"load_timeout"`
}

// RedisConfig holds the Redis connection
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Type     string `mapstructure:"type"`
	BasePath string `mapstructure:"base_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
	NoColor bool   `mapstructure:"no_color"`
}

// Load loads the configuration from file, .env, and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := loadEnvFile(); err != nil {
		log.Debug().Err(err).Msg(".env file not loaded")
	}

	v.SetEnvPrefix("ANALYTICS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that have no usable fallback
func (c *Config) Validate() error {
	var errs []error
	if c.Backend.URL != "" {
		if u, err := url.Parse(c.Backend.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Errorf("backend.url must be an http(s) URL, got %q", c.Backend.URL))
		}
	}
	switch c.Ingestion.CheckpointStore {
	case CheckpointMemory, CheckpointLocal:
	case CheckpointRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("redis.url is required when ingestion.checkpoint_store is redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ingestion.checkpoint_store %q", c.Ingestion.CheckpointStore))
	}
	if c.Parser.MaxRows < 0 {
		errs = append(errs, errors.New("parser.max_rows must not be negative"))
	}
	return errors.Join(errs...)
}

// loadEnvFile loads the first .env file found
func loadEnvFile() error {
	for _, dir := range []string{".", "./config"} {
		envFile := filepath.Join(dir, ".env")
		if _, err := os.Stat(envFile); err == nil {
			return loadDotEnvFile(envFile)
		}
	}
	return errors.New("no .env file found")
}

// loadDotEnvFile reads KEY=VALUE lines into the environment without
// overriding variables that are already set
func loadDotEnvFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		if _, set := os.LookupEnv(key); set {
			continue
		}
		os.Setenv(key, strings.Trim(strings.TrimSpace(value), `"'`))
	}
	return scanner.Err()
}

// bindEnvVars binds the unprefixed environment variables
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("backend.url", "ANALYTICS_BACKEND_URL", "BACKEND_URL")
	_ = v.BindEnv("server.port", "ANALYTICS_SERVER_PORT", "PORT")
	_ = v.BindEnv("server.host", "ANALYTICS_SERVER_HOST", "HOST")
	_ = v.BindEnv("logging.level", "ANALYTICS_LOGGING_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("redis.url", "ANALYTICS_REDIS_URL", "REDIS_URL")
	_ = v.BindEnv("storage.base_path", "ANALYTICS_STORAGE_BASE_PATH", "STORAGE_PATH")
	_ = v.BindEnv("telemetry.enabled", "ANALYTICS_TELEMETRY_ENABLED", "OTEL_ENABLED")
	_ = v.BindEnv("telemetry.endpoint", "ANALYTICS_TELEMETRY_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 5*time.Minute)
	v.SetDefault("server.write_timeout", 30*time.Minute)
	v.SetDefault("server.max_upload_bytes", int64(1<<30))

	v.SetDefault("backend.url", "http://localhost:8000/api/")
	v.SetDefault("backend.timeout", 10*time.Minute)

	rl := ratelimit.DefaultConfig()
	v.SetDefault("rate_limit.requests_per_second", rl.RequestsPerSecond)
	v.SetDefault("rate_limit.burst", rl.Burst)
	v.SetDefault("rate_limit.max_retries", rl.MaxRetries)
	v.SetDefault("rate_limit.initial_backoff_ms", rl.InitialBackoffMs)
	v.SetDefault("rate_limit.max_backoff_ms", rl.MaxBackoffMs)

	srl := middleware.DefaultRateLimiterConfig()
	v.SetDefault("server_rate_limit.requests_per_second", srl.RequestsPerSecond)
	v.SetDefault("server_rate_limit.burst_size", srl.BurstSize)
	v.SetDefault("server_rate_limit.idle_timeout", srl.IdleTimeout)

	p := parsers.DefaultOptions()
	v.SetDefault("parser.delimiter", string(p.Delimiter))
	v.SetDefault("parser.encoding", string(p.Encoding))
	v.SetDefault("parser.has_header", p.HasHeader)
	v.SetDefault("parser.max_rows", 0)
	v.SetDefault("parser.sheet", "")

	b := bundle.DefaultExpandOptions()
	v.SetDefault("bundle.max_file_size", b.MaxFileSize)
	v.SetDefault("bundle.max_total_size", b.MaxTotalSize)
	v.SetDefault("bundle.max_files", b.MaxFiles)
	v.SetDefault("bundle.skip_patterns", b.SkipPatterns)

	v.SetDefault("ingestion.checkpoint_store", CheckpointLocal)
	v.SetDefault("ingestion.checkpoint_ttl", 7*24*time.Hour)

	v.SetDefault("cache.load_timeout", 30*time.Second)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.base_path", defaultStoragePath())

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.no_color", false)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("telemetry.service_name", telemetry.DefaultServiceName)
}

func defaultStoragePath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "kosarica-analytics")
	}
	return "./data"
}
