package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig
	Server   ServerConfig
	MongoDB  MongoDBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Chargily ChargilyConfig
	S3       S3Config
	OTEL     OTELConfig
}

// AppConfig holds environment and public URL settings
type AppConfig struct {
	Env         string `env:"APP_ENV" envDefault:"production"`
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
	BackendURL  string `env:"BACKEND_URL" envDefault:"http://localhost:5000"`
}

// IsDevelopment reports whether verbose errors and logs are enabled
func (a AppConfig) IsDevelopment() bool {
	return a.Env == "development"
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           string        `env:"PORT" envDefault:"5000"`
	BodyLimitKB    int           `env:"BODY_LIMIT_KB" envDefault:"1024"`
	AllowOrigins   string        `env:"CORS_ALLOW_ORIGINS" envDefault:"*"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
	CatalogTTL     time.Duration `env:"CATALOG_CACHE_TTL" envDefault:"5m"`
}

// MongoDBConfig holds MongoDB connection configuration
type MongoDBConfig struct {
	URI      string `env:"MONGODB_URI" envDefault:"mongodb://localhost:27017/?replicaSet=rs0"`
	Database string `env:"MONGODB_DATABASE" envDefault:"smm_panel"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// JWTConfig holds token signing configuration
type JWTConfig struct {
	Secret             string        `env:"JWT_SECRET"`
	AccessTokenExpiry  time.Duration `env:"JWT_ACCESS_EXPIRY" envDefault:"24h"`
	RefreshTokenExpiry time.Duration `env:"JWT_REFRESH_EXPIRY" envDefault:"720h"`
}

// ChargilyConfig holds payment gateway configuration.
// An empty APIKey selects the in-process mock gateway.
type ChargilyConfig struct {
	APIKey    string        `env:"CHARGILY_API_KEY"`
	SecretKey string        `env:"CHARGILY_SECRET_KEY"`
	Mode      string        `env:"CHARGILY_MODE" envDefault:"test"`
	BaseURL   string        `env:"CHARGILY_BASE_URL"`
	Timeout   time.Duration `env:"CHARGILY_TIMEOUT" envDefault:"30s"`
}

// S3Config holds the webhook payload archive bucket. Archiving is
// disabled when Bucket is empty.
type S3Config struct {
	Endpoint  string `env:"S3_ENDPOINT"`
	Region    string `env:"S3_REGION" envDefault:"us-east-1"`
	Bucket    string `env:"S3_BUCKET"`
	AccessKey string `env:"S3_ACCESS_KEY"`
	SecretKey string `env:"S3_SECRET_KEY"`
}

// OTELConfig holds OpenTelemetry exporter configuration
type OTELConfig struct {
	Enabled        bool   `env:"OTEL_ENABLED" envDefault:"false"`
	ServiceName    string `env:"OTEL_SERVICE_NAME" envDefault:"smm-panel-api"`
	ServiceVersion string `env:"OTEL_SERVICE_VERSION" envDefault:"1.0.0"`
	Endpoint       string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	InstanceID     string `env:"OTEL_INSTANCE_ID"`
	Token          string `env:"OTEL_TOKEN"`
}

// Load reads configuration from environment variables
// It attempts to load from .env file first, then falls back to system env vars
func Load() (*Config, error) {
	// Try to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.JWT.AccessTokenExpiry <= 0 {
		return fmt.Errorf("JWT_ACCESS_EXPIRY must be positive")
	}
	if c.Chargily.Mode != "test" && c.Chargily.Mode != "live" {
		return fmt.Errorf("CHARGILY_MODE must be test or live, got %q", c.Chargily.Mode)
	}
	if c.Chargily.APIKey != "" && c.Chargily.SecretKey == "" {
		return fmt.Errorf("CHARGILY_SECRET_KEY is required when CHARGILY_API_KEY is set")
	}
	// Webhooks credit balances, so they must be signed with a real secret
	// everywhere but on a developer machine.
	if !c.App.IsDevelopment() && c.Chargily.SecretKey == "" {
		return fmt.Errorf("CHARGILY_SECRET_KEY is required outside development")
	}
	if c.OTEL.Enabled && c.OTEL.Endpoint == "" {
		return fmt.Errorf("OTEL_EXPORTER_OTLP_ENDPOINT is required when OTEL_ENABLED is true")
	}
	return nil
}
