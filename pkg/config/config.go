package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration
type Config struct {
	Port        string `envconfig:"PORT" default:"8080" validate:"required,numeric"`
	Environment string `envconfig:"ENVIRONMENT" default:"development" validate:"oneof=development staging production"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn warning error"`

	// Model artifact
	ModelPath         string `envconfig:"MODEL_PATH" default:"model/artifact.json" validate:"required"`
	AdvisoryRulesPath string `envconfig:"ADVISORY_RULES_PATH"`
	AWSRegion         string `envconfig:"AWS_REGION" default:"us-east-1"`
	AWSEndpointURL    string `envconfig:"AWS_ENDPOINT_URL" validate:"omitempty,url"`

	// Optional backing services; empty disables the feature
	DatabaseURL string        `envconfig:"DATABASE_URL" validate:"omitempty,url"`
	RedisURL    string        `envconfig:"REDIS_URL" validate:"omitempty,url"`
	CacheTTL    time.Duration `envconfig:"CACHE_TTL" default:"30m" validate:"gte=0"`

	// Security configuration
	FrontendURL        string `envconfig:"FRONTEND_URL" default:"http://localhost:3000"`
	AllowedOrigins     string `envconfig:"ALLOWED_ORIGINS"`
	EnableRateLimit    bool   `envconfig:"ENABLE_RATE_LIMIT" default:"true"`
	RateLimitPerMinute int    `envconfig:"RATE_LIMIT_PER_MINUTE" default:"100" validate:"gt=0"`
	MaxRequestSize     int64  `envconfig:"MAX_REQUEST_SIZE" default:"1048576" validate:"gt=0"`

	// Batch prediction
	BatchConcurrency int `envconfig:"BATCH_CONCURRENCY" default:"8" validate:"gt=0"`
	MaxBatchSize     int `envconfig:"MAX_BATCH_SIZE" default:"500" validate:"gt=0"`
}

// LoadError reports a configuration problem found while loading
type LoadError struct {
	Stage string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Stage, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Load reads an optional .env file, then the process environment, and
// validates the result. Variables already set in the environment win over .env.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds the configuration from the process environment only
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &LoadError{Stage: "parse", Err: err}
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, &LoadError{Stage: "validate", Err: err}
	}
	return &cfg, nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// HasDatabase returns true if prediction history is configured
func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

// HasRedis returns true if the shared result cache is configured
func (c *Config) HasRedis() bool {
	return c.RedisURL != ""
}

// GetAllowedOrigins returns the CORS origins for non-development environments:
// the local frontend ports, FRONTEND_URL and anything listed in ALLOWED_ORIGINS.
func (c *Config) GetAllowedOrigins() []string {
	origins := []string{
		"http://localhost:3000",
		"http://localhost:5000",
	}
	if c.FrontendURL != "" {
		origins = append(origins, c.FrontendURL)
	}
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
