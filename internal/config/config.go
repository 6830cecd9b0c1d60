package config

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"supermart-dashboard/internal/loader"
)

const (
	envPrefix       = "DASH"
	minSecretLength = 32
)

var placeholderSecrets = []string{"change-me-in-production", "changeme", "secret"}

type Config struct {
	Server   ServerConfig   `envconfig:"SERVER"`
	Data     DataConfig     `envconfig:"DATA"`
	Forecast ForecastConfig `envconfig:"FORECAST"`
	Logger   LoggerConfig   `envconfig:"LOG"`
	Security SecurityConfig `envconfig:"SECURITY"`
	Auth     AuthConfig     `envconfig:"AUTH"`
	Tracing  TracingConfig  `envconfig:"TRACING"`
}

type ServerConfig struct {
	Host            string        `split_words:"true" default:"localhost"`
	Port            int           `split_words:"true" default:"8084"`
	ReadTimeout     time.Duration `split_words:"true" default:"10s"`
	WriteTimeout    time.Duration `split_words:"true" default:"60s"`
	IdleTimeout     time.Duration `split_words:"true" default:"60s"`
	ShutdownTimeout time.Duration `split_words:"true" default:"30s"`
}

// DataConfig describes the sales CSV. DayFirst defaults to false because
// the Supermart export writes month-first dates; day-first stays available
// as a fallback layout when parsing.
type DataConfig struct {
	Path       string `split_words:"true" default:"data/supermart.csv"`
	DateFormat string `split_words:"true"`
	DayFirst   bool   `split_words:"true" default:"false"`
	CacheDir   string `split_words:"true" default:".cache"`
}

type ForecastConfig struct {
	SeasonalShort int     `split_words:"true" default:"3"`
	SeasonalLong  int     `split_words:"true" default:"12"`
	SegmentSteps  int     `split_words:"true" default:"3"`
	SeasonLength  int     `split_words:"true" default:"12"`
	Rounds        int     `split_words:"true" default:"100"`
	MaxDepth      int     `split_words:"true" default:"3"`
	LearningRate  float64 `split_words:"true" default:"0.1"`
	HoldoutMonths int     `split_words:"true" default:"3"`
}

type LoggerConfig struct {
	Level  string `split_words:"true" default:"info"`
	Format string `split_words:"true" default:"json"`
}

type SecurityConfig struct {
	EnableCSRF      bool     `split_words:"true" default:"true"`
	EnableRateLimit bool     `split_words:"true" default:"true"`
	RateLimitRPS    int      `split_words:"true" default:"100"`
	RateLimitBurst  int      `split_words:"true" default:"10"`
	AllowedOrigins  []string `split_words:"true" default:"http://localhost:8084"`
	TrustedProxies  []string `split_words:"true" default:"127.0.0.1"`
}

type AuthConfig struct {
	// JWTSecret signs session cookies and has no default.
	JWTSecret    string        `split_words:"true" required:"true"`
	SessionTTL   time.Duration `split_words:"true" default:"12h"`
	CookieName   string        `split_words:"true" default:"supermart_session"`
	SecureCookie bool          `split_words:"true" default:"false"`
	// RedisURL selects the Redis user store; empty keeps users in memory.
	RedisURL string `split_words:"true"`
}

type TracingConfig struct {
	Enabled     bool    `split_words:"true" default:"false"`
	Exporter    string  `split_words:"true" default:"stdout"`
	ServiceName string  `split_words:"true" default:"supermart-dashboard"`
	SampleRatio float64 `split_words:"true" default:"1"`
}

// Load reads an optional .env file and then DASH_* environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if strings.TrimSpace(c.Data.Path) == "" {
		return fmt.Errorf("data path cannot be empty")
	}

	if c.Forecast.SeasonalShort <= 0 || c.Forecast.SeasonalLong <= 0 || c.Forecast.SegmentSteps <= 0 {
		return fmt.Errorf("forecast horizons must be positive")
	}

	if c.Forecast.SeasonLength < 2 {
		return fmt.Errorf("season length must be at least 2, got %d", c.Forecast.SeasonLength)
	}

	if c.Forecast.Rounds <= 0 || c.Forecast.MaxDepth <= 0 {
		return fmt.Errorf("boosting rounds and depth must be positive")
	}

	if c.Forecast.LearningRate <= 0 || c.Forecast.LearningRate > 1 {
		return fmt.Errorf("learning rate must be in (0, 1], got %g", c.Forecast.LearningRate)
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.Logger.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(validLogLevels, ", "))
	}

	validLogFormats := []string{"json", "text"}
	if !slices.Contains(validLogFormats, c.Logger.Format) {
		return fmt.Errorf("invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(validLogFormats, ", "))
	}

	if c.Security.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit RPS must be positive")
	}

	if c.Security.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit burst must be positive")
	}

	if slices.Contains(placeholderSecrets, strings.ToLower(c.Auth.JWTSecret)) {
		return fmt.Errorf("JWT secret is a placeholder, set DASH_AUTH_JWT_SECRET")
	}

	if len(c.Auth.JWTSecret) < minSecretLength {
		return fmt.Errorf("JWT secret must be at least %d bytes, got %d", minSecretLength, len(c.Auth.JWTSecret))
	}

	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}

	validExporters := []string{"stdout", "none"}
	if c.Tracing.Enabled && !slices.Contains(validExporters, c.Tracing.Exporter) {
		return fmt.Errorf("invalid trace exporter %q, must be one of: %s", c.Tracing.Exporter, strings.Join(validExporters, ", "))
	}

	return nil
}

// PipelineOptions returns the data-source options the loader recognises.
func (c *Config) PipelineOptions() loader.Options {
	return loader.Options{
		Path:       c.Data.Path,
		DateFormat: c.Data.DateFormat,
		DayFirst:   c.Data.DayFirst,
	}
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
