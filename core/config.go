package core

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the storefront core.
// It supports three-layer configuration priority:
//  1. Default values (lowest priority)
//  2. Environment variables (medium priority)
//  3. Functional options (highest priority)
//
// Example usage:
//
//	cfg, err := NewConfig(
//	    WithName("storefront"),
//	    WithStorageProvider("file"),
//	    WithStoragePath("/var/lib/storefront"),
//	)
type Config struct {
	// Name identifies this application instance in logs and telemetry
	Name string `yaml:"name" env:"STOREFRONT_NAME"`

	// Storage configuration
	Storage StorageConfig `yaml:"storage"`

	// Location resolution configuration
	Location LocationConfig `yaml:"location"`

	// Resilience configuration for outbound HTTP calls
	Resilience ResilienceConfig `yaml:"resilience"`

	// Telemetry configuration (optional module)
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging"`
}

// StorageConfig selects and parameterizes the persistence backend.
// Provider is one of: memory, file, sqlite, redis.
type StorageConfig struct {
	Provider  string `yaml:"provider" env:"STOREFRONT_STORAGE_PROVIDER"`
	Path      string `yaml:"path" env:"STOREFRONT_STORAGE_PATH"`
	RedisURL  string `yaml:"redis_url" env:"STOREFRONT_REDIS_URL,REDIS_URL"`
	Namespace string `yaml:"namespace" env:"STOREFRONT_STORAGE_NAMESPACE"`
}

// LocationConfig parameterizes the external geolocation services.
type LocationConfig struct {
	IPLookupEndpoint string        `yaml:"ip_lookup_endpoint" env:"STOREFRONT_IP_LOOKUP_ENDPOINT"`
	GeocoderEndpoint string        `yaml:"geocoder_endpoint" env:"STOREFRONT_GEOCODER_ENDPOINT"`
	UserAgent        string        `yaml:"user_agent" env:"STOREFRONT_GEOCODER_USER_AGENT"`
	HTTPTimeout      time.Duration `yaml:"http_timeout" env:"STOREFRONT_LOCATION_HTTP_TIMEOUT"`
	GPSTimeout       time.Duration `yaml:"gps_timeout" env:"STOREFRONT_GPS_TIMEOUT"`
}

// ResilienceConfig configures retry behavior for geocoding calls.
type ResilienceConfig struct {
	MaxAttempts   int           `yaml:"max_attempts" env:"STOREFRONT_RETRY_MAX_ATTEMPTS"`
	InitialDelay  time.Duration `yaml:"initial_delay" env:"STOREFRONT_RETRY_INITIAL_DELAY"`
	MaxDelay      time.Duration `yaml:"max_delay" env:"STOREFRONT_RETRY_MAX_DELAY"`
	BackoffFactor float64       `yaml:"backoff_factor"`
}

// TelemetryConfig contains OpenTelemetry configuration.
// This is an optional module - telemetry is only initialized when Enabled=true.
type TelemetryConfig struct {
	Enabled      bool   `yaml:"enabled" env:"STOREFRONT_TELEMETRY_ENABLED"`
	OTELEndpoint string `yaml:"otel_endpoint" env:"STOREFRONT_OTEL_ENDPOINT,OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"STOREFRONT_LOG_LEVEL"`
	Format string `yaml:"format" env:"STOREFRONT_LOG_FORMAT"`
}

// Option is a functional option for configuring the storefront
type Option func(*Config)

// NewConfig creates a configuration with defaults, environment variable
// overrides, and functional options applied in that order.
func NewConfig(opts ...Option) (*Config, error) {
	config := DefaultConfig()

	config.applyEnvironment()

	for _, opt := range opts {
		opt(config)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// DefaultConfig returns the baseline configuration
func DefaultConfig() *Config {
	return &Config{
		Name: "storefront",
		Storage: StorageConfig{
			Provider:  "memory",
			Namespace: "storefront",
		},
		Location: LocationConfig{
			IPLookupEndpoint: "https://ipapi.co/json/",
			GeocoderEndpoint: "https://nominatim.openstreetmap.org",
			UserAgent:        "quickplate-storefront/1.0",
			HTTPTimeout:      10 * time.Second,
			GPSTimeout:       8 * time.Second,
		},
		Resilience: ResilienceConfig{
			MaxAttempts:   3,
			InitialDelay:  100 * time.Millisecond,
			MaxDelay:      5 * time.Second,
			BackoffFactor: 2.0,
		},
		Telemetry: TelemetryConfig{
			Enabled: false,
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
	}
}

// applyEnvironment layers environment variables over defaults
func (c *Config) applyEnvironment() {
	if v := os.Getenv("STOREFRONT_NAME"); v != "" {
		c.Name = v
	}
	if v := os.Getenv("STOREFRONT_STORAGE_PROVIDER"); v != "" {
		c.Storage.Provider = v
	}
	if v := os.Getenv("STOREFRONT_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := firstEnv("STOREFRONT_REDIS_URL", "REDIS_URL"); v != "" {
		c.Storage.RedisURL = v
	}
	if v := os.Getenv("STOREFRONT_STORAGE_NAMESPACE"); v != "" {
		c.Storage.Namespace = v
	}
	if v := os.Getenv("STOREFRONT_IP_LOOKUP_ENDPOINT"); v != "" {
		c.Location.IPLookupEndpoint = v
	}
	if v := os.Getenv("STOREFRONT_GEOCODER_ENDPOINT"); v != "" {
		c.Location.GeocoderEndpoint = v
	}
	if v := os.Getenv("STOREFRONT_GEOCODER_USER_AGENT"); v != "" {
		c.Location.UserAgent = v
	}
	if v := os.Getenv("STOREFRONT_LOCATION_HTTP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Location.HTTPTimeout = d
		}
	}
	if v := os.Getenv("STOREFRONT_GPS_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Location.GPSTimeout = d
		}
	}
	if v := os.Getenv("STOREFRONT_RETRY_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Resilience.MaxAttempts = n
		}
	}
	if v := os.Getenv("STOREFRONT_RETRY_INITIAL_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Resilience.InitialDelay = d
		}
	}
	if v := os.Getenv("STOREFRONT_RETRY_MAX_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Resilience.MaxDelay = d
		}
	}
	if v := os.Getenv("STOREFRONT_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = strings.EqualFold(v, "true")
	}
	if v := firstEnv("STOREFRONT_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.OTELEndpoint = v
	}
	if v := os.Getenv("STOREFRONT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("STOREFRONT_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	switch c.Storage.Provider {
	case "memory", "file", "sqlite", "redis":
	default:
		return fmt.Errorf("unknown storage provider %q: %w", c.Storage.Provider, ErrInvalidConfiguration)
	}

	if c.Storage.Provider == "redis" && c.Storage.RedisURL == "" {
		return fmt.Errorf("redis storage requires a redis URL: %w", ErrMissingConfiguration)
	}
	if (c.Storage.Provider == "file" || c.Storage.Provider == "sqlite") && c.Storage.Path == "" {
		return fmt.Errorf("%s storage requires a path: %w", c.Storage.Provider, ErrMissingConfiguration)
	}

	if c.Location.HTTPTimeout <= 0 {
		return fmt.Errorf("location HTTP timeout must be positive: %w", ErrInvalidConfiguration)
	}
	if c.Location.GPSTimeout <= 0 {
		return fmt.Errorf("GPS timeout must be positive: %w", ErrInvalidConfiguration)
	}
	if c.Resilience.MaxAttempts < 1 {
		return fmt.Errorf("retry attempts must be at least 1: %w", ErrInvalidConfiguration)
	}

	return nil
}

// Configuration options

// WithName sets the application instance name
func WithName(name string) Option {
	return func(c *Config) {
		c.Name = name
	}
}

// WithStorageProvider selects the persistence backend
func WithStorageProvider(provider string) Option {
	return func(c *Config) {
		c.Storage.Provider = provider
	}
}

// WithStoragePath sets the directory (file) or database file (sqlite)
// used by durable storage backends
func WithStoragePath(path string) Option {
	return func(c *Config) {
		c.Storage.Path = path
	}
}

// WithRedisURL sets the Redis connection URL and selects the redis backend
func WithRedisURL(url string) Option {
	return func(c *Config) {
		c.Storage.Provider = "redis"
		c.Storage.RedisURL = url
	}
}

// WithStorageNamespace sets the key prefix for shared backends
func WithStorageNamespace(namespace string) Option {
	return func(c *Config) {
		c.Storage.Namespace = namespace
	}
}

// WithIPLookupEndpoint overrides the IP geolocation endpoint
func WithIPLookupEndpoint(endpoint string) Option {
	return func(c *Config) {
		c.Location.IPLookupEndpoint = endpoint
	}
}

// WithGeocoderEndpoint overrides the Nominatim-compatible geocoder endpoint
func WithGeocoderEndpoint(endpoint string) Option {
	return func(c *Config) {
		c.Location.GeocoderEndpoint = endpoint
	}
}

// WithGPSTimeout bounds how long a position fix may take. The browser
// permission prompt may never resolve; expiry is a failure, not a hang.
func WithGPSTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Location.GPSTimeout = timeout
	}
}

// WithHTTPTimeout bounds individual geocoding HTTP calls
func WithHTTPTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Location.HTTPTimeout = timeout
	}
}

// WithTelemetry enables OpenTelemetry instrumentation
func WithTelemetry(enabled bool) Option {
	return func(c *Config) {
		c.Telemetry.Enabled = enabled
	}
}

// WithOTELEndpoint sets the OTLP collector endpoint
func WithOTELEndpoint(endpoint string) Option {
	return func(c *Config) {
		c.Telemetry.OTELEndpoint = endpoint
		c.Telemetry.Enabled = true
	}
}

// WithLogLevel sets the log level (DEBUG, INFO, WARN, ERROR)
func WithLogLevel(level string) Option {
	return func(c *Config) {
		c.Logging.Level = level
	}
}

// WithConfigFile loads configuration from a YAML file. File values are
// applied immediately, so later options still win.
func WithConfigFile(path string) Option {
	return func(c *Config) {
		data, err := os.ReadFile(path)
		if err != nil {
			return
		}
		// Decode over the current config so absent keys keep their values
		_ = yaml.Unmarshal(data, c)
	}
}

// WithEnvFile loads a .env file before re-applying environment overrides
func WithEnvFile(path string) Option {
	return func(c *Config) {
		if err := godotenv.Load(path); err != nil {
			return
		}
		c.applyEnvironment()
	}
}
