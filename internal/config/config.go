// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Chain providers. One RPC endpoint per EVM network; networks without
	// an endpoint fall back to the unsupported-network error path.
	EthereumRPCURL string
	BSCRPCURL      string
	PolygonRPCURL  string

	// Monitoring
	MonitorInterval time.Duration // re-evaluation period per monitored warning
	ProviderTimeout time.Duration // per-call deadline for chain providers

	// Observability
	OTLPEndpoint string // OTLP/HTTP traces endpoint (optional, disables tracing if empty)

	// Security
	ModeratorToken string // shared secret for moderator routes
	RateLimitRPS   int
}

// Defaults
const (
	DefaultPort            = "8080"
	DefaultEnv             = "development"
	DefaultLogLevel        = "info"
	DefaultMonitorInterval = 5 * time.Minute
	DefaultProviderTimeout = 10 * time.Second
	DefaultRateLimit       = 100
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", DefaultPort),
		Env:             getEnv("ENV", DefaultEnv),
		LogLevel:        getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:     os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		EthereumRPCURL:  os.Getenv("ETHEREUM_RPC_URL"),
		BSCRPCURL:       os.Getenv("BSC_RPC_URL"),
		PolygonRPCURL:   os.Getenv("POLYGON_RPC_URL"),
		MonitorInterval: getEnvDuration("MONITOR_INTERVAL", DefaultMonitorInterval),
		ProviderTimeout: getEnvDuration("PROVIDER_TIMEOUT", DefaultProviderTimeout),
		OTLPEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ModeratorToken:  os.Getenv("MODERATOR_TOKEN"),
		RateLimitRPS:    int(getEnvInt64("RATE_LIMIT_RPS", int64(DefaultRateLimit))),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is coherent
func (c *Config) Validate() error {
	if c.MonitorInterval < time.Second {
		return fmt.Errorf("MONITOR_INTERVAL must be at least 1s, got %s", c.MonitorInterval)
	}
	if c.ProviderTimeout < time.Second {
		return fmt.Errorf("PROVIDER_TIMEOUT must be at least 1s, got %s", c.ProviderTimeout)
	}
	for name, raw := range map[string]string{
		"ETHEREUM_RPC_URL": c.EthereumRPCURL,
		"BSC_RPC_URL":      c.BSCRPCURL,
		"POLYGON_RPC_URL":  c.PolygonRPCURL,
	} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s is not a valid URL: %q", name, raw)
		}
	}
	if c.IsProduction() && c.ModeratorToken == "" {
		return fmt.Errorf("MODERATOR_TOKEN is required in production")
	}
	return nil
}

// RPCURLs maps network names to configured endpoints, skipping the
// networks without one.
func (c *Config) RPCURLs() map[string]string {
	urls := make(map[string]string)
	for network, raw := range map[string]string{
		"ethereum": c.EthereumRPCURL,
		"bsc":      c.BSCRPCURL,
		"polygon":  c.PolygonRPCURL,
	} {
		if strings.TrimSpace(raw) != "" {
			urls[network] = raw
		}
	}
	return urls
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
