package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/brojonat/solscope/service/solana"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr  string
	LogLevel    string
	MetricsAddr string

	// Database configuration. Empty disables persistence.
	DatabaseURL string

	// NATS configuration. Empty disables event publishing.
	NATSURL string

	// Solana configuration. Each URL may be a comma-separated list of
	// endpoints; one is picked at random per client.
	SolanaMainnetRPCURL string
	SolanaDevnetRPCURL  string
	SolanaTestnetRPCURL string
	DefaultNetwork      solana.Network

	// Inspection configuration
	RecentSignatureLimit int
	RPCTimeout           time.Duration

	// Temporal configuration
	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string
}

const (
	minRecentSignatureLimit = 1
	maxRecentSignatureLimit = 1000
)

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.MetricsAddr = getEnvOrDefault("METRICS_ADDR", ":9091")

	// Optional backends
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.NATSURL = os.Getenv("NATS_URL")

	// Solana configuration
	cfg.SolanaMainnetRPCURL = getEnvOrDefault("SOLANA_MAINNET_RPC_URL", solana.Mainnet.DefaultRPCURL())
	cfg.SolanaDevnetRPCURL = getEnvOrDefault("SOLANA_DEVNET_RPC_URL", solana.Devnet.DefaultRPCURL())
	cfg.SolanaTestnetRPCURL = getEnvOrDefault("SOLANA_TESTNET_RPC_URL", solana.Testnet.DefaultRPCURL())

	network, err := solana.ParseNetwork(getEnvOrDefault("DEFAULT_NETWORK", string(solana.Mainnet)))
	if err != nil {
		errs = append(errs, fmt.Errorf("DEFAULT_NETWORK: %w", err))
	} else {
		cfg.DefaultNetwork = network
	}

	// Inspection configuration
	limit, err := parseInt("RECENT_SIGNATURE_LIMIT", solana.DefaultRecentSignatureLimit)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.RecentSignatureLimit = limit
	}

	timeout, err := parseDuration("RPC_TIMEOUT", "30s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.RPCTimeout = timeout
	}

	// Temporal configuration
	cfg.TemporalHost = getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "solscope-inspect")

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	urls := map[solana.Network]string{
		solana.Mainnet: c.SolanaMainnetRPCURL,
		solana.Devnet:  c.SolanaDevnetRPCURL,
		solana.Testnet: c.SolanaTestnetRPCURL,
	}
	seen := make(map[string]solana.Network)
	for _, network := range solana.Networks {
		url := urls[network]
		if url == "" {
			errs = append(errs, fmt.Errorf("RPC URL for %s is required", network))
			continue
		}
		if other, ok := seen[url]; ok {
			errs = append(errs, fmt.Errorf("RPC URLs for %s and %s must be different", other, network))
			continue
		}
		seen[url] = network
	}

	if _, err := solana.ParseNetwork(string(c.DefaultNetwork)); err != nil {
		errs = append(errs, fmt.Errorf("DefaultNetwork: %w", err))
	}

	if c.RecentSignatureLimit < minRecentSignatureLimit || c.RecentSignatureLimit > maxRecentSignatureLimit {
		errs = append(errs, fmt.Errorf("RecentSignatureLimit must be between %d and %d, got %d",
			minRecentSignatureLimit, maxRecentSignatureLimit, c.RecentSignatureLimit))
	}

	if c.RPCTimeout <= 0 {
		errs = append(errs, fmt.Errorf("RPCTimeout must be positive"))
	}

	if c.TemporalHost == "" {
		errs = append(errs, fmt.Errorf("TemporalHost is required"))
	}

	if c.TemporalNamespace == "" {
		errs = append(errs, fmt.Errorf("TemporalNamespace is required"))
	}

	if c.TemporalTaskQueue == "" {
		errs = append(errs, fmt.Errorf("TemporalTaskQueue is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// RPCURL returns the configured RPC URL setting for a network.
func (c *Config) RPCURL(network solana.Network) string {
	switch network {
	case solana.Devnet:
		return c.SolanaDevnetRPCURL
	case solana.Testnet:
		return c.SolanaTestnetRPCURL
	default:
		return c.SolanaMainnetRPCURL
	}
}

// RPCEndpoints splits the network's RPC URL setting into individual endpoints.
func (c *Config) RPCEndpoints(network solana.Network) []string {
	var endpoints []string
	for _, part := range strings.Split(c.RPCURL(network), ",") {
		if part = strings.TrimSpace(part); part != "" {
			endpoints = append(endpoints, part)
		}
	}
	return endpoints
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}
