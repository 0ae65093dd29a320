// Package config loads service configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"rwa-portfolio/internal/evm"
)

// Config holds application configuration
type Config struct {
	Port      int
	LogLevel  string
	LogPretty bool
	DryRun    bool

	// Chain access.
	RPCURL         string
	WSURL          string
	WalletAddress  string
	RPCTimeout     time.Duration
	RPCMaxRetries  int
	TokenDecimals  int32
	ConfirmTimeout time.Duration
	PollInterval   time.Duration

	// Asset bindings, asset ID -> address.
	ContractAddresses map[string]string
	PaymentTokens     map[string]string

	// Storage. Empty DSNs select in-memory stores.
	PostgresDSN      string
	PostgresMaxConns int // 0 keeps the pgx default
	ClickhouseDSN    string
	AssetsFile       string

	// Background jobs, robfig/cron specs. Empty disables the job.
	ReconcileSchedule    string
	SnapshotSchedule     string
	ReconcileConcurrency int

	CORSOrigins []string
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv reads configuration from environment variables without
// validating it, so that callers can apply overrides first.
func FromEnv() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	contracts, err := parseBindings(getEnv("CONTRACT_ADDRESSES", ""))
	if err != nil {
		return nil, fmt.Errorf("CONTRACT_ADDRESSES: %w", err)
	}
	tokens, err := parseBindings(getEnv("PAYMENT_TOKENS", ""))
	if err != nil {
		return nil, fmt.Errorf("PAYMENT_TOKENS: %w", err)
	}

	cfg := &Config{
		Port:      getEnvAsInt("PORT", 8080),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnvAsBool("LOG_PRETTY", false),
		DryRun:    getEnvAsBool("DRY_RUN", false),

		RPCURL:         getEnv("RPC_URL", ""),
		WSURL:          getEnv("WS_URL", ""),
		WalletAddress:  getEnv("WALLET_ADDRESS", ""),
		RPCTimeout:     getEnvAsDuration("RPC_TIMEOUT", 30*time.Second),
		RPCMaxRetries:  getEnvAsInt("RPC_MAX_RETRIES", 3),
		TokenDecimals:  int32(getEnvAsInt("TOKEN_DECIMALS", int(evm.DefaultDecimals))),
		ConfirmTimeout: getEnvAsDuration("CONFIRM_TIMEOUT", 0),
		PollInterval:   getEnvAsDuration("RECEIPT_POLL_INTERVAL", 2*time.Second),

		ContractAddresses: contracts,
		PaymentTokens:     tokens,

		PostgresDSN:      getEnv("POSTGRES_DSN", ""),
		PostgresMaxConns: getEnvAsInt("POSTGRES_MAX_CONNS", 0),
		ClickhouseDSN:    getEnv("CLICKHOUSE_DSN", ""),
		AssetsFile:       getEnv("ASSETS_FILE", ""),

		ReconcileSchedule:    getEnv("RECONCILE_SCHEDULE", "@every 5m"),
		SnapshotSchedule:     getEnv("SNAPSHOT_SCHEDULE", "@every 15m"),
		ReconcileConcurrency: getEnvAsInt("RECONCILE_CONCURRENCY", 4),

		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
	}
	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if !c.DryRun {
		if c.RPCURL == "" {
			errs = append(errs, errors.New("RPC_URL is required unless DRY_RUN is set"))
		}
		if !evm.IsHexAddress(c.WalletAddress) {
			errs = append(errs, fmt.Errorf("WALLET_ADDRESS %q is not a hex address", c.WalletAddress))
		}
	}
	if c.PostgresMaxConns < 0 {
		errs = append(errs, fmt.Errorf("POSTGRES_MAX_CONNS %d is negative", c.PostgresMaxConns))
	}
	if c.TokenDecimals < 0 || c.TokenDecimals > 36 {
		errs = append(errs, fmt.Errorf("TOKEN_DECIMALS %d out of range", c.TokenDecimals))
	}
	for id, addr := range c.ContractAddresses {
		if !evm.IsHexAddress(addr) {
			errs = append(errs, fmt.Errorf("contract address for %s is not a hex address: %q", id, addr))
		}
	}
	for id, addr := range c.PaymentTokens {
		if !evm.IsHexAddress(addr) || evm.IsZeroAddress(addr) {
			errs = append(errs, fmt.Errorf("payment token for %s is invalid: %q", id, addr))
		}
	}
	return errors.Join(errs...)
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// parseBindings parses "asset=0xaddr,asset2=0xaddr2".
func parseBindings(s string) (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range splitList(s) {
		id, addr, ok := strings.Cut(pair, "=")
		id, addr = strings.TrimSpace(id), strings.TrimSpace(addr)
		if !ok || id == "" || addr == "" {
			return nil, fmt.Errorf("invalid binding %q, want asset=address", pair)
		}
		if _, dup := out[id]; dup {
			return nil, fmt.Errorf("duplicate binding for %s", id)
		}
		out[id] = addr
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
