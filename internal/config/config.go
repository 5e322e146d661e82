// Package config loads runtime configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/quiflix/backend/internal/money"
	"github.com/quiflix/backend/internal/split"
)

// Config captures all runtime configuration derived from environment variables.
type Config struct {
	Port      string
	DBURL     string
	JWTSecret string

	// AppBaseURL is the public site URL embedded into referral links.
	AppBaseURL  string
	CORSOrigins []string

	// Currency is the ledger currency (minor units). All sales, payouts and
	// balances are held in it.
	Currency string
	Split    split.Policy

	// PayoutRate converts ledger amounts into the payout currency.
	PayoutCurrency string
	PayoutRate     money.Rate

	ProcessorURL         string
	ProcessorAPIKey      string
	ProcessorTimeoutSecs int

	// Chain mirroring is disabled when ChainRPCURL is empty. A non-zero
	// ChainID is cross-checked against the network the RPC reports.
	ChainRPCURL      string
	ChainContract    string
	ChainPrivateKey  string
	ChainID          int64
	ChainTimeoutSecs int
}

// Load reads configuration from environment variables, applying defaults and
// validation.
func Load() (Config, error) {
	cfg := Config{
		Port:                 getEnv("PORT", "8080"),
		DBURL:                os.Getenv("DATABASE_URL"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		AppBaseURL:           getEnv("APP_BASE_URL", "https://quiflix.app"),
		CORSOrigins:          splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		Currency:             getEnv("LEDGER_CURRENCY", "USD"),
		PayoutCurrency:       getEnv("PAYOUT_CURRENCY", "KES"),
		ProcessorURL:         os.Getenv("PROCESSOR_URL"),
		ProcessorAPIKey:      os.Getenv("PROCESSOR_API_KEY"),
		ProcessorTimeoutSecs: getEnvInt("PROCESSOR_TIMEOUT_SECS", 10),
		ChainRPCURL:          os.Getenv("CHAIN_RPC_URL"),
		ChainContract:        os.Getenv("CHAIN_CONTRACT_ADDRESS"),
		ChainPrivateKey:      os.Getenv("CHAIN_PRIVATE_KEY"),
		ChainID:              int64(getEnvInt("CHAIN_ID", 0)),
		ChainTimeoutSecs:     getEnvInt("CHAIN_TIMEOUT_SECS", 15),
	}

	cfg.Split = split.Policy{
		FilmmakerPct:   getEnvInt("SPLIT_FILMMAKER_PCT", split.Default.FilmmakerPct),
		DistributorPct: getEnvInt("SPLIT_DISTRIBUTOR_PCT", split.Default.DistributorPct),
		PlatformPct:    getEnvInt("SPLIT_PLATFORM_PCT", split.Default.PlatformPct),
	}

	rate, err := money.ParseRate(getEnv("PAYOUT_FX_RATE", "129.25"), cfg.Currency, cfg.PayoutCurrency)
	if err != nil {
		return Config{}, fmt.Errorf("PAYOUT_FX_RATE: %w", err)
	}
	cfg.PayoutRate = rate

	if cfg.DBURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.ProcessorURL == "" {
		return Config{}, fmt.Errorf("PROCESSOR_URL is required")
	}
	if cfg.ProcessorTimeoutSecs <= 0 {
		return Config{}, fmt.Errorf("PROCESSOR_TIMEOUT_SECS must be positive")
	}
	if err := cfg.Split.Validate(); err != nil {
		return Config{}, fmt.Errorf("split percentages: %w", err)
	}
	if cfg.ChainRPCURL != "" {
		if cfg.ChainContract == "" {
			return Config{}, fmt.Errorf("CHAIN_CONTRACT_ADDRESS is required when CHAIN_RPC_URL is set")
		}
		if cfg.ChainPrivateKey == "" {
			return Config{}, fmt.Errorf("CHAIN_PRIVATE_KEY is required when CHAIN_RPC_URL is set")
		}
	}

	return cfg, nil
}

// ChainEnabled reports whether on-chain mirroring is configured.
func (c Config) ChainEnabled() bool { return c.ChainRPCURL != "" }

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
