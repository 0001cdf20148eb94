package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const DefaultAuditLogPath = "logs/trades.log"

type APIConfig struct {
	Addr            string
	DatabaseURL     string
	DBMaxConns      int
	Store           string
	StorePath       string
	RedisAddr       string
	Ledger          string
	CatalogPath     string
	DynamicPricing  bool
	RestoreInterval time.Duration
	RestoreRate     float64
	DefaultEconomy  string
	Currency        string
	DiscountVIP     float64
	DiscountMVP     float64
	DiscountPremium float64
	DiscordWebhook  string
	AuditLogPath    string
	JWTSecret       string
	BootstrapAdmin  string
	TokenTTL        time.Duration
	WriteTimeout    time.Duration
	LogLevel        slog.Level
}

type CLIConfig struct {
	APIBaseURL string
}

// NeedsPostgres reports whether the store or ledger is backed by DATABASE_URL.
func (c APIConfig) NeedsPostgres() bool {
	return c.Store == "postgres" || c.Ledger == "postgres"
}

func LoadAPIFromEnv() (APIConfig, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("TRADEPOST_API_ADDR", ":8080")
	}

	cfg := APIConfig{
		Addr:            addr,
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:      envIntDefault("TRADEPOST_DB_MAX_CONNS", 10),
		Store:           strings.ToLower(envDefault("TRADEPOST_STORE", "memory")),
		StorePath:       envDefault("TRADEPOST_STORE_PATH", "tradepost.db"),
		RedisAddr:       envDefault("REDIS_ADDR", "localhost:6379"),
		Ledger:          strings.ToLower(envDefault("TRADEPOST_LEDGER", "memory")),
		CatalogPath:     strings.TrimSpace(os.Getenv("TRADEPOST_CATALOG")),
		DynamicPricing:  envBoolDefault("TRADEPOST_DYNAMIC_PRICING", true),
		RestoreInterval: time.Duration(envFloatDefault("TRADEPOST_RESTORE_INTERVAL_MINUTES", 60) * float64(time.Minute)),
		RestoreRate:     envFloatDefault("TRADEPOST_RESTORE_RATE", 0.1),
		DefaultEconomy:  envDefault("TRADEPOST_DEFAULT_ECONOMY", "Vault"),
		Currency:        envDefault("TRADEPOST_CURRENCY", "coins"),
		DiscountVIP:     envFloatDefault("TRADEPOST_DISCOUNT_VIP", 0.15),
		DiscountMVP:     envFloatDefault("TRADEPOST_DISCOUNT_MVP", 0.25),
		DiscountPremium: envFloatDefault("TRADEPOST_DISCOUNT_PREMIUM", 0.35),
		DiscordWebhook:  strings.TrimSpace(os.Getenv("TRADEPOST_DISCORD_WEBHOOK_URL")),
		AuditLogPath:    envDefault("TRADEPOST_AUDIT_LOG", DefaultAuditLogPath),
		JWTSecret:       strings.TrimSpace(os.Getenv("TRADEPOST_JWT_SECRET")),
		BootstrapAdmin:  strings.TrimSpace(os.Getenv("TRADEPOST_BOOTSTRAP_ADMIN")),
		TokenTTL:        envDurationDefault("TRADEPOST_TOKEN_TTL", 24*time.Hour),
		WriteTimeout:    envDurationDefault("TRADEPOST_STORE_WRITE_TIMEOUT", 5*time.Second),
		LogLevel:        envLevelDefault("TRADEPOST_LOG_LEVEL", slog.LevelInfo),
	}
	if cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("TRADEPOST_JWT_SECRET is required")
	}
	if cfg.NeedsPostgres() && cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required for the postgres store or ledger")
	}
	switch cfg.Ledger {
	case "memory", "postgres":
	default:
		return cfg, fmt.Errorf("TRADEPOST_LEDGER must be memory or postgres, got %q", cfg.Ledger)
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("TPCTL_API_BASE_URL", "http://localhost:8080"), "/"),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envIntDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloatDefault(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envLevelDefault(key string, fallback slog.Level) slog.Level {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(v)); err != nil {
		return fallback
	}
	return lvl
}
