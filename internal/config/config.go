// Package config содержит логику чтения конфигурации сервиса luckyspin.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Стратегии проверки права на бонус.
const (
	ClaimStrategyLedger = "ledger"
	ClaimStrategyLegacy = "legacy"
)

// Config содержит параметры конфигурации сервиса luckyspin.
type Config struct {
	RunAddress             string        `env:"RUN_ADDRESS"`
	DatabaseURI            string        `env:"DATABASE_URI"`
	ContentAPIAddress      string        `env:"CONTENT_API_ADDRESS"`
	ContentAPIKey          string        `env:"CONTENT_API_KEY"`
	SessionSecret          string        `env:"SESSION_SECRET"`
	ReceiptDir             string        `env:"RECEIPT_DIR"`
	PublicBaseURL          string        `env:"PUBLIC_BASE_URL"`
	ClaimStrategy          string        `env:"CLAIM_STRATEGY"`
	ContentRefreshInterval time.Duration `env:"CONTENT_REFRESH_INTERVAL"`
	CarouselInterval       time.Duration `env:"CAROUSEL_INTERVAL"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	fromEnv := *cfg

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.ContentAPIAddress, "r", "", "content REST API address")
	flag.StringVar(&cfg.SessionSecret, "s", "", "session cookie signing secret")
	flag.StringVar(&cfg.ReceiptDir, "u", "./data/site-assets", "directory for uploaded receipts")
	flag.StringVar(&cfg.PublicBaseURL, "p", "http://localhost:8080/assets", "public URL prefix of uploaded assets")
	flag.StringVar(&cfg.ClaimStrategy, "c", ClaimStrategyLedger, "bonus claim strategy: ledger or legacy")
	flag.DurationVar(&cfg.ContentRefreshInterval, "content-refresh", time.Minute, "site content refresh interval")
	flag.DurationVar(&cfg.CarouselInterval, "carousel-interval", 5*time.Second, "carousel rotation interval")

	flag.Parse()

	if fromEnv.RunAddress != "" {
		cfg.RunAddress = fromEnv.RunAddress
	}
	if fromEnv.DatabaseURI != "" {
		cfg.DatabaseURI = fromEnv.DatabaseURI
	}
	if fromEnv.ContentAPIAddress != "" {
		cfg.ContentAPIAddress = fromEnv.ContentAPIAddress
	}
	if fromEnv.SessionSecret != "" {
		cfg.SessionSecret = fromEnv.SessionSecret
	}
	if fromEnv.ReceiptDir != "" {
		cfg.ReceiptDir = fromEnv.ReceiptDir
	}
	if fromEnv.PublicBaseURL != "" {
		cfg.PublicBaseURL = fromEnv.PublicBaseURL
	}
	if fromEnv.ClaimStrategy != "" {
		cfg.ClaimStrategy = fromEnv.ClaimStrategy
	}
	if fromEnv.ContentRefreshInterval != 0 {
		cfg.ContentRefreshInterval = fromEnv.ContentRefreshInterval
	}
	if fromEnv.CarouselInterval != 0 {
		cfg.CarouselInterval = fromEnv.CarouselInterval
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	switch cfg.ClaimStrategy {
	case ClaimStrategyLedger, ClaimStrategyLegacy:
	default:
		return nil, fmt.Errorf("unknown claim strategy %q", cfg.ClaimStrategy)
	}

	return cfg, nil
}
