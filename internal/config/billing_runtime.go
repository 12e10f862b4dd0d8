package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"
)

const (
	defaultJWTAccessTTL      = "15m"
	defaultTransitionTimeout = "30s"
	defaultCurrency          = "USD"
	defaultJWTSecret         = "change-me-jwt-secret"
)

type BillingRuntimeConfig struct {
	AppEnv            string
	JWTSecret         string
	JWTAccessTTL      time.Duration
	TransitionTimeout time.Duration
	DefaultCurrency   string
}

func LoadBillingRuntimeConfig() (*BillingRuntimeConfig, error) {
	cfg := &BillingRuntimeConfig{}
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = strings.TrimSpace(os.Getenv("ENV"))
	}
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))
	cfg.DefaultCurrency = strings.ToUpper(strings.TrimSpace(getEnv("BILLING_DEFAULT_CURRENCY", defaultCurrency)))

	var err error
	cfg.JWTAccessTTL, err = parseDurationEnv("JWT_ACCESS_TTL", defaultJWTAccessTTL)
	if err != nil {
		return nil, err
	}

	cfg.TransitionTimeout, err = parseDurationEnv("BILLING_TRANSITION_TIMEOUT", defaultTransitionTimeout)
	if err != nil {
		return nil, err
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	log.Printf("billing runtime config: env=%s, transition_timeout=%s, currency=%s",
		cfg.AppEnv, cfg.TransitionTimeout, cfg.DefaultCurrency)

	return cfg, nil
}

func validateConfig(cfg *BillingRuntimeConfig) error {
	if cfg.JWTAccessTTL <= 0 {
		return fmt.Errorf("JWT_ACCESS_TTL must be > 0")
	}
	if cfg.TransitionTimeout <= 0 {
		return fmt.Errorf("BILLING_TRANSITION_TIMEOUT must be > 0")
	}
	if len(cfg.DefaultCurrency) != 3 {
		return fmt.Errorf("BILLING_DEFAULT_CURRENCY must be a 3-letter currency code")
	}

	if IsProdLike(cfg.AppEnv) {
		if isEmptyOrDefault(cfg.JWTSecret, defaultJWTSecret) {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
	}

	return nil
}

// IsProdLike reports whether the environment name denotes production.
func IsProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
