package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type HTTPConfig struct {
	Addr string
	// CORSOrigins is the raw comma-separated CORS_ALLOWED_ORIGINS value.
	CORSOrigins string
}

type AppConfig struct {
	ServiceName string
	LogLevel    string
	Env         string
	HTTP        HTTPConfig
	GRPCAddr    string

	DatabaseURL   string
	NATSURL       string
	RedisDSN      string
	JWTSecret     string
	PublicBaseURL string

	IdempotencyTTL time.Duration
}

// IsProd reports whether APP_ENV=production.
func (c AppConfig) IsProd() bool {
	return strings.EqualFold(c.Env, "production")
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first; variables already set in the environment win.
func Load() (AppConfig, error) {
	_ = godotenv.Load()

	cfg := AppConfig{
		ServiceName: strings.TrimSpace(os.Getenv("SERVICE_NAME")),
		LogLevel:    strings.TrimSpace(os.Getenv("LOG_LEVEL")),
		Env:         strings.TrimSpace(os.Getenv("APP_ENV")),
		HTTP: HTTPConfig{
			Addr:        strings.TrimSpace(os.Getenv("HTTP_ADDR")),
			CORSOrigins: strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")),
		},
		GRPCAddr:      strings.TrimSpace(os.Getenv("GRPC_ADDR")),
		DatabaseURL:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		NATSURL:       strings.TrimSpace(os.Getenv("NATS_URL")),
		RedisDSN:      strings.TrimSpace(os.Getenv("REDIS_DSN")),
		JWTSecret:     strings.TrimSpace(os.Getenv("JWT_SECRET")),
		PublicBaseURL: strings.TrimSpace(os.Getenv("PUBLIC_BASE_URL")),
	}
	if cfg.ServiceName == "" {
		return AppConfig{}, errors.New("SERVICE_NAME is required")
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.GRPCAddr == "" {
		cfg.GRPCAddr = ":9090"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = "http://localhost" + cfg.HTTP.Addr
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")

	cfg.IdempotencyTTL = 24 * time.Hour
	if v := strings.TrimSpace(os.Getenv("IDEMPOTENCY_TTL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return AppConfig{}, errors.New("IDEMPOTENCY_TTL must be a positive duration")
		}
		cfg.IdempotencyTTL = d
	}

	if cfg.IsProd() && cfg.JWTSecret == "" {
		return AppConfig{}, errors.New("JWT_SECRET is required in production")
	}
	return cfg, nil
}
