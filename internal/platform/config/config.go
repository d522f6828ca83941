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
}

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// Enabled reports whether every field required to talk to an SMTP
// server is present. When false, outgoing mail is silently skipped.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.Port != "" && c.Username != "" && c.Password != "" && c.From != ""
}

type AppConfig struct {
	ServiceName string
	Env         string
	LogLevel    string
	HTTP        HTTPConfig

	DatabaseURL string
	NATSURL     string

	BaseURL      string
	JWTSecret    string
	StreamSecret string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	SMTP SMTPConfig
}

// IsProduction reports whether APP_ENV is set to production.
func (c AppConfig) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Load reads configuration from the environment. A .env file in the
// working directory is merged in first when present, never overriding
// variables already set.
func Load() (AppConfig, error) {
	_ = godotenv.Load()

	cfg := AppConfig{
		ServiceName: env("SERVICE_NAME"),
		Env:         env("APP_ENV"),
		LogLevel:    env("LOG_LEVEL"),
		HTTP: HTTPConfig{
			Addr: env("HTTP_ADDR"),
		},
		DatabaseURL:  env("DATABASE_URL"),
		NATSURL:      env("NATS_URL"),
		BaseURL:      env("BASE_URL"),
		JWTSecret:    env("JWT_SECRET"),
		StreamSecret: env("STREAM_SIGNING_SECRET"),
		SMTP: SMTPConfig{
			Host:     env("SMTP_HOST"),
			Port:     env("SMTP_PORT"),
			Username: env("SMTP_USER"),
			Password: env("SMTP_PASS"),
			From:     env("SMTP_FROM"),
		},
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "animewatch"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost" + cfg.HTTP.Addr
	}

	if cfg.DatabaseURL == "" {
		return AppConfig{}, errors.New("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			return AppConfig{}, errors.New("JWT_SECRET is required in production")
		}
		cfg.JWTSecret = "animewatch-dev-secret"
	}
	if cfg.StreamSecret == "" {
		cfg.StreamSecret = cfg.JWTSecret
	}

	cfg.AccessTokenTTL = envDuration("ACCESS_TOKEN_TTL", 15*time.Minute)
	cfg.RefreshTokenTTL = envDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour)

	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := env(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
