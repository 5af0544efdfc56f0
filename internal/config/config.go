package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDSN            string
	DBConnectTimeout time.Duration
	ServerPort       string
	SessionSecret    string
	JWTSecret        string
	TokenTTL         time.Duration
	LogLevel         string
	LogFormat        string
}

// Load читает .env (если есть) и переменные окружения.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBDSN:            os.Getenv("DB_DSN"),
		ServerPort:       os.Getenv("SERVER_PORT"),
		SessionSecret:    os.Getenv("SESSION_SECRET"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		LogLevel:         os.Getenv("LOG_LEVEL"),
		LogFormat:        os.Getenv("LOG_FORMAT"),
		TokenTTL:         24 * time.Hour,
		DBConnectTimeout: 30 * time.Second,
	}

	if cfg.DBDSN == "" {
		return nil, errors.New("DB_DSN is not set")
	}
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("SESSION_SECRET is not set")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is not set")
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if v := os.Getenv("TOKEN_TTL_HOURS"); v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil || hours <= 0 {
			return nil, fmt.Errorf("TOKEN_TTL_HOURS must be a positive integer, got %q", v)
		}
		cfg.TokenTTL = time.Duration(hours) * time.Hour
	}
	if v := os.Getenv("DB_CONNECT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("DB_CONNECT_TIMEOUT: %w", err)
		}
		cfg.DBConnectTimeout = d
	}

	return cfg, nil
}
