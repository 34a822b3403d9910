package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	RenderNative = "native"
	RenderGoCV   = "gocv"
)

type Config struct {
	TelegramToken  string
	BackendURL     string
	ScoreThreshold float64
	HTTPTimeout    time.Duration
	RenderBackend  string
	AnimateResult  bool
	SessionIdle    time.Duration // 0 отключает вытеснение простаивающих чатов
	LogLevel       slog.Level
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	cfg := &Config{
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		BackendURL:    getEnv("BACKEND_URL", "http://127.0.0.1:8000"),
		RenderBackend: strings.ToLower(getEnv("RENDER_BACKEND", RenderNative)),
	}

	var err error
	if cfg.ScoreThreshold, err = getEnvAsFloat("SCORE_THRESHOLD", 0); err != nil {
		return nil, err
	}
	if cfg.ScoreThreshold < 0 || cfg.ScoreThreshold > 1 {
		return nil, fmt.Errorf("SCORE_THRESHOLD must be within [0,1], got %v", cfg.ScoreThreshold)
	}

	if cfg.HTTPTimeout, err = getEnvAsDuration("HTTP_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout <= 0 {
		return nil, fmt.Errorf("HTTP_TIMEOUT must be positive, got %v", cfg.HTTPTimeout)
	}

	if cfg.SessionIdle, err = getEnvAsDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SessionIdle < 0 {
		return nil, fmt.Errorf("SESSION_IDLE_TIMEOUT must not be negative, got %v", cfg.SessionIdle)
	}

	if cfg.AnimateResult, err = getEnvAsBool("ANIMATE_RESULT", false); err != nil {
		return nil, err
	}

	switch cfg.RenderBackend {
	case RenderNative, RenderGoCV:
	default:
		return nil, fmt.Errorf("RENDER_BACKEND must be %q or %q, got %q", RenderNative, RenderGoCV, cfg.RenderBackend)
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("parse LOG_LEVEL: %w", err)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return f, nil
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}
