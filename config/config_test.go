package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{"TELEGRAM_TOKEN", "BACKEND_URL", "SCORE_THRESHOLD", "HTTP_TIMEOUT", "RENDER_BACKEND", "ANIMATE_RESULT", "SESSION_IDLE_TIMEOUT", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:8000", cfg.BackendURL)
	require.Equal(t, 0.0, cfg.ScoreThreshold)
	require.Equal(t, 60*time.Second, cfg.HTTPTimeout)
	require.Equal(t, RenderNative, cfg.RenderBackend)
	require.False(t, cfg.AnimateResult)
	require.Equal(t, 30*time.Minute, cfg.SessionIdle)
	require.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "token")
	t.Setenv("BACKEND_URL", "http://detector:9000")
	t.Setenv("SCORE_THRESHOLD", "0.25")
	t.Setenv("HTTP_TIMEOUT", "5s")
	t.Setenv("RENDER_BACKEND", "GoCV")
	t.Setenv("ANIMATE_RESULT", "true")
	t.Setenv("SESSION_IDLE_TIMEOUT", "0")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "token", cfg.TelegramToken)
	require.Equal(t, "http://detector:9000", cfg.BackendURL)
	require.Equal(t, 0.25, cfg.ScoreThreshold)
	require.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	require.Equal(t, RenderGoCV, cfg.RenderBackend)
	require.True(t, cfg.AnimateResult)
	require.Zero(t, cfg.SessionIdle)
	require.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"SCORE_THRESHOLD", "abc"},
		{"SCORE_THRESHOLD", "1.5"},
		{"HTTP_TIMEOUT", "soon"},
		{"HTTP_TIMEOUT", "-1s"},
		{"RENDER_BACKEND", "opengl"},
		{"ANIMATE_RESULT", "maybe"},
		{"SESSION_IDLE_TIMEOUT", "-5m"},
		{"LOG_LEVEL", "loud"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
		})
	}
}
