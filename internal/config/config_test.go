package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Setenv("TELEGRAM_API_TOKEN", "123:abc")
	t.Setenv("API_BASE_URL", "https://quiz.example.com/api")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/quiz")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "123:abc", cfg.TelegramAPIToken)
	assert.Equal(t, "https://quiz.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, "quizpath.auth", cfg.Auth.StorageKey)
	assert.Equal(t, "/auth/token/refresh/", cfg.Auth.StaffRefreshPath)
	assert.Equal(t, "/auth/student/token/refresh/", cfg.Auth.StudentRefreshPath)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, time.Hour, cfg.Auth.TouchInterval)
	assert.Equal(t, "@hourly", cfg.Auth.SweepSchedule)
	assert.Equal(t, StoragePostgres, cfg.Storage.Driver)
	assert.Equal(t, 20, cfg.DB.MaxConnections)
	assert.Equal(t, 30*time.Second, cfg.DB.MaxConnLifetime)
	assert.Equal(t, 5*time.Second, cfg.DB.ConnectTimeout)
	assert.Empty(t, cfg.Log.Level)
	assert.Equal(t, 60, cfg.Bot.UpdateTimeout)

	dsn, err := cfg.DB.DSN()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost:5432/quiz", dsn)
}

func TestLoadEnvOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("API_TIMEOUT", "3s")
	t.Setenv("BOT_DEBUG", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, 3*time.Second, cfg.API.Timeout)
	assert.True(t, cfg.Bot.Debug)
}

func TestLoadMissingSecrets(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://quiz.example.com")
	t.Setenv("TELEGRAM_API_TOKEN", "")
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	assert.ErrorIs(t, err, ErrMissingEnvironmentVariables)

	t.Setenv("TELEGRAM_API_TOKEN", "123:abc")
	_, err = Load()
	assert.ErrorIs(t, err, ErrMissingEnvironmentVariables)

	t.Setenv("STORAGE_DRIVER", StorageMemory)
	cfg, err := Load()
	require.NoError(t, err)
	_, err = cfg.DB.DSN()
	assert.ErrorIs(t, err, ErrMissingEnvironmentVariables)
}

func TestLoadValidates(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("API_BASE_URL", "not a url")

	_, err := Load()
	assert.ErrorContains(t, err, "invalid config")

	t.Setenv("API_BASE_URL", "https://quiz.example.com")
	t.Setenv("STORAGE_DRIVER", "redis")
	_, err = Load()
	assert.ErrorContains(t, err, "invalid config")
}
