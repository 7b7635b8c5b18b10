package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/studybuddy/internal/reminder"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "studybuddy.db", cfg.DatabaseURL)
	assert.Equal(t, 8090, cfg.WSPort)
	assert.Equal(t, time.Hour, cfg.ReminderInterval)
	assert.Equal(t, 2*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 200, cfg.MaxTitleLength)
	assert.Equal(t, time.UTC, cfg.Location)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "studybuddy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reminder_interval_minutes: 30\ntimezone: Europe/Berlin\nmax_open_tasks: 5\n"), 0o600))

	t.Setenv("MAX_OPEN_TASKS", "7")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, cfg.ReminderInterval)
	assert.Equal(t, "Europe/Berlin", cfg.Location.String())
	assert.Equal(t, 7, cfg.MaxOpenTasks)
}

func TestValidateRejectsBadInterval(t *testing.T) {
	t.Setenv("REMINDER_INTERVAL_MINUTES", "0")
	_, err := Load(viper.New(), "")
	assert.ErrorIs(t, err, reminder.ErrIntervalTooShort)

	t.Setenv("REMINDER_INTERVAL_MINUTES", "90")
	_, err = Load(viper.New(), "")
	assert.ErrorIs(t, err, reminder.ErrIntervalExceedsWindow)
}

func TestValidateRejectsUnknownValues(t *testing.T) {
	t.Setenv("LOG_LEVEL", "loud")
	_, err := Load(viper.New(), "")
	assert.Error(t, err)

	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("TIMEZONE", "Mars/Olympus")
	_, err = Load(viper.New(), "")
	assert.Error(t, err)
}

func TestMissingConfigFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
