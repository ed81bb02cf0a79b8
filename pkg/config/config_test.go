package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
	assert.Equal(t, 60*time.Second, cfg.Gemini.Timeout)
	assert.Equal(t, 10, cfg.Sources.MaxItems)
	assert.Equal(t, "replace", cfg.Sync.Mode)
	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.Equal(t, "Tasks", cfg.Calendar.Name)
	assert.False(t, cfg.Account.Enhanced())
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "account:\n  tier: Work\nsources:\n  max_items: 5\n  timeout: 3s\nsync:\n  mode: append\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))

	t.Setenv("TASKMIND_GEMINI_MODEL", "gemini-2.5-pro")
	t.Setenv("GEMINI_API_KEY", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Account.Enhanced())
	assert.Equal(t, 5, cfg.Sources.MaxItems)
	assert.Equal(t, 3*time.Second, cfg.Sources.Timeout)
	assert.Equal(t, "append", cfg.Sync.Mode)
	assert.Equal(t, "gemini-2.5-pro", cfg.Gemini.Model)
	assert.Equal(t, "from-env", cfg.Gemini.APIKey)
}

func TestSetPersistsKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	require.NoError(t, Set(path, "calendar.name", "Work"))
	require.NoError(t, Set(path, "sources.max_items", "7"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Work", cfg.Calendar.Name)
	assert.Equal(t, 7, cfg.Sources.MaxItems)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestWatchReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: info\n"), 0600))

	levels := make(chan string, 16)
	require.NoError(t, Watch(path, func(cfg *Config) {
		select {
		case levels <- cfg.Log.Level:
		default:
		}
	}))

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0600))

	timeout := time.After(5 * time.Second)
	for {
		select {
		case level := <-levels:
			if level == "debug" {
				return
			}
		case <-timeout:
			t.Fatal("config change was not observed")
		}
	}
}
