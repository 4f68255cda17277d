package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("Should apply defaults when nothing is set", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "http://localhost:8080", cfg.API.BaseURL)
		assert.Equal(t, 30*time.Second, cfg.API.Timeout)
		assert.Equal(t, 0, cfg.API.RetryCount)
		assert.Equal(t, 60*time.Second, cfg.API.CacheTTL)
		assert.Equal(t, 5*time.Second, cfg.Poll.Interval)
		assert.Equal(t, "database", cfg.Storage.Backend)
		assert.True(t, cfg.Storage.Encrypt)
		assert.Equal(t, "ru", cfg.Locale)
	})

	t.Run("Should read overrides from the environment", func(t *testing.T) {
		t.Setenv("GVS_API_URL", "https://gvs.example.org/")
		t.Setenv("POLL_INTERVAL", "10s")
		t.Setenv("STORAGE_BACKEND", "memory")
		t.Setenv("STORAGE_ENCRYPT", "false")
		t.Setenv("API_RETRY_COUNT", "2")
		t.Setenv("LOCALE", "en")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "https://gvs.example.org", cfg.API.BaseURL)
		assert.Equal(t, 10*time.Second, cfg.Poll.Interval)
		assert.Equal(t, "memory", cfg.Storage.Backend)
		assert.False(t, cfg.Storage.Encrypt)
		assert.Equal(t, 2, cfg.API.RetryCount)
		assert.Equal(t, "en", cfg.Locale)
	})

	t.Run("Should fall back to defaults on unparsable values", func(t *testing.T) {
		t.Setenv("API_TIMEOUT", "soon")
		t.Setenv("API_CACHE_SIZE", "many")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 30*time.Second, cfg.API.Timeout)
		assert.Equal(t, 256, cfg.API.CacheSize)
	})
}

func TestLoadConfigFile(t *testing.T) {
	writeConfig := func(t *testing.T, body string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "gvsdash.yaml")
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
		return path
	}

	t.Run("Should read values from the YAML file", func(t *testing.T) {
		t.Setenv("GVS_CONFIG", writeConfig(t, "GVS_API_URL: https://file.example.org\nPOLL_INTERVAL: 15s\nSTORAGE_ENCRYPT: false\nAPI_CACHE_SIZE: 32\n"))

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "https://file.example.org", cfg.API.BaseURL)
		assert.Equal(t, 15*time.Second, cfg.Poll.Interval)
		assert.False(t, cfg.Storage.Encrypt)
		assert.Equal(t, 32, cfg.API.CacheSize)
	})

	t.Run("Should let the environment override the file", func(t *testing.T) {
		t.Setenv("GVS_CONFIG", writeConfig(t, "LOCALE: en\nLOG_LEVEL: debug\n"))
		t.Setenv("LOCALE", "ru")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "ru", cfg.Locale)
		assert.Equal(t, "debug", cfg.Log.Level)
	})

	t.Run("Should fail on a missing or malformed file", func(t *testing.T) {
		t.Setenv("GVS_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")

		t.Setenv("GVS_CONFIG", writeConfig(t, "GVS_API_URL: [unterminated\n"))
		_, err = Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "base URL without scheme",
			env:     map[string]string{"GVS_API_URL": "gvs.example.org"},
			wantErr: "GVS_API_URL",
		},
		{
			name:    "unknown storage backend",
			env:     map[string]string{"STORAGE_BACKEND": "localstorage"},
			wantErr: "STORAGE_BACKEND",
		},
		{
			name:    "redis backend without URL",
			env:     map[string]string{"STORAGE_BACKEND": "redis"},
			wantErr: "REDIS_URL",
		},
		{
			name:    "sub-second poll interval",
			env:     map[string]string{"POLL_INTERVAL": "500ms"},
			wantErr: "POLL_INTERVAL",
		},
		{
			name:    "negative retry count",
			env:     map[string]string{"API_RETRY_COUNT": "-1"},
			wantErr: "API_RETRY_COUNT",
		},
		{
			name:    "unsupported locale",
			env:     map[string]string{"LOCALE": "de"},
			wantErr: "LOCALE",
		},
		{
			name:    "unknown log format",
			env:     map[string]string{"LOG_FORMAT": "xml"},
			wantErr: "LOG_FORMAT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
