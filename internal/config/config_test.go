package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 120*time.Second, cfg.Webhook.PostTimeout)
	assert.Equal(t, 600*time.Second, cfg.Webhook.VideoTimeout)
	assert.Equal(t, 10, cfg.History.Limit)
	assert.Equal(t, "${OPENAI_API_KEY}", cfg.Content.APIKey)
	assert.NoError(t, cfg.Validate())
}

func TestResolveEnvVars(t *testing.T) {
	t.Run("resolves environment variable", func(t *testing.T) {
		t.Setenv("TEST_API_KEY", "secret123")
		assert.Equal(t, "secret123", ResolveEnvVars("${TEST_API_KEY}"))
	})

	t.Run("returns empty for missing env var", func(t *testing.T) {
		assert.Equal(t, "", ResolveEnvVars("${DEFINITELY_NOT_SET_12345}"))
	})

	t.Run("leaves literal values unchanged", func(t *testing.T) {
		assert.Equal(t, "literal-value", ResolveEnvVars("literal-value"))
	})

	t.Run("expands inside a URL", func(t *testing.T) {
		t.Setenv("TEST_HOOK_HOST", "n8n.local")
		assert.Equal(t, "https://n8n.local/webhook", ResolveEnvVars("https://${TEST_HOOK_HOST}/webhook"))
	})
}

func TestNewManager(t *testing.T) {
	t.Run("loads from config file", func(t *testing.T) {
		configFile := filepath.Join(t.TempDir(), "config.yaml")
		err := os.WriteFile(configFile, []byte(`
webhook:
  url: https://hooks.example.com/memoir
  video_timeout: 15m
history:
  limit: 25
log_level: debug
`), 0o644)
		require.NoError(t, err)

		cm, err := NewManager(configFile)
		require.NoError(t, err)

		cfg := cm.Get()
		assert.Equal(t, "https://hooks.example.com/memoir", cfg.Webhook.URL)
		assert.Equal(t, 15*time.Minute, cfg.Webhook.VideoTimeout)
		// Unset keys keep their defaults.
		assert.Equal(t, 120*time.Second, cfg.Webhook.PostTimeout)
		assert.Equal(t, 25, cfg.History.Limit)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, configFile, cm.ConfigFile())
	})

	t.Run("environment overrides file", func(t *testing.T) {
		configFile := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(configFile, []byte("history:\n  limit: 5\n"), 0o644))
		t.Setenv("MEMOIR_HISTORY_LIMIT", "7")

		cm, err := NewManager(configFile)
		require.NoError(t, err)
		assert.Equal(t, 7, cm.Get().History.Limit)
	})

	t.Run("rejects invalid values", func(t *testing.T) {
		configFile := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(configFile, []byte("log_level: chatty\n"), 0o644))

		_, err := NewManager(configFile)
		assert.Error(t, err)
	})

	t.Run("rejects timeouts above the dispatch cap", func(t *testing.T) {
		configFile := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(configFile, []byte("webhook:\n  video_timeout: 45m\n"), 0o644))

		_, err := NewManager(configFile)
		assert.Error(t, err)
	})

	t.Run("missing explicit file is an error", func(t *testing.T) {
		_, err := NewManager(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestConfig_DispatchConfig(t *testing.T) {
	t.Setenv("TEST_WEBHOOK", "https://hooks.example.com/x")
	cfg := DefaultConfig()
	cfg.Webhook.URL = "${TEST_WEBHOOK}"

	dc := cfg.DispatchConfig()
	assert.Equal(t, "https://hooks.example.com/x", dc.Endpoint)
	assert.Equal(t, cfg.Webhook.ImageTimeout, dc.ImageTimeout)
	assert.Equal(t, cfg.Webhook.MaxContentLength, dc.MaxContentLength)
}

func TestConfig_ContentServiceConfig(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	cc := DefaultConfig().ContentServiceConfig()
	assert.Equal(t, "sk-test", cc.APIKey)
	assert.Equal(t, "gpt-4o-mini", cc.Model)
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefault(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "# Memoir configuration"))
	assert.Contains(t, text, "video_timeout: 10m")
	assert.Contains(t, text, "post_timeout: 2m")
	assert.Contains(t, text, "${OPENAI_API_KEY}")

	// The written file loads back to the defaults.
	cm, err := NewManager(path)
	require.NoError(t, err)
	got := cm.Get()
	want := DefaultConfig()
	assert.Equal(t, want.Webhook, got.Webhook)
	assert.Equal(t, want.History, got.History)
	assert.Equal(t, want.Docstore, got.Docstore)
	assert.Equal(t, want.Content.Timeout, got.Content.Timeout)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{120 * time.Second, "2m"},
		{90 * time.Second, "1m30s"},
		{2 * time.Hour, "2h"},
		{45 * time.Second, "45s"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatDuration(tt.in))
		})
	}
}

func TestManager_Reload(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("history:\n  limit: 5\n"), 0o644))

	cm, err := NewManager(configFile)
	require.NoError(t, err)

	var calls atomic.Int32
	var seen atomic.Int64
	cm.OnChange(func(cfg *Config) {
		calls.Add(1)
		seen.Store(int64(cfg.History.Limit))
	})

	require.NoError(t, os.WriteFile(configFile, []byte("history:\n  limit: 12\n"), 0o644))
	require.NoError(t, cm.v.ReadInConfig())
	cm.reload()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int64(12), seen.Load())
	assert.Equal(t, 12, cm.Get().History.Limit)

	t.Run("invalid change keeps previous config", func(t *testing.T) {
		require.NoError(t, os.WriteFile(configFile, []byte("log_level: chatty\n"), 0o644))
		require.NoError(t, cm.v.ReadInConfig())
		cm.reload()

		assert.Equal(t, int32(1), calls.Load())
		assert.Equal(t, 12, cm.Get().History.Limit)
	})
}

func TestManager_ConcurrentGet(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefault(configFile))
	cm, err := NewManager(configFile)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = cm.Get()
		}()
	}
	wg.Wait()
}
