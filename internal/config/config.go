package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	v         *viper.Viper
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
// An empty cfgFile searches ./config.yaml then $HOME/.memoir/config.yaml;
// a missing file is not an error.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		v:         viper.New(),
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	defaults := DefaultConfig()
	v := cm.v

	v.SetDefault("webhook.url", defaults.Webhook.URL)
	v.SetDefault("webhook.post_timeout", defaults.Webhook.PostTimeout)
	v.SetDefault("webhook.image_timeout", defaults.Webhook.ImageTimeout)
	v.SetDefault("webhook.video_timeout", defaults.Webhook.VideoTimeout)
	v.SetDefault("webhook.min_content_length", defaults.Webhook.MinContentLength)
	v.SetDefault("webhook.max_content_length", defaults.Webhook.MaxContentLength)
	v.SetDefault("history.limit", defaults.History.Limit)
	v.SetDefault("content.api_key", defaults.Content.APIKey)
	v.SetDefault("content.base_url", defaults.Content.BaseURL)
	v.SetDefault("content.model", defaults.Content.Model)
	v.SetDefault("content.image_model", defaults.Content.ImageModel)
	v.SetDefault("content.timeout", defaults.Content.Timeout)
	v.SetDefault("content.rate_limit", defaults.Content.RateLimit)
	v.SetDefault("content.max_retries", defaults.Content.MaxRetries)
	v.SetDefault("docstore.url", defaults.Docstore.URL)
	v.SetDefault("docstore.managed", defaults.Docstore.Managed)
	v.SetDefault("docstore.container_name", defaults.Docstore.ContainerName)
	v.SetDefault("docstore.image", defaults.Docstore.Image)
	v.SetDefault("docstore.port", defaults.Docstore.Port)
	v.SetDefault("storage.path", defaults.Storage.Path)
	v.SetDefault("log_level", defaults.LogLevel)

	// Environment variables with MEMOIR_ prefix, e.g. MEMOIR_WEBHOOK_URL
	v.SetEnvPrefix("MEMOIR")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err != nil {
			return fmt.Errorf("config file %s: %w", cfgFile, err)
		}
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.memoir")
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// ConfigFile returns the path of the loaded config file, if any.
func (cm *Manager) ConfigFile() string {
	return cm.v.ConfigFileUsed()
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration. A change that fails to
// parse or validate is ignored and the previous config stays in effect.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cm.reload()
	})
	cm.v.WatchConfig()
}

func (cm *Manager) reload() {
	cfg, err := cm.load()
	if err != nil {
		return
	}

	cm.mu.Lock()
	cm.config = cfg
	callbacks := make([]func(*Config), len(cm.callbacks))
	copy(callbacks, cm.callbacks)
	cm.mu.Unlock()

	for _, fn := range callbacks {
		fn(cfg)
	}
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envVarPattern.ReplaceAllStringFunc(value, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Memoir configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell: export OPENAI_API_KEY=xxx
# Durations accept Go syntax: 120s, 10m

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
