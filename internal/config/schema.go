package config

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jackzampolin/memoir/internal/content"
	"github.com/jackzampolin/memoir/internal/dispatch"
	"github.com/jackzampolin/memoir/internal/docstore"
	"github.com/jackzampolin/memoir/internal/history"
)

// Config holds memoir configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Webhook  WebhookConfig  `mapstructure:"webhook" yaml:"webhook"`
	History  HistoryConfig  `mapstructure:"history" yaml:"history"`
	Content  ContentConfig  `mapstructure:"content" yaml:"content"`
	Docstore DocstoreConfig `mapstructure:"docstore" yaml:"docstore"`
	Storage  StorageConfig  `mapstructure:"storage" yaml:"storage"`
	LogLevel string         `mapstructure:"log_level" yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// WebhookConfig configures the workflow-engine endpoint and its deadlines.
type WebhookConfig struct {
	URL              string        `mapstructure:"url" yaml:"url"` // supports ${ENV_VAR}
	PostTimeout      time.Duration `mapstructure:"post_timeout" yaml:"post_timeout" validate:"gte=0,lte=30m"`
	ImageTimeout     time.Duration `mapstructure:"image_timeout" yaml:"image_timeout" validate:"gte=0,lte=30m"`
	VideoTimeout     time.Duration `mapstructure:"video_timeout" yaml:"video_timeout" validate:"gte=0,lte=30m"`
	MinContentLength int           `mapstructure:"min_content_length" yaml:"min_content_length" validate:"gte=0"`
	MaxContentLength int           `mapstructure:"max_content_length" yaml:"max_content_length" validate:"gte=0"`
}

// HistoryConfig configures the retry ledger.
type HistoryConfig struct {
	Limit int `mapstructure:"limit" yaml:"limit" validate:"gte=0"`
}

// ContentConfig configures the AI content service.
type ContentConfig struct {
	APIKey     string        `mapstructure:"api_key" yaml:"api_key"` // supports ${ENV_VAR}
	BaseURL    string        `mapstructure:"base_url" yaml:"base_url" validate:"omitempty,url"`
	Model      string        `mapstructure:"model" yaml:"model"`
	ImageModel string        `mapstructure:"image_model" yaml:"image_model"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gte=0"`
	RateLimit  float64       `mapstructure:"rate_limit" yaml:"rate_limit" validate:"gte=0"` // requests per second
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries" validate:"gte=0"`
}

// DocstoreConfig configures the DefraDB document store.
type DocstoreConfig struct {
	URL string `mapstructure:"url" yaml:"url" validate:"omitempty,url"`
	// Managed starts DefraDB in a local Docker container on serve.
	Managed       bool   `mapstructure:"managed" yaml:"managed"`
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
	Image         string `mapstructure:"image" yaml:"image"`
	Port          string `mapstructure:"port" yaml:"port" validate:"omitempty,numeric"`
}

// StorageConfig configures the local state store.
type StorageConfig struct {
	// Path defaults to {home}/state when empty.
	Path string `mapstructure:"path" yaml:"path"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Webhook: WebhookConfig{
			PostTimeout:      dispatch.DefaultPostTimeout,
			ImageTimeout:     dispatch.DefaultImageTimeout,
			VideoTimeout:     dispatch.DefaultVideoTimeout,
			MinContentLength: dispatch.DefaultMinContentLength,
			MaxContentLength: dispatch.DefaultMaxContentLength,
		},
		History: HistoryConfig{
			Limit: history.DefaultLimit,
		},
		Content: ContentConfig{
			APIKey:     "${OPENAI_API_KEY}",
			Model:      content.DefaultModel,
			ImageModel: content.DefaultImageModel,
			Timeout:    content.DefaultTimeout,
			RateLimit:  content.DefaultRateLimit,
			MaxRetries: content.DefaultMaxRetries,
		},
		Docstore: DocstoreConfig{
			URL:           "http://localhost:" + docstore.DefaultPort,
			ContainerName: docstore.DefaultContainerName,
			Image:         docstore.DefaultImage,
			Port:          docstore.DefaultPort,
		},
		LogLevel: "info",
	}
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// DispatchConfig returns the Dispatcher configuration. The HTTP client and
// logger are left for the caller.
func (c *Config) DispatchConfig() dispatch.Config {
	return dispatch.Config{
		Endpoint:         ResolveEnvVars(c.Webhook.URL),
		PostTimeout:      c.Webhook.PostTimeout,
		ImageTimeout:     c.Webhook.ImageTimeout,
		VideoTimeout:     c.Webhook.VideoTimeout,
		MinContentLength: c.Webhook.MinContentLength,
		MaxContentLength: c.Webhook.MaxContentLength,
	}
}

// ContentServiceConfig returns the content service configuration with
// ${ENV_VAR} references in the API key resolved.
func (c *Config) ContentServiceConfig() content.Config {
	return content.Config{
		APIKey:     ResolveEnvVars(c.Content.APIKey),
		BaseURL:    c.Content.BaseURL,
		Model:      c.Content.Model,
		ImageModel: c.Content.ImageModel,
		Timeout:    c.Content.Timeout,
		RateLimit:  c.Content.RateLimit,
		MaxRetries: c.Content.MaxRetries,
	}
}

// DockerConfig returns the managed-container configuration.
func (c *Config) DockerConfig(dataPath string) docstore.DockerConfig {
	return docstore.DockerConfig{
		ContainerName: c.Docstore.ContainerName,
		Image:         c.Docstore.Image,
		DataPath:      dataPath,
		HostPort:      c.Docstore.Port,
	}
}
