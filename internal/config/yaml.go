package config

import (
	"strings"
	"time"
)

var envKeyReplacer = strings.NewReplacer(".", "_")

// MarshalYAML writes durations as "120s" rather than nanoseconds.
func (w WebhookConfig) MarshalYAML() (interface{}, error) {
	return struct {
		URL              string `yaml:"url"`
		PostTimeout      string `yaml:"post_timeout"`
		ImageTimeout     string `yaml:"image_timeout"`
		VideoTimeout     string `yaml:"video_timeout"`
		MinContentLength int    `yaml:"min_content_length"`
		MaxContentLength int    `yaml:"max_content_length"`
	}{
		URL:              w.URL,
		PostTimeout:      formatDuration(w.PostTimeout),
		ImageTimeout:     formatDuration(w.ImageTimeout),
		VideoTimeout:     formatDuration(w.VideoTimeout),
		MinContentLength: w.MinContentLength,
		MaxContentLength: w.MaxContentLength,
	}, nil
}

// MarshalYAML writes the timeout as "120s" rather than nanoseconds.
func (c ContentConfig) MarshalYAML() (interface{}, error) {
	return struct {
		APIKey     string  `yaml:"api_key"`
		BaseURL    string  `yaml:"base_url"`
		Model      string  `yaml:"model"`
		ImageModel string  `yaml:"image_model"`
		Timeout    string  `yaml:"timeout"`
		RateLimit  float64 `yaml:"rate_limit"`
		MaxRetries int     `yaml:"max_retries"`
	}{
		APIKey:     c.APIKey,
		BaseURL:    c.BaseURL,
		Model:      c.Model,
		ImageModel: c.ImageModel,
		Timeout:    formatDuration(c.Timeout),
		RateLimit:  c.RateLimit,
		MaxRetries: c.MaxRetries,
	}, nil
}

// formatDuration renders d without trailing zero units ("2m0s" -> "2m").
func formatDuration(d time.Duration) string {
	s := d.String()
	if strings.HasSuffix(s, "m0s") {
		s = s[:len(s)-2]
	}
	if strings.HasSuffix(s, "h0m") {
		s = s[:len(s)-2]
	}
	return s
}
