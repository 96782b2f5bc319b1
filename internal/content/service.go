// Package content wraps the AI content service used to analyze chapter text,
// write video scenes, and render images for the studio path.
package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/time/rate"
)

const (
	DefaultModel      = "gpt-4o-mini"
	DefaultImageModel = "dall-e-3"
	DefaultTimeout    = 120 * time.Second
	DefaultRateLimit  = 2.0
	DefaultMaxRetries = 3
	DefaultRetryDelay = 2 * time.Second
)

var (
	// ErrNotConfigured is returned when no API key is configured.
	ErrNotConfigured = errors.New("content service not configured")

	// ErrEmptyResponse is returned when the model answered with nothing usable.
	ErrEmptyResponse = errors.New("content service returned an empty response")

	// ErrUpstream wraps an error status from the OpenAI API.
	ErrUpstream = errors.New("OpenAI error")
)

// Config holds configuration for the content service.
type Config struct {
	APIKey     string
	BaseURL    string // Optional (tests, compatible gateways)
	Model      string
	ImageModel string
	Timeout    time.Duration // Per-call deadline, retries included
	RateLimit  float64       // Requests per second
	MaxRetries int
	RetryDelay time.Duration
	HTTPClient *http.Client // Optional (tests)
	Logger     *slog.Logger
}

// Service calls the OpenAI API. Every call is rate limited and retried on
// transient failures; the SDK's own retries are disabled.
type Service struct {
	client     openai.Client
	configured bool
	model      string
	imageModel string
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// New creates a new content service. A Service without an API key is valid:
// text operations fall back to canned results and image generation fails
// with ErrNotConfigured.
func New(cfg Config) *Service {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = DefaultImageModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Service{
		client:     openai.NewClient(opts...),
		configured: strings.TrimSpace(cfg.APIKey) != "",
		model:      cfg.Model,
		imageModel: cfg.ImageModel,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		logger:     cfg.Logger,
	}
}

// Configured reports whether an API key is set.
func (s *Service) Configured() bool {
	return s.configured
}

// Timeout returns the per-call deadline.
func (s *Service) Timeout() time.Duration {
	return s.timeout
}

// complete runs a single-turn chat completion and returns the text reply.
func (s *Service) complete(ctx context.Context, system, user string) (string, error) {
	if !s.configured {
		return "", ErrNotConfigured
	}

	var reply string
	err := s.do(ctx, func(ctx context.Context) error {
		resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: openai.ChatModel(s.model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(system),
				openai.UserMessage(user),
			},
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
			return retry.Unrecoverable(ErrEmptyResponse)
		}
		reply = resp.Choices[0].Message.Content
		return nil
	})
	return reply, err
}

// do runs call under the service deadline, waiting on the rate limiter before
// each attempt and retrying transient failures.
func (s *Service) do(ctx context.Context, call func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := retry.Do(
		func() error {
			if err := s.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}
			return call(ctx)
		},
		retry.Context(ctx),
		retry.Attempts(uint(s.maxRetries)),
		retry.Delay(s.retryDelay),
		retry.RetryIf(isTransient),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Warn("content service call failed, retrying", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return mapOpenAIError(err)
	}
	return nil
}

// isTransient reports whether a failed call is worth repeating.
func isTransient(err error) bool {
	if !retry.IsRecoverable(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return !errors.Is(err, ErrEmptyResponse) && !errors.Is(err, ErrNotConfigured)
}

func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return fmt.Errorf("%w (status %d): %s", ErrUpstream, apiErr.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("%w (status %d)", ErrUpstream, apiErr.StatusCode)
	}
	return err
}
