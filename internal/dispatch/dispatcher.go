// Package dispatch builds generation requests, sends them to the external
// workflow engine under a per-kind deadline, and normalizes the responses.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jackzampolin/memoir/internal/normalize"
	"github.com/jackzampolin/memoir/internal/types"
)

const (
	DefaultPostTimeout      = 120 * time.Second
	DefaultImageTimeout     = 120 * time.Second
	DefaultVideoTimeout     = 600 * time.Second
	// MaxTimeout caps every per-kind deadline, reloads included.
	MaxTimeout              = 30 * time.Minute
	DefaultMinContentLength = 20
	DefaultMaxContentLength = 4000

	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 256 << 20
	// maxErrorBodyBytes bounds the body snippet kept on an HTTPError.
	maxErrorBodyBytes = 512
)

// Config holds configuration for the Dispatcher.
type Config struct {
	Endpoint string

	// Per-kind cancellation deadlines. Zero uses the default; anything above
	// MaxTimeout is clamped.
	PostTimeout  time.Duration
	ImageTimeout time.Duration
	VideoTimeout time.Duration

	MinContentLength int // runes; shorter content is rejected locally
	MaxContentLength int // runes; longer content is truncated

	HTTPClient *http.Client // Optional (tests)
	Logger     *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.PostTimeout <= 0 {
		c.PostTimeout = DefaultPostTimeout
	}
	if c.ImageTimeout <= 0 {
		c.ImageTimeout = DefaultImageTimeout
	}
	if c.VideoTimeout <= 0 {
		c.VideoTimeout = DefaultVideoTimeout
	}
	c.PostTimeout = min(c.PostTimeout, MaxTimeout)
	c.ImageTimeout = min(c.ImageTimeout, MaxTimeout)
	c.VideoTimeout = min(c.VideoTimeout, MaxTimeout)
	if c.MinContentLength <= 0 {
		c.MinContentLength = DefaultMinContentLength
	}
	if c.MaxContentLength <= 0 {
		c.MaxContentLength = DefaultMaxContentLength
	}
	return c
}

// Result is a canonical dispatch outcome.
type Result struct {
	Kind   types.Kind         `json:"kind"`
	Shape  normalize.Shape    `json:"shape"`
	Posts  []types.Post       `json:"posts,omitempty"`
	Media  *types.MediaResult `json:"media,omitempty"`
	Text   string             `json:"text,omitempty"`
	Status int                `json:"status"`

	Elapsed time.Duration `json:"elapsed"`
}

// Dispatcher sends generation requests to the workflow engine.
// It is safe for concurrent use; Reload swaps the configuration atomically.
type Dispatcher struct {
	mu       sync.RWMutex
	cfg      Config
	client   *http.Client
	validate *validator.Validate
	logger   *slog.Logger
}

// New creates a new Dispatcher.
func New(cfg Config) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	client := cfg.HTTPClient
	if client == nil {
		// Deadlines come from the request context, not the client.
		client = &http.Client{}
	}
	return &Dispatcher{
		cfg:      cfg.withDefaults(),
		client:   client,
		validate: validator.New(),
		logger:   cfg.Logger,
	}
}

// Reload replaces the endpoint, deadlines, and length bounds.
// Requests already in flight keep the deadline they started with.
func (d *Dispatcher) Reload(cfg Config) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cfg.HTTPClient = d.cfg.HTTPClient
	cfg.Logger = d.logger
	d.cfg = cfg.withDefaults()
}

func (d *Dispatcher) config() Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// Timeout returns the cancellation deadline applied to requests of kind.
func (d *Dispatcher) Timeout(kind types.Kind) time.Duration {
	cfg := d.config()
	switch kind {
	case types.KindVideo:
		return cfg.VideoTimeout
	case types.KindImage:
		return cfg.ImageTimeout
	default:
		return cfg.PostTimeout
	}
}

// Timeouts returns the deadline table, one entry per kind.
func (d *Dispatcher) Timeouts() map[types.Kind]time.Duration {
	out := make(map[types.Kind]time.Duration, len(types.Kinds))
	for _, kind := range types.Kinds {
		out[kind] = d.Timeout(kind)
	}
	return out
}

// Configured reports whether a webhook endpoint is set.
func (d *Dispatcher) Configured() bool {
	return d.config().Endpoint != ""
}

// Build validates input and composes the outbound payload.
// It never touches the network.
func (d *Dispatcher) Build(kind types.Kind, content string, in Input) (*Request, error) {
	cfg := d.config()

	if err := d.validate.Var(string(kind), "required,oneof=post image video"); err != nil {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrValidation, kind)
	}

	content = strings.TrimSpace(content)
	if err := d.validate.Var(content, fmt.Sprintf("required,min=%d", cfg.MinContentLength)); err != nil {
		return nil, fmt.Errorf("%w: content must be at least %d characters", ErrValidation, cfg.MinContentLength)
	}

	return newRequest(kind, truncateRunes(content, cfg.MaxContentLength), in), nil
}

// Send issues req under its kind's deadline and normalizes the response.
// Initial dispatches and retries both come through here.
func (d *Dispatcher) Send(ctx context.Context, req *Request) (*Result, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request is required", ErrValidation)
	}
	cfg := d.config()
	if cfg.Endpoint == "" {
		return nil, ErrNotConfigured
	}

	timeout := d.Timeout(req.Kind)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "*/*")

	start := time.Now()
	d.logger.Info("dispatching generation request",
		"kind", req.Kind, "subject", req.SubjectTitle, "timeout", timeout)

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, d.transportError(ctx, req.Kind, timeout, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, d.transportError(ctx, req.Kind, timeout, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		httpErr := &HTTPError{StatusCode: resp.StatusCode, Body: snippet(body)}
		d.logger.Warn("workflow engine returned error status",
			"kind", req.Kind, "status", resp.StatusCode, "elapsed", time.Since(start))
		return nil, httpErr
	}

	parsed := normalize.Classify(body, resp.Header.Get("Content-Type"), req.Kind)
	result := buildResult(req, parsed)
	result.Status = resp.StatusCode
	result.Elapsed = time.Since(start)

	d.logger.Info("generation response received",
		"kind", req.Kind, "shape", parsed.Shape, "elapsed", result.Elapsed)
	return result, nil
}

// transportError classifies a failure that happened before a complete
// response was read.
func (d *Dispatcher) transportError(ctx context.Context, kind types.Kind, timeout time.Duration, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		d.logger.Warn("generation request timed out", "kind", kind, "timeout", timeout)
		return fmt.Errorf("%w: %s request exceeded %s", ErrTimeout, kind, timeout)
	case errors.Is(ctx.Err(), context.Canceled):
		return fmt.Errorf("%w: %v", ErrCanceled, err)
	default:
		d.logger.Warn("generation request failed", "kind", kind, "error", err)
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
}

func buildResult(req *Request, parsed normalize.Parsed) *Result {
	result := &Result{Kind: req.Kind, Shape: parsed.Shape}

	switch {
	case parsed.IsBinary():
		result.Media = &types.MediaResult{
			MediaURL:          parsed.DataURI,
			OriginatingPrompt: req.Prompt(),
			Posts:             []types.Post{},
		}
	case parsed.Shape == normalize.ShapeMediaWithPosts:
		media := parsed.Media.Clone()
		if media.OriginatingPrompt == "" {
			media.OriginatingPrompt = req.Prompt()
		}
		result.Media = media
		result.Posts = media.Posts
	case parsed.Shape == normalize.ShapeMarkdownPosts, parsed.Shape == normalize.ShapeStructuredPosts:
		result.Posts = parsed.Posts
	default:
		result.Text = parsed.Text
	}
	return result
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBodyBytes {
		s = s[:maxErrorBodyBytes] + "..."
	}
	return s
}
