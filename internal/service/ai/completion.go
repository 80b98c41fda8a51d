package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/taleforge/internal/logger"
	"github.com/zhouzirui/taleforge/internal/metrics"
)

var (
	// ErrRateLimited marks a transient upstream refusal. Only this error is retried.
	ErrRateLimited = errors.New("upstream rate limited")
	// ErrUpstreamUnavailable is the terminal failure surfaced to callers.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrEmptyCompletion reports a response without usable content.
	ErrEmptyCompletion = errors.New("empty completion")
)

// Provider performs a single completion call against one backend.
type Provider interface {
	Name() string
	Generate(ctx context.Context, messages []*schema.Message, maxTokens int) (string, error)
}

// ClientConfig bounds the retry loop.
type ClientConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Timeout     time.Duration
	MaxTokens   int
}

// DefaultClientConfig mirrors the upstream budget the narrator prompt is tuned for.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Timeout:     30 * time.Second,
		MaxTokens:   250,
	}
}

// Completion is a successful upstream reply.
type Completion struct {
	Text     string
	Attempts int
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithSleep replaces the backoff wait, mainly for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) ClientOption {
	return func(c *Client) { c.sleep = sleep }
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = logger.OrNop(l) }
}

// Client wraps a Provider with per-attempt timeouts and rate-limit backoff.
type Client struct {
	provider Provider
	cfg      ClientConfig
	sleep    func(ctx context.Context, d time.Duration) error
	logger   *zap.Logger
}

// NewClient fills zero config fields from DefaultClientConfig.
func NewClient(provider Provider, cfg ClientConfig, opts ...ClientOption) *Client {
	def := DefaultClientConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}

	c := &Client{
		provider: provider,
		cfg:      cfg,
		sleep:    sleepContext,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Provider reports the backend name.
func (c *Client) Provider() string {
	return c.provider.Name()
}

// Complete calls the provider until it succeeds, fails with a non rate-limit
// error, or MaxAttempts is reached. The wait before attempt n+1 is
// BaseDelay * 2^(n-1). Every failure is wrapped in ErrUpstreamUnavailable.
func (c *Client) Complete(ctx context.Context, messages []*schema.Message) (Completion, error) {
	name := c.provider.Name()

	for attempt := 1; ; attempt++ {
		text, err := c.attempt(ctx, messages)
		if err == nil {
			return Completion{Text: text, Attempts: attempt}, nil
		}

		if !errors.Is(err, ErrRateLimited) {
			c.logger.Warn("upstream call failed",
				zap.String("provider", name), zap.Int("attempt", attempt), zap.Error(err))
			return Completion{Attempts: attempt}, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
		}
		if attempt >= c.cfg.MaxAttempts {
			c.logger.Warn("upstream retry budget exhausted",
				zap.String("provider", name), zap.Int("attempts", attempt))
			return Completion{Attempts: attempt}, fmt.Errorf("%w: gave up after %d attempts: %w", ErrUpstreamUnavailable, attempt, err)
		}

		delay := c.cfg.BaseDelay << (attempt - 1)
		c.logger.Info("upstream rate limited, backing off",
			zap.String("provider", name), zap.Int("attempt", attempt), zap.Duration("delay", delay))
		if err := c.sleep(ctx, delay); err != nil {
			return Completion{Attempts: attempt}, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
		}
	}
}

func (c *Client) attempt(ctx context.Context, messages []*schema.Message) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	text, err := c.provider.Generate(attemptCtx, messages, c.cfg.MaxTokens)
	if err == nil && text == "" {
		err = ErrEmptyCompletion
	}
	metrics.RecordUpstreamAttempt(c.provider.Name(), attemptStatus(err), time.Since(start))
	return text, err
}

func attemptStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrEmptyCompletion):
		return "empty"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
