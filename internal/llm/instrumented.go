package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/parley/internal/observability/metrics"
)

// Config selects and configures a provider.
type Config struct {
	Provider    string // "openai" or "gemini"
	OpenAIKey   string
	OpenAIURL   string
	OpenAIModel string
	GeminiKey   string
	GeminiModel string
	Timeout     time.Duration
}

// New builds the configured provider wrapped with logging and metrics.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (Client, error) {
	var (
		inner Client
		err   error
	)
	switch cfg.Provider {
	case "", "openai":
		inner, err = NewOpenAIClient(OpenAIConfig{
			BaseURL: cfg.OpenAIURL,
			APIKey:  cfg.OpenAIKey,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.Timeout,
		})
	case "gemini":
		inner, err = NewGeminiClient(ctx, cfg.GeminiKey, cfg.GeminiModel)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return Instrument(inner, cfg.Timeout, logger, metrics.DefaultMetrics), nil
}

// Instrumented decorates a Client with a per-call timeout, logs and metrics.
type Instrumented struct {
	next    Client
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Instrument wraps next. A zero timeout leaves the caller's deadline alone.
func Instrument(next Client, timeout time.Duration, logger *slog.Logger, m *metrics.Metrics) *Instrumented {
	if logger == nil {
		logger = slog.Default()
	}
	return &Instrumented{next: next, timeout: timeout, logger: logger, metrics: m}
}

// Name implements Client.
func (c *Instrumented) Name() string { return c.next.Name() }

// Complete implements Client.
func (c *Instrumented) Complete(ctx context.Context, req Request) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := c.next.Complete(ctx, req)
	elapsed := time.Since(start)

	if c.metrics != nil {
		c.metrics.RecordLLMCall(c.next.Name(), req.Operation, err, elapsed.Seconds())
	}
	if err != nil {
		c.logger.Warn("LLM completion failed",
			"provider", c.next.Name(),
			"operation", req.Operation,
			"duration_ms", elapsed.Milliseconds(),
			"error", err,
		)
		return "", err
	}
	c.logger.Debug("LLM completion",
		"provider", c.next.Name(),
		"operation", req.Operation,
		"duration_ms", elapsed.Milliseconds(),
		"reply_length", len(out),
	)
	return out, nil
}
