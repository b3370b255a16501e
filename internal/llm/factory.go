package llm

import (
	"context"
	"fmt"
	"log"
	"time"

	"ddgraph/internal/config"
)

type Options struct {
	Timeout time.Duration
	Logger  *log.Logger
	Observe ObserveFunc
}

// New builds the configured provider with the standard middleware chain:
// observe, logging, hooks, retry, per-attempt timeout, rate limit.
func New(ctx context.Context, cfg config.LLMConfig, opts Options) (LLMClient, error) {
	var base LLMClient
	switch cfg.Provider {
	case "gemini":
		c, err := NewGeminiClient(ctx, cfg.GeminiKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		base = c
	case "anthropic":
		c, err := NewAnthropicClient(cfg.AnthropicKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		base = c
	case "fake":
		base = NewFakeClient()
	default:
		return nil, fmt.Errorf("llm: unsupported provider %q", cfg.Provider)
	}

	return Wrap(base,
		Observe(opts.Observe),
		WithLogging(opts.Logger),
		WithHooks(),
		Retry(cfg.MaxAttempts, 300*time.Millisecond),
		Timeout(opts.Timeout),
		RateLimit(cfg.RPS, cfg.Burst),
	), nil
}
