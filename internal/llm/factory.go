package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/mfairbanks/jobsignal/internal/common"
)

// Config holds completion-service configuration.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string // OpenAI-compatible endpoints only
	Timeout     time.Duration
	RateLimit   int // requests per minute, 0 uses the provider default
	Temperature float64
	MaxTokens   int
}

// NewClient creates a completion client based on the configured provider.
// Every client is wrapped with a token-bucket rate limiter so callers never
// exceed the provider's request budget.
func NewClient(ctx context.Context, cfg Config) (Client, error) {
	var (
		client Client
		err    error
	)

	switch cfg.Provider {
	case "openai", "":
		client, err = newOpenAIClient(cfg)
	case "gemini":
		client, err = newGeminiClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", common.ErrInvalidConfig, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return &rateLimitedClient{
		inner:   client,
		limiter: newRateLimiter(cfg.RateLimit),
	}, nil
}

// rateLimitedClient gates requests through a token bucket before delegating.
type rateLimitedClient struct {
	inner   Client
	limiter *rateLimiter
}

func (c *rateLimitedClient) SelectCandidate(ctx context.Context, prompt string) (SelectionResponse, error) {
	if err := c.limiter.wait(ctx); err != nil {
		return SelectionResponse{}, err
	}
	return c.inner.SelectCandidate(ctx, prompt)
}

// Close releases the limiter's refill goroutine.
func (c *rateLimitedClient) Close() {
	c.limiter.Close()
}
