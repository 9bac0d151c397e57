package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitedClient wraps an LLMClient with a client-side token bucket so a
// large upload cannot burn through the provider quota in one burst.
type RateLimitedClient struct {
	inner   LLMClient
	limiter *rate.Limiter
}

// NewRateLimitedClient wraps inner with a requests-per-minute cap.
// Bursts of up to 1/10th of the per-minute budget are allowed.
func NewRateLimitedClient(inner LLMClient, requestsPerMinute int) *RateLimitedClient {
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedClient{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst),
	}
}

// GenerateResponse waits for a rate limiter slot, then delegates to the
// wrapped client. Context cancellation during the wait is returned as-is.
func (c *RateLimitedClient) GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter wait: %w", err)
	}
	return c.inner.GenerateResponse(ctx, prompt, systemMessage, temperature)
}

// GetModel returns the wrapped client's model name.
func (c *RateLimitedClient) GetModel() string {
	return c.inner.GetModel()
}

// GetEndpoint returns the wrapped client's endpoint.
func (c *RateLimitedClient) GetEndpoint() string {
	return c.inner.GetEndpoint()
}
