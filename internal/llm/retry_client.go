package llm

import (
	"context"
	"fmt"
	"time"

	"calbot/internal/agent/ports"
	calboterrors "calbot/internal/errors"
	"calbot/internal/logging"
)

// retryClient wraps an LLM client with retry logic
type retryClient struct {
	underlying  ports.LLMClient
	retryConfig calboterrors.RetryConfig
	logger      logging.Logger
}

var _ ports.LLMClient = (*retryClient)(nil)

// WrapWithRetry wraps an LLM client with transient-failure retry logic.
func WrapWithRetry(client ports.LLMClient, retryConfig calboterrors.RetryConfig) ports.LLMClient {
	return &retryClient{
		underlying:  client,
		retryConfig: retryConfig,
		logger:      logging.NewComponentLogger("llm-retry"),
	}
}

// Complete executes LLM completion with retry logic
func (c *retryClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	startTime := time.Now()

	resp, err := calboterrors.RetryWithResultAndLog(ctx, c.retryConfig, func(ctx context.Context) (*ports.CompletionResponse, error) {
		return c.underlying.Complete(ctx, req)
	}, c.logger)

	duration := time.Since(startTime)

	if err != nil {
		c.logger.Warn("LLM request failed after retries (took %v): %v", duration, err)
		return nil, fmt.Errorf("%s", c.formatRetryError(err, duration))
	}

	if duration > 5*time.Second {
		c.logger.Debug("LLM request succeeded after %v", duration)
	}

	return resp, nil
}

// Model returns the underlying model name
func (c *retryClient) Model() string {
	return c.underlying.Model()
}

// formatRetryError formats error message with retry context
func (c *retryClient) formatRetryError(err error, duration time.Duration) string {
	message := calboterrors.FormatForUser(err)
	if calboterrors.IsPermanent(err) {
		return message
	}
	attempts := c.retryConfig.MaxAttempts + 1
	return fmt.Sprintf("%s Retried %d times over %v.", message, attempts, duration.Round(time.Second))
}
