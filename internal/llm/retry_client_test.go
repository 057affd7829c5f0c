package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"calbot/internal/agent/ports"
	calboterrors "calbot/internal/errors"
)

func retryTestConfig() calboterrors.RetryConfig {
	return calboterrors.RetryConfig{
		MaxAttempts:  2,
		BaseDelay:    time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		JitterFactor: 0,
	}
}

func TestRetryClientRecoversFromTransientError(t *testing.T) {
	mock := NewMockClient()
	mock.QueueError(calboterrors.NewTransientError(errors.New("503"), "briefly down"))
	mock.QueueText("recovered")

	client := WrapWithRetry(mock, retryTestConfig())

	resp, err := client.Complete(context.Background(), ports.CompletionRequest{})
	require.NoError(t, err)
	require.Equal(t, "recovered", resp.Content)
	require.Len(t, mock.Requests, 2)
}

func TestRetryClientDoesNotRetryPermanentError(t *testing.T) {
	mock := NewMockClient()
	mock.QueueError(calboterrors.NewPermanentError(errors.New("401"), "Authentication failed."))

	client := WrapWithRetry(mock, retryTestConfig())

	_, err := client.Complete(context.Background(), ports.CompletionRequest{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "Authentication failed.")
	require.Len(t, mock.Requests, 1)
}

func TestRetryClientGivesUpAfterMaxAttempts(t *testing.T) {
	mock := NewMockClient()
	for i := 0; i < 3; i++ {
		mock.QueueError(calboterrors.NewTransientError(errors.New("429"), "rate limited"))
	}

	client := WrapWithRetry(mock, retryTestConfig())

	_, err := client.Complete(context.Background(), ports.CompletionRequest{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "Retried 3 times")
	require.Len(t, mock.Requests, 3)
}

func TestRetryClientExposesModel(t *testing.T) {
	client := WrapWithRetry(NewMockClient(), retryTestConfig())
	require.Equal(t, "mock", client.Model())
}
