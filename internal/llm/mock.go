package llm

import (
	"context"
	"fmt"
	"sync"

	"calbot/internal/agent/ports"
)

// MockClient implements ports.LLMClient for testing. Responses are served in
// the order they were queued; once exhausted it returns Fallback (or an error
// if none is set).
type MockClient struct {
	mu        sync.Mutex
	responses []mockStep
	Fallback  *ports.CompletionResponse

	// Requests records every request received, for assertions.
	Requests []ports.CompletionRequest
}

type mockStep struct {
	resp *ports.CompletionResponse
	err  error
}

// NewMockClient creates an empty mock client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// QueueResponse appends a canned response.
func (m *MockClient) QueueResponse(resp *ports.CompletionResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, mockStep{resp: resp})
}

// QueueError appends a canned failure.
func (m *MockClient) QueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, mockStep{err: err})
}

// QueueText is shorthand for queueing a plain-text assistant reply.
func (m *MockClient) QueueText(content string) {
	m.QueueResponse(&ports.CompletionResponse{Content: content, StopReason: "stop"})
}

// QueueToolCall is shorthand for queueing a single tool invocation.
func (m *MockClient) QueueToolCall(id, name string, args map[string]any) {
	m.QueueResponse(&ports.CompletionResponse{
		StopReason: "tool_calls",
		ToolCalls: []ports.ToolCall{
			{ID: id, Name: name, Arguments: args},
		},
	})
}

func (m *MockClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)

	if len(m.responses) == 0 {
		if m.Fallback != nil {
			return m.Fallback, nil
		}
		return nil, fmt.Errorf("mock client: no responses queued")
	}

	step := m.responses[0]
	m.responses = m.responses[1:]
	if step.err != nil {
		return nil, step.err
	}
	return step.resp, nil
}

func (m *MockClient) Model() string { return "mock" }
