package mock

import (
	"context"
	"sync"
	"sync/atomic"
)

// MockCompleter is a test double for ai.Completer. By default it echoes
// the prompt back as the answer.
type MockCompleter struct {
	// CompleteFunc is called by Complete if set.
	CompleteFunc func(ctx context.Context, system, prompt string) (string, error)

	calls atomic.Int64

	mu         sync.Mutex
	lastSystem string
	lastPrompt string
}

// NewMockCompleter creates an echoing completer.
func NewMockCompleter() *MockCompleter {
	return &MockCompleter{}
}

// Complete records the request and returns the prompt unless CompleteFunc is set.
func (m *MockCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.lastSystem, m.lastPrompt = system, prompt
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, system, prompt)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return prompt, nil
}

// LastRequest returns the most recent system instruction and prompt.
func (m *MockCompleter) LastRequest() (system, prompt string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSystem, m.lastPrompt
}

// CallCount returns the number of times Complete was called.
func (m *MockCompleter) CallCount() int {
	return int(m.calls.Load())
}

// MockImageDescriber is a test double for ai.ImageDescriber.
type MockImageDescriber struct {
	// DescribeImageFunc is called by DescribeImage if set.
	DescribeImageFunc func(ctx context.Context, mimeType string, image []byte, prompt string) (string, error)

	// Description is returned by default.
	Description string

	calls atomic.Int64
}

// NewMockImageDescriber creates a describer returning a fixed description.
func NewMockImageDescriber() *MockImageDescriber {
	return &MockImageDescriber{Description: "A diagram with labelled parts."}
}

// DescribeImage returns Description unless DescribeImageFunc is set.
func (m *MockImageDescriber) DescribeImage(ctx context.Context, mimeType string, image []byte, prompt string) (string, error) {
	m.calls.Add(1)
	if m.DescribeImageFunc != nil {
		return m.DescribeImageFunc(ctx, mimeType, image, prompt)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return m.Description, nil
}

// CallCount returns the number of times DescribeImage was called.
func (m *MockImageDescriber) CallCount() int {
	return int(m.calls.Load())
}
