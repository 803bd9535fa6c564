package testutil

import (
	"context"
	"fmt"
	"sync"
)

// MockCompleter implements the language model capability for testing
// with canned answers and error injection
type MockCompleter struct {
	mu sync.Mutex

	answers []string
	err     error
	calls   int

	Prompts []string
	Models  []string
}

// MockOption is a functional option for configuring MockCompleter
type MockOption func(*MockCompleter)

// WithAnswers sets the responses returned in order; the last one repeats
func WithAnswers(answers ...string) MockOption {
	return func(m *MockCompleter) {
		m.answers = answers
	}
}

// WithError makes every call fail with err
func WithError(err error) MockOption {
	return func(m *MockCompleter) {
		m.err = err
	}
}

// NewMockCompleter creates a mock that answers TestSQL unless configured
func NewMockCompleter(opts ...MockOption) *MockCompleter {
	m := &MockCompleter{answers: []string{TestSQL}}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Complete records the prompt and returns the next canned answer
func (m *MockCompleter) Complete(ctx context.Context, prompt, model string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Prompts = append(m.Prompts, prompt)
	m.Models = append(m.Models, model)
	m.calls++

	if err := ctx.Err(); err != nil {
		return "", err
	}

	if m.err != nil {
		return "", m.err
	}

	if len(m.answers) == 0 {
		return "", fmt.Errorf("mock completer has no answers")
	}

	i := m.calls - 1
	if i >= len(m.answers) {
		i = len(m.answers) - 1
	}

	return m.answers[i], nil
}

// CallCount returns how many times Complete was called
func (m *MockCompleter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.calls
}

// LastPrompt returns the most recent prompt, or "" if none
func (m *MockCompleter) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.Prompts) == 0 {
		return ""
	}

	return m.Prompts[len(m.Prompts)-1]
}
