package llm

import (
	"context"
	"sync"

	"github.com/aixgo-dev/chatcore/pkg/memory"
)

// MockCompleter is a scripted Completer for testing. Queued replies and
// errors are returned in order; once the queue is drained it returns
// "Mock response".
type MockCompleter struct {
	mu        sync.Mutex
	results   []*Result
	errors    []error
	calls     []MockCall
	callIndex int
}

// MockCall records one Ask invocation.
type MockCall struct {
	Messages []memory.Message
	Options  Options
}

// NewMockCompleter creates an empty mock.
func NewMockCompleter() *MockCompleter {
	return &MockCompleter{}
}

// AddResponse queues a successful reply.
func (m *MockCompleter) AddResponse(text string, usage *Usage) *MockCompleter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, &Result{Text: text, Usage: usage})
	m.errors = append(m.errors, nil)
	return m
}

// AddError queues a failure.
func (m *MockCompleter) AddError(err error) *MockCompleter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, nil)
	m.errors = append(m.errors, err)
	return m
}

// Ask implements Completer.
func (m *MockCompleter) Ask(ctx context.Context, messages []memory.Message, opts ...Option) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := make([]memory.Message, len(messages))
	copy(cp, messages)
	m.calls = append(m.calls, MockCall{Messages: cp, Options: ApplyOptions(opts)})

	if m.callIndex >= len(m.results) {
		return &Result{
			Text:  "Mock response",
			Usage: &Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		}, nil
	}

	res, err := m.results[m.callIndex], m.errors[m.callIndex]
	m.callIndex++
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Calls returns all recorded calls.
func (m *MockCompleter) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of Ask invocations.
func (m *MockCompleter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
