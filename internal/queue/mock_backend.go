package queue

import (
	"context"
	"sync"

	"github.com/spareflow/spareflow/internal/model"
	"github.com/spareflow/spareflow/internal/resolver"
)

// MockBackend is a test implementation of the resolver backend. It returns a
// fixed mapping or error and records every request it receives.
type MockBackend struct {
	err     error
	mapping model.MerchantMapping
	calls   []resolver.Request
	mu      sync.Mutex
}

// NewMockBackend creates a mock backend returning the given mapping.
func NewMockBackend(mapping model.MerchantMapping) *MockBackend {
	return &MockBackend{mapping: mapping}
}

// NewFailingBackend creates a mock backend that always fails.
func NewFailingBackend(err error) *MockBackend {
	return &MockBackend{err: err}
}

// Resolve records the request and returns the configured result.
func (m *MockBackend) Resolve(_ context.Context, req resolver.Request) (model.MerchantMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, req)
	if m.err != nil {
		return model.MerchantMapping{}, m.err
	}
	return m.mapping, nil
}

// Calls returns a copy of all recorded requests.
func (m *MockBackend) Calls() []resolver.Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]resolver.Request, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// CallCount returns the number of times Resolve was called.
func (m *MockBackend) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
