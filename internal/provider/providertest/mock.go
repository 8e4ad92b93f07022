// Package providertest provides test helpers for the provider package.
package providertest

import (
	"context"
	"sync"

	"github.com/quillworks/quill/internal/provider"
)

// MockProvider is a configurable test double for provider.Provider.
// Set the Func fields to control behavior. Unset funcs panic on call.
// All methods are safe for concurrent use.
type MockProvider struct {
	GenerateFunc          func(ctx context.Context, req provider.Request) (<-chan provider.Chunk, error)
	CompleteFunc          func(ctx context.Context, req provider.Request) (string, error)
	ContextWindowSizeFunc func() int
	ModelNameFunc         func() string

	mu            sync.Mutex
	GenerateCalls int
	CompleteCalls int
}

// Generate delegates to GenerateFunc and tracks call count.
func (m *MockProvider) Generate(ctx context.Context, req provider.Request) (<-chan provider.Chunk, error) {
	m.mu.Lock()
	m.GenerateCalls++
	m.mu.Unlock()
	return m.GenerateFunc(ctx, req)
}

// Complete delegates to CompleteFunc and tracks call count.
func (m *MockProvider) Complete(ctx context.Context, req provider.Request) (string, error) {
	m.mu.Lock()
	m.CompleteCalls++
	m.mu.Unlock()
	return m.CompleteFunc(ctx, req)
}

// ContextWindowSize delegates to ContextWindowSizeFunc, defaulting to 8192.
func (m *MockProvider) ContextWindowSize() int {
	if m.ContextWindowSizeFunc == nil {
		return 8192
	}
	return m.ContextWindowSizeFunc()
}

// ModelName delegates to ModelNameFunc, defaulting to "mock".
func (m *MockProvider) ModelName() string {
	if m.ModelNameFunc == nil {
		return "mock"
	}
	return m.ModelNameFunc()
}

// Calls returns the current call counts.
func (m *MockProvider) Calls() (generate, complete int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.GenerateCalls, m.CompleteCalls
}

// Interface guard.
var _ provider.Provider = (*MockProvider)(nil)
