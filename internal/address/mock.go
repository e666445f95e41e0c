package address

import (
	"context"
	"sync"
)

// MockValidator is a test implementation of Validator.
type MockValidator struct {
	ValidateFunc func(ctx context.Context, addr Address) (*ValidationResult, error)

	mu    sync.Mutex
	calls []Address
}

// NewMockValidator creates a mock that accepts every address.
func NewMockValidator() *MockValidator {
	return &MockValidator{}
}

// Validate delegates to the configured function or returns a valid result.
func (m *MockValidator) Validate(ctx context.Context, addr Address) (*ValidationResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, addr)
	m.mu.Unlock()

	if m.ValidateFunc != nil {
		return m.ValidateFunc(ctx, addr)
	}

	normalized := addr
	return &ValidationResult{
		IsValid:           true,
		NormalizedAddress: &normalized,
		Errors:            []ValidationError{},
	}, nil
}

// Calls returns the addresses passed to Validate so far.
func (m *MockValidator) Calls() []Address {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Address, len(m.calls))
	copy(out, m.calls)
	return out
}
