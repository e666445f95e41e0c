package dataset

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// MemoryStore keeps the dataset in process memory. It backs tests and
// one-shot CLI runs that fetch straight into the formatter.
type MemoryStore struct {
	mu       sync.RWMutex
	fallback string
	schemas  map[string]RawSchema
	meta     []Country
}

// NewMemoryStore creates an empty store. An empty fallback defaults to DefaultFallback.
func NewMemoryStore(fallback string) *MemoryStore {
	if fallback == "" {
		fallback = DefaultFallback
	}
	return &MemoryStore{
		fallback: NormalizeCode(fallback),
		schemas:  make(map[string]RawSchema),
	}
}

// Set stores a decoded schema directly.
func (m *MemoryStore) Set(code string, schema RawSchema) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemas[NormalizeCode(code)] = maps.Clone(schema)
}

func (m *MemoryStore) LoadSchema(ctx context.Context, code string) (RawSchema, error) {
	if !ValidCode(code) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	schema, ok := m.schemas[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	return maps.Clone(schema), nil
}

func (m *MemoryStore) LoadFallbackSchema(ctx context.Context) (RawSchema, error) {
	return m.LoadSchema(ctx, m.fallback)
}

func (m *MemoryStore) LoadCountryMeta(ctx context.Context) ([]Country, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.meta), nil
}

func (m *MemoryStore) LoadCountryCodeList(ctx context.Context) ([]string, error) {
	return CountryCodes(), nil
}

func (m *MemoryStore) PutSchema(ctx context.Context, code string, data []byte) (string, error) {
	if !ValidCode(code) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}
	schema, err := ParseSchema(data)
	if err != nil {
		return "", errCorrupt(code, err)
	}
	m.Set(code, schema)
	return "memory:" + code, nil
}

func (m *MemoryStore) PutMeta(ctx context.Context, countries []Country) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta = slices.Clone(countries)
	return nil
}
