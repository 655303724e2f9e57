package mocks

import (
	"context"
	"sync"
)

// MockKVStore is a mock implementation of store.KVStore for testing
type MockKVStore struct {
	mu   sync.RWMutex
	data map[string]string

	// Errors returned by the matching method when set
	GetErr    error
	SetErr    error
	DeleteErr error

	// For tracking calls in tests
	GetCalls    []string
	SetCalls    []SetCall
	DeleteCalls []string
}

// SetCall records parameters passed to Set
type SetCall struct {
	Key   string
	Value string
}

// NewMockKVStore creates a new MockKVStore
func NewMockKVStore() *MockKVStore {
	return &MockKVStore{
		data:        make(map[string]string),
		GetCalls:    make([]string, 0),
		SetCalls:    make([]SetCall, 0),
		DeleteCalls: make([]string, 0),
	}
}

func (m *MockKVStore) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetCalls = append(m.GetCalls, key)
	if m.GetErr != nil {
		return "", false, m.GetErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MockKVStore) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SetCalls = append(m.SetCalls, SetCall{Key: key, Value: value})
	if m.SetErr != nil {
		return m.SetErr
	}
	m.data[key] = value
	return nil
}

func (m *MockKVStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeleteCalls = append(m.DeleteCalls, key)
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.data, key)
	return nil
}

// SetData seeds a value without recording a call
func (m *MockKVStore) SetData(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

// Data returns a stored value without recording a call
func (m *MockKVStore) Data(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

// SetCallCount returns the number of Set calls so far
func (m *MockKVStore) SetCallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.SetCalls)
}
