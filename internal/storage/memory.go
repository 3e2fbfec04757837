package storage

import (
	"context"
	"sync"
)

// MemoryStore keeps values in process memory. It backs tests and the "memory" driver.
type MemoryStore struct {
	mu       sync.RWMutex
	values   map[string]string
	failures map[string]error
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:   make(map[string]string),
		failures: make(map[string]error),
	}
}

// FailWrites makes every subsequent Set or Remove on key return err. A nil err clears the failure.
func (s *MemoryStore) FailWrites(key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, key)
		return
	}
	s.failures[key] = err
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	normalized, err := normalizeKey(key)
	if err != nil {
		return "", false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[normalized]
	return value, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	normalized, err := normalizeKey(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if failure := s.failures[normalized]; failure != nil {
		return failure
	}
	s.values[normalized] = value
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, key string) error {
	normalized, err := normalizeKey(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if failure := s.failures[normalized]; failure != nil {
		return failure
	}
	delete(s.values, normalized)
	return nil
}

// Keys returns the stored keys. Order is unspecified.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values))
	for key := range s.values {
		keys = append(keys, key)
	}
	return keys
}
