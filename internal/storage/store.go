// Package storage provides the string-keyed, string-valued persistent medium
// backing the mutation log and the per-user feed sessions.
package storage

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrUnavailable indicates that the persistence backend cannot serve requests.
	ErrUnavailable = errors.New("storage: backend unavailable")
	// ErrInvalidKey indicates that an empty key was supplied.
	ErrInvalidKey = errors.New("storage: invalid key")
)

// Store is a synchronous get/set/remove capability keyed by string.
type Store interface {
	// Get returns the value stored under key. found is false when the key is absent.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	// Set overwrites the value stored under key.
	Set(ctx context.Context, key, value string) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}

func normalizeKey(key string) (string, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", ErrInvalidKey
	}
	return trimmed, nil
}

type namespacedStore struct {
	inner  Store
	prefix string
}

// Namespace scopes every key of inner under prefix, so several users can share one backend.
func Namespace(inner Store, prefix string) Store {
	if inner == nil {
		return nil
	}
	trimmed := strings.Trim(strings.TrimSpace(prefix), "/")
	if trimmed == "" {
		return inner
	}
	return &namespacedStore{inner: inner, prefix: trimmed + "/"}
}

func (s *namespacedStore) Get(ctx context.Context, key string) (string, bool, error) {
	normalized, err := normalizeKey(key)
	if err != nil {
		return "", false, err
	}
	return s.inner.Get(ctx, s.prefix+normalized)
}

func (s *namespacedStore) Set(ctx context.Context, key, value string) error {
	normalized, err := normalizeKey(key)
	if err != nil {
		return err
	}
	return s.inner.Set(ctx, s.prefix+normalized, value)
}

func (s *namespacedStore) Remove(ctx context.Context, key string) error {
	normalized, err := normalizeKey(key)
	if err != nil {
		return err
	}
	return s.inner.Remove(ctx, s.prefix+normalized)
}
