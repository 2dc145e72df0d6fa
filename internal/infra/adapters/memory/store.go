package memory

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"speech-to-text/internal/domain"
	"speech-to-text/internal/domain/ports/adapter"
)

var _ adapter.ObjectStore = (*Store)(nil)

// Store is an in-process adapter.ObjectStore.
type Store struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewStore() *Store {
	return &Store{objects: make(map[string][]byte)}
}

func (s *Store) Get(ctx context.Context, key, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	body, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%s: %w", key, domain.ErrObjectNotFound)
	}
	return os.WriteFile(dst, body, 0o644)
}

func (s *Store) Put(ctx context.Context, key, src string) error {
	body, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return s.PutBytes(ctx, key, body, "")
}

func (s *Store) PutBytes(ctx context.Context, key string, body []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.objects[key] = append([]byte(nil), body...)
	s.mu.Unlock()
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

func (s *Store) Location(key string) string { return "mem://" + key }

// Object returns a stored body.
func (s *Store) Object(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.objects[key]
	return b, ok
}

// Keys lists stored keys in order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
