// Package memory provides a process-local product store for development
// and tests. Contents are lost on restart.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/JonMunkholm/shelfscan/internal/core"
)

// Store keeps products in memory.
type Store struct {
	mu       sync.RWMutex
	products []core.Product
	ids      map[string]struct{}
}

// New returns an empty store.
func New() *Store {
	return &Store{ids: make(map[string]struct{})}
}

// Create appends p.
func (s *Store) Create(ctx context.Context, p core.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[p.ID]; exists {
		return core.ErrDuplicateProduct
	}
	s.ids[p.ID] = struct{}{}
	s.products = append(s.products, p)
	return nil
}

// List returns a copy of all products, newest first. Products created at
// the same instant keep reverse insertion order.
func (s *Store) List(ctx context.Context) ([]core.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Product, len(s.products))
	for i, p := range s.products {
		out[len(out)-1-i] = p
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }
