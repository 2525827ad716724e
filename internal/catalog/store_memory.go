package catalog

import (
	"context"
	"slices"
	"sync"
)

type MemStore struct {
	mu sync.RWMutex
	m  map[string]Product
}

func NewMemStore(products ...Product) *MemStore {
	s := &MemStore{m: make(map[string]Product, len(products))}
	for _, p := range products {
		s.m[p.Handle] = p
	}
	return s
}

// NewStore returns a MemStore seeded with the demo card range.
func NewStore() *MemStore {
	return NewMemStore(SeedProducts()...)
}

func (s *MemStore) Ping(ctx context.Context) error { return nil }

func (s *MemStore) Put(p Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[p.Handle] = p
}

func (s *MemStore) List(ctx context.Context, q ListQuery) ([]Product, error) {
	s.mu.RLock()
	out := make([]Product, 0, len(s.m))
	for _, p := range s.m {
		out = append(out, p)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, compareFor(q.Sort))

	if n := q.limit(); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (s *MemStore) Get(ctx context.Context, handle string) (Product, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.m[handle]
	return p, ok, nil
}

func compareFor(sort Sort) func(a, b Product) int {
	if sort == SortBestSelling {
		return func(a, b Product) int {
			if a.SalesRank != b.SalesRank {
				return a.SalesRank - b.SalesRank
			}
			return compareHandle(a, b)
		}
	}
	return func(a, b Product) int {
		if a.Position != b.Position {
			return a.Position - b.Position
		}
		return compareHandle(a, b)
	}
}

func compareHandle(a, b Product) int {
	switch {
	case a.Handle < b.Handle:
		return -1
	case a.Handle > b.Handle:
		return 1
	}
	return 0
}
