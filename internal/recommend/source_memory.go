package recommend

import (
	"context"
	"sync"
	"sync/atomic"
)

// MemSource serves a fixed catalog and bestseller list from memory. Gate, when
// set, holds every catalog fetch until it is closed or ctx ends.
type MemSource struct {
	mu          sync.RWMutex
	catalog     []Item
	bestsellers []Item
	catalogErr  error
	bestErr     error

	Gate chan struct{}

	catalogCalls atomic.Int64
	bestCalls    atomic.Int64

	inFlight     atomic.Int64
	peakInFlight atomic.Int64
}

func NewMemSource(catalog, bestsellers []Item) *MemSource {
	return &MemSource{catalog: catalog, bestsellers: bestsellers}
}

func (s *MemSource) SetCatalog(items []Item, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog, s.catalogErr = items, err
}

func (s *MemSource) SetBestsellers(items []Item, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bestsellers, s.bestErr = items, err
}

func (s *MemSource) CatalogCalls() int64    { return s.catalogCalls.Load() }
func (s *MemSource) BestsellerCalls() int64 { return s.bestCalls.Load() }

// PeakCatalogFetches is the most catalog fetches ever outstanding at once.
func (s *MemSource) PeakCatalogFetches() int64 { return s.peakInFlight.Load() }

func (s *MemSource) FetchCatalog(ctx context.Context, limit int) ([]Item, error) {
	s.catalogCalls.Add(1)

	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		peak := s.peakInFlight.Load()
		if n <= peak || s.peakInFlight.CompareAndSwap(peak, n) {
			break
		}
	}

	if s.Gate != nil {
		select {
		case <-s.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.catalogErr != nil {
		return nil, s.catalogErr
	}
	return head(s.catalog, limit), nil
}

func (s *MemSource) FetchBestsellers(ctx context.Context, limit int) ([]Item, error) {
	s.bestCalls.Add(1)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.bestErr != nil {
		return nil, s.bestErr
	}
	return head(s.bestsellers, limit), nil
}

func head(items []Item, limit int) []Item {
	if limit >= 0 && len(items) > limit {
		items = items[:limit]
	}
	out := make([]Item, len(items))
	copy(out, items)
	return out
}
