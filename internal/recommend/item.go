package recommend

import (
	"time"

	"github.com/google/uuid"
)

// Item is one product as the recommender sees it.
type Item struct {
	Handle     string   `json:"handle"`
	Title      string   `json:"title"`
	Tags       []string `json:"tags"`
	PriceCents int64    `json:"price_cents"`
	Available  bool     `json:"available"`
	Image      string   `json:"image,omitempty"`
	URL        string   `json:"url"`

	// ParsedTags is derived from Tags and never persisted.
	ParsedTags Tags `json:"-"`
}

// Snapshot is an immutable view of the catalog captured at one instant.
// A refresh publishes a new Snapshot rather than editing this one.
type Snapshot struct {
	ID         string
	CapturedAt time.Time
	Items      []Item

	index map[string]int
}

// newSnapshot parses tags, caps the item count and indexes handles. The
// first occurrence of a duplicated handle wins lookups.
func newSnapshot(items []Item, maxItems int, capturedAt time.Time) *Snapshot {
	if maxItems > 0 && len(items) > maxItems {
		items = items[:maxItems]
	}

	s := &Snapshot{
		ID:         uuid.NewString(),
		CapturedAt: capturedAt,
		Items:      make([]Item, len(items)),
		index:      make(map[string]int, len(items)),
	}
	for i, it := range items {
		it.ParsedTags = ParseTags(it.Tags)
		s.Items[i] = it
		if _, dup := s.index[it.Handle]; !dup {
			s.index[it.Handle] = i
		}
	}
	return s
}

func (s *Snapshot) Find(handle string) (Item, bool) {
	if s == nil {
		return Item{}, false
	}
	i, ok := s.index[handle]
	if !ok {
		return Item{}, false
	}
	return s.Items[i], true
}

// first reports whether Items[i] is the listing Find resolves its handle to.
func (s *Snapshot) first(i int) bool {
	j, ok := s.index[s.Items[i].Handle]
	return ok && j == i
}

// Len is safe on a nil snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Items)
}

func (s *Snapshot) usable(now time.Time, ttl time.Duration) bool {
	return now.Before(s.CapturedAt.Add(ttl))
}
