package recommend

import (
	"context"
	"sync"
	"time"
)

func item(handle string, available bool, tags ...string) Item {
	return Item{
		Handle:    handle,
		Title:     handle,
		Tags:      tags,
		Available: available,
		URL:       "/products/" + handle,
	}
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// staticLoader hands the engine a fixed snapshot.
type staticLoader struct{ snap *Snapshot }

func (l staticLoader) Snapshot(context.Context) *Snapshot { return l.snap }

func snapshotOf(items ...Item) *Snapshot {
	return newSnapshot(items, DefaultMaxItems, time.Now())
}
