package recommend

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"Storefront/pkg/kit"
)

const (
	DefaultTTL      = 30 * time.Minute
	DefaultMaxItems = 250
	DefaultCacheKey = "catalog:snapshot:v1"
)

type State int32

const (
	StateEmpty State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "empty"
	}
}

type CacheOptions struct {
	TTL      time.Duration
	MaxItems int
	// Key names the persisted entry and the in-flight load.
	Key     string
	Store   PersistentStore
	Log     *zap.Logger
	Metrics *Metrics
	Now     func() time.Time
}

// Cache holds the current catalog Snapshot. Concurrent loads on a miss share
// a single fetch; a published snapshot is replaced wholesale, never edited.
type Cache struct {
	src     CatalogSource
	store   PersistentStore
	log     *zap.Logger
	metrics *Metrics
	now     func() time.Time

	ttl      time.Duration
	maxItems int
	key      string

	group singleflight.Group
	snap  atomic.Pointer[Snapshot]
	state atomic.Int32

	// gen counts invalidations. A load publishes only if gen has not moved
	// since it started; pubMu orders that check against Invalidate.
	gen   atomic.Uint64
	pubMu sync.Mutex
}

// flight is the outcome of one refresh and the generation it ran under.
type flight struct {
	snap *Snapshot
	gen  uint64
}

func NewCache(src CatalogSource, opts CacheOptions) *Cache {
	c := &Cache{
		src:      src,
		store:    opts.Store,
		log:      kit.OrNop(opts.Log),
		metrics:  opts.Metrics,
		now:      opts.Now,
		ttl:      opts.TTL,
		maxItems: opts.MaxItems,
		key:      opts.Key,
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	if c.maxItems <= 0 {
		c.maxItems = DefaultMaxItems
	}
	if c.key == "" {
		c.key = DefaultCacheKey
	}
	return c
}

func (c *Cache) State() State { return State(c.state.Load()) }

// Current returns the published snapshot without loading; it may be nil or
// expired.
func (c *Cache) Current() *Snapshot { return c.snap.Load() }

// Load returns the items of a usable snapshot, loading one if needed. A
// failed load yields nil; callers treat that as "nothing to recommend".
func (c *Cache) Load(ctx context.Context) []Item {
	return c.Snapshot(ctx).itemsOrNil()
}

// FindByHandle looks handle up in the published snapshot. It never loads.
func (c *Cache) FindByHandle(handle string) (Item, bool) {
	return c.snap.Load().Find(handle)
}

// Snapshot returns a usable snapshot, loading one if needed, or nil when the
// load failed or ctx ended first. A caller leaving early does not cancel the
// shared load for the others. A load overtaken by Invalidate is waited out
// and followed by a fresh one, so at most one fetch is ever outstanding.
func (c *Cache) Snapshot(ctx context.Context) *Snapshot {
	for {
		if s := c.snap.Load(); s != nil && s.usable(c.now(), c.ttl) {
			c.metrics.load(loadHit)
			return s
		}

		ch := c.group.DoChan(c.key, func() (any, error) {
			return c.refresh(context.WithoutCancel(ctx)), nil
		})

		select {
		case res := <-ch:
			f, _ := res.Val.(flight)
			if f.gen == c.gen.Load() {
				return f.snap
			}
			c.log.Debug("catalog load invalidated while in flight, reloading")
		case <-ctx.Done():
			c.log.Debug("catalog load abandoned by caller", zap.Error(ctx.Err()))
			return nil
		}
	}
}

// Invalidate drops the published snapshot and the persisted entry so the
// next load fetches afresh. A load already in flight finishes but is not
// published.
func (c *Cache) Invalidate(ctx context.Context) error {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	c.gen.Add(1)
	c.snap.Store(nil)
	c.state.Store(int32(StateEmpty))
	c.metrics.items(0)

	if c.store == nil {
		return nil
	}
	return c.store.Delete(ctx, c.key)
}

func (c *Cache) refresh(ctx context.Context) flight {
	gen := c.gen.Load()
	now := c.now()

	// A load that finished between the caller's check and this flight
	// starting already satisfies it.
	if s := c.snap.Load(); s != nil && s.usable(now, c.ttl) {
		c.metrics.load(loadHit)
		return flight{snap: s, gen: gen}
	}

	c.state.Store(int32(StateLoading))

	if s := c.restore(ctx, now); s != nil {
		if !c.commit(ctx, gen, s, false) {
			return flight{gen: gen}
		}
		c.metrics.load(loadRestored)
		c.log.Debug("catalog snapshot restored",
			zap.String("snapshot", s.ID),
			zap.Time("captured_at", s.CapturedAt),
			zap.Int("items", s.Len()),
		)
		return flight{snap: s, gen: gen}
	}

	c.metrics.fetch()
	items, err := c.src.FetchCatalog(ctx, c.maxItems)
	if err != nil {
		c.metrics.load(loadFailed)
		c.log.Warn("catalog fetch failed", zap.Error(err))
		c.commit(ctx, gen, nil, false)
		return flight{gen: gen}
	}

	s := newSnapshot(items, c.maxItems, now)
	if !c.commit(ctx, gen, s, true) {
		return flight{gen: gen}
	}
	c.metrics.load(loadFetched)
	c.log.Debug("catalog snapshot fetched", zap.String("snapshot", s.ID), zap.Int("items", s.Len()))
	return flight{snap: s, gen: gen}
}

// commit persists (when asked) and publishes s, or clears the cache when s is
// nil, unless an Invalidate has happened since gen was read.
func (c *Cache) commit(ctx context.Context, gen uint64, s *Snapshot, persist bool) bool {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	if c.gen.Load() != gen {
		c.log.Debug("discarding catalog load overtaken by invalidate")
		return false
	}

	if s == nil {
		c.snap.Store(nil)
		c.state.Store(int32(StateEmpty))
		c.metrics.items(0)
		return true
	}

	if persist {
		c.persist(ctx, s)
	}
	c.publish(s)
	return true
}

func (c *Cache) publish(s *Snapshot) {
	c.snap.Store(s)
	c.state.Store(int32(StateReady))
	c.metrics.items(s.Len())
}

func (c *Cache) restore(ctx context.Context, now time.Time) *Snapshot {
	if c.store == nil {
		return nil
	}

	raw, ok, err := c.store.Get(ctx, c.key)
	if err != nil {
		c.log.Warn("persisted catalog read failed", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}

	var p persistedSnapshot
	if err := json.Unmarshal(raw, &p); err != nil {
		c.log.Warn("persisted catalog unreadable, ignoring", zap.Error(err))
		return nil
	}
	if p.SavedAt.IsZero() || !now.Before(p.SavedAt.Add(c.ttl)) {
		return nil
	}

	s := newSnapshot(p.Items, c.maxItems, p.SavedAt)
	if p.ID != "" {
		s.ID = p.ID
	}
	return s
}

func (c *Cache) persist(ctx context.Context, s *Snapshot) {
	if c.store == nil {
		return
	}

	raw, err := json.Marshal(persistedSnapshot{ID: s.ID, SavedAt: s.CapturedAt, Items: s.Items})
	if err != nil {
		c.log.Warn("encode catalog snapshot failed", zap.Error(err))
		return
	}
	if err := c.store.Set(ctx, c.key, raw, c.ttl); err != nil {
		c.log.Warn("persist catalog snapshot failed", zap.Error(err))
	}
}

func (s *Snapshot) itemsOrNil() []Item {
	if s == nil {
		return nil
	}
	return s.Items
}
