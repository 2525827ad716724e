package recommend

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func seedItems() []Item {
	return []Item{
		item("a", true, "interest:frogs", "occasion:birthday", "style:cute"),
		item("b", true, "interest:frogs", "occasion:birthday"),
		item("c", true, "interest:dogs", "occasion:birthday"),
	}
}

func newTestCache(src CatalogSource, clock *fakeClock, store PersistentStore) *Cache {
	return NewCache(src, CacheOptions{
		TTL:   30 * time.Minute,
		Store: store,
		Log:   zap.NewNop(),
		Now:   clock.Now,
	})
}

func TestCache_LoadFetchesOnceThenHits(t *testing.T) {
	src := NewMemSource(seedItems(), nil)
	c := newTestCache(src, newFakeClock(), nil)

	assert.Equal(t, StateEmpty, c.State())

	items := c.Load(context.Background())
	require.Len(t, items, 3)
	assert.Equal(t, StateReady, c.State())
	assert.Equal(t, []string{"frogs"}, items[0].ParsedTags[Interest])

	c.Load(context.Background())
	assert.EqualValues(t, 1, src.CatalogCalls())
}

func TestCache_ConcurrentLoadsCoalesce(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	src := NewMemSource(seedItems(), nil)
	src.Gate = make(chan struct{})
	c := newTestCache(src, newFakeClock(), nil)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*Snapshot, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = c.Snapshot(context.Background())
		}()
	}

	require.Eventually(t, func() bool { return c.State() == StateLoading }, time.Second, time.Millisecond)
	// Give every caller time to join the in-flight load before it completes.
	time.Sleep(20 * time.Millisecond)
	close(src.Gate)
	wg.Wait()

	assert.EqualValues(t, 1, src.CatalogCalls())
	for _, s := range results {
		require.NotNil(t, s)
		assert.Same(t, results[0], s)
	}
}

func TestCache_CallerCancelDoesNotAbortSharedLoad(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	src := NewMemSource(seedItems(), nil)
	src.Gate = make(chan struct{})
	c := newTestCache(src, newFakeClock(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan *Snapshot)
	go func() { done <- c.Snapshot(ctx) }()

	require.Eventually(t, func() bool { return c.State() == StateLoading }, time.Second, time.Millisecond)
	cancel()
	assert.Nil(t, <-done)

	close(src.Gate)
	require.Eventually(t, func() bool { return c.State() == StateReady }, time.Second, time.Millisecond)
	assert.Equal(t, 3, c.Current().Len())
	assert.EqualValues(t, 1, src.CatalogCalls())
}

func TestCache_ExpiryBoundary(t *testing.T) {
	src := NewMemSource(seedItems(), nil)
	clock := newFakeClock()
	c := newTestCache(src, clock, nil)

	first := c.Snapshot(context.Background())
	require.NotNil(t, first)

	clock.Advance(30*time.Minute - time.Nanosecond)
	assert.Same(t, first, c.Snapshot(context.Background()), "usable just before T+TTL")
	assert.EqualValues(t, 1, src.CatalogCalls())

	clock.Advance(time.Nanosecond)
	second := c.Snapshot(context.Background())
	require.NotNil(t, second)
	assert.NotSame(t, first, second, "refetched at exactly T+TTL")
	assert.EqualValues(t, 2, src.CatalogCalls())
	assert.Equal(t, clock.Now(), second.CapturedAt)
}

func TestCache_FetchFailureYieldsEmpty(t *testing.T) {
	src := NewMemSource(nil, nil)
	src.SetCatalog(nil, errors.New("boom"))
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	c := NewCache(src, CacheOptions{Log: zap.NewNop(), Metrics: m})

	assert.Nil(t, c.Load(context.Background()))
	assert.Equal(t, StateEmpty, c.State())
	assert.InDelta(t, 1, testutil.ToFloat64(m.Loads.WithLabelValues(loadFailed)), 0)

	src.SetCatalog(seedItems(), nil)
	assert.Len(t, c.Load(context.Background()), 3, "next load retries")
	assert.Equal(t, StateReady, c.State())
	assert.InDelta(t, 2, testutil.ToFloat64(m.Fetches), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.Items), 0)
}

func TestCache_FailedRefreshDropsExpiredSnapshot(t *testing.T) {
	src := NewMemSource(seedItems(), nil)
	clock := newFakeClock()
	c := newTestCache(src, clock, nil)

	require.NotNil(t, c.Snapshot(context.Background()))

	clock.Advance(time.Hour)
	src.SetCatalog(nil, errors.New("down"))

	assert.Nil(t, c.Snapshot(context.Background()))
	assert.Equal(t, StateEmpty, c.State())
	_, ok := c.FindByHandle("a")
	assert.False(t, ok)
}

func TestCache_RespectsMaxItems(t *testing.T) {
	var many []Item
	for i := range 300 {
		many = append(many, item(string(rune('a'+i%26))+string(rune('0'+i/26)), true))
	}
	src := NewMemSource(many, nil)
	c := NewCache(src, CacheOptions{MaxItems: 250})

	assert.Len(t, c.Load(context.Background()), 250)
}

func TestCache_RestoresFromPersistedStore(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore()

	warm := newTestCache(NewMemSource(seedItems(), nil), clock, store)
	orig := warm.Snapshot(context.Background())
	require.NotNil(t, orig)

	clock.Advance(10 * time.Minute)
	src := NewMemSource(seedItems(), nil)
	cold := newTestCache(src, clock, store)

	got := cold.Snapshot(context.Background())
	require.NotNil(t, got)
	assert.Zero(t, src.CatalogCalls(), "restored without a fetch")
	assert.Equal(t, orig.ID, got.ID)
	assert.True(t, orig.CapturedAt.Equal(got.CapturedAt))
	assert.Equal(t, orig.Items[0].ParsedTags, got.Items[0].ParsedTags, "tags re-parsed on restore")

	// The restored snapshot keeps its original capture time, so it expires
	// 30 minutes after the first fetch, not after the restore.
	clock.Advance(20 * time.Minute)
	require.NotNil(t, cold.Snapshot(context.Background()))
	assert.EqualValues(t, 1, src.CatalogCalls())
}

func TestCache_IgnoresExpiredPersistedEntry(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore()

	warm := newTestCache(NewMemSource(seedItems(), nil), clock, store)
	require.NotNil(t, warm.Snapshot(context.Background()))

	clock.Advance(30 * time.Minute)
	src := NewMemSource(seedItems(), nil)
	cold := newTestCache(src, clock, store)

	require.NotNil(t, cold.Snapshot(context.Background()))
	assert.EqualValues(t, 1, src.CatalogCalls())
}

func TestCache_CorruptPersistedEntryIsAMiss(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), DefaultCacheKey, []byte("{not json"), time.Hour))

	src := NewMemSource(seedItems(), nil)
	c := newTestCache(src, newFakeClock(), store)

	require.Len(t, c.Load(context.Background()), 3)
	assert.EqualValues(t, 1, src.CatalogCalls())

	raw, ok, err := store.Get(context.Background(), DefaultCacheKey)
	require.NoError(t, err)
	require.True(t, ok)

	var p persistedSnapshot
	require.NoError(t, json.Unmarshal(raw, &p), "overwritten by the fresh load")
	assert.Len(t, p.Items, 3)
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("disk gone")
}
func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("disk gone")
}
func (failingStore) Delete(context.Context, string) error { return errors.New("disk gone") }

func TestCache_BrokenStoreIsNotLoadBearing(t *testing.T) {
	src := NewMemSource(seedItems(), nil)
	c := newTestCache(src, newFakeClock(), failingStore{})

	assert.Len(t, c.Load(context.Background()), 3)
	assert.Equal(t, StateReady, c.State())
}

func TestCache_InvalidateForcesFetch(t *testing.T) {
	store := NewMemoryStore()
	src := NewMemSource(seedItems(), nil)
	c := newTestCache(src, newFakeClock(), store)

	require.NotNil(t, c.Snapshot(context.Background()))
	require.NoError(t, c.Invalidate(context.Background()))
	assert.Equal(t, StateEmpty, c.State())
	assert.Nil(t, c.Current())

	_, ok, _ := store.Get(context.Background(), DefaultCacheKey)
	assert.False(t, ok)

	require.NotNil(t, c.Snapshot(context.Background()))
	assert.EqualValues(t, 2, src.CatalogCalls())
}

func TestCache_InvalidateDuringLoadKeepsOneFetchOutstanding(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	store := NewMemoryStore()
	src := NewMemSource(seedItems(), nil)
	src.Gate = make(chan struct{})
	c := newTestCache(src, newFakeClock(), store)

	first := make(chan *Snapshot, 1)
	go func() { first <- c.Snapshot(context.Background()) }()
	require.Eventually(t, func() bool { return src.CatalogCalls() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, c.Invalidate(context.Background()))

	second := make(chan *Snapshot, 1)
	go func() { second <- c.Snapshot(context.Background()) }()

	// The second caller waits on the overtaken load rather than starting its own.
	require.Never(t, func() bool { return src.CatalogCalls() > 1 }, 50*time.Millisecond, time.Millisecond)

	close(src.Gate)
	a, b := <-first, <-second

	assert.EqualValues(t, 2, src.CatalogCalls())
	assert.EqualValues(t, 1, src.PeakCatalogFetches())

	require.NotNil(t, a)
	assert.Same(t, a, b)
	assert.Same(t, a, c.Current())
	assert.Equal(t, StateReady, c.State())

	raw, ok, err := store.Get(context.Background(), DefaultCacheKey)
	require.NoError(t, err)
	require.True(t, ok)
	var p persistedSnapshot
	require.NoError(t, json.Unmarshal(raw, &p))
	assert.Equal(t, a.ID, p.ID)
}

func TestCache_FindByHandleDoesNotLoad(t *testing.T) {
	src := NewMemSource(seedItems(), nil)
	c := newTestCache(src, newFakeClock(), nil)

	_, ok := c.FindByHandle("b")
	assert.False(t, ok)
	assert.Zero(t, src.CatalogCalls())

	c.Load(context.Background())
	it, ok := c.FindByHandle("b")
	require.True(t, ok)
	assert.Equal(t, "b", it.Handle)

	_, ok = c.FindByHandle("zzz")
	assert.False(t, ok)
}

func TestSnapshot_DuplicateHandleFirstWins(t *testing.T) {
	s := snapshotOf(item("a", true, "interest:x"), item("a", false, "interest:y"))
	it, ok := s.Find("a")
	require.True(t, ok)
	assert.True(t, it.Available)
	assert.Equal(t, 2, s.Len())
}
