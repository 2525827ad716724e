package recommend

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"Storefront/pkg/kit"
)

const (
	DefaultLimit        = 6
	DefaultDiversityCap = 2
)

// SnapshotLoader is the part of Cache the engine needs.
type SnapshotLoader interface {
	Snapshot(ctx context.Context) *Snapshot
}

type EngineOptions struct {
	Limit        int
	DiversityCap int
	Log          *zap.Logger
	Metrics      *Metrics
}

type Engine struct {
	catalog     SnapshotLoader
	bestsellers BestsellerSource
	log         *zap.Logger
	metrics     *Metrics

	limit        int
	diversityCap int
}

func NewEngine(catalog SnapshotLoader, bestsellers BestsellerSource, opts EngineOptions) *Engine {
	e := &Engine{
		catalog:      catalog,
		bestsellers:  bestsellers,
		log:          kit.OrNop(opts.Log),
		metrics:      opts.Metrics,
		limit:        opts.Limit,
		diversityCap: opts.DiversityCap,
	}
	if e.limit <= 0 {
		e.limit = DefaultLimit
	}
	if e.diversityCap <= 0 {
		e.diversityCap = DefaultDiversityCap
	}
	return e
}

type Result struct {
	Handles []string `json:"items"`
	// Snapshot is the ID of the catalog snapshot used, empty if none loaded.
	Snapshot string `json:"snapshot,omitempty"`
	// Backfilled counts the trailing handles that came from bestsellers.
	Backfilled int `json:"backfilled"`
}

// GetRecommendations ranks the catalog against the anchor and tops the result
// up with bestsellers. Data problems shrink the result rather than fail it;
// the only error is ErrInvalidMode.
func (e *Engine) GetRecommendations(ctx context.Context, anchorHandle string, mode Mode) (Result, error) {
	if _, ok := profiles[mode]; !ok {
		return Result{}, ErrInvalidMode
	}

	snap := e.catalog.Snapshot(ctx)
	res := Result{Handles: []string{}}
	if snap != nil {
		res.Snapshot = snap.ID
	}

	anchor, ok := snap.Find(anchorHandle)
	if !ok {
		res.Handles = append(res.Handles, e.fallback(ctx, snap, e.limit, []string{anchorHandle})...)
		res.Backfilled = len(res.Handles)
		e.metrics.recommended(mode, sourceFallback, res.Backfilled)
		return res, nil
	}

	ranked := e.rank(snap, anchor, mode)
	picked := diversify(ranked, e.diversityCap)
	if len(picked) > e.limit {
		picked = picked[:e.limit]
	}

	for _, c := range picked {
		res.Handles = append(res.Handles, c.item.Handle)
	}
	e.metrics.recommended(mode, sourceScored, len(res.Handles))

	if short := e.limit - len(res.Handles); short > 0 {
		exclude := append([]string{anchor.Handle}, res.Handles...)
		extra := e.fallback(ctx, snap, short, exclude)
		res.Handles = append(res.Handles, extra...)
		res.Backfilled = len(extra)
		e.metrics.recommended(mode, sourceFallback, len(extra))
	}
	return res, nil
}

// rank scores every available item other than the anchor and orders positive
// scores high to low; equal scores keep catalog order. Repeated handles are
// ranked by their first listing only.
func (e *Engine) rank(snap *Snapshot, anchor Item, mode Mode) []scored {
	out := make([]scored, 0, len(snap.Items))
	for i, it := range snap.Items {
		if it.Handle == anchor.Handle || !it.Available || !snap.first(i) {
			continue
		}
		if s := Score(anchor.ParsedTags, it.ParsedTags, mode); s > 0 {
			out = append(out, scored{item: it, score: s})
		}
	}

	slices.SortStableFunc(out, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return 0
	})
	return out
}

// fallback returns up to n available bestseller handles not in exclude. It
// asks for n+len(exclude) so excluded handles cannot starve the result. A
// handle the snapshot marks unavailable is skipped too.
func (e *Engine) fallback(ctx context.Context, snap *Snapshot, n int, exclude []string) []string {
	if n <= 0 || e.bestsellers == nil {
		return nil
	}

	items, err := e.bestsellers.FetchBestsellers(ctx, n+len(exclude))
	if err != nil {
		e.log.Warn("bestseller fallback failed", zap.Error(err), zap.Int("wanted", n))
		return nil
	}

	seen := make(map[string]struct{}, len(exclude)+n)
	for _, h := range exclude {
		seen[h] = struct{}{}
	}

	out := make([]string, 0, n)
	for _, it := range items {
		if len(out) == n {
			break
		}
		if !it.Available || it.Handle == "" {
			continue
		}
		if known, ok := snap.Find(it.Handle); ok && !known.Available {
			continue
		}
		if _, dup := seen[it.Handle]; dup {
			continue
		}
		seen[it.Handle] = struct{}{}
		out = append(out, it.Handle)
	}
	return out
}
