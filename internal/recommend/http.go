package recommend

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"Storefront/internal/auth"
	"Storefront/pkg/kit"
)

const (
	readyTimeout = 2 * time.Second

	SnapshotHeader = "X-Catalog-Snapshot"
)

type Server struct {
	Engine *Engine
	Cache  *Cache
	Log    *zap.Logger

	// Limiter throttles /recommendations per client IP; nil disables it.
	Limiter *kit.IPRateLimiter
	// Tokens verifies admin bearer tokens; nil locks /admin.
	Tokens *auth.TokenMaker
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", kit.Healthz)
	r.Get("/readyz", s.readyz)

	r.Group(func(pr chi.Router) {
		if s.Limiter != nil {
			pr.Use(s.Limiter.Middleware)
		}
		pr.Get("/recommendations/{handle}", s.recommend)
		pr.Get("/catalog/{handle}", s.findByHandle)
	})

	r.Route("/admin", func(ar chi.Router) {
		ar.Use(auth.RequireRole(s.Tokens, auth.RoleAdmin))
		ar.Get("/cache", s.cacheStatus)
		ar.Post("/cache/refresh", s.refresh)
	})

	return r
}

func (s *Server) log() *zap.Logger { return kit.OrNop(s.Log) }

// readyz reports ready once a catalog snapshot can be produced.
func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if s.Cache.Snapshot(ctx) == nil {
		s.log().Warn("readyz failed: catalog not loaded")
		kit.WriteError(w, r, http.StatusServiceUnavailable, "catalog not loaded", nil)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type recommendResp struct {
	Handle string `json:"handle"`
	Mode   Mode   `json:"mode"`
	Result
}

func (s *Server) recommend(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")

	mode, err := ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad mode",
			map[string]any{"allowed": []Mode{ModeSimilar, ModeInterest, ModeOccasion}})
		return
	}

	res, err := s.Engine.GetRecommendations(r.Context(), handle, mode)
	if errors.Is(err, ErrInvalidMode) {
		kit.WriteError(w, r, http.StatusBadRequest, "bad mode", nil)
		return
	}
	if err != nil {
		s.log().Error("recommend failed", zap.Error(err), zap.String("handle", handle))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}

	if res.Snapshot != "" {
		w.Header().Set(SnapshotHeader, res.Snapshot)
	}
	kit.WriteJSON(w, http.StatusOK, recommendResp{Handle: handle, Mode: mode, Result: res})
}

func (s *Server) findByHandle(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")

	snap := s.Cache.Snapshot(r.Context())
	it, ok := snap.Find(handle)
	if !ok {
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"handle": handle})
		return
	}

	w.Header().Set(SnapshotHeader, snap.ID)
	kit.WriteJSON(w, http.StatusOK, itemResp{Item: it, ParsedTags: it.ParsedTags})
}

type itemResp struct {
	Item
	ParsedTags Tags `json:"parsed_tags"`
}

type cacheStatusResp struct {
	State      string     `json:"state"`
	Snapshot   string     `json:"snapshot,omitempty"`
	CapturedAt *time.Time `json:"captured_at,omitempty"`
	Items      int        `json:"items"`
}

func (s *Server) cacheStatus(w http.ResponseWriter, r *http.Request) {
	out := cacheStatusResp{State: s.Cache.State().String()}
	if snap := s.Cache.Current(); snap != nil {
		at := snap.CapturedAt
		out.Snapshot = snap.ID
		out.CapturedAt = &at
		out.Items = snap.Len()
	}
	kit.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	if err := s.Cache.Invalidate(r.Context()); err != nil {
		s.log().Warn("drop persisted catalog failed", zap.Error(err))
	}

	snap := s.Cache.Snapshot(r.Context())
	if snap == nil {
		kit.WriteError(w, r, http.StatusBadGateway, "catalog fetch failed", nil)
		return
	}

	if c, ok := auth.ClaimsFromContext(r.Context()); ok {
		s.log().Info("catalog cache refreshed", zap.String("by", c.Subject), zap.String("snapshot", snap.ID))
	}
	kit.WriteJSON(w, http.StatusOK, cacheStatusResp{
		State:      s.Cache.State().String(),
		Snapshot:   snap.ID,
		CapturedAt: &snap.CapturedAt,
		Items:      snap.Len(),
	})
}
