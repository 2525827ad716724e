package catalog

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"Storefront/pkg/kit"
)

type Server struct {
	Store Store
	Log   *zap.Logger
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", kit.Healthz)

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()

		if err := s.Store.Ping(ctx); err != nil {
			s.log().Warn("readyz failed", zap.Error(err))
			kit.WriteError(w, r, http.StatusServiceUnavailable, "not ready", nil)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	r.Get("/products", s.list)
	r.Get("/products/{handle}", s.get)

	return r
}

func (s *Server) log() *zap.Logger { return kit.OrNop(s.Log) }

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r)
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}

	products, err := s.Store.List(r.Context(), q)
	if err != nil {
		s.log().Error("list products failed", zap.Error(err), zap.String("sort", string(q.Sort)))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}
	kit.WriteJSON(w, http.StatusOK, products)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")

	p, ok, err := s.Store.Get(r.Context(), handle)
	if err != nil {
		s.log().Error("get product failed", zap.Error(err), zap.String("handle", handle))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}
	if !ok {
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"handle": handle})
		return
	}
	kit.WriteJSON(w, http.StatusOK, p)
}

type badQuery string

func (e badQuery) Error() string { return string(e) }

func parseListQuery(r *http.Request) (ListQuery, error) {
	sort, err := ParseSort(r.URL.Query().Get("sort"))
	if err != nil {
		return ListQuery{}, badQuery("bad sort")
	}

	q := ListQuery{Sort: sort, Limit: MaxLimit}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return ListQuery{}, badQuery("bad limit")
		}
		q.Limit = min(n, MaxLimit)
	}
	return q, nil
}
