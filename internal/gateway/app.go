package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"Storefront/internal/auth"
	"Storefront/pkg/kit"
)

type HTTPDeps struct {
	Log      *zap.Logger
	Service  string
	Registry *prometheus.Registry

	MetricsEnabled bool
	MetricsToken   string
}

type Deps struct {
	CatalogURL   string
	RecommendURL string
	JWTSecret    string
}

const (
	readyTimeout      = 2 * time.Second
	readyProbeTimeout = 700 * time.Millisecond
)

var readyClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     30 * time.Second,
	},
}

func NewHandler(deps Deps, httpDeps HTTPDeps) (http.Handler, error) {
	catalogProxy, err := NewReverseProxy(deps.CatalogURL, httpDeps.Log)
	if err != nil {
		return nil, fmt.Errorf("catalog proxy: %w", err)
	}
	recommendProxy, err := NewReverseProxy(deps.RecommendURL, httpDeps.Log)
	if err != nil {
		return nil, fmt.Errorf("recommend proxy: %w", err)
	}

	var tokens *auth.TokenMaker
	if deps.JWTSecret != "" {
		tokens = auth.NewTokenMaker(deps.JWTSecret)
	}

	r := chi.NewRouter()
	kit.Standard(r, httpDeps.Log)
	kit.SetupMetrics(r, kit.MetricsDeps{
		Service:  httpDeps.Service,
		Registry: httpDeps.Registry,
		Enabled:  httpDeps.MetricsEnabled,
		Token:    httpDeps.MetricsToken,
	})

	r.Get("/healthz", kit.Healthz)
	r.Get("/readyz", readyz(deps, httpDeps.Log))

	r.Handle("/products", catalogProxy)
	r.Handle("/products/*", catalogProxy)

	r.Handle("/recommendations/*", recommendProxy)
	r.Handle("/catalog/*", recommendProxy)

	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireRole(tokens, auth.RoleAdmin))
		pr.Handle("/admin/*", recommendProxy)
	})

	return r, nil
}

func readyz(deps Deps, log *zap.Logger) http.HandlerFunc {
	log = kit.OrNop(log)
	upstreams := []struct{ name, url string }{
		{"catalog", deps.CatalogURL},
		{"recommend", deps.RecommendURL},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		for _, u := range upstreams {
			if err := checkReady(ctx, u.url+"/readyz"); err != nil {
				log.Warn("readyz failed", zap.String("upstream", u.name), zap.Error(err))
				kit.WriteError(w, r, http.StatusServiceUnavailable, u.name+" not ready", nil)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}
}

func checkReady(ctx context.Context, url string) error {
	cctx, cancel := context.WithTimeout(ctx, readyProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := readyClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status=%d", resp.StatusCode)
	}
	return nil
}
