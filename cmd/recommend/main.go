package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"Storefront/internal/auth"
	"Storefront/internal/config"
	"Storefront/internal/recommend"
	"Storefront/pkg/kit"
)

const (
	service     = "recommend"
	warmTimeout = 10 * time.Second
)

func main() {
	defaults := config.Defaults()
	defaults.HTTP.Port = 8084

	cfg, err := config.LoadWithDefaults(defaults)
	if err != nil {
		kit.NewLogger(service, "info").Fatal("load config failed", zap.Error(err))
	}

	log := kit.NewLogger(service, cfg.Log.Level)

	if err := run(cfg, log); err != nil {
		log.Fatal("recommend service stopped", zap.Error(err))
	}
	_ = log.Sync()
}

// run serves until shutdown and never exits the process itself.
func run(cfg *config.Config, log *zap.Logger) error {
	reg := prometheus.NewRegistry()
	metrics := recommend.NewMetrics(reg)

	var store recommend.PersistentStore = recommend.NewMemoryStore()
	if dir := cfg.Cache.PersistPath; dir != "" {
		bs, err := recommend.OpenBadgerStore(dir, log)
		if err != nil {
			return fmt.Errorf("open snapshot store: %w", err)
		}
		defer func() {
			if err := bs.Close(); err != nil {
				log.Warn("close snapshot store failed", zap.Error(err))
			}
		}()
		store = bs
	}

	src := recommend.NewCatalogClient(cfg.Catalog.URL, recommend.CatalogClientOptions{
		Timeout: cfg.Catalog.Timeout,
		Breaker: recommend.BreakerSettings{
			MaxRequests:  cfg.Breaker.MaxRequests,
			Interval:     cfg.Breaker.Interval,
			Timeout:      cfg.Breaker.Timeout,
			MinRequests:  cfg.Breaker.MinRequests,
			FailureRatio: cfg.Breaker.FailureRatio,
		},
		Log:     log,
		Metrics: metrics,
	})

	cache := recommend.NewCache(src, recommend.CacheOptions{
		TTL:      cfg.Cache.TTL,
		MaxItems: cfg.Cache.MaxItems,
		Key:      cfg.Cache.Key,
		Store:    store,
		Log:      log,
		Metrics:  metrics,
	})

	engine := recommend.NewEngine(cache, src, recommend.EngineOptions{
		Limit:        cfg.Recommend.Limit,
		DiversityCap: cfg.Recommend.DiversityCap,
		Log:          log,
		Metrics:      metrics,
	})

	s := &recommend.Server{
		Engine:  engine,
		Cache:   cache,
		Log:     log,
		Limiter: kit.NewIPRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
	}
	if cfg.Auth.JWTSecret != "" {
		s.Tokens = auth.NewTokenMaker(cfg.Auth.JWTSecret)
	} else {
		log.Warn("AUTH_JWT_SECRET unset; /admin is locked")
	}

	// Warm the cache so the first shopper does not pay for the fetch. A
	// failure here is not fatal: the next request retries.
	wctx, cancel := context.WithTimeout(context.Background(), warmTimeout)
	if snap := cache.Snapshot(wctx); snap != nil {
		log.Info("catalog warmed", zap.String("snapshot", snap.ID), zap.Int("items", snap.Len()))
	} else {
		log.Warn("catalog warm-up failed; serving bestsellers until it loads")
	}
	cancel()

	h := recommend.NewHandler(s, recommend.HTTPDeps{
		Log:            log,
		Service:        service,
		Registry:       reg,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsToken:   cfg.Metrics.Token,
	})

	if err := kit.RunHTTPServer(context.Background(), ":"+strconv.Itoa(cfg.HTTP.Port), h, log); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
