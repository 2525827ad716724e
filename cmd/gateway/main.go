package main

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"Storefront/internal/config"
	"Storefront/internal/gateway"
	"Storefront/pkg/kit"
)

func main() {
	service := "gateway"

	cfg, err := config.Load()
	if err != nil {
		kit.NewLogger(service, "info").Fatal("load config failed", zap.Error(err))
	}

	log := kit.NewLogger(service, cfg.Log.Level)
	defer func() { _ = log.Sync() }()

	if cfg.Auth.JWTSecret == "" {
		log.Warn("AUTH_JWT_SECRET unset; /admin is locked")
	}

	deps := gateway.Deps{
		JWTSecret:    cfg.Auth.JWTSecret,
		CatalogURL:   cfg.Gateway.CatalogURL,
		RecommendURL: cfg.Gateway.RecommendURL,
	}

	reg := prometheus.NewRegistry()
	h, err := gateway.NewHandler(deps, gateway.HTTPDeps{
		Log:            log,
		Service:        service,
		Registry:       reg,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsToken:   cfg.Metrics.Token,
	})
	if err != nil {
		log.Fatal("init gateway handler failed", zap.Error(err))
	}

	if err := kit.RunHTTPServer(context.Background(), ":"+strconv.Itoa(cfg.HTTP.Port), h, log); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}
