package main

import (
	"context"
	"database/sql"
	"strconv"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"Storefront/internal/catalog"
	"Storefront/internal/config"
	"Storefront/pkg/kit"
)

func main() {
	service := "catalog"

	defaults := config.Defaults()
	defaults.HTTP.Port = 8082

	cfg, err := config.LoadWithDefaults(defaults)
	if err != nil {
		kit.NewLogger(service, "info").Fatal("load config failed", zap.Error(err))
	}

	log := kit.NewLogger(service, cfg.Log.Level)
	defer func() { _ = log.Sync() }()

	var store catalog.Store = catalog.NewStore()
	if dsn := cfg.Catalog.DatabaseURL; dsn != "" {
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			log.Fatal("open database failed", zap.Error(err))
		}
		defer func() { _ = db.Close() }()

		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)

		store = catalog.NewPostgresStore(db)
		log.Info("catalog backed by postgres")
	} else {
		log.Info("catalog backed by seeded memory store")
	}

	s := &catalog.Server{Store: store, Log: log}

	reg := prometheus.NewRegistry()
	h := catalog.NewHandler(s, catalog.HTTPDeps{
		Log:            log,
		Service:        service,
		Registry:       reg,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsToken:   cfg.Metrics.Token,
	})

	if err := kit.RunHTTPServer(context.Background(), ":"+strconv.Itoa(cfg.HTTP.Port), h, log); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}
