package recommend

import (
	"context"
	"errors"
)

var (
	ErrSourceUnavailable = errors.New("catalog source unavailable")
	ErrSourceBadStatus   = errors.New("catalog source bad status")
)

// CatalogSource lists up to limit products in the catalog's stable order.
type CatalogSource interface {
	FetchCatalog(ctx context.Context, limit int) ([]Item, error)
}

// BestsellerSource lists up to limit products ordered by sales.
type BestsellerSource interface {
	FetchBestsellers(ctx context.Context, limit int) ([]Item, error)
}
