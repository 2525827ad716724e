package catalog

import (
	"context"
	"errors"
	"strings"
)

// MaxLimit bounds a single listing page.
const MaxLimit = 250

type Product struct {
	Handle     string   `json:"handle"`
	Title      string   `json:"title"`
	Tags       []string `json:"tags"`
	PriceCents int64    `json:"price_cents"`
	Available  bool     `json:"available"`
	Image      string   `json:"image,omitempty"`
	URL        string   `json:"url"`
	// SalesRank orders the best-selling listing; 1 sells most.
	SalesRank int `json:"sales_rank"`
	Position  int `json:"position"`
}

type Sort string

const (
	SortManual      Sort = "manual"
	SortBestSelling Sort = "best-selling"
)

var ErrBadSort = errors.New("unknown sort")

func ParseSort(s string) (Sort, error) {
	switch Sort(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortManual:
		return SortManual, nil
	case SortBestSelling:
		return SortBestSelling, nil
	default:
		return "", ErrBadSort
	}
}

type ListQuery struct {
	Sort  Sort
	Limit int
}

func (q ListQuery) limit() int {
	if q.Limit <= 0 || q.Limit > MaxLimit {
		return MaxLimit
	}
	return q.Limit
}

type Store interface {
	Ping(ctx context.Context) error
	List(ctx context.Context, q ListQuery) ([]Product, error)
	Get(ctx context.Context, handle string) (Product, bool, error)
}
