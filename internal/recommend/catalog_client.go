package recommend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"Storefront/pkg/kit"
)

const maxListingBody = 8 << 20

// BreakerSettings tunes the circuit breaker in front of the catalog service.
type BreakerSettings struct {
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32
	FailureRatio float64
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		MinRequests:  5,
		FailureRatio: 0.6,
	}
}

type CatalogClientOptions struct {
	Timeout time.Duration
	Breaker BreakerSettings
	Log     *zap.Logger
	Metrics *Metrics
}

// CatalogClient reads the catalog listing service. It serves as both the
// CatalogSource and the BestsellerSource of the recommender.
type CatalogClient struct {
	BaseURL string
	Client  *http.Client

	cb *gobreaker.CircuitBreaker[[]Item]
}

func NewCatalogClient(baseURL string, opts CatalogClientOptions) *CatalogClient {
	if u, err := url.Parse(baseURL); err == nil && u.Scheme != "" && u.Host != "" {
		baseURL = strings.TrimRight(baseURL, "/")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	log := kit.OrNop(opts.Log)
	bs := opts.Breaker

	const name = "catalog-listing"
	opts.Metrics.breaker(name, gobreaker.StateClosed)

	cb := gobreaker.NewCircuitBreaker[[]Item](gobreaker.Settings{
		Name:        name,
		MaxRequests: bs.MaxRequests,
		Interval:    bs.Interval,
		Timeout:     bs.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if c.Requests < bs.MinRequests {
				return false
			}
			return float64(c.TotalFailures)/float64(c.Requests) >= bs.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("catalog breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			opts.Metrics.breaker(name, to)
		},
		// A caller giving up is not the upstream's fault.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &CatalogClient{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: opts.Timeout},
		cb:      cb,
	}
}

func (c *CatalogClient) FetchCatalog(ctx context.Context, limit int) ([]Item, error) {
	return c.list(ctx, "manual", limit)
}

func (c *CatalogClient) FetchBestsellers(ctx context.Context, limit int) ([]Item, error) {
	return c.list(ctx, "best-selling", limit)
}

func (c *CatalogClient) list(ctx context.Context, sort string, limit int) ([]Item, error) {
	items, err := c.cb.Execute(func() ([]Item, error) {
		return c.doList(ctx, sort, limit)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return items, err
}

type listingProduct struct {
	Handle     string   `json:"handle"`
	Title      string   `json:"title"`
	Tags       []string `json:"tags"`
	PriceCents int64    `json:"price_cents"`
	Available  bool     `json:"available"`
	Image      string   `json:"image"`
	URL        string   `json:"url"`
}

func (c *CatalogClient) doList(ctx context.Context, sort string, limit int) ([]Item, error) {
	q := url.Values{}
	q.Set("sort", sort)
	q.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/products?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status=%d", ErrSourceBadStatus, resp.StatusCode)
	}

	var raw []listingProduct
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxListingBody)).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}

	out := make([]Item, 0, len(raw))
	for _, p := range raw {
		if p.Handle == "" {
			continue
		}
		out = append(out, Item{
			Handle:     p.Handle,
			Title:      p.Title,
			Tags:       p.Tags,
			PriceCents: p.PriceCents,
			Available:  p.Available,
			Image:      p.Image,
			URL:        p.URL,
		})
	}
	return out, nil
}
