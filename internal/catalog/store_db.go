package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pingTimeout  = 1 * time.Second
	queryTimeout = 3 * time.Second

	pgUndefinedTable = "42P01"
)

var ErrNoSchema = errors.New("catalog schema missing")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return s.db.PingContext(ctx)
	})
}

const selectProduct = `
	SELECT handle, title, tags, price_cents, available, image, url, sales_rank, position
	FROM products
`

func (s *PostgresStore) List(ctx context.Context, q ListQuery) ([]Product, error) {
	order := "position ASC, handle ASC"
	if q.Sort == SortBestSelling {
		order = "sales_rank ASC, handle ASC"
	}

	var out []Product
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, selectProduct+"ORDER BY "+order+"\nLIMIT $1", q.limit())
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make([]Product, 0, 64)
		for rows.Next() {
			p, err := scanProduct(rows)
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, wrapPgErr(err)
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, handle string) (Product, bool, error) {
	var (
		p   Product
		err error
	)

	err = withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		var scanErr error
		p, scanErr = scanProduct(s.db.QueryRowContext(ctx, selectProduct+"WHERE handle = $1", handle))
		return scanErr
	})

	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, false, nil
	}
	if err != nil {
		return Product{}, false, wrapPgErr(err)
	}
	return p, true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(sc scanner) (Product, error) {
	var (
		p     Product
		tags  string
		image sql.NullString
	)
	if err := sc.Scan(&p.Handle, &p.Title, &tags, &p.PriceCents, &p.Available, &image, &p.URL, &p.SalesRank, &p.Position); err != nil {
		return Product{}, err
	}
	p.Tags = SplitTags(tags)
	p.Image = image.String
	return p, nil
}

// SplitTags splits the comma-separated tag column the way the storefront
// admin stores it.
func SplitTags(s string) []string {
	out := make([]string, 0, 4)
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func wrapPgErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable {
		return fmt.Errorf("%w: %s", ErrNoSchema, pgErr.Message)
	}
	return err
}

func withTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()
	return fn(ctx)
}
