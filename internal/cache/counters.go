package cache

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

// Totals are the site-wide counts reported on the dashboard.
type Totals struct {
	Listings int64 `json:"total_overall_books"`
	Loans    int64 `json:"total_overall_loans"`
}

// Counters keeps the overall listing and loan counts in Redis, or in process
// memory when no Redis client is configured.
type Counters struct {
	rdb      *redis.Client
	listings atomic.Int64
	loans    atomic.Int64
}

// NewCounters returns Counters backed by rdb; rdb may be nil.
func NewCounters(rdb *redis.Client) *Counters {
	return &Counters{rdb: rdb}
}

// IncrementListings adds one to the overall listing count.
func (c *Counters) IncrementListings(ctx context.Context) error {
	return c.incr(ctx, ListingsCountKey, &c.listings)
}

// IncrementLoans adds one to the overall loan count.
func (c *Counters) IncrementLoans(ctx context.Context) error {
	return c.incr(ctx, LoansCountKey, &c.loans)
}

func (c *Counters) incr(ctx context.Context, key string, local *atomic.Int64) error {
	if c.rdb == nil {
		local.Add(1)
		return nil
	}
	return c.rdb.Incr(ctx, key).Err()
}

// Totals reads both counts. Missing keys count as zero.
func (c *Counters) Totals(ctx context.Context) (Totals, error) {
	if c.rdb == nil {
		return Totals{Listings: c.listings.Load(), Loans: c.loans.Load()}, nil
	}

	vals, err := c.rdb.MGet(ctx, ListingsCountKey, LoansCountKey).Result()
	if err != nil {
		return Totals{}, err
	}
	listings, err := parseCount(vals[0])
	if err != nil {
		return Totals{}, err
	}
	loans, err := parseCount(vals[1])
	if err != nil {
		return Totals{}, err
	}
	return Totals{Listings: listings, Loans: loans}, nil
}

func parseCount(v interface{}) (int64, error) {
	switch s := v.(type) {
	case nil:
		return 0, nil
	case string:
		return strconv.ParseInt(s, 10, 64)
	default:
		return 0, errors.New("unexpected counter value type")
	}
}
