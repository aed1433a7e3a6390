package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	GenresFamily     = "genres"
	ActiveGenresKey  = "genres:active"
	AllGenresKey     = "genres:all"
	GenresTTL        = 30 * time.Minute
	ListingsCountKey = "metrics:total_overall_books"
	LoansCountKey    = "metrics:total_overall_loans"
)

// GenresKey returns the cache key for the genre list variant.
func GenresKey(includeInactive bool) string {
	if includeInactive {
		return AllGenresKey
	}
	return ActiveGenresKey
}

// InvalidateGenres drops both cached genre lists.
func InvalidateGenres(ctx context.Context, rdb *redis.Client) {
	Invalidate(ctx, rdb, ActiveGenresKey, AllGenresKey)
}
