package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/escrow/internal/cache"
	listingdomain "github.com/smallbiznis/escrow/internal/listing/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

// New returns a Lookup backed by the listings table.
func New(db *gorm.DB) listingdomain.Lookup {
	return &repo{db: db}
}

func (r *repo) GetListing(ctx context.Context, id snowflake.ID) (*listingdomain.Listing, error) {
	if id == 0 {
		return nil, listingdomain.ErrNotFound
	}
	var listing listingdomain.Listing
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&listing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, listingdomain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

type cachedLookup struct {
	next  listingdomain.Lookup
	cache cache.Cache[snowflake.ID, listingdomain.Listing]
	ttl   time.Duration
}

// NewCached memoizes successful lookups for ttl. Misses are not cached.
func NewCached(next listingdomain.Lookup, c cache.Cache[snowflake.ID, listingdomain.Listing], ttl time.Duration) listingdomain.Lookup {
	if c == nil || ttl <= 0 {
		return next
	}
	return &cachedLookup{next: next, cache: c, ttl: ttl}
}

func (c *cachedLookup) GetListing(ctx context.Context, id snowflake.ID) (*listingdomain.Listing, error) {
	if listing, ok := c.cache.Get(id); ok {
		return &listing, nil
	}
	listing, err := c.next.GetListing(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.Set(id, *listing, c.ttl)
	return listing, nil
}
