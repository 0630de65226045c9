package listing

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/escrow/internal/cache"
	"github.com/smallbiznis/escrow/internal/clock"
	"github.com/smallbiznis/escrow/internal/config"
	listingdomain "github.com/smallbiznis/escrow/internal/listing/domain"
	"github.com/smallbiznis/escrow/internal/listing/repository"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const maxCachedListings = 4096

var Module = fx.Module("listing",
	fx.Provide(func(db *gorm.DB, cfg config.Config, clk clock.Clock) listingdomain.Lookup {
		return repository.NewCached(
			repository.New(db),
			cache.NewTTLCache[snowflake.ID, listingdomain.Listing](maxCachedListings, clk),
			cfg.ListingCacheTTL,
		)
	}),
)
