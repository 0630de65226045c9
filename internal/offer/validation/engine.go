package validation

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	listingdomain "github.com/smallbiznis/escrow/internal/listing/domain"
	offerdomain "github.com/smallbiznis/escrow/internal/offer/domain"
)

// Result is the outcome of checking an offer against its listing. Exactly one
// of Listing and Rejection is set.
type Result struct {
	Listing   *listingdomain.Listing
	Rejection *offerdomain.Error
}

func (r Result) Valid() bool { return r.Rejection == nil && r.Listing != nil }

// Err returns the rejection as an error, or nil when valid.
func (r Result) Err() error {
	if r.Rejection == nil {
		return nil
	}
	return r.Rejection
}

// Premium is the amount paid above the listing minimum.
func (r Result) Premium(amount decimal.Decimal) decimal.Decimal {
	if r.Listing == nil {
		return decimal.Zero
	}
	return amount.Sub(r.Listing.MinimumPrice)
}

// Engine checks proposed offers against listing requirements. It only reads
// listings.
type Engine struct {
	listings listingdomain.Lookup
}

func NewEngine(listings listingdomain.Lookup) *Engine {
	return &Engine{listings: listings}
}

// ValidateAgainstListing applies the category, minimum price and listing
// existence rules. Currency is not an input: the listing's currency is
// returned on the result and callers must use it.
func (e *Engine) ValidateAgainstListing(
	ctx context.Context,
	listingID snowflake.ID,
	amount decimal.Decimal,
	category string,
) (Result, error) {
	listing, err := e.listings.GetListing(ctx, listingID)
	if errors.Is(err, listingdomain.ErrNotFound) {
		return Result{Rejection: offerdomain.NewError(
			offerdomain.KindListingNotFound,
			offerdomain.ErrListingNotFound.Message,
			map[string]any{"listing_id": listingID.String()},
			nil,
		)}, nil
	}
	if err != nil {
		return Result{}, err
	}

	details := listingDetails(listing)
	category = strings.TrimSpace(category)
	if category != "" && !strings.EqualFold(category, listing.Category) {
		return Result{Rejection: offerdomain.NewError(
			offerdomain.KindCategoryMismatch,
			offerdomain.ErrCategoryMismatch.Message,
			details,
			nil,
		)}, nil
	}
	if amount.LessThan(listing.MinimumPrice) {
		return Result{Rejection: offerdomain.NewError(
			offerdomain.KindAmountTooLow,
			offerdomain.ErrAmountTooLow.Message,
			details,
			nil,
		)}, nil
	}
	return Result{Listing: listing}, nil
}

func listingDetails(listing *listingdomain.Listing) map[string]any {
	return map[string]any{
		"listing_id":    listing.ID.String(),
		"category":      listing.Category,
		"minimum_price": listing.MinimumPrice.String(),
		"currency":      listing.Currency,
	}
}
