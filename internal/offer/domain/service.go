package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	gatewaydomain "github.com/smallbiznis/escrow/internal/gateway/domain"
)

type CreateOfferRequest struct {
	GiverID      snowflake.ID
	ReceiverID   snowflake.ID
	ListingID    *snowflake.ID
	Amount       decimal.Decimal
	Currency     string
	Category     string
	Message      string
	IsPrivileged bool
}

type SubmitProofRequest struct {
	OfferID        snowflake.ID
	ActorID        snowflake.ID
	ProofReference string
}

type DisputeRequest struct {
	OfferID snowflake.ID
	ActorID snowflake.ID
	Reason  string
}

// Service is the offer state machine exposed to the API layer.
type Service interface {
	CreateOffer(ctx context.Context, req CreateOfferRequest) (*Offer, error)
	GetOffer(ctx context.Context, offerID, actorID snowflake.ID) (*Offer, error)
	ListPendingOffersForReceiver(ctx context.Context, receiverID snowflake.ID) ([]*Offer, error)
	AcceptOffer(ctx context.Context, offerID, actorID snowflake.ID) (*Offer, error)
	SubmitProof(ctx context.Context, req SubmitProofRequest) (*Offer, error)
	DeclineOffer(ctx context.Context, offerID, actorID snowflake.ID) (*Offer, error)
	CancelOffer(ctx context.Context, offerID, actorID snowflake.ID) (*Offer, error)
	DisputeOffer(ctx context.Context, req DisputeRequest) (*Offer, error)
	RetryCapture(ctx context.Context, offerID, actorID snowflake.ID) (*Offer, error)
}

// Transitioner applies a single conditional transition together with its
// outbox event and audit entry. The reconciler uses the same path as the
// API operations.
type Transitioner interface {
	ApplyTransition(ctx context.Context, offer *Offer, t Transition, actor Actor) (bool, error)
}

// Actor identifies who caused a transition.
type Actor struct {
	Type string
	ID   string
}

// ReconcileOutcome classifies how a gateway event was handled.
type ReconcileOutcome string

const (
	OutcomeApplied   ReconcileOutcome = "applied"
	OutcomeDuplicate ReconcileOutcome = "duplicate"
	OutcomeStale     ReconcileOutcome = "stale"
	OutcomeNotFound  ReconcileOutcome = "not_found"
	OutcomeAnomaly   ReconcileOutcome = "anomaly"
	OutcomeIgnored   ReconcileOutcome = "ignored"
)

type ReconcileResult struct {
	Outcome ReconcileOutcome
	OfferID snowflake.ID
	From    Status
	To      Status
}

// Reconciler applies verified gateway events to offers.
type Reconciler interface {
	Reconcile(ctx context.Context, event *gatewaydomain.Event) (ReconcileResult, error)
}
