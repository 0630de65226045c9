package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	offerdomain "github.com/smallbiznis/escrow/internal/offer/domain"
)

type createOfferRequest struct {
	ReceiverID string          `json:"receiver_id"`
	ListingID  string          `json:"listing_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Category   string          `json:"category"`
	Message    string          `json:"message"`
}

type submitProofRequest struct {
	ProofReference string `json:"proof_reference"`
}

type disputeOfferRequest struct {
	Reason string `json:"reason"`
}

// @Summary      Create Offer
// @Description  Pre-authorize funds and create a gift offer
// @Tags         offers
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body createOfferRequest true "Create Offer Request"
// @Success      201  {object}  offerdomain.Offer
// @Router       /offers [post]
func (s *Server) CreateOffer(c *gin.Context) {
	giverID, ok := s.userID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	if !s.limiter.Allow("create_offer:" + giverID.String()) {
		AbortWithError(c, ErrRateLimited)
		return
	}

	var req createOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	receiverID, err := snowflake.ParseString(strings.TrimSpace(req.ReceiverID))
	if err != nil {
		AbortWithError(c, newValidationError("receiver_id", "invalid_receiver_id", "invalid receiver_id"))
		return
	}

	var listingID *snowflake.ID
	if raw := strings.TrimSpace(req.ListingID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, newValidationError("listing_id", "invalid_listing_id", "invalid listing_id"))
			return
		}
		listingID = &id
	}

	offer, err := s.offerSvc.CreateOffer(c.Request.Context(), offerdomain.CreateOfferRequest{
		GiverID:      giverID,
		ReceiverID:   receiverID,
		ListingID:    listingID,
		Amount:       req.Amount,
		Currency:     strings.TrimSpace(req.Currency),
		Category:     strings.TrimSpace(req.Category),
		Message:      strings.TrimSpace(req.Message),
		IsPrivileged: s.isSubscriber(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": offer})
}

// @Summary      Get Offer
// @Tags         offers
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Offer ID"
// @Success      200  {object}  offerdomain.Offer
// @Router       /offers/{id} [get]
func (s *Server) GetOffer(c *gin.Context) {
	s.withOffer(c, s.offerSvc.GetOffer)
}

// @Summary      Accept Offer
// @Tags         offers
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Offer ID"
// @Success      200  {object}  offerdomain.Offer
// @Router       /offers/{id}/accept [post]
func (s *Server) AcceptOffer(c *gin.Context) {
	s.withOffer(c, s.offerSvc.AcceptOffer)
}

// @Summary      Submit Proof
// @Description  Record proof of fulfilment and request capture
// @Tags         offers
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path  string              true  "Offer ID"
// @Param        request  body  submitProofRequest  true  "Proof"
// @Success      200  {object}  offerdomain.Offer
// @Router       /offers/{id}/proof [post]
func (s *Server) SubmitProof(c *gin.Context) {
	actorID, offerID, ok := s.offerParams(c)
	if !ok {
		return
	}
	var req submitProofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	offer, err := s.offerSvc.SubmitProof(c.Request.Context(), offerdomain.SubmitProofRequest{
		OfferID:        offerID,
		ActorID:        actorID,
		ProofReference: strings.TrimSpace(req.ProofReference),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": offer})
}

// @Summary      Decline Offer
// @Tags         offers
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Offer ID"
// @Success      200  {object}  offerdomain.Offer
// @Router       /offers/{id}/decline [post]
func (s *Server) DeclineOffer(c *gin.Context) {
	s.withOffer(c, s.offerSvc.DeclineOffer)
}

// @Summary      Cancel Offer
// @Tags         offers
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Offer ID"
// @Success      200  {object}  offerdomain.Offer
// @Router       /offers/{id}/cancel [post]
func (s *Server) CancelOffer(c *gin.Context) {
	s.withOffer(c, s.offerSvc.CancelOffer)
}

// @Summary      Dispute Offer
// @Tags         offers
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path  string               true  "Offer ID"
// @Param        request  body  disputeOfferRequest  true  "Dispute"
// @Success      200  {object}  offerdomain.Offer
// @Router       /offers/{id}/dispute [post]
func (s *Server) DisputeOffer(c *gin.Context) {
	actorID, offerID, ok := s.offerParams(c)
	if !ok {
		return
	}
	var req disputeOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	offer, err := s.offerSvc.DisputeOffer(c.Request.Context(), offerdomain.DisputeRequest{
		OfferID: offerID,
		ActorID: actorID,
		Reason:  strings.TrimSpace(req.Reason),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": offer})
}

// @Summary      Retry Capture
// @Description  Re-issue the capture request after a failed attempt
// @Tags         offers
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Offer ID"
// @Success      202  {object}  offerdomain.Offer
// @Router       /offers/{id}/capture/retry [post]
func (s *Server) RetryCapture(c *gin.Context) {
	actorID, offerID, ok := s.offerParams(c)
	if !ok {
		return
	}
	offer, err := s.offerSvc.RetryCapture(c.Request.Context(), offerID, actorID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"data": offer})
}

// @Summary      List Pending Offers
// @Description  Offers awaiting the caller's action as receiver
// @Tags         offers
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  []offerdomain.Offer
// @Router       /me/offers/pending [get]
func (s *Server) ListPendingOffers(c *gin.Context) {
	receiverID, ok := s.userID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	offers, err := s.offerSvc.ListPendingOffersForReceiver(c.Request.Context(), receiverID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if offers == nil {
		offers = []*offerdomain.Offer{}
	}
	c.JSON(http.StatusOK, gin.H{"data": offers})
}

type offerAction func(ctx context.Context, offerID, actorID snowflake.ID) (*offerdomain.Offer, error)

func (s *Server) withOffer(c *gin.Context, action offerAction) {
	actorID, offerID, ok := s.offerParams(c)
	if !ok {
		return
	}
	offer, err := action(c.Request.Context(), offerID, actorID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": offer})
}

func (s *Server) offerParams(c *gin.Context) (snowflake.ID, snowflake.ID, bool) {
	actorID, ok := s.userID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return 0, 0, false
	}
	offerID, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, offerdomain.ErrNotFound)
		return 0, 0, false
	}
	return actorID, offerID, true
}
