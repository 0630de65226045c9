package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/escrow/internal/audit/domain"
)

type historyEntry struct {
	Action    string         `json:"action"`
	ActorType string         `json:"actor_type"`
	ActorID   *string        `json:"actor_id,omitempty"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
}

// @Summary      Offer History
// @Description  Audit trail of an offer, oldest first
// @Tags         offers
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Offer ID"
// @Success      200  {array}   historyEntry
// @Router       /offers/{id}/history [get]
func (s *Server) OfferHistory(c *gin.Context) {
	actorID, offerID, ok := s.offerParams(c)
	if !ok {
		return
	}
	// Party check.
	if _, err := s.offerSvc.GetOffer(c.Request.Context(), offerID, actorID); err != nil {
		AbortWithError(c, err)
		return
	}

	rows, err := s.auditSvc.List(c.Request.Context(), auditdomain.ListFilter{
		TargetType: "offer",
		TargetID:   offerID.String(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	entries := make([]historyEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, historyEntry{
			Action:    row.Action,
			ActorType: row.ActorType,
			ActorID:   row.ActorID,
			Metadata:  row.Metadata,
			CreatedAt: row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}
