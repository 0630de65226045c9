package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/escrow/internal/payment/domain"
)

const maxWebhookBody = 1 << 20

// HandleWebhook hands a processor callback to payment ingestion. Replays of
// an already processed event are acknowledged so the processor stops retrying.
func (s *Server) HandleWebhook(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	err = s.paymentSvc.IngestWebhook(c.Request.Context(), c.Param("provider"), body, c.Request.Header)
	if err != nil && !errors.Is(err, paymentdomain.ErrEventAlreadyProcessed) {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
