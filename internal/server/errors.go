package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/escrow/internal/auth"
	offerdomain "github.com/smallbiznis/escrow/internal/offer/domain"
	"github.com/smallbiznis/escrow/internal/observability/logger"
	paymentdomain "github.com/smallbiznis/escrow/internal/payment/domain"
	"go.uber.org/zap"
)

// apiError is an HTTP-level error that is not owned by a domain package.
type apiError struct {
	Status  int
	Type    string
	Message string
	Details map[string]any
}

func (e *apiError) Error() string { return e.Type + ": " + e.Message }

var (
	ErrUnauthorized = &apiError{Status: http.StatusUnauthorized, Type: string(offerdomain.KindNotAuthenticated), Message: "authentication required"}
	ErrNotFound     = &apiError{Status: http.StatusNotFound, Type: "NOT_FOUND", Message: "not found"}
	ErrRateLimited  = &apiError{Status: http.StatusTooManyRequests, Type: "RATE_LIMITED", Message: "too many requests, try again later"}
)

func invalidRequestError() error {
	return &apiError{Status: http.StatusBadRequest, Type: string(offerdomain.KindInvalidRequest), Message: "invalid request"}
}

func newValidationError(field, code, message string) error {
	return &apiError{
		Status:  http.StatusBadRequest,
		Type:    string(offerdomain.KindInvalidRequest),
		Message: message,
		Details: map[string]any{"field": field, "code": code},
	}
}

type errorBody struct {
	Type    string         `json:"type"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// AbortWithError writes the JSON error envelope for err and stops the chain.
func AbortWithError(c *gin.Context, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).Error("request failed",
			zap.String("route", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}

func errorResponse(err error) (int, errorBody) {
	var httpErr *apiError
	if errors.As(err, &httpErr) {
		return httpErr.Status, errorBody{Type: httpErr.Type, Message: httpErr.Message, Details: httpErr.Details}
	}

	var offerErr *offerdomain.Error
	if errors.As(err, &offerErr) {
		body := errorBody{Type: string(offerErr.Kind), Message: offerErr.Message}
		if offerErr.Kind != offerdomain.KindGateway && len(offerErr.Context) > 0 {
			body.Details = offerErr.Context
		}
		return statusForKind(offerErr.Kind), body
	}

	switch {
	case errors.Is(err, auth.ErrMissingToken), errors.Is(err, auth.ErrInvalidToken):
		return ErrUnauthorized.Status, errorBody{Type: ErrUnauthorized.Type, Message: ErrUnauthorized.Message}
	case errors.Is(err, paymentdomain.ErrProviderNotFound):
		return http.StatusNotFound, errorBody{Type: "PROVIDER_NOT_FOUND", Message: "unknown payment provider"}
	case errors.Is(err, paymentdomain.ErrInvalidProvider),
		errors.Is(err, paymentdomain.ErrInvalidPayload),
		errors.Is(err, paymentdomain.ErrInvalidEvent):
		return http.StatusBadRequest, errorBody{Type: string(offerdomain.KindInvalidRequest), Message: err.Error()}
	}

	return http.StatusInternalServerError, errorBody{Type: "INTERNAL", Message: "internal error"}
}

func statusForKind(kind offerdomain.ErrorKind) int {
	switch kind {
	case offerdomain.KindInvalidRequest:
		return http.StatusBadRequest
	case offerdomain.KindCategoryMismatch, offerdomain.KindAmountTooLow, offerdomain.KindListingNotFound:
		return http.StatusUnprocessableEntity
	case offerdomain.KindNotAuthenticated, offerdomain.KindUnverifiedEvent:
		return http.StatusUnauthorized
	case offerdomain.KindForbidden:
		return http.StatusForbidden
	case offerdomain.KindNotFound:
		return http.StatusNotFound
	case offerdomain.KindConflict:
		return http.StatusConflict
	case offerdomain.KindGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
