package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	offerdomain "github.com/smallbiznis/escrow/internal/offer/domain"
	paymentdomain "github.com/smallbiznis/escrow/internal/payment/domain"
)

func TestErrorResponseMapsKinds(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{offerdomain.ErrCategoryMismatch, http.StatusUnprocessableEntity},
		{offerdomain.ErrInvalidRequest, http.StatusBadRequest},
		{offerdomain.ErrForbidden, http.StatusForbidden},
		{offerdomain.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("accept: %w", offerdomain.NewConflict(offerID(1))), http.StatusConflict},
		{offerdomain.ErrGateway, http.StatusBadGateway},
		{offerdomain.ErrUnverifiedEvent, http.StatusUnauthorized},
		{paymentdomain.ErrInvalidPayload, http.StatusBadRequest},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got, _ := errorResponse(tc.err); got != tc.want {
			t.Errorf("%v: expected %d, got %d", tc.err, tc.want, got)
		}
	}
}

func TestErrorResponseHidesInternalMessage(t *testing.T) {
	_, body := errorResponse(errors.New("pq: relation offers does not exist"))
	if body.Message != "internal error" || body.Details != nil {
		t.Fatalf("unexpected body %+v", body)
	}
}

type offerID int64

func (id offerID) String() string { return fmt.Sprint(int64(id)) }
