package httpgw

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	gatewaydomain "github.com/smallbiznis/escrow/internal/gateway/domain"
)

// Adapter talks to a processor exposing a JSON pre-authorization API.
type Adapter struct {
	provider  string
	baseURL   string
	apiKey    string
	secret    []byte
	tolerance time.Duration
	client    *http.Client
	now       func() time.Time
}

type preAuthBody struct {
	Amount   string            `json:"amount"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type preAuthResponse struct {
	Token         string `json:"token"`
	TransactionID string `json:"transaction_id"`
}

type captureBody struct {
	Token         string `json:"token"`
	TransactionID string `json:"transaction_id"`
	Amount        string `json:"amount,omitempty"`
	Currency      string `json:"currency,omitempty"`
}

type voidBody struct {
	Token         string `json:"token"`
	TransactionID string `json:"transaction_id,omitempty"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *Adapter) Provider() string { return a.provider }

func (a *Adapter) CreatePreAuth(ctx context.Context, req gatewaydomain.PreAuthRequest) (*gatewaydomain.PreAuth, error) {
	if !req.Amount.IsPositive() || strings.TrimSpace(req.Currency) == "" {
		return nil, &gatewaydomain.Error{Operation: "pre_auth", Code: "invalid_request", Message: "amount and currency are required"}
	}

	var resp preAuthResponse
	err := a.do(ctx, "pre_auth", "/v1/preauthorizations", req.IdempotencyKey, preAuthBody{
		Amount:   req.Amount.StringFixed(2),
		Currency: strings.ToUpper(req.Currency),
		Metadata: req.Metadata,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Token == "" || resp.TransactionID == "" {
		return nil, &gatewaydomain.Error{Operation: "pre_auth", Code: "malformed_response", Message: "missing token or transaction id"}
	}
	return &gatewaydomain.PreAuth{Token: resp.Token, TransactionID: resp.TransactionID}, nil
}

func (a *Adapter) Capture(ctx context.Context, req gatewaydomain.CaptureRequest) error {
	if req.Token == "" {
		return &gatewaydomain.Error{Operation: "capture", Code: "invalid_request", Message: "missing pre-auth token"}
	}
	body := captureBody{Token: req.Token, TransactionID: req.TransactionID, Currency: req.Currency}
	if !req.Amount.IsZero() {
		body.Amount = req.Amount.StringFixed(2)
	}
	return a.do(ctx, "capture", "/v1/preauthorizations/capture", req.IdempotencyKey, body, nil)
}

func (a *Adapter) Void(ctx context.Context, req gatewaydomain.VoidRequest) error {
	if req.Token == "" {
		return &gatewaydomain.Error{Operation: "void", Code: "invalid_request", Message: "missing pre-auth token"}
	}
	return a.do(ctx, "void", "/v1/preauthorizations/void", req.IdempotencyKey, voidBody{
		Token:         req.Token,
		TransactionID: req.TransactionID,
	}, nil)
}

func (a *Adapter) do(ctx context.Context, operation, path, idempotencyKey string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &gatewaydomain.Error{Operation: operation, Code: "encode_failed", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &gatewaydomain.Error{Operation: operation, Code: "request_failed", Err: err}
	}
	if strings.TrimSpace(idempotencyKey) == "" {
		idempotencyKey = ulid.Make().String()
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	httpReq.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return &gatewaydomain.Error{
			Operation: operation,
			Code:      "network_error",
			Retryable: !errors.Is(err, context.Canceled),
			Err:       err,
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &gatewaydomain.Error{Operation: operation, Code: "read_failed", Retryable: true, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		gwErr := &gatewaydomain.Error{
			Operation:  operation,
			Code:       fmt.Sprintf("http_%d", resp.StatusCode),
			StatusCode: resp.StatusCode,
			Retryable:  resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
		}
		var decoded errorResponse
		if json.Unmarshal(raw, &decoded) == nil && decoded.Error.Code != "" {
			gwErr.Code = decoded.Error.Code
			gwErr.Message = decoded.Error.Message
		}
		return gwErr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &gatewaydomain.Error{Operation: operation, Code: "malformed_response", Err: err}
	}
	return nil
}
