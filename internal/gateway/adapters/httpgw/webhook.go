package httpgw

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	gatewaydomain "github.com/smallbiznis/escrow/internal/gateway/domain"
)

const SignatureHeader = "X-Gateway-Signature"

type webhookPayload struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		TransactionID  string `json:"transaction_id"`
		FailureCode    string `json:"failure_code"`
		FailureMessage string `json:"failure_message"`
	} `json:"data"`
}

var eventTypes = map[string]gatewaydomain.EventType{
	"preauth.succeeded": gatewaydomain.EventAuthorizationConfirmed,
	"preauth.failed":    gatewaydomain.EventAuthorizationFailed,
	"capture.succeeded": gatewaydomain.EventCaptureConfirmed,
	"capture.failed":    gatewaydomain.EventCaptureFailed,
	"preauth.voided":    gatewaydomain.EventVoided,
	"dispute.created":   gatewaydomain.EventDisputeOpened,
}

// Verify checks "t=<unix>,v1=<hex>" where v1 is HMAC-SHA256 over "<t>.<payload>".
func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	header := strings.TrimSpace(headers.Get(SignatureHeader))
	if header == "" {
		return gatewaydomain.ErrInvalidSignature
	}

	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return gatewaydomain.ErrInvalidSignature
	}

	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return gatewaydomain.ErrInvalidSignature
	}
	age := a.now().Sub(time.Unix(unix, 0))
	if age < 0 {
		age = -age
	}
	if age > a.tolerance {
		return gatewaydomain.ErrInvalidSignature
	}

	expected := Sign(a.secret, timestamp, payload)
	for _, candidate := range signatures {
		if hmac.Equal([]byte(candidate), []byte(expected)) {
			return nil
		}
	}
	return gatewaydomain.ErrInvalidSignature
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*gatewaydomain.Event, error) {
	var body webhookPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, gatewaydomain.ErrInvalidPayload
	}

	eventType, ok := eventTypes[strings.TrimSpace(body.Type)]
	if !ok {
		return nil, gatewaydomain.ErrEventIgnored
	}
	if strings.TrimSpace(body.ID) == "" || strings.TrimSpace(body.Data.TransactionID) == "" {
		return nil, gatewaydomain.ErrInvalidEvent
	}

	occurredAt := a.now()
	if body.Created > 0 {
		occurredAt = time.Unix(body.Created, 0).UTC()
	}

	return &gatewaydomain.Event{
		Provider:        a.provider,
		ProviderEventID: strings.TrimSpace(body.ID),
		Type:            eventType,
		TransactionID:   strings.TrimSpace(body.Data.TransactionID),
		FailureCode:     body.Data.FailureCode,
		FailureMessage:  body.Data.FailureMessage,
		OccurredAt:      occurredAt,
		RawPayload:      payload,
	}, nil
}

// Sign computes the v1 signature for a payload.
func Sign(secret []byte, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
