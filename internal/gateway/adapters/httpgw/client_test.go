package httpgw

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	gatewaydomain "github.com/smallbiznis/escrow/internal/gateway/domain"
)

func newTestAdapter(t *testing.T, baseURL string, now time.Time) *Adapter {
	t.Helper()
	factory := &Factory{now: func() time.Time { return now }}
	adapter, err := factory.NewAdapter(gatewaydomain.AdapterConfig{
		Provider:      ProviderName,
		BaseURL:       baseURL,
		APIKey:        "key_test",
		WebhookSecret: "whsec_test",
	})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	return adapter.(*Adapter)
}

func TestCreatePreAuthSendsIdempotencyKey(t *testing.T) {
	var gotKey, gotAuth string
	var gotBody preAuthBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(preAuthResponse{Token: "tok_1", TransactionID: "txn_1"})
	}))
	defer srv.Close()

	adapter := newTestAdapter(t, srv.URL, time.Now())
	result, err := adapter.CreatePreAuth(context.Background(), gatewaydomain.PreAuthRequest{
		Amount:         decimal.RequireFromString("150"),
		Currency:       "try",
		IdempotencyKey: "offer-1",
	})
	if err != nil {
		t.Fatalf("create pre-auth: %v", err)
	}
	if result.Token != "tok_1" || result.TransactionID != "txn_1" {
		t.Fatalf("unexpected result %+v", result)
	}
	if gotKey != "offer-1" {
		t.Fatalf("expected idempotency key offer-1, got %q", gotKey)
	}
	if gotAuth != "Bearer key_test" {
		t.Fatalf("unexpected authorization header %q", gotAuth)
	}
	if gotBody.Amount != "150.00" || gotBody.Currency != "TRY" {
		t.Fatalf("unexpected body %+v", gotBody)
	}
}

func TestProcessorErrorKeepsCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"code":"card_declined","message":"insufficient funds"}}`))
	}))
	defer srv.Close()

	adapter := newTestAdapter(t, srv.URL, time.Now())
	_, err := adapter.CreatePreAuth(context.Background(), gatewaydomain.PreAuthRequest{
		Amount:   decimal.NewFromInt(10),
		Currency: "TRY",
	})
	gwErr, ok := gatewaydomain.AsError(err)
	if !ok {
		t.Fatalf("expected gateway error, got %v", err)
	}
	if gwErr.Code != "card_declined" || gwErr.Retryable {
		t.Fatalf("unexpected gateway error %+v", gwErr)
	}
}

func TestServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	adapter := newTestAdapter(t, srv.URL, time.Now())
	err := adapter.Void(context.Background(), gatewaydomain.VoidRequest{Token: "tok_1"})
	gwErr, ok := gatewaydomain.AsError(err)
	if !ok || !gwErr.Retryable || gwErr.Code != "http_502" {
		t.Fatalf("expected retryable 502, got %v", err)
	}
}

func TestNewAdapterRejectsMissingSecret(t *testing.T) {
	_, err := NewFactory().NewAdapter(gatewaydomain.AdapterConfig{BaseURL: "https://gw.test", APIKey: "k"})
	if !errors.Is(err, gatewaydomain.ErrInvalidConfig) {
		t.Fatalf("expected invalid config, got %v", err)
	}
}

func TestVerifyAndParse(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	adapter := newTestAdapter(t, "https://gw.test", now)

	payload := []byte(`{"id":"evt_1","type":"capture.succeeded","created":1772366400,"data":{"transaction_id":"txn_1"}}`)
	ts := strconv.FormatInt(now.Unix(), 10)
	headers := http.Header{}
	headers.Set(SignatureHeader, fmt.Sprintf("t=%s,v1=%s", ts, Sign([]byte("whsec_test"), ts, payload)))

	if err := adapter.Verify(context.Background(), payload, headers); err != nil {
		t.Fatalf("verify: %v", err)
	}
	event, err := adapter.Parse(context.Background(), payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.Type != gatewaydomain.EventCaptureConfirmed || event.TransactionID != "txn_1" || event.ProviderEventID != "evt_1" {
		t.Fatalf("unexpected event %+v", event)
	}
	if event.Verified {
		t.Fatalf("parse must not mark events verified")
	}
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	now := time.Now().UTC()
	adapter := newTestAdapter(t, "https://gw.test", now)

	payload := []byte(`{"id":"evt_1"}`)
	ts := strconv.FormatInt(now.Unix(), 10)
	headers := http.Header{}
	headers.Set(SignatureHeader, "t="+ts+",v1="+Sign([]byte("whsec_test"), ts, payload))

	err := adapter.Verify(context.Background(), []byte(`{"id":"evt_2"}`), headers)
	if !errors.Is(err, gatewaydomain.ErrInvalidSignature) {
		t.Fatalf("expected invalid signature, got %v", err)
	}
}

func TestVerifyRejectsStaleTimestamp(t *testing.T) {
	now := time.Now().UTC()
	adapter := newTestAdapter(t, "https://gw.test", now)

	payload := []byte(`{"id":"evt_1"}`)
	ts := strconv.FormatInt(now.Add(-time.Hour).Unix(), 10)
	headers := http.Header{}
	headers.Set(SignatureHeader, "t="+ts+",v1="+Sign([]byte("whsec_test"), ts, payload))

	if err := adapter.Verify(context.Background(), payload, headers); !errors.Is(err, gatewaydomain.ErrInvalidSignature) {
		t.Fatalf("expected stale signature rejected, got %v", err)
	}
}

func TestParseIgnoresUnknownType(t *testing.T) {
	adapter := newTestAdapter(t, "https://gw.test", time.Now())
	_, err := adapter.Parse(context.Background(), []byte(`{"id":"evt_1","type":"payout.paid","data":{"transaction_id":"txn_1"}}`))
	if !errors.Is(err, gatewaydomain.ErrEventIgnored) {
		t.Fatalf("expected ignored event, got %v", err)
	}
}
