package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"payment-service/config"
	"payment-service/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTossTestAdapter(baseURL string) *TossAdapter {
	return NewTossAdapter(config.TossConfig{
		BaseURL:       baseURL,
		SecretKey:     "test_sk",
		WebhookSecret: "toss-hook-secret",
	}, time.Second)
}

func TestTossCreate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments", r.URL.Path)
		assert.Contains(t, r.Header.Get("Authorization"), "Basic ")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"paymentKey": "tk_123",
			"orderId": "O1",
			"status": "READY",
			"totalAmount": 25000,
			"balanceAmount": 25000,
			"checkout": {"url": "https://pay.toss.example/tk_123"}
		}`))
	}))
	defer srv.Close()

	adapter := newTossTestAdapter(srv.URL)
	result, err := adapter.Create(context.Background(), CreateRequest{
		OrderID: "O1", Amount: 25000, Method: "card", ReturnURL: "https://shop.example/ok",
	})
	require.NoError(t, err)
	assert.Equal(t, "tk_123", result.PaymentID)
	assert.Equal(t, "https://pay.toss.example/tk_123", result.RedirectURL)
}

func TestTossConfirmMapsDoneToApproved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments/confirm", r.URL.Path)
		w.Write([]byte(`{"paymentKey": "tk_123", "status": "DONE", "totalAmount": 25000, "balanceAmount": 25000, "approvedAt": "2025-06-10T14:00:00Z"}`))
	}))
	defer srv.Close()

	adapter := newTossTestAdapter(srv.URL)
	result, err := adapter.Confirm(context.Background(), "tk_123", "O1", 25000)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, result.Status)
	assert.Equal(t, 2025, result.ApprovedAt.Year())
}

func TestTossCancelComputesCancelledAmount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments/tk_123/cancel", r.URL.Path)
		w.Write([]byte(`{"paymentKey": "tk_123", "status": "PARTIAL_CANCELED", "totalAmount": 25000, "balanceAmount": 15000}`))
	}))
	defer srv.Close()

	adapter := newTossTestAdapter(srv.URL)
	result, err := adapter.Cancel(context.Background(), "tk_123", 10000, "customer request")
	require.NoError(t, err)
	assert.Equal(t, StatusPartialCancelled, result.Status)
	assert.Equal(t, int64(10000), result.CancelledAmount)
}

func TestTossGetStatusUnknownStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"paymentKey": "tk_123", "status": "SOMETHING_NEW"}`))
	}))
	defer srv.Close()

	adapter := newTossTestAdapter(srv.URL)
	_, err := adapter.GetStatus(context.Background(), "tk_123")
	require.Error(t, err)
	assert.True(t, apperr.IsGateway(err))
	assert.False(t, apperr.IsRetryable(err))
}

func TestTossServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	}))
	defer srv.Close()

	adapter := newTossTestAdapter(srv.URL)
	_, err := adapter.GetStatus(context.Background(), "tk_123")
	require.Error(t, err)
	assert.True(t, apperr.IsRetryable(err))
}

func TestTossClientErrorIsFinal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code": "NOT_FOUND_PAYMENT"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	adapter := newTossTestAdapter(srv.URL)
	_, err := adapter.GetStatus(context.Background(), "tk_404")
	require.Error(t, err)
	assert.True(t, apperr.IsGateway(err))
	assert.False(t, apperr.IsRetryable(err))
}

func TestTossWebhookSignatureAndParse(t *testing.T) {
	adapter := newTossTestAdapter("http://unused")

	payload := []byte(`{
		"eventId": "evt-1",
		"eventType": "PAYMENT_STATUS_CHANGED",
		"data": {"paymentKey": "tk_123", "orderId": "O1", "status": "DONE", "totalAmount": 25000, "balanceAmount": 25000}
	}`)

	mac := hmac.New(sha256.New, []byte("toss-hook-secret"))
	mac.Write(payload)
	signature := hex.EncodeToString(mac.Sum(nil))

	require.NoError(t, adapter.VerifyWebhookSignature(payload, signature))
	assert.Error(t, adapter.VerifyWebhookSignature(payload, "bad"))
	assert.Error(t, adapter.VerifyWebhookSignature(payload, ""))

	event, err := adapter.ParseWebhook(payload)
	require.NoError(t, err)
	assert.Equal(t, "evt-1", event.EventID)
	assert.Equal(t, EventPaymentApproved, event.EventType)
	assert.Equal(t, StatusApproved, event.Status)
	assert.Equal(t, "tk_123", event.PaymentID)
	assert.Equal(t, "O1", event.OrderID)
}
