package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"payment-service/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKakaoTestAdapter(baseURL string) *KakaoPayAdapter {
	return NewKakaoPayAdapter(config.KakaoPayConfig{
		BaseURL:       baseURL,
		AdminKey:      "admin-key",
		CID:           "TC0ONETIME",
		WebhookSecret: "kakao-hook-secret",
	}, time.Second)
}

func TestKakaoCreateSendsForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payment/ready", r.URL.Path)
		assert.Equal(t, "KakaoAK admin-key", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "TC0ONETIME", r.PostForm.Get("cid"))
		assert.Equal(t, "O1", r.PostForm.Get("partner_order_id"))
		assert.Equal(t, "25000", r.PostForm.Get("total_amount"))
		w.Write([]byte(`{"tid": "T1234", "next_redirect_pc_url": "https://pay.kakao.example/T1234"}`))
	}))
	defer srv.Close()

	adapter := newKakaoTestAdapter(srv.URL)
	result, err := adapter.Create(context.Background(), CreateRequest{
		OrderID: "O1", UserID: 42, Amount: 25000, Method: "kakaopay",
		ReturnURL: "https://shop.example/ok",
	})
	require.NoError(t, err)
	assert.Equal(t, "T1234", result.PaymentID)
	assert.Equal(t, "https://pay.kakao.example/T1234", result.RedirectURL)
}

func TestKakaoCreateMissingRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tid": "T1234"}`))
	}))
	defer srv.Close()

	adapter := newKakaoTestAdapter(srv.URL)
	_, err := adapter.Create(context.Background(), CreateRequest{OrderID: "O1", Amount: 1000})
	assert.ErrorIs(t, err, errNoRedirect)
}

func TestKakaoConfirmDefaultsToApproved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payment/approve", r.URL.Path)
		w.Write([]byte(`{"aid": "A1", "tid": "T1234", "approved_at": "2025-06-10T14:00:00"}`))
	}))
	defer srv.Close()

	adapter := newKakaoTestAdapter(srv.URL)
	result, err := adapter.Confirm(context.Background(), "T1234", "O1", 25000)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, result.Status)
}

func TestKakaoGetStatusMapsPartialCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payment/order", r.URL.Path)
		w.Write([]byte(`{"status": "PART_CANCEL_PAYMENT", "amount": 25000, "canceled_amount": 10000}`))
	}))
	defer srv.Close()

	adapter := newKakaoTestAdapter(srv.URL)
	result, err := adapter.GetStatus(context.Background(), "T1234")
	require.NoError(t, err)
	assert.Equal(t, StatusPartialCancelled, result.Status)
	assert.Equal(t, int64(25000), result.Amount)
	assert.Equal(t, int64(10000), result.CancelledAmount)
}

func TestKakaoParseWebhook(t *testing.T) {
	adapter := newKakaoTestAdapter("http://unused")

	event, err := adapter.ParseWebhook([]byte(`{
		"event_id": "evt-7",
		"tid": "T1234",
		"partner_order_id": "O1",
		"status": "CANCEL_PAYMENT",
		"amount": 25000
	}`))
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, event.Status)
	assert.Equal(t, EventPaymentCancelled, event.EventType)
	assert.Equal(t, "T1234", event.PaymentID)

	_, err = adapter.ParseWebhook([]byte(`{"tid": "T1", "status": "MYSTERY"}`))
	assert.Error(t, err)
}
