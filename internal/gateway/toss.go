package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"payment-service/config"
	"payment-service/internal/models"
)

// tossStatusMap translates Toss Payments statuses to the canonical ones.
var tossStatusMap = map[string]string{
	"READY":               StatusReady,
	"IN_PROGRESS":         StatusReady,
	"WAITING_FOR_DEPOSIT": StatusReady,
	"DONE":                StatusApproved,
	"CANCELED":            StatusCancelled,
	"PARTIAL_CANCELED":    StatusPartialCancelled,
	"ABORTED":             StatusFailed,
	"EXPIRED":             StatusExpired,
}

// TossAdapter speaks the Toss Payments JSON API with Basic auth.
type TossAdapter struct {
	cfg    config.TossConfig
	caller *httpCaller
}

// NewTossAdapter creates a Toss adapter.
func NewTossAdapter(cfg config.TossConfig, timeout time.Duration) *TossAdapter {
	return &TossAdapter{
		cfg:    cfg,
		caller: newHTTPCaller(string(models.ProviderToss), timeout),
	}
}

func (a *TossAdapter) Provider() models.Provider {
	return models.ProviderToss
}

func (a *TossAdapter) authHeaders() map[string]string {
	// Toss uses Basic auth with the secret key as username and empty password.
	token := base64.StdEncoding.EncodeToString([]byte(a.cfg.SecretKey + ":"))
	return map[string]string{"Authorization": "Basic " + token}
}

type tossPaymentResponse struct {
	PaymentKey    string `json:"paymentKey"`
	OrderID       string `json:"orderId"`
	Status        string `json:"status"`
	TotalAmount   int64  `json:"totalAmount"`
	BalanceAmount int64  `json:"balanceAmount"`
	ApprovedAt    string `json:"approvedAt"`
	Checkout      struct {
		URL string `json:"url"`
	} `json:"checkout"`
}

func (a *TossAdapter) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	body, err := json.Marshal(map[string]interface{}{
		"method":     req.Method,
		"amount":     req.Amount,
		"orderId":    req.OrderID,
		"orderName":  req.Method,
		"successUrl": req.ReturnURL,
		"failUrl":    req.FailURL,
	})
	if err != nil {
		return nil, err
	}

	data, err := a.caller.postJSON(ctx, "create", a.cfg.BaseURL+"/v1/payments", body, a.authHeaders())
	if err != nil {
		return nil, err
	}

	var resp tossPaymentResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode toss create response: %w", err)
	}
	if resp.Checkout.URL == "" {
		return nil, errNoRedirect
	}

	return &CreateResult{
		PaymentID:   resp.PaymentKey,
		RedirectURL: resp.Checkout.URL,
		Raw:         data,
	}, nil
}

func (a *TossAdapter) Confirm(ctx context.Context, paymentID, orderID string, amount int64) (*ConfirmResult, error) {
	body, err := json.Marshal(map[string]interface{}{
		"paymentKey": paymentID,
		"orderId":    orderID,
		"amount":     amount,
	})
	if err != nil {
		return nil, err
	}

	data, err := a.caller.postJSON(ctx, "confirm", a.cfg.BaseURL+"/v1/payments/confirm", body, a.authHeaders())
	if err != nil {
		return nil, err
	}

	var resp tossPaymentResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode toss confirm response: %w", err)
	}

	status, ok := tossStatusMap[resp.Status]
	if !ok {
		return nil, unknownStatusErr(string(models.ProviderToss), resp.Status)
	}

	approvedAt := time.Now()
	if t, err := time.Parse(time.RFC3339, resp.ApprovedAt); err == nil {
		approvedAt = t
	}

	return &ConfirmResult{Status: status, ApprovedAt: approvedAt, Raw: data}, nil
}

func (a *TossAdapter) Cancel(ctx context.Context, paymentID string, amount int64, reason string) (*CancelResult, error) {
	body, err := json.Marshal(map[string]interface{}{
		"cancelReason": reason,
		"cancelAmount": amount,
	})
	if err != nil {
		return nil, err
	}

	data, err := a.caller.postJSON(ctx, "cancel",
		fmt.Sprintf("%s/v1/payments/%s/cancel", a.cfg.BaseURL, paymentID), body, a.authHeaders())
	if err != nil {
		return nil, err
	}

	var resp tossPaymentResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode toss cancel response: %w", err)
	}

	status, ok := tossStatusMap[resp.Status]
	if !ok {
		return nil, unknownStatusErr(string(models.ProviderToss), resp.Status)
	}

	return &CancelResult{
		Status:          status,
		CancelledAmount: resp.TotalAmount - resp.BalanceAmount,
		Raw:             data,
	}, nil
}

func (a *TossAdapter) GetStatus(ctx context.Context, paymentID string) (*StatusResult, error) {
	data, err := a.caller.get(ctx, "status",
		fmt.Sprintf("%s/v1/payments/%s", a.cfg.BaseURL, paymentID), a.authHeaders())
	if err != nil {
		return nil, err
	}

	var resp tossPaymentResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode toss payment response: %w", err)
	}

	status, ok := tossStatusMap[resp.Status]
	if !ok {
		return nil, unknownStatusErr(string(models.ProviderToss), resp.Status)
	}

	return &StatusResult{
		Status:          status,
		Amount:          resp.TotalAmount,
		CancelledAmount: resp.TotalAmount - resp.BalanceAmount,
		Raw:             data,
	}, nil
}

func (a *TossAdapter) VerifyWebhookSignature(payload []byte, signature string) error {
	return verifyHMAC(string(models.ProviderToss), []byte(a.cfg.WebhookSecret), payload, signature)
}

type tossWebhookPayload struct {
	EventID   string `json:"eventId"`
	EventType string `json:"eventType"`
	Data      struct {
		PaymentKey    string `json:"paymentKey"`
		OrderID       string `json:"orderId"`
		Status        string `json:"status"`
		TotalAmount   int64  `json:"totalAmount"`
		BalanceAmount int64  `json:"balanceAmount"`
	} `json:"data"`
}

func (a *TossAdapter) ParseWebhook(payload []byte) (*WebhookEvent, error) {
	var p tossWebhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("failed to decode toss webhook: %w", err)
	}

	status, ok := tossStatusMap[p.Data.Status]
	if !ok {
		return nil, unknownStatusErr(string(models.ProviderToss), p.Data.Status)
	}

	return &WebhookEvent{
		Provider:  models.ProviderToss,
		EventID:   p.EventID,
		EventType: canonicalEventType(status),
		PaymentID: p.Data.PaymentKey,
		OrderID:   p.Data.OrderID,
		Status:    status,
		Amount:    p.Data.TotalAmount,
		Raw:       payload,
	}, nil
}
