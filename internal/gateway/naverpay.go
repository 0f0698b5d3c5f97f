package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"payment-service/config"
	"payment-service/internal/models"
)

// naverStatusMap translates NaverPay admission states to the canonical ones.
var naverStatusMap = map[string]string{
	"WAITING":        StatusReady,
	"APPROVAL":       StatusApproved,
	"CANCEL":         StatusCancelled,
	"PARTIAL_CANCEL": StatusPartialCancelled,
	"FAIL":           StatusFailed,
	"TIME_OUT":       StatusExpired,
}

// NaverPayAdapter speaks the NaverPay partner JSON API, authenticated with
// client id/secret headers.
type NaverPayAdapter struct {
	cfg    config.NaverPayConfig
	caller *httpCaller
}

// NewNaverPayAdapter creates a NaverPay adapter.
func NewNaverPayAdapter(cfg config.NaverPayConfig, timeout time.Duration) *NaverPayAdapter {
	return &NaverPayAdapter{
		cfg:    cfg,
		caller: newHTTPCaller(string(models.ProviderNaverPay), timeout),
	}
}

func (a *NaverPayAdapter) Provider() models.Provider {
	return models.ProviderNaverPay
}

func (a *NaverPayAdapter) authHeaders() map[string]string {
	return map[string]string{
		"X-Naver-Client-Id":     a.cfg.ClientID,
		"X-Naver-Client-Secret": a.cfg.ClientSecret,
		"X-NaverPay-Chain-Id":   a.cfg.ChainID,
	}
}

type naverReserveResponse struct {
	Code string `json:"code"`
	Body struct {
		ReserveID   string `json:"reserveId"`
		RedirectURL string `json:"redirectUrl"`
	} `json:"body"`
}

func (a *NaverPayAdapter) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	body, err := json.Marshal(map[string]interface{}{
		"merchantPayKey":   req.OrderID,
		"productName":      req.Method,
		"totalPayAmount":   req.Amount,
		"taxScopeAmount":   req.Amount,
		"taxExScopeAmount": 0,
		"returnUrl":        req.ReturnURL,
	})
	if err != nil {
		return nil, err
	}

	data, err := a.caller.postJSON(ctx, "create",
		a.cfg.BaseURL+"/naverpay-partner/naverpay/payments/v2/reserve", body, a.authHeaders())
	if err != nil {
		return nil, err
	}

	var resp naverReserveResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode naverpay reserve response: %w", err)
	}
	if resp.Body.RedirectURL == "" {
		return nil, errNoRedirect
	}

	return &CreateResult{
		PaymentID:   resp.Body.ReserveID,
		RedirectURL: resp.Body.RedirectURL,
		Raw:         data,
	}, nil
}

type naverPaymentResponse struct {
	Code string `json:"code"`
	Body struct {
		PaymentID       string `json:"paymentId"`
		MerchantPayKey  string `json:"merchantPayKey"`
		AdmissionState  string `json:"admissionState"`
		TotalPayAmount  int64  `json:"totalPayAmount"`
		CancelledAmount int64  `json:"cancelledPayAmount"`
		AdmissionYmdt   string `json:"admissionYmdt"`
	} `json:"body"`
}

func (a *NaverPayAdapter) Confirm(ctx context.Context, paymentID, orderID string, amount int64) (*ConfirmResult, error) {
	body, err := json.Marshal(map[string]interface{}{
		"paymentId":      paymentID,
		"merchantPayKey": orderID,
		"totalPayAmount": amount,
	})
	if err != nil {
		return nil, err
	}

	data, err := a.caller.postJSON(ctx, "confirm",
		a.cfg.BaseURL+"/naverpay-partner/naverpay/payments/v2/apply/payment", body, a.authHeaders())
	if err != nil {
		return nil, err
	}

	var resp naverPaymentResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode naverpay apply response: %w", err)
	}

	status, ok := naverStatusMap[resp.Body.AdmissionState]
	if !ok {
		return nil, unknownStatusErr(string(models.ProviderNaverPay), resp.Body.AdmissionState)
	}

	approvedAt := time.Now()
	if t, err := time.Parse("20060102150405", resp.Body.AdmissionYmdt); err == nil {
		approvedAt = t
	}

	return &ConfirmResult{Status: status, ApprovedAt: approvedAt, Raw: data}, nil
}

func (a *NaverPayAdapter) Cancel(ctx context.Context, paymentID string, amount int64, reason string) (*CancelResult, error) {
	body, err := json.Marshal(map[string]interface{}{
		"paymentId":       paymentID,
		"cancelAmount":    amount,
		"cancelReason":    reason,
		"cancelRequester": "2", // merchant-initiated
	})
	if err != nil {
		return nil, err
	}

	data, err := a.caller.postJSON(ctx, "cancel",
		a.cfg.BaseURL+"/naverpay-partner/naverpay/payments/v1/cancel", body, a.authHeaders())
	if err != nil {
		return nil, err
	}

	var resp naverPaymentResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode naverpay cancel response: %w", err)
	}

	status, ok := naverStatusMap[resp.Body.AdmissionState]
	if !ok {
		return nil, unknownStatusErr(string(models.ProviderNaverPay), resp.Body.AdmissionState)
	}

	return &CancelResult{
		Status:          status,
		CancelledAmount: resp.Body.CancelledAmount,
		Raw:             data,
	}, nil
}

func (a *NaverPayAdapter) GetStatus(ctx context.Context, paymentID string) (*StatusResult, error) {
	data, err := a.caller.get(ctx, "status",
		fmt.Sprintf("%s/naverpay-partner/naverpay/payments/v2/list/history?paymentId=%s", a.cfg.BaseURL, paymentID),
		a.authHeaders())
	if err != nil {
		return nil, err
	}

	var resp naverPaymentResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode naverpay history response: %w", err)
	}

	status, ok := naverStatusMap[resp.Body.AdmissionState]
	if !ok {
		return nil, unknownStatusErr(string(models.ProviderNaverPay), resp.Body.AdmissionState)
	}

	return &StatusResult{
		Status:          status,
		Amount:          resp.Body.TotalPayAmount,
		CancelledAmount: resp.Body.CancelledAmount,
		Raw:             data,
	}, nil
}

func (a *NaverPayAdapter) VerifyWebhookSignature(payload []byte, signature string) error {
	return verifyHMAC(string(models.ProviderNaverPay), []byte(a.cfg.WebhookSecret), payload, signature)
}

type naverWebhookPayload struct {
	EventID        string `json:"eventId"`
	PaymentID      string `json:"paymentId"`
	MerchantPayKey string `json:"merchantPayKey"`
	AdmissionState string `json:"admissionState"`
	TotalPayAmount int64  `json:"totalPayAmount"`
}

func (a *NaverPayAdapter) ParseWebhook(payload []byte) (*WebhookEvent, error) {
	var p naverWebhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("failed to decode naverpay webhook: %w", err)
	}

	status, ok := naverStatusMap[p.AdmissionState]
	if !ok {
		return nil, unknownStatusErr(string(models.ProviderNaverPay), p.AdmissionState)
	}

	return &WebhookEvent{
		Provider:  models.ProviderNaverPay,
		EventID:   p.EventID,
		EventType: canonicalEventType(status),
		PaymentID: p.PaymentID,
		OrderID:   p.MerchantPayKey,
		Status:    status,
		Amount:    p.TotalPayAmount,
		Raw:       payload,
	}, nil
}
