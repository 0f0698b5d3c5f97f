package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"payment-service/config"
	"payment-service/internal/models"
)

// kakaoStatusMap translates KakaoPay's payment status vocabulary to the
// canonical one. KakaoPay reports pre-approval UI states as distinct
// statuses; all of them are READY to us.
var kakaoStatusMap = map[string]string{
	"READY":               StatusReady,
	"SEND_TMS":            StatusReady,
	"OPEN_PAYMENT":        StatusReady,
	"SELECT_METHOD":       StatusReady,
	"ARS_WAITING":         StatusReady,
	"AUTH_PASSWORD":       StatusReady,
	"ISSUED_SID":          StatusReady,
	"SUCCESS_PAYMENT":     StatusApproved,
	"PART_CANCEL_PAYMENT": StatusPartialCancelled,
	"CANCEL_PAYMENT":      StatusCancelled,
	"FAIL_AUTH_PASSWORD":  StatusFailed,
	"QUIT_PAYMENT":        StatusFailed,
	"FAIL_PAYMENT":        StatusFailed,
}

// KakaoPayAdapter speaks KakaoPay's form-encoded REST API.
type KakaoPayAdapter struct {
	cfg    config.KakaoPayConfig
	caller *httpCaller
}

// NewKakaoPayAdapter creates a KakaoPay adapter.
func NewKakaoPayAdapter(cfg config.KakaoPayConfig, timeout time.Duration) *KakaoPayAdapter {
	return &KakaoPayAdapter{
		cfg:    cfg,
		caller: newHTTPCaller(string(models.ProviderKakaoPay), timeout),
	}
}

func (a *KakaoPayAdapter) Provider() models.Provider {
	return models.ProviderKakaoPay
}

func (a *KakaoPayAdapter) authHeaders() map[string]string {
	return map[string]string{"Authorization": "KakaoAK " + a.cfg.AdminKey}
}

type kakaoReadyResponse struct {
	TID               string `json:"tid"`
	NextRedirectPCURL string `json:"next_redirect_pc_url"`
	CreatedAt         string `json:"created_at"`
}

func (a *KakaoPayAdapter) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	form := url.Values{}
	form.Set("cid", a.cfg.CID)
	form.Set("partner_order_id", req.OrderID)
	form.Set("partner_user_id", strconv.FormatInt(req.UserID, 10))
	form.Set("item_name", req.Method)
	form.Set("quantity", "1")
	form.Set("total_amount", strconv.FormatInt(req.Amount, 10))
	form.Set("tax_free_amount", "0")
	form.Set("approval_url", req.ReturnURL)
	form.Set("cancel_url", req.CancelURL)
	form.Set("fail_url", req.FailURL)

	data, err := a.caller.postForm(ctx, "create", a.cfg.BaseURL+"/v1/payment/ready", form, a.authHeaders())
	if err != nil {
		return nil, err
	}

	var resp kakaoReadyResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode kakaopay ready response: %w", err)
	}
	if resp.NextRedirectPCURL == "" {
		return nil, errNoRedirect
	}

	return &CreateResult{
		PaymentID:   resp.TID,
		RedirectURL: resp.NextRedirectPCURL,
		Raw:         data,
	}, nil
}

type kakaoApproveResponse struct {
	AID        string `json:"aid"`
	TID        string `json:"tid"`
	Status     string `json:"status"`
	ApprovedAt string `json:"approved_at"`
}

func (a *KakaoPayAdapter) Confirm(ctx context.Context, paymentID, orderID string, amount int64) (*ConfirmResult, error) {
	form := url.Values{}
	form.Set("cid", a.cfg.CID)
	form.Set("tid", paymentID)
	form.Set("partner_order_id", orderID)
	form.Set("total_amount", strconv.FormatInt(amount, 10))

	data, err := a.caller.postForm(ctx, "confirm", a.cfg.BaseURL+"/v1/payment/approve", form, a.authHeaders())
	if err != nil {
		return nil, err
	}

	var resp kakaoApproveResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode kakaopay approve response: %w", err)
	}

	// A successful approve call implies SUCCESS_PAYMENT even when the field
	// is omitted from the approve payload.
	status := StatusApproved
	if resp.Status != "" {
		mapped, ok := kakaoStatusMap[resp.Status]
		if !ok {
			return nil, unknownStatusErr(string(models.ProviderKakaoPay), resp.Status)
		}
		status = mapped
	}

	approvedAt := time.Now()
	if t, err := time.Parse("2006-01-02T15:04:05", resp.ApprovedAt); err == nil {
		approvedAt = t
	}

	return &ConfirmResult{Status: status, ApprovedAt: approvedAt, Raw: data}, nil
}

type kakaoCancelResponse struct {
	Status         string `json:"status"`
	CanceledAmount struct {
		Total int64 `json:"total"`
	} `json:"canceled_amount"`
}

func (a *KakaoPayAdapter) Cancel(ctx context.Context, paymentID string, amount int64, reason string) (*CancelResult, error) {
	form := url.Values{}
	form.Set("cid", a.cfg.CID)
	form.Set("tid", paymentID)
	form.Set("cancel_amount", strconv.FormatInt(amount, 10))
	form.Set("cancel_tax_free_amount", "0")

	data, err := a.caller.postForm(ctx, "cancel", a.cfg.BaseURL+"/v1/payment/cancel", form, a.authHeaders())
	if err != nil {
		return nil, err
	}

	var resp kakaoCancelResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode kakaopay cancel response: %w", err)
	}

	status, ok := kakaoStatusMap[resp.Status]
	if !ok {
		return nil, unknownStatusErr(string(models.ProviderKakaoPay), resp.Status)
	}

	return &CancelResult{
		Status:          status,
		CancelledAmount: resp.CanceledAmount.Total,
		Raw:             data,
	}, nil
}

type kakaoOrderResponse struct {
	Status         string `json:"status"`
	Amount         int64  `json:"amount"`
	CanceledAmount int64  `json:"canceled_amount"`
}

func (a *KakaoPayAdapter) GetStatus(ctx context.Context, paymentID string) (*StatusResult, error) {
	form := url.Values{}
	form.Set("cid", a.cfg.CID)
	form.Set("tid", paymentID)

	data, err := a.caller.postForm(ctx, "status", a.cfg.BaseURL+"/v1/payment/order", form, a.authHeaders())
	if err != nil {
		return nil, err
	}

	var resp kakaoOrderResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode kakaopay order response: %w", err)
	}

	status, ok := kakaoStatusMap[resp.Status]
	if !ok {
		return nil, unknownStatusErr(string(models.ProviderKakaoPay), resp.Status)
	}

	return &StatusResult{
		Status:          status,
		Amount:          resp.Amount,
		CancelledAmount: resp.CanceledAmount,
		Raw:             data,
	}, nil
}

func (a *KakaoPayAdapter) VerifyWebhookSignature(payload []byte, signature string) error {
	return verifyHMAC(string(models.ProviderKakaoPay), []byte(a.cfg.WebhookSecret), payload, signature)
}

type kakaoWebhookPayload struct {
	EventID        string `json:"event_id"`
	EventType      string `json:"event_type"`
	TID            string `json:"tid"`
	PartnerOrderID string `json:"partner_order_id"`
	Status         string `json:"status"`
	Amount         int64  `json:"amount"`
}

func (a *KakaoPayAdapter) ParseWebhook(payload []byte) (*WebhookEvent, error) {
	var p kakaoWebhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("failed to decode kakaopay webhook: %w", err)
	}

	status, ok := kakaoStatusMap[p.Status]
	if !ok {
		return nil, unknownStatusErr(string(models.ProviderKakaoPay), p.Status)
	}

	return &WebhookEvent{
		Provider:  models.ProviderKakaoPay,
		EventID:   p.EventID,
		EventType: canonicalEventType(status),
		PaymentID: p.TID,
		OrderID:   p.PartnerOrderID,
		Status:    status,
		Amount:    p.Amount,
		Raw:       payload,
	}, nil
}

// canonicalEventType derives the canonical webhook event type from a mapped
// canonical status.
func canonicalEventType(status string) string {
	switch status {
	case StatusApproved:
		return EventPaymentApproved
	case StatusCancelled, StatusPartialCancelled:
		return EventPaymentCancelled
	case StatusFailed, StatusExpired:
		return EventPaymentFailed
	default:
		return EventPaymentApproved
	}
}
