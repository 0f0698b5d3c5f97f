package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"payment-service/internal/models"
)

// FakeAdapter is an in-memory Adapter used in tests. It implements the same
// capability interface as the real adapters so services never special-case
// fake responses.
type FakeAdapter struct {
	mu         sync.Mutex
	provider   models.Provider
	secret     []byte
	seq        int
	payments   map[string]*fakePayment
	CreateErr  error
	ConfirmErr error
	CancelErr  error
	StatusErr  error
}

type fakePayment struct {
	orderID         string
	amount          int64
	cancelledAmount int64
	status          string
}

// NewFakeAdapter creates a fake adapter for the given provider.
func NewFakeAdapter(provider models.Provider, secret string) *FakeAdapter {
	return &FakeAdapter{
		provider: provider,
		secret:   []byte(secret),
		payments: make(map[string]*fakePayment),
	}
}

func (f *FakeAdapter) Provider() models.Provider {
	return f.provider
}

func (f *FakeAdapter) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	id := fmt.Sprintf("%s-pay-%d", f.provider, f.seq)
	f.payments[id] = &fakePayment{
		orderID: req.OrderID,
		amount:  req.Amount,
		status:  StatusReady,
	}

	return &CreateResult{
		PaymentID:   id,
		RedirectURL: fmt.Sprintf("https://checkout.example/%s", id),
		Raw:         []byte(`{"fake":true}`),
	}, nil
}

func (f *FakeAdapter) Confirm(ctx context.Context, paymentID, orderID string, amount int64) (*ConfirmResult, error) {
	if f.ConfirmErr != nil {
		return nil, f.ConfirmErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[paymentID]
	if !ok {
		return nil, unknownStatusErr(string(f.provider), "payment not found")
	}
	p.status = StatusApproved

	return &ConfirmResult{Status: StatusApproved, ApprovedAt: time.Now(), Raw: []byte(`{"fake":true}`)}, nil
}

func (f *FakeAdapter) Cancel(ctx context.Context, paymentID string, amount int64, reason string) (*CancelResult, error) {
	if f.CancelErr != nil {
		return nil, f.CancelErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[paymentID]
	if !ok {
		return nil, unknownStatusErr(string(f.provider), "payment not found")
	}
	p.cancelledAmount += amount
	if p.cancelledAmount >= p.amount {
		p.status = StatusCancelled
	} else {
		p.status = StatusPartialCancelled
	}

	return &CancelResult{
		Status:          p.status,
		CancelledAmount: p.cancelledAmount,
		Raw:             []byte(`{"fake":true}`),
	}, nil
}

func (f *FakeAdapter) GetStatus(ctx context.Context, paymentID string) (*StatusResult, error) {
	if f.StatusErr != nil {
		return nil, f.StatusErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[paymentID]
	if !ok {
		return nil, unknownStatusErr(string(f.provider), "payment not found")
	}

	return &StatusResult{
		Status:          p.status,
		Amount:          p.amount,
		CancelledAmount: p.cancelledAmount,
		Raw:             []byte(`{"fake":true}`),
	}, nil
}

// SetStatus forces a payment into a provider-side state, for tests that
// simulate out-of-band changes recovered by syncStatus.
func (f *FakeAdapter) SetStatus(paymentID, status string, cancelledAmount int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.payments[paymentID]; ok {
		p.status = status
		p.cancelledAmount = cancelledAmount
	}
}

func (f *FakeAdapter) VerifyWebhookSignature(payload []byte, signature string) error {
	return verifyHMAC(string(f.provider), f.secret, payload, signature)
}

func (f *FakeAdapter) ParseWebhook(payload []byte) (*WebhookEvent, error) {
	var p struct {
		EventID   string `json:"event_id"`
		PaymentID string `json:"payment_id"`
		OrderID   string `json:"order_id"`
		Status    string `json:"status"`
		Amount    int64  `json:"amount"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("failed to decode fake webhook: %w", err)
	}

	return &WebhookEvent{
		Provider:  f.provider,
		EventID:   p.EventID,
		EventType: canonicalEventType(p.Status),
		PaymentID: p.PaymentID,
		OrderID:   p.OrderID,
		Status:    p.Status,
		Amount:    p.Amount,
		Raw:       payload,
	}, nil
}
