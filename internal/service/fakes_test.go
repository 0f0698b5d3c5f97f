package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"payment-service/internal/apperr"
	"payment-service/internal/models"
	"payment-service/internal/store"
)

// memStore is an in-memory Store for service tests.
type memStore struct {
	mu             sync.Mutex
	payments       map[string]*models.Payment
	history        map[string][]models.PaymentHistory
	refunds        map[string]*models.Refund
	securityEvents []models.SecurityEvent
	processedHooks map[string]bool
	attemptsByUser map[int64]int

	// failNextTransition makes the next TransitionStatus call fail once,
	// simulating a transient database fault.
	failNextTransition error
}

func newMemStore() *memStore {
	return &memStore{
		payments:       map[string]*models.Payment{},
		history:        map[string][]models.PaymentHistory{},
		refunds:        map[string]*models.Refund{},
		processedHooks: map[string]bool{},
		attemptsByUser: map[int64]int{},
	}
}

func (m *memStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.payments {
		if existing.OrderID != p.OrderID {
			continue
		}
		for _, s := range models.ActiveStatuses {
			if existing.Status == s {
				return apperr.Newf(apperr.CodeDuplicatePayment,
					"active payment already exists for order %s", p.OrderID)
			}
		}
	}
	p.Version = 1
	p.RequestedAt = timeNow()
	p.UpdatedAt = p.RequestedAt
	cp := *p
	m.payments[p.PaymentID] = &cp
	return nil
}

func (m *memStore) GetPaymentByPaymentID(ctx context.Context, paymentID string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[paymentID]
	if !ok {
		return nil, apperr.Newf(apperr.CodeNotFound, "payment not found: %s", paymentID)
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) GetActivePaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.OrderID != orderID {
			continue
		}
		for _, s := range models.ActiveStatuses {
			if p.Status == s {
				cp := *p
				return &cp, nil
			}
		}
	}
	return nil, nil
}

func (m *memStore) TransitionStatus(ctx context.Context, params store.TransitionParams) (bool, error) {
	if !models.CanTransition(params.FromStatus, params.ToStatus) {
		return false, apperr.Newf(apperr.CodeInvalidStateTransition,
			"illegal transition %s -> %s for payment %s",
			params.FromStatus, params.ToStatus, params.PaymentID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNextTransition != nil {
		err := m.failNextTransition
		m.failNextTransition = nil
		return false, err
	}
	p, ok := m.payments[params.PaymentID]
	if !ok || p.Status != params.FromStatus {
		return false, nil
	}

	// Like the real transaction: the dedup marker and the transition commit
	// or roll back together.
	dedupKey := params.PaymentID + "|" + params.WebhookEventType + "|" + params.WebhookEventID
	if params.WebhookEventID != "" && m.processedHooks[dedupKey] {
		return false, nil
	}

	now := timeNow()
	p.Status = params.ToStatus
	if params.ProcessStatus != "" {
		p.ProcessStatus = params.ProcessStatus
	}
	p.CancelledAmount += params.CancelledAmountDelta
	if params.StampApproved {
		p.ApprovedAt = &now
	}
	if params.StampCancelled {
		p.CancelledAt = &now
	}
	if params.FailureReason != "" {
		p.FailureReason = params.FailureReason
	}
	p.Version++
	p.UpdatedAt = now

	m.history[params.PaymentID] = append(m.history[params.PaymentID], models.PaymentHistory{
		PaymentID:  params.PaymentID,
		FromStatus: params.FromStatus,
		ToStatus:   params.ToStatus,
		Source:     params.Source,
		Reason:     params.Reason,
		CreatedAt:  now,
	})
	if params.WebhookEventID != "" {
		m.processedHooks[dedupKey] = true
	}
	return true, nil
}

func (m *memStore) GetPaymentHistory(ctx context.Context, paymentID string) ([]models.PaymentHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.PaymentHistory(nil), m.history[paymentID]...), nil
}

func (m *memStore) ListStuckPayments(ctx context.Context, maxAge time.Duration, limit int) ([]models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stuck []models.Payment
	cutoff := timeNow().Add(-maxAge)
	for _, p := range m.payments {
		if (p.Status == models.PaymentStatusCreated || p.Status == models.PaymentStatusPending) &&
			p.RequestedAt.Before(cutoff) {
			stuck = append(stuck, *p)
		}
	}
	return stuck, nil
}

func (m *memStore) CountRecentPaymentAttempts(ctx context.Context, userID int64, window time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attemptsByUser[userID], nil
}

func (m *memStore) CreateRefund(ctx context.Context, r *models.Refund) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.CreatedAt = timeNow()
	r.UpdatedAt = r.CreatedAt
	cp := *r
	m.refunds[r.ID] = &cp
	return nil
}

func (m *memStore) GetRefundByID(ctx context.Context, id string) (*models.Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.refunds[id]
	if !ok {
		return nil, apperr.Newf(apperr.CodeNotFound, "refund not found: %s", id)
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) GetRefundsByOrderID(ctx context.Context, orderID string) ([]models.Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Refund
	for _, r := range m.refunds {
		if r.OrderID == orderID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memStore) SumRefundedAmount(ctx context.Context, orderID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, r := range m.refunds {
		if r.OrderID == orderID &&
			(r.Status == models.RefundStatusCompleted || r.Status == models.RefundStatusProcessing) {
			sum += r.RequestedAmount
		}
	}
	return sum, nil
}

func (m *memStore) UpdateRefundStatus(ctx context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.refunds[id]
	if !ok {
		return apperr.Newf(apperr.CodeNotFound, "refund not found: %s", id)
	}
	r.Status = status
	r.UpdatedAt = timeNow()
	return nil
}

func (m *memStore) InsertSecurityEvent(ctx context.Context, e *models.SecurityEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.CreatedAt = timeNow()
	m.securityEvents = append(m.securityEvents, *e)
	return nil
}

func (m *memStore) GetSecurityEventsByPaymentID(ctx context.Context, paymentID string) ([]models.SecurityEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SecurityEvent
	for _, e := range m.securityEvents {
		if e.PaymentID == paymentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) MarkWebhookProcessed(ctx context.Context, paymentID, eventType, providerEventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := paymentID + "|" + eventType + "|" + providerEventID
	if m.processedHooks[key] {
		return false, nil
	}
	m.processedHooks[key] = true
	return true, nil
}

func (m *memStore) IsWebhookProcessed(ctx context.Context, paymentID, eventType, providerEventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processedHooks[paymentID+"|"+eventType+"|"+providerEventID], nil
}

// memPublisher records published events.
type memPublisher struct {
	mu        sync.Mutex
	confirmed []*models.PaymentConfirmedEvent
	failed    []*models.PaymentFailedEvent
	cancelled []*models.PaymentCancelledEvent
	refunded  []*models.RefundCompletedEvent
	alerts    []*models.SecurityAlertEvent
}

func (m *memPublisher) PublishPaymentConfirmed(ctx context.Context, e *models.PaymentConfirmedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirmed = append(m.confirmed, e)
	return nil
}

func (m *memPublisher) PublishPaymentFailed(ctx context.Context, e *models.PaymentFailedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = append(m.failed, e)
	return nil
}

func (m *memPublisher) PublishPaymentCancelled(ctx context.Context, e *models.PaymentCancelledEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = append(m.cancelled, e)
	return nil
}

func (m *memPublisher) PublishRefundCompleted(ctx context.Context, e *models.RefundCompletedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refunded = append(m.refunded, e)
	return nil
}

func (m *memPublisher) PublishSecurityAlert(ctx context.Context, e *models.SecurityAlertEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, e)
	return nil
}

// memOrderClient serves orders from a map and records status updates.
type memOrderClient struct {
	mu      sync.Mutex
	orders  map[string]*models.Order
	updates map[string]string
}

func newMemOrderClient(orders ...*models.Order) *memOrderClient {
	c := &memOrderClient{
		orders:  map[string]*models.Order{},
		updates: map[string]string{},
	}
	for _, o := range orders {
		c.orders[o.OrderID] = o
	}
	return c
}

func (c *memOrderClient) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.orders[orderID]
	if !ok {
		return nil, apperr.Newf(apperr.CodeNotFound, "order not found: %s", orderID)
	}
	cp := *o
	return &cp, nil
}

func (c *memOrderClient) UpdatePaymentStatus(ctx context.Context, orderID, status string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates[orderID] = status
	return nil
}

// stubReputation flags a fixed set of IPs.
type stubReputation struct {
	highRisk map[string]bool
	err      error
}

func (s *stubReputation) IsHighRiskIP(ctx context.Context, ip string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.highRisk[ip], nil
}

// stubAttempts returns a fixed attempt count.
type stubAttempts struct {
	count int
	err   error
}

func (s *stubAttempts) RecordPaymentAttempt(ctx context.Context, userID int64, window time.Duration) (int, error) {
	return s.count, s.err
}

// stubDeduper mirrors the redis SetNX dedup marker.
type stubDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func newStubDeduper() *stubDeduper {
	return &stubDeduper{seen: map[string]bool{}}
}

func (s *stubDeduper) WasWebhookSeen(ctx context.Context, provider, paymentID, eventType, eventID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[fmt.Sprintf("%s:%s:%s:%s", provider, paymentID, eventType, eventID)], nil
}

func (s *stubDeduper) MarkWebhookSeen(ctx context.Context, provider, paymentID, eventType, eventID string, ttl time.Duration) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := fmt.Sprintf("%s:%s:%s:%s", provider, paymentID, eventType, eventID)
	if s.seen[key] {
		return false, nil
	}
	s.seen[key] = true
	return true, nil
}
