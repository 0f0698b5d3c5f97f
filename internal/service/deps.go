package service

import (
	"context"
	"time"

	"payment-service/internal/models"
	"payment-service/internal/store"
)

// Store is the persistence surface the payment services need. *store.Store
// implements it; tests use an in-memory fake.
type Store interface {
	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPaymentByPaymentID(ctx context.Context, paymentID string) (*models.Payment, error)
	GetActivePaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error)
	TransitionStatus(ctx context.Context, params store.TransitionParams) (bool, error)
	GetPaymentHistory(ctx context.Context, paymentID string) ([]models.PaymentHistory, error)
	ListStuckPayments(ctx context.Context, maxAge time.Duration, limit int) ([]models.Payment, error)
	CountRecentPaymentAttempts(ctx context.Context, userID int64, window time.Duration) (int, error)

	CreateRefund(ctx context.Context, r *models.Refund) error
	GetRefundByID(ctx context.Context, id string) (*models.Refund, error)
	GetRefundsByOrderID(ctx context.Context, orderID string) ([]models.Refund, error)
	SumRefundedAmount(ctx context.Context, orderID string) (int64, error)
	UpdateRefundStatus(ctx context.Context, id, status string) error

	InsertSecurityEvent(ctx context.Context, e *models.SecurityEvent) error
	GetSecurityEventsByPaymentID(ctx context.Context, paymentID string) ([]models.SecurityEvent, error)
	MarkWebhookProcessed(ctx context.Context, paymentID, eventType, providerEventID string) (bool, error)
	IsWebhookProcessed(ctx context.Context, paymentID, eventType, providerEventID string) (bool, error)
}

// Publisher is the event publishing surface. *broker.EventPublisher
// implements it.
type Publisher interface {
	PublishPaymentConfirmed(ctx context.Context, event *models.PaymentConfirmedEvent) error
	PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error
	PublishPaymentCancelled(ctx context.Context, event *models.PaymentCancelledEvent) error
	PublishRefundCompleted(ctx context.Context, event *models.RefundCompletedEvent) error
	PublishSecurityAlert(ctx context.Context, event *models.SecurityAlertEvent) error
}

// OrderClient is the order-service collaborator. The payment core never
// writes order rows directly.
type OrderClient interface {
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	UpdatePaymentStatus(ctx context.Context, orderID, status string) error
}

// ReputationClient looks up IP reputation for the risk scorer.
type ReputationClient interface {
	IsHighRiskIP(ctx context.Context, ip string) (bool, error)
}

// AttemptCounter tracks payment attempts per user inside a rolling window.
// *redisclient.Client implements it.
type AttemptCounter interface {
	RecordPaymentAttempt(ctx context.Context, userID int64, window time.Duration) (int, error)
}

// WebhookDeduper is the fast-path duplicate filter for gateway webhooks.
// *redisclient.Client implements it. The database dedup table remains
// authoritative; this layer only absorbs retry storms. Markers are set only
// after an event was applied or durably absorbed, never before.
type WebhookDeduper interface {
	WasWebhookSeen(ctx context.Context, provider, paymentID, eventType, eventID string) (bool, error)
	MarkWebhookSeen(ctx context.Context, provider, paymentID, eventType, eventID string, ttl time.Duration) (bool, error)
}

// Alert is one notification dispatched to operators.
type Alert struct {
	Title     string `json:"title"`
	Severity  string `json:"severity"`
	PaymentID string `json:"payment_id"`
	OrderID   string `json:"order_id"`
	Message   string `json:"message"`
}

// Notifier fans an alert out to a notification channel.
type Notifier interface {
	SendAlert(ctx context.Context, alert Alert) error
}

// timeNow is swapped out in tests that pin the clock.
var timeNow = time.Now
