package models

import "time"

// Event types published to the payment-events topic.
const (
	EventTypePaymentConfirmed = "PAYMENT_CONFIRMED"
	EventTypePaymentFailed    = "PAYMENT_FAILED"
	EventTypePaymentCancelled = "PAYMENT_CANCELLED"
	EventTypeRefundCompleted  = "REFUND_COMPLETED"
	EventTypeSecurityAlert    = "SECURITY_ALERT"
)

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// PaymentConfirmedEvent published when a payment reaches CONFIRMED.
type PaymentConfirmedEvent struct {
	BaseEvent
	PaymentID string   `json:"payment_id"`
	OrderID   string   `json:"order_id"`
	Provider  Provider `json:"provider"`
	Amount    int64    `json:"amount"`
}

// PaymentFailedEvent published when a payment reaches FAILED.
type PaymentFailedEvent struct {
	BaseEvent
	PaymentID string   `json:"payment_id"`
	OrderID   string   `json:"order_id"`
	Provider  Provider `json:"provider"`
	Reason    string   `json:"reason"`
}

// PaymentCancelledEvent published on full or partial cancellation.
type PaymentCancelledEvent struct {
	BaseEvent
	PaymentID       string   `json:"payment_id"`
	OrderID         string   `json:"order_id"`
	Provider        Provider `json:"provider"`
	CancelledAmount int64    `json:"cancelled_amount"`
	RemainingAmount int64    `json:"remaining_amount"`
	Partial         bool     `json:"partial"`
}

// RefundCompletedEvent published when a refund finishes.
type RefundCompletedEvent struct {
	BaseEvent
	RefundID     string `json:"refund_id"`
	OrderID      string `json:"order_id"`
	PaymentID    string `json:"payment_id"`
	RefundType   string `json:"refund_type"`
	ActualAmount int64  `json:"actual_amount"`
	Fee          int64  `json:"fee"`
}

// SecurityAlertEvent published for high and critical risk assessments.
// The alert worker consumes these and fans out to notification channels.
type SecurityAlertEvent struct {
	BaseEvent
	PaymentID   string `json:"payment_id"`
	OrderID     string `json:"order_id"`
	UserID      int64  `json:"user_id"`
	RiskScore   int    `json:"risk_score"`
	RiskLevel   string `json:"risk_level"`
	AutoBlocked bool   `json:"auto_blocked"`
	Amount      int64  `json:"amount"`
}
