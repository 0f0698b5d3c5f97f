package models

import (
	"encoding/json"
	"time"
)

// Provider identifies a payment gateway.
type Provider string

const (
	ProviderKakaoPay Provider = "kakaopay"
	ProviderToss     Provider = "toss"
	ProviderNaverPay Provider = "naverpay"
)

// ValidProvider reports whether p is a known gateway.
func ValidProvider(p Provider) bool {
	switch p {
	case ProviderKakaoPay, ProviderToss, ProviderNaverPay:
		return true
	}
	return false
}

// Payment statuses. FAILED, CANCELLED and REFUNDED are terminal.
const (
	PaymentStatusCreated          = "CREATED"
	PaymentStatusPending          = "PENDING"
	PaymentStatusConfirmed        = "CONFIRMED"
	PaymentStatusFailed           = "FAILED"
	PaymentStatusCancelled        = "CANCELLED"
	PaymentStatusPartialCancelled = "PARTIAL_CANCELLED"
	PaymentStatusRefunded         = "REFUNDED"
)

// transitions is the single source of truth for the payment state machine.
// The synchronous confirm/cancel path and webhook reconciliation both
// validate against this table; nothing bypasses it.
var transitions = map[string][]string{
	PaymentStatusCreated:          {PaymentStatusPending, PaymentStatusFailed},
	PaymentStatusPending:          {PaymentStatusConfirmed, PaymentStatusFailed},
	PaymentStatusConfirmed:        {PaymentStatusCancelled, PaymentStatusPartialCancelled, PaymentStatusRefunded},
	PaymentStatusPartialCancelled: {PaymentStatusCancelled, PaymentStatusPartialCancelled, PaymentStatusRefunded},
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminalStatus reports whether no further transitions are possible.
func IsTerminalStatus(status string) bool {
	return len(transitions[status]) == 0
}

// ActiveStatuses are the statuses counted against the one-active-payment
// invariant per order. The partial unique index on payments(order_id)
// filters to these.
var ActiveStatuses = []string{
	PaymentStatusCreated,
	PaymentStatusPending,
	PaymentStatusConfirmed,
	PaymentStatusPartialCancelled,
	PaymentStatusRefunded,
}

// Payment is one payment attempt against an order.
type Payment struct {
	ID              int64           `db:"id" json:"id"`
	PaymentID       string          `db:"payment_id" json:"payment_id"`
	OrderID         string          `db:"order_id" json:"order_id"`
	UserID          int64           `db:"user_id" json:"user_id"`
	Provider        Provider        `db:"provider" json:"provider"`
	Method          string          `db:"method" json:"method"`
	Amount          int64           `db:"amount" json:"amount"`
	CancelledAmount int64           `db:"cancelled_amount" json:"cancelled_amount"`
	Status          string          `db:"status" json:"status"`
	ProcessStatus   string          `db:"process_status" json:"process_status"`
	FailureReason   string          `db:"failure_reason" json:"failure_reason,omitempty"`
	Metadata        json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	Version         int64           `db:"version" json:"-"`
	RequestedAt     time.Time       `db:"requested_at" json:"requested_at"`
	ApprovedAt      *time.Time      `db:"approved_at" json:"approved_at,omitempty"`
	CancelledAt     *time.Time      `db:"cancelled_at" json:"cancelled_at,omitempty"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// Remaining returns the amount still cancellable.
func (p *Payment) Remaining() int64 {
	return p.Amount - p.CancelledAmount
}

// Internal process statuses, kept separate from provider status vocabularies
// so a provider renaming its states never leaks into our invariants.
const (
	ProcessStatusInitiated  = "INITIATED"
	ProcessStatusApproving  = "APPROVING"
	ProcessStatusApproved   = "APPROVED"
	ProcessStatusCancelling = "CANCELLING"
	ProcessStatusCancelled  = "CANCELLED"
	ProcessStatusFailed     = "FAILED"
)

// PaymentHistory is one append-only row per state transition.
type PaymentHistory struct {
	ID         int64     `db:"id" json:"id"`
	PaymentID  string    `db:"payment_id" json:"payment_id"`
	FromStatus string    `db:"from_status" json:"from_status"`
	ToStatus   string    `db:"to_status" json:"to_status"`
	Source     string    `db:"source" json:"source"`
	Reason     string    `db:"reason" json:"reason,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Transition sources recorded in payment_history.
const (
	TransitionSourceAPI     = "api"
	TransitionSourceWebhook = "webhook"
	TransitionSourceSync    = "sync"
	TransitionSourceWorker  = "worker"
)

// Refund types.
const (
	RefundTypeFull           = "full"
	RefundTypePartial        = "partial"
	RefundTypeItemCancel     = "item_cancel"
	RefundTypeDeliveryCancel = "delivery_cancel"
)

// ValidRefundType reports whether t is a known refund type.
func ValidRefundType(t string) bool {
	switch t {
	case RefundTypeFull, RefundTypePartial, RefundTypeItemCancel, RefundTypeDeliveryCancel:
		return true
	}
	return false
}

// Refund statuses. completed, failed and cancelled are terminal.
const (
	RefundStatusPending    = "pending"
	RefundStatusProcessing = "processing"
	RefundStatusCompleted  = "completed"
	RefundStatusFailed     = "failed"
	RefundStatusCancelled  = "cancelled"
)

// Refund is one refund or cancel request against an order.
type Refund struct {
	ID              string    `db:"id" json:"id"`
	OrderID         string    `db:"order_id" json:"order_id"`
	PaymentID       string    `db:"payment_id" json:"payment_id"`
	Type            string    `db:"type" json:"type"`
	RequestedAmount int64     `db:"requested_amount" json:"requested_amount"`
	Fee             int64     `db:"fee" json:"fee"`
	ActualAmount    int64     `db:"actual_amount" json:"actual_amount"`
	Status          string    `db:"status" json:"status"`
	Reason          string    `db:"reason" json:"reason,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Risk levels ordered by severity.
const (
	RiskLevelLow      = "low"
	RiskLevelMedium   = "medium"
	RiskLevelHigh     = "high"
	RiskLevelCritical = "critical"
)

// RiskFactor is one weighted signal that contributed to a risk score.
type RiskFactor struct {
	Name        string `json:"name"`
	Score       int    `json:"score"`
	Description string `json:"description"`
}

// RiskAssessment is an immutable scoring result for a single payment.
// Re-analysis produces a fresh assessment; existing ones are never mutated.
type RiskAssessment struct {
	PaymentID            string       `json:"payment_id"`
	OrderID              string       `json:"order_id"`
	RiskScore            int          `json:"risk_score"`
	RiskLevel            string       `json:"risk_level"`
	Factors              []RiskFactor `json:"factors"`
	AutoBlocked          bool         `json:"auto_blocked"`
	RequiresManualReview bool         `json:"requires_manual_review"`
	AssessedAt           time.Time    `json:"assessed_at"`
}

// SecurityEvent is a persisted audit record for high-risk activity.
type SecurityEvent struct {
	ID        int64           `db:"id" json:"id"`
	EventType string          `db:"event_type" json:"event_type"`
	PaymentID string          `db:"payment_id" json:"payment_id"`
	OrderID   string          `db:"order_id" json:"order_id"`
	Severity  string          `db:"severity" json:"severity"`
	Detail    json.RawMessage `db:"detail" json:"detail,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Security event types.
const (
	SecurityEventHighRisk         = "HIGH_RISK_TRANSACTION"
	SecurityEventAutoBlocked      = "TRANSACTION_AUTO_BLOCKED"
	SecurityEventInvalidSignature = "INVALID_WEBHOOK_SIGNATURE"
)

// ProcessedWebhookEvent marks a gateway notification as applied, keyed by
// (payment_id, event_type, provider_event_id).
type ProcessedWebhookEvent struct {
	PaymentID       string    `db:"payment_id"`
	EventType       string    `db:"event_type"`
	ProviderEventID string    `db:"provider_event_id"`
	ProcessedAt     time.Time `db:"processed_at"`
}

// Order is the collaborator-owned order view the payment core reads.
type Order struct {
	OrderID     string `json:"order_id"`
	UserID      int64  `json:"user_id"`
	TotalAmount int64  `json:"total_amount"`
	Status      string `json:"status"`
}

// Order statuses the payment core cares about.
const (
	OrderStatusPending   = "PENDING"
	OrderStatusPaid      = "PAID"
	OrderStatusCancelled = "CANCELLED"
	OrderStatusRefunded  = "REFUNDED"
)

// IsPayable reports whether a payment may be created for the order.
func (o *Order) IsPayable() bool {
	return o.Status == OrderStatusPending
}
