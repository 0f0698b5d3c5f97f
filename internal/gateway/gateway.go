package gateway

import (
	"context"
	"encoding/json"
	"time"

	"payment-service/internal/apperr"
	"payment-service/internal/models"
)

// Canonical payment statuses. Each adapter maps its provider's status
// vocabulary onto these; nothing outside the gateway package ever sees a
// provider-specific status string.
const (
	StatusReady            = "READY"
	StatusApproved         = "APPROVED"
	StatusCancelled        = "CANCELLED"
	StatusPartialCancelled = "PARTIAL_CANCELLED"
	StatusFailed           = "FAILED"
	StatusExpired          = "EXPIRED"
)

// Canonical webhook event types.
const (
	EventPaymentApproved  = "payment.approved"
	EventPaymentCancelled = "payment.cancelled"
	EventPaymentFailed    = "payment.failed"
)

// CreateRequest is the canonical payment creation request.
type CreateRequest struct {
	OrderID    string
	UserID     int64
	Amount     int64
	Method     string
	BuyerName  string
	BuyerEmail string
	ReturnURL  string
	CancelURL  string
	FailURL    string
}

// CreateResult carries the provider payment handle and checkout redirect.
type CreateResult struct {
	PaymentID   string
	RedirectURL string
	Raw         json.RawMessage
}

// ConfirmResult is the canonical confirmation outcome.
type ConfirmResult struct {
	Status     string
	ApprovedAt time.Time
	Raw        json.RawMessage
}

// CancelResult is the canonical cancellation outcome.
type CancelResult struct {
	Status          string
	CancelledAmount int64
	Raw             json.RawMessage
}

// StatusResult is the provider's current view of a payment. SyncStatus treats
// this as the source of truth for monetary state.
type StatusResult struct {
	Status          string
	Amount          int64
	CancelledAmount int64
	Raw             json.RawMessage
}

// WebhookEvent is a provider notification decoded to the canonical shape.
type WebhookEvent struct {
	Provider  models.Provider
	EventID   string
	EventType string
	PaymentID string
	OrderID   string
	Status    string
	Amount    int64
	Raw       json.RawMessage
}

// Adapter is the capability interface every payment gateway implements.
// Adapters translate wire formats and status vocabularies only; they carry
// no business logic.
type Adapter interface {
	Provider() models.Provider
	Create(ctx context.Context, req CreateRequest) (*CreateResult, error)
	Confirm(ctx context.Context, paymentID, orderID string, amount int64) (*ConfirmResult, error)
	Cancel(ctx context.Context, paymentID string, amount int64, reason string) (*CancelResult, error)
	GetStatus(ctx context.Context, paymentID string) (*StatusResult, error)
	VerifyWebhookSignature(payload []byte, signature string) error
	ParseWebhook(payload []byte) (*WebhookEvent, error)
}

// Registry resolves adapters by provider.
type Registry struct {
	adapters map[models.Provider]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[models.Provider]Adapter)}
}

// Register adds an adapter to the registry.
func (r *Registry) Register(adapter Adapter) {
	r.adapters[adapter.Provider()] = adapter
}

// Get resolves the adapter for a provider.
func (r *Registry) Get(provider models.Provider) (Adapter, error) {
	adapter, ok := r.adapters[provider]
	if !ok {
		return nil, apperr.Newf(apperr.CodeValidation, "unsupported payment provider: %s", provider)
	}
	return adapter, nil
}

// Providers lists registered providers.
func (r *Registry) Providers() []models.Provider {
	providers := make([]models.Provider, 0, len(r.adapters))
	for p := range r.adapters {
		providers = append(providers, p)
	}
	return providers
}
