package store

import (
	"context"

	"payment-service/internal/models"
)

// InsertSecurityEvent persists an audit record for high-risk activity.
func (s *Store) InsertSecurityEvent(ctx context.Context, e *models.SecurityEvent) error {
	query := `
		INSERT INTO security_events (event_type, payment_id, order_id, severity, detail)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, e, query,
		e.EventType, e.PaymentID, e.OrderID, e.Severity, e.Detail)
}

// GetSecurityEventsByPaymentID retrieves security events for a payment.
func (s *Store) GetSecurityEventsByPaymentID(ctx context.Context, paymentID string) ([]models.SecurityEvent, error) {
	var events []models.SecurityEvent
	err := s.db.SelectContext(ctx, &events,
		"SELECT * FROM security_events WHERE payment_id = $1 ORDER BY created_at DESC", paymentID)
	return events, err
}

// MarkWebhookProcessed records a webhook event as applied. Returns false when
// the (payment_id, event_type, provider_event_id) key was already present, so
// the dedup check is atomic with the marking.
func (s *Store) MarkWebhookProcessed(ctx context.Context, paymentID, eventType, providerEventID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO processed_webhook_events (payment_id, event_type, provider_event_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (payment_id, event_type, provider_event_id) DO NOTHING`,
		paymentID, eventType, providerEventID)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// IsWebhookProcessed checks whether a webhook event was already applied.
func (s *Store) IsWebhookProcessed(ctx context.Context, paymentID, eventType, providerEventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM processed_webhook_events
			WHERE payment_id = $1 AND event_type = $2 AND provider_event_id = $3)`,
		paymentID, eventType, providerEventID)
	return exists, err
}
