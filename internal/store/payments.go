package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"payment-service/internal/apperr"
	"payment-service/internal/models"

	"github.com/lib/pq"
)

// CreatePayment inserts a new payment attempt. The payments table carries a
// partial unique index on order_id filtered to active statuses, so the
// one-active-payment-per-order invariant is enforced by the database and the
// check is atomic with the insert. A unique violation surfaces as
// DUPLICATE_PAYMENT.
func (s *Store) CreatePayment(ctx context.Context, p *models.Payment) error {
	query := `
		INSERT INTO payments (payment_id, order_id, user_id, provider, method,
			amount, cancelled_amount, status, process_status, metadata, version, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $9, 1, NOW())
		RETURNING id, cancelled_amount, version, requested_at, updated_at`

	err := s.db.GetContext(ctx, p, query,
		p.PaymentID, p.OrderID, p.UserID, p.Provider, p.Method,
		p.Amount, p.Status, p.ProcessStatus, p.Metadata)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return apperr.Wrap(apperr.CodeDuplicatePayment,
			fmt.Sprintf("active payment already exists for order %s", p.OrderID), err)
	}
	return err
}

// GetPaymentByPaymentID retrieves a payment by its gateway-assigned id.
func (s *Store) GetPaymentByPaymentID(ctx context.Context, paymentID string) (*models.Payment, error) {
	var p models.Payment
	err := s.db.GetContext(ctx, &p, "SELECT * FROM payments WHERE payment_id = $1", paymentID)
	if err == sql.ErrNoRows {
		return nil, apperr.Newf(apperr.CodeNotFound, "payment not found: %s", paymentID)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetActivePaymentByOrderID retrieves the single active payment for an order,
// or nil when none exists.
func (s *Store) GetActivePaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	var p models.Payment
	err := s.db.GetContext(ctx, &p,
		"SELECT * FROM payments WHERE order_id = $1 AND status = ANY($2) ORDER BY requested_at DESC LIMIT 1",
		orderID, pq.Array(models.ActiveStatuses))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// TransitionParams describes one payment state change.
type TransitionParams struct {
	PaymentID            string
	FromStatus           string
	ToStatus             string
	ProcessStatus        string
	Source               string
	Reason               string
	CancelledAmountDelta int64
	StampApproved        bool
	StampCancelled       bool
	FailureReason        string
	Metadata             []byte

	// WebhookEventType/WebhookEventID, when set, write the processed-webhook
	// marker in the same transaction as the transition. A delivery can never
	// be recorded as applied without its state change committing, and a
	// marker conflict makes the transition a no-op.
	WebhookEventType string
	WebhookEventID   string
}

// TransitionStatus applies one state-machine transition with optimistic
// concurrency: the UPDATE is conditioned on the current status, so a webhook
// and a synchronous call racing on the same payment cannot both win. The
// matching payment_history row is written in the same transaction. Returns
// false when the conditional update matched no row (the payment moved under
// us); callers re-read and decide whether the desired state was already
// reached.
func (s *Store) TransitionStatus(ctx context.Context, params TransitionParams) (bool, error) {
	if !models.CanTransition(params.FromStatus, params.ToStatus) {
		return false, apperr.Newf(apperr.CodeInvalidStateTransition,
			"illegal transition %s -> %s for payment %s",
			params.FromStatus, params.ToStatus, params.PaymentID)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if params.WebhookEventID != "" {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO processed_webhook_events (payment_id, event_type, provider_event_id)
			VALUES ($1, $2, $3)
			ON CONFLICT (payment_id, event_type, provider_event_id) DO NOTHING`,
			params.PaymentID, params.WebhookEventType, params.WebhookEventID)
		if err != nil {
			return false, fmt.Errorf("failed to mark webhook processed: %w", err)
		}
		inserted, err := res.RowsAffected()
		if err != nil {
			return false, err
		}
		if inserted == 0 {
			return false, nil
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE payments SET
			status = $1,
			process_status = COALESCE(NULLIF($2, ''), process_status),
			cancelled_amount = cancelled_amount + $3,
			approved_at = CASE WHEN $4 THEN NOW() ELSE approved_at END,
			cancelled_at = CASE WHEN $5 THEN NOW() ELSE cancelled_at END,
			failure_reason = COALESCE(NULLIF($6, ''), failure_reason),
			metadata = COALESCE($7, metadata),
			version = version + 1,
			updated_at = NOW()
		WHERE payment_id = $8 AND status = $9`,
		params.ToStatus, params.ProcessStatus, params.CancelledAmountDelta,
		params.StampApproved, params.StampCancelled, params.FailureReason,
		params.Metadata, params.PaymentID, params.FromStatus)
	if err != nil {
		return false, fmt.Errorf("failed to update payment status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO payment_history (payment_id, from_status, to_status, source, reason)
		VALUES ($1, $2, $3, $4, $5)`,
		params.PaymentID, params.FromStatus, params.ToStatus, params.Source, params.Reason)
	if err != nil {
		return false, fmt.Errorf("failed to append payment history: %w", err)
	}

	return true, tx.Commit()
}

// GetPaymentHistory retrieves the append-only transition trail for a payment.
func (s *Store) GetPaymentHistory(ctx context.Context, paymentID string) ([]models.PaymentHistory, error) {
	var history []models.PaymentHistory
	err := s.db.SelectContext(ctx, &history,
		"SELECT * FROM payment_history WHERE payment_id = $1 ORDER BY created_at, id", paymentID)
	return history, err
}

// ListStuckPayments retrieves payments sitting in non-terminal early states
// longer than maxAge. The reconcile worker runs SyncStatus on them.
func (s *Store) ListStuckPayments(ctx context.Context, maxAge time.Duration, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.SelectContext(ctx, &payments, `
		SELECT * FROM payments
		WHERE status IN ($1, $2) AND requested_at < NOW() - $3::interval
		ORDER BY requested_at
		LIMIT $4`,
		models.PaymentStatusCreated, models.PaymentStatusPending,
		fmt.Sprintf("%d seconds", int(maxAge.Seconds())), limit)
	return payments, err
}

// CountRecentPaymentAttempts counts payment attempts by a user inside a
// rolling window. Database fallback for the risk burst factor when the Redis
// counter is unavailable.
func (s *Store) CountRecentPaymentAttempts(ctx context.Context, userID int64, window time.Duration) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM payments
		WHERE user_id = $1 AND requested_at > NOW() - $2::interval`,
		userID, fmt.Sprintf("%d seconds", int(window.Seconds())))
	return count, err
}
