package store

import (
	"context"
	"database/sql"

	"payment-service/internal/apperr"
	"payment-service/internal/models"

	"github.com/lib/pq"
)

// CreateRefund inserts a new refund request.
func (s *Store) CreateRefund(ctx context.Context, r *models.Refund) error {
	query := `
		INSERT INTO refunds (id, order_id, payment_id, type, requested_amount, fee, actual_amount, status, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	return s.db.GetContext(ctx, r, query,
		r.ID, r.OrderID, r.PaymentID, r.Type,
		r.RequestedAmount, r.Fee, r.ActualAmount, r.Status, r.Reason)
}

// GetRefundByID retrieves a refund by its id.
func (s *Store) GetRefundByID(ctx context.Context, id string) (*models.Refund, error) {
	var r models.Refund
	err := s.db.GetContext(ctx, &r, "SELECT * FROM refunds WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, apperr.Newf(apperr.CodeNotFound, "refund not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRefundsByOrderID retrieves all refunds against an order.
func (s *Store) GetRefundsByOrderID(ctx context.Context, orderID string) ([]models.Refund, error) {
	var refunds []models.Refund
	err := s.db.SelectContext(ctx, &refunds,
		"SELECT * FROM refunds WHERE order_id = $1 ORDER BY created_at DESC", orderID)
	return refunds, err
}

// SumRefundedAmount sums requested_amount over refunds that count against the
// refundable balance (completed plus in-flight processing). Requested rather
// than paid-out amounts: the withheld fee still consumes the claim.
func (s *Store) SumRefundedAmount(ctx context.Context, orderID string) (int64, error) {
	var total int64
	err := s.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(requested_amount), 0) FROM refunds
		WHERE order_id = $1 AND status = ANY($2)`,
		orderID, pq.Array([]string{models.RefundStatusCompleted, models.RefundStatusProcessing}))
	return total, err
}

// UpdateRefundStatus updates a refund's status.
func (s *Store) UpdateRefundStatus(ctx context.Context, id, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE refunds SET status = $1, updated_at = NOW() WHERE id = $2",
		status, id)
	return err
}
