package service

import (
	"context"
	"fmt"

	"payment-service/config"
	"payment-service/internal/apperr"
	"payment-service/internal/gateway"
	"payment-service/internal/models"
	"payment-service/internal/store"
	"payment-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Restriction identifiers attached to eligibility results.
const (
	RestrictionManualConfirm = "manual_confirmation_required"
)

// RefundRequest asks for money back against an order's payment.
type RefundRequest struct {
	OrderID         string `json:"order_id" binding:"required"`
	RefundType      string `json:"refund_type" binding:"required"`
	RequestedAmount int64  `json:"requested_amount"`
	Reason          string `json:"reason"`
	// ManualConfirm acknowledges the manual review restriction applied to
	// refunds requested long after payment.
	ManualConfirm bool `json:"manual_confirm"`
}

// EligibilityResult is a deterministic refund quote. Calling it again with
// the same ledger state returns the same numbers.
type EligibilityResult struct {
	Eligible        bool     `json:"eligible"`
	Reason          string   `json:"reason,omitempty"`
	MaxRefundable   int64    `json:"max_refundable"`
	RequestedAmount int64    `json:"requested_amount"`
	Fee             int64    `json:"fee"`
	ExpectedAmount  int64    `json:"expected_amount"`
	Restrictions    []string `json:"restrictions,omitempty"`
}

// RefundService quotes and executes refunds. The quote and the execution
// share one fee calculation, so an executed refund always matches its quote.
type RefundService struct {
	store     Store
	gateways  *gateway.Registry
	orders    OrderClient
	publisher Publisher
	policy    config.PolicyConfig
	retryCfg  gateway.RetryConfig
	logger    *zap.Logger
}

// NewRefundService creates a refund service.
func NewRefundService(
	st Store,
	gateways *gateway.Registry,
	orders OrderClient,
	publisher Publisher,
	policy config.PolicyConfig,
	gwCfg config.GatewaysConfig,
) *RefundService {
	return &RefundService{
		store:     st,
		gateways:  gateways,
		orders:    orders,
		publisher: publisher,
		policy:    policy,
		retryCfg: gateway.RetryConfig{
			MaxRetries:      gwCfg.MaxRetries,
			InitialInterval: gwCfg.RetryInterval,
		},
		logger: util.GetLogger(),
	}
}

// CheckEligibility quotes a refund without mutating anything.
func (s *RefundService) CheckEligibility(ctx context.Context, req *RefundRequest) (*EligibilityResult, error) {
	ctx, span := util.StartSpan(ctx, "RefundService.CheckEligibility",
		util.OrderIDAttr(req.OrderID))
	defer span.End()

	quote, _, err := s.evaluate(ctx, req)
	return quote, err
}

// evaluate computes the quote and returns the backing payment when eligible.
func (s *RefundService) evaluate(ctx context.Context, req *RefundRequest) (*EligibilityResult, *models.Payment, error) {
	if !models.ValidRefundType(req.RefundType) {
		return nil, nil, apperr.Newf(apperr.CodeValidation, "unknown refund type: %s", req.RefundType)
	}

	order, err := s.orders.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, nil, err
	}
	if order.Status == models.OrderStatusCancelled {
		return &EligibilityResult{
			Eligible: false,
			Reason:   "order is cancelled",
		}, nil, nil
	}

	p, err := s.store.GetActivePaymentByOrderID(ctx, req.OrderID)
	if err != nil {
		return nil, nil, err
	}
	if p == nil {
		return nil, nil, apperr.Newf(apperr.CodeNotFound, "no active payment for order %s", req.OrderID)
	}
	if p.Status != models.PaymentStatusConfirmed && p.Status != models.PaymentStatusPartialCancelled {
		return &EligibilityResult{
			Eligible: false,
			Reason:   fmt.Sprintf("payment status %s is not refundable", p.Status),
		}, nil, nil
	}

	refundedSum, err := s.store.SumRefundedAmount(ctx, req.OrderID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to sum refunds: %w", err)
	}

	// The gateway-cancelled balance and the refund ledger bound the
	// refundable amount independently; take the tighter one.
	maxRefundable := p.Remaining()
	if byLedger := p.Amount - refundedSum; byLedger < maxRefundable {
		maxRefundable = byLedger
	}
	if maxRefundable <= 0 {
		return &EligibilityResult{
			Eligible:      false,
			Reason:        "nothing left to refund",
			MaxRefundable: 0,
		}, nil, nil
	}

	requested := req.RequestedAmount
	if requested == 0 && req.RefundType == models.RefundTypeFull {
		requested = maxRefundable
	}
	if requested <= 0 {
		return nil, nil, apperr.New(apperr.CodeValidation, "requested amount must be positive")
	}
	if requested > maxRefundable {
		return &EligibilityResult{
			Eligible:        false,
			Reason:          fmt.Sprintf("requested %d exceeds refundable %d", requested, maxRefundable),
			MaxRefundable:   maxRefundable,
			RequestedAmount: requested,
		}, nil, nil
	}

	hours := s.hoursSincePayment(p)
	fee := s.calculateFee(requested, req.RefundType, hours)
	expected := requested - fee
	if expected < 0 {
		expected = 0
	}

	result := &EligibilityResult{
		Eligible:        true,
		MaxRefundable:   maxRefundable,
		RequestedAmount: requested,
		Fee:             fee,
		ExpectedAmount:  expected,
	}
	if hours > float64(s.policy.RefundManualReviewHours) {
		result.Restrictions = append(result.Restrictions, RestrictionManualConfirm)
	}
	return result, p, nil
}

// calculateFee returns the deduction for a refund of the given amount and
// type at the given payment age. Item cancels are always fee free, as are
// refunds inside the fee-free window.
func (s *RefundService) calculateFee(requested int64, refundType string, hoursSincePayment float64) int64 {
	if refundType == models.RefundTypeItemCancel {
		return 0
	}
	if hoursSincePayment <= float64(s.policy.RefundFeeFreeHours) {
		return 0
	}
	fee := int64(float64(requested) * s.policy.RefundFeeRate)
	if fee > s.policy.RefundFeeCap {
		fee = s.policy.RefundFeeCap
	}
	return fee
}

func (s *RefundService) hoursSincePayment(p *models.Payment) float64 {
	since := p.RequestedAt
	if p.ApprovedAt != nil {
		since = *p.ApprovedAt
	}
	return timeNow().Sub(since).Hours()
}

// CreateRefund quotes, records and executes a refund. The refund row moves
// pending, processing, then completed or failed; the gateway cancel covers
// the post-fee payout.
func (s *RefundService) CreateRefund(ctx context.Context, req *RefundRequest) (*models.Refund, error) {
	ctx, span := util.StartSpan(ctx, "RefundService.CreateRefund",
		util.OrderIDAttr(req.OrderID))
	defer span.End()

	quote, p, err := s.evaluate(ctx, req)
	if err != nil {
		return nil, err
	}
	if !quote.Eligible {
		return nil, apperr.Newf(apperr.CodeValidation, "refund not eligible: %s", quote.Reason)
	}
	for _, r := range quote.Restrictions {
		if r == RestrictionManualConfirm && !req.ManualConfirm {
			return nil, apperr.New(apperr.CodeValidation,
				"refund requires manual confirmation after the review window")
		}
	}

	refund := &models.Refund{
		ID:              uuid.New().String(),
		OrderID:         req.OrderID,
		PaymentID:       p.PaymentID,
		Type:            req.RefundType,
		RequestedAmount: quote.RequestedAmount,
		Fee:             quote.Fee,
		ActualAmount:    quote.ExpectedAmount,
		Status:          models.RefundStatusPending,
		Reason:          req.Reason,
	}
	if err := s.store.CreateRefund(ctx, refund); err != nil {
		return nil, err
	}
	if err := s.store.UpdateRefundStatus(ctx, refund.ID, models.RefundStatusProcessing); err != nil {
		return nil, err
	}
	refund.Status = models.RefundStatusProcessing

	adapter, err := s.gateways.Get(p.Provider)
	if err != nil {
		return nil, err
	}

	cancelReason := req.Reason
	if cancelReason == "" {
		cancelReason = "refund:" + req.RefundType
	}
	result, err := gateway.WithRetry(ctx, s.retryCfg, s.logger, func() (*gateway.CancelResult, error) {
		return adapter.Cancel(ctx, p.PaymentID, refund.ActualAmount, cancelReason)
	})
	if err != nil {
		if uerr := s.store.UpdateRefundStatus(ctx, refund.ID, models.RefundStatusFailed); uerr != nil {
			s.logger.Error("Failed to mark refund failed", zap.Error(uerr))
		}
		util.RefundsTotal.WithLabelValues(req.RefundType, models.RefundStatusFailed).Inc()
		return nil, err
	}

	s.transitionPayment(ctx, p, refund, quote, result)

	if err := s.store.UpdateRefundStatus(ctx, refund.ID, models.RefundStatusCompleted); err != nil {
		return nil, err
	}
	refund.Status = models.RefundStatusCompleted
	util.RefundsTotal.WithLabelValues(req.RefundType, models.RefundStatusCompleted).Inc()

	s.logger.Info("Refund completed",
		zap.String("refund_id", refund.ID),
		zap.String("order_id", refund.OrderID),
		zap.Int64("requested", refund.RequestedAmount),
		zap.Int64("fee", refund.Fee),
		zap.Int64("paid_out", refund.ActualAmount))

	if err := s.publisher.PublishRefundCompleted(ctx, &models.RefundCompletedEvent{
		BaseEvent:    newBaseEvent(models.EventTypeRefundCompleted),
		RefundID:     refund.ID,
		OrderID:      refund.OrderID,
		PaymentID:    refund.PaymentID,
		RefundType:   refund.Type,
		ActualAmount: refund.ActualAmount,
		Fee:          refund.Fee,
	}); err != nil {
		s.logger.Error("Failed to publish refund event", zap.Error(err))
	}

	return refund, nil
}

// transitionPayment moves the payment to REFUNDED when the refund consumes
// everything refundable, PARTIAL_CANCELLED otherwise.
func (s *RefundService) transitionPayment(ctx context.Context, p *models.Payment, refund *models.Refund, quote *EligibilityResult, result *gateway.CancelResult) {
	full := quote.RequestedAmount == quote.MaxRefundable
	target := models.PaymentStatusPartialCancelled
	if full {
		target = models.PaymentStatusRefunded
	}

	applied, err := s.store.TransitionStatus(ctx, store.TransitionParams{
		PaymentID:            p.PaymentID,
		FromStatus:           p.Status,
		ToStatus:             target,
		ProcessStatus:        models.ProcessStatusCancelled,
		Source:               models.TransitionSourceAPI,
		Reason:               "refund " + refund.ID,
		CancelledAmountDelta: refund.ActualAmount,
		StampCancelled:       full,
		Metadata:             result.Raw,
	})
	if err != nil || !applied {
		s.logger.Error("Failed to transition payment after refund",
			zap.String("payment_id", p.PaymentID),
			zap.Bool("applied", applied),
			zap.Error(err))
		return
	}

	if full {
		if err := s.orders.UpdatePaymentStatus(ctx, p.OrderID, models.OrderStatusRefunded); err != nil {
			s.logger.Error("Failed to update order payment status", zap.Error(err))
		}
	}
}

// GetRefund retrieves a refund by id.
func (s *RefundService) GetRefund(ctx context.Context, id string) (*models.Refund, error) {
	return s.store.GetRefundByID(ctx, id)
}

// GetRefundsByOrder lists refunds recorded against an order.
func (s *RefundService) GetRefundsByOrder(ctx context.Context, orderID string) ([]models.Refund, error) {
	return s.store.GetRefundsByOrderID(ctx, orderID)
}
