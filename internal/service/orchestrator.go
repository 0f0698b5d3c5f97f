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

// PaymentOrchestrator drives payments through the state machine across the
// gateway adapters. It is the only writer of payment rows.
type PaymentOrchestrator struct {
	store     Store
	gateways  *gateway.Registry
	orders    OrderClient
	risk      *RiskScorer
	publisher Publisher
	retryCfg  gateway.RetryConfig
	logger    *zap.Logger
}

// NewPaymentOrchestrator creates a payment orchestrator.
func NewPaymentOrchestrator(
	st Store,
	gateways *gateway.Registry,
	orders OrderClient,
	risk *RiskScorer,
	publisher Publisher,
	cfg config.GatewaysConfig,
) *PaymentOrchestrator {
	return &PaymentOrchestrator{
		store:     st,
		gateways:  gateways,
		orders:    orders,
		risk:      risk,
		publisher: publisher,
		retryCfg: gateway.RetryConfig{
			MaxRetries:      cfg.MaxRetries,
			InitialInterval: cfg.RetryInterval,
		},
		logger: util.GetLogger(),
	}
}

// CreatePaymentRequest represents a request to start a payment.
type CreatePaymentRequest struct {
	OrderID    string          `json:"order_id" binding:"required"`
	UserID     int64           `json:"user_id" binding:"required"`
	Amount     int64           `json:"amount" binding:"required,min=1"`
	Method     string          `json:"method" binding:"required"`
	Provider   models.Provider `json:"provider" binding:"required"`
	BuyerName  string          `json:"buyer_name"`
	BuyerEmail string          `json:"buyer_email"`
	ClientIP   string          `json:"-"`
	ReturnURL  string          `json:"return_url" binding:"required"`
	CancelURL  string          `json:"cancel_url"`
	FailURL    string          `json:"fail_url"`
}

// CreatePaymentResponse carries the provider handle and checkout redirect.
type CreatePaymentResponse struct {
	PaymentID   string `json:"payment_id"`
	OrderID     string `json:"order_id"`
	Status      string `json:"status"`
	RedirectURL string `json:"redirect_url"`
}

// CreatePayment validates the order, scores the transaction, obtains a
// provider payment handle and persists the CREATED ledger row. The
// one-active-payment-per-order check is enforced atomically by the insert.
func (o *PaymentOrchestrator) CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*CreatePaymentResponse, error) {
	ctx, span := util.StartSpan(ctx, "PaymentOrchestrator.CreatePayment",
		util.OrderIDAttr(req.OrderID), util.ProviderAttr(string(req.Provider)))
	defer span.End()

	if !models.ValidProvider(req.Provider) {
		return nil, apperr.Newf(apperr.CodeValidation, "unsupported provider: %s", req.Provider)
	}

	order, err := o.orders.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if !order.IsPayable() {
		return nil, apperr.Newf(apperr.CodeValidation,
			"order %s is not payable (status=%s)", req.OrderID, order.Status)
	}
	if req.Amount != order.TotalAmount {
		return nil, apperr.Newf(apperr.CodeValidation,
			"amount mismatch: submitted %d, order total %d", req.Amount, order.TotalAmount)
	}

	// Fast duplicate check for a clear error message. The authoritative
	// guard is the partial unique index hit by the insert below.
	if existing, err := o.store.GetActivePaymentByOrderID(ctx, req.OrderID); err != nil {
		return nil, fmt.Errorf("failed to check active payment: %w", err)
	} else if existing != nil {
		util.DuplicatePaymentsTotal.Inc()
		return nil, apperr.Newf(apperr.CodeDuplicatePayment,
			"active payment %s already exists for order %s", existing.PaymentID, req.OrderID)
	}

	assessment, err := o.risk.Analyze(ctx, RiskContext{
		OrderID:  req.OrderID,
		UserID:   req.UserID,
		Amount:   req.Amount,
		ClientIP: req.ClientIP,
	})
	if err != nil {
		return nil, fmt.Errorf("risk analysis failed: %w", err)
	}
	if assessment.AutoBlocked {
		return nil, apperr.Newf(apperr.CodeValidation,
			"payment blocked by risk policy (score=%d)", assessment.RiskScore)
	}

	adapter, err := o.gateways.Get(req.Provider)
	if err != nil {
		return nil, err
	}

	result, err := gateway.WithRetry(ctx, o.retryCfg, o.logger, func() (*gateway.CreateResult, error) {
		return adapter.Create(ctx, gateway.CreateRequest{
			OrderID:    req.OrderID,
			UserID:     req.UserID,
			Amount:     req.Amount,
			Method:     req.Method,
			BuyerName:  req.BuyerName,
			BuyerEmail: req.BuyerEmail,
			ReturnURL:  req.ReturnURL,
			CancelURL:  req.CancelURL,
			FailURL:    req.FailURL,
		})
	})
	if err != nil {
		o.logger.Error("Gateway create failed",
			zap.String("order_id", req.OrderID),
			zap.String("provider", string(req.Provider)),
			zap.Error(err))
		return nil, err
	}

	payment := &models.Payment{
		PaymentID:     result.PaymentID,
		OrderID:       req.OrderID,
		UserID:        req.UserID,
		Provider:      req.Provider,
		Method:        req.Method,
		Amount:        req.Amount,
		Status:        models.PaymentStatusCreated,
		ProcessStatus: models.ProcessStatusInitiated,
		Metadata:      result.Raw,
	}

	if err := o.store.CreatePayment(ctx, payment); err != nil {
		if apperr.IsDuplicatePayment(err) {
			util.DuplicatePaymentsTotal.Inc()
		}
		return nil, err
	}

	util.PaymentsCreatedTotal.WithLabelValues(string(req.Provider)).Inc()
	o.logger.Info("Payment created",
		zap.String("payment_id", payment.PaymentID),
		zap.String("order_id", req.OrderID),
		zap.String("provider", string(req.Provider)),
		zap.Int64("amount", req.Amount))

	return &CreatePaymentResponse{
		PaymentID:   payment.PaymentID,
		OrderID:     req.OrderID,
		Status:      payment.Status,
		RedirectURL: result.RedirectURL,
	}, nil
}

// ConfirmPayment completes an approved checkout. On gateway failure the
// payment moves to FAILED before the error is returned; failure recording is
// on the critical path, not cleanup.
func (o *PaymentOrchestrator) ConfirmPayment(ctx context.Context, paymentID, orderID string, amount int64) (*models.Payment, error) {
	ctx, span := util.StartSpan(ctx, "PaymentOrchestrator.ConfirmPayment",
		util.PaymentIDAttr(paymentID), util.OrderIDAttr(orderID))
	defer span.End()

	p, err := o.store.GetPaymentByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.OrderID != orderID {
		return nil, apperr.Newf(apperr.CodeValidation,
			"payment %s does not belong to order %s", paymentID, orderID)
	}
	if p.Status != models.PaymentStatusCreated && p.Status != models.PaymentStatusPending {
		return nil, apperr.Newf(apperr.CodeInvalidStateTransition,
			"payment %s cannot be confirmed from status %s", paymentID, p.Status)
	}
	if amount != p.Amount {
		return nil, apperr.Newf(apperr.CodeValidation,
			"amount mismatch: submitted %d, payment amount %d", amount, p.Amount)
	}

	if p.Status == models.PaymentStatusCreated {
		applied, err := o.store.TransitionStatus(ctx, store.TransitionParams{
			PaymentID:     paymentID,
			FromStatus:    models.PaymentStatusCreated,
			ToStatus:      models.PaymentStatusPending,
			ProcessStatus: models.ProcessStatusApproving,
			Source:        models.TransitionSourceAPI,
			Reason:        "confirmation requested",
		})
		if err != nil {
			return nil, err
		}
		if !applied {
			return nil, o.conflict(ctx, paymentID, "confirm")
		}
	}

	adapter, err := o.gateways.Get(p.Provider)
	if err != nil {
		return nil, err
	}

	result, confirmErr := gateway.WithRetry(ctx, o.retryCfg, o.logger, func() (*gateway.ConfirmResult, error) {
		return adapter.Confirm(ctx, paymentID, orderID, amount)
	})
	if confirmErr != nil {
		o.recordFailure(ctx, paymentID, models.PaymentStatusPending, confirmErr)
		util.PaymentsFailedTotal.WithLabelValues(string(p.Provider), "gateway_error").Inc()
		return nil, confirmErr
	}
	if result.Status != gateway.StatusApproved {
		failErr := apperr.Newf(apperr.CodeGateway,
			"provider reported status %s on confirm", result.Status)
		o.recordFailure(ctx, paymentID, models.PaymentStatusPending, failErr)
		util.PaymentsFailedTotal.WithLabelValues(string(p.Provider), "not_approved").Inc()
		return nil, failErr
	}

	applied, err := o.store.TransitionStatus(ctx, store.TransitionParams{
		PaymentID:     paymentID,
		FromStatus:    models.PaymentStatusPending,
		ToStatus:      models.PaymentStatusConfirmed,
		ProcessStatus: models.ProcessStatusApproved,
		Source:        models.TransitionSourceAPI,
		Reason:        "provider approved",
		StampApproved: true,
		Metadata:      result.Raw,
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		// A webhook may have landed first. If the payment is already
		// CONFIRMED the outcome matches; anything else is a real conflict.
		current, err := o.store.GetPaymentByPaymentID(ctx, paymentID)
		if err != nil {
			return nil, err
		}
		if current.Status != models.PaymentStatusConfirmed {
			return nil, apperr.Newf(apperr.CodeInvalidStateTransition,
				"payment %s moved to %s during confirmation", paymentID, current.Status)
		}
		return current, nil
	}

	util.PaymentsConfirmedTotal.WithLabelValues(string(p.Provider)).Inc()
	o.logger.Info("Payment confirmed",
		zap.String("payment_id", paymentID),
		zap.String("order_id", orderID))

	if err := o.orders.UpdatePaymentStatus(ctx, orderID, models.OrderStatusPaid); err != nil {
		o.logger.Error("Failed to update order payment status", zap.Error(err))
	}

	o.publish(ctx, func() error {
		return o.publisher.PublishPaymentConfirmed(ctx, &models.PaymentConfirmedEvent{
			BaseEvent: newBaseEvent(models.EventTypePaymentConfirmed),
			PaymentID: paymentID,
			OrderID:   orderID,
			Provider:  p.Provider,
			Amount:    amount,
		})
	})

	return o.store.GetPaymentByPaymentID(ctx, paymentID)
}

// CancelPayment cancels a confirmed payment, fully or partially.
func (o *PaymentOrchestrator) CancelPayment(ctx context.Context, paymentID string, cancelAmount int64, reason string) (*models.Payment, error) {
	ctx, span := util.StartSpan(ctx, "PaymentOrchestrator.CancelPayment",
		util.PaymentIDAttr(paymentID))
	defer span.End()

	p, err := o.store.GetPaymentByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != models.PaymentStatusConfirmed && p.Status != models.PaymentStatusPartialCancelled {
		return nil, apperr.Newf(apperr.CodeInvalidStateTransition,
			"payment %s cannot be cancelled from status %s", paymentID, p.Status)
	}

	remaining := p.Remaining()
	if cancelAmount == 0 {
		cancelAmount = remaining
	}
	if cancelAmount < 0 || cancelAmount > remaining {
		return nil, apperr.Newf(apperr.CodeValidation,
			"cancel amount %d exceeds remaining %d", cancelAmount, remaining)
	}

	adapter, err := o.gateways.Get(p.Provider)
	if err != nil {
		return nil, err
	}

	result, err := gateway.WithRetry(ctx, o.retryCfg, o.logger, func() (*gateway.CancelResult, error) {
		return adapter.Cancel(ctx, paymentID, cancelAmount, reason)
	})
	if err != nil {
		// The payment stays CONFIRMED; syncStatus recovers provider truth
		// if the cancel actually landed.
		o.logger.Error("Gateway cancel failed",
			zap.String("payment_id", paymentID),
			zap.Error(err))
		return nil, err
	}

	full := cancelAmount == remaining
	target := models.PaymentStatusPartialCancelled
	kind := "partial"
	if full {
		target = models.PaymentStatusCancelled
		kind = "full"
	}

	applied, err := o.store.TransitionStatus(ctx, store.TransitionParams{
		PaymentID:            paymentID,
		FromStatus:           p.Status,
		ToStatus:             target,
		ProcessStatus:        models.ProcessStatusCancelled,
		Source:               models.TransitionSourceAPI,
		Reason:               reason,
		CancelledAmountDelta: cancelAmount,
		StampCancelled:       full,
		Metadata:             result.Raw,
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, o.conflict(ctx, paymentID, "cancel")
	}

	util.PaymentsCancelledTotal.WithLabelValues(string(p.Provider), kind).Inc()
	o.logger.Info("Payment cancelled",
		zap.String("payment_id", paymentID),
		zap.Int64("cancel_amount", cancelAmount),
		zap.Bool("full", full))

	if full {
		if err := o.orders.UpdatePaymentStatus(ctx, p.OrderID, models.OrderStatusCancelled); err != nil {
			o.logger.Error("Failed to update order payment status", zap.Error(err))
		}
	}

	o.publish(ctx, func() error {
		return o.publisher.PublishPaymentCancelled(ctx, &models.PaymentCancelledEvent{
			BaseEvent:       newBaseEvent(models.EventTypePaymentCancelled),
			PaymentID:       paymentID,
			OrderID:         p.OrderID,
			Provider:        p.Provider,
			CancelledAmount: cancelAmount,
			RemainingAmount: remaining - cancelAmount,
			Partial:         !full,
		})
	})

	return o.store.GetPaymentByPaymentID(ctx, paymentID)
}

// SyncStatus re-fetches provider truth and reconciles the local ledger.
// Applying an already-applied remote state is a no-op, so the operation is
// idempotent and safe to run after crashes.
func (o *PaymentOrchestrator) SyncStatus(ctx context.Context, paymentID, source string) (*models.Payment, error) {
	ctx, span := util.StartSpan(ctx, "PaymentOrchestrator.SyncStatus",
		util.PaymentIDAttr(paymentID))
	defer span.End()

	p, err := o.store.GetPaymentByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	adapter, err := o.gateways.Get(p.Provider)
	if err != nil {
		return nil, err
	}

	remote, err := gateway.WithRetry(ctx, o.retryCfg, o.logger, func() (*gateway.StatusResult, error) {
		return adapter.GetStatus(ctx, paymentID)
	})
	if err != nil {
		return nil, err
	}

	if _, err := o.Reconcile(ctx, p, remote, source); err != nil {
		return nil, err
	}
	return o.store.GetPaymentByPaymentID(ctx, paymentID)
}

// webhookDedup keys one provider delivery. Attached to the transition the
// delivery causes so the processed marker commits in the same transaction.
type webhookDedup struct {
	eventType string
	eventID   string
}

func (d webhookDedup) stamp(params *store.TransitionParams) {
	params.WebhookEventType = d.eventType
	params.WebhookEventID = d.eventID
}

// Reconcile applies the provider's view of a payment to the local ledger
// through the state machine. It is shared by syncStatus and the webhook
// path so both obey the same transition rules. Returns whether anything
// changed; out-of-order or already-applied remote states are no-ops.
func (o *PaymentOrchestrator) Reconcile(ctx context.Context, p *models.Payment, remote *gateway.StatusResult, source string) (bool, error) {
	return o.reconcile(ctx, p, remote, source, webhookDedup{})
}

// ReconcileWebhook applies one webhook delivery. The delivery's dedup marker
// rides the transaction of the transition it causes, so a failed apply leaves
// the event unmarked and the provider's retry can still land.
func (o *PaymentOrchestrator) ReconcileWebhook(ctx context.Context, p *models.Payment, remote *gateway.StatusResult, eventType, eventID string) (bool, error) {
	return o.reconcile(ctx, p, remote, models.TransitionSourceWebhook,
		webhookDedup{eventType: eventType, eventID: eventID})
}

func (o *PaymentOrchestrator) reconcile(ctx context.Context, p *models.Payment, remote *gateway.StatusResult, source string, dedup webhookDedup) (bool, error) {
	switch remote.Status {
	case gateway.StatusReady:
		return false, nil

	case gateway.StatusApproved:
		return o.reconcileApproved(ctx, p, source, dedup)

	case gateway.StatusCancelled, gateway.StatusPartialCancelled:
		return o.reconcileCancelled(ctx, p, remote, source, dedup)

	case gateway.StatusFailed, gateway.StatusExpired:
		if p.Status != models.PaymentStatusCreated && p.Status != models.PaymentStatusPending {
			return false, nil
		}
		reason := "provider reported failure"
		if remote.Status == gateway.StatusExpired {
			reason = "provider reported expiry"
		}
		params := store.TransitionParams{
			PaymentID:     p.PaymentID,
			FromStatus:    p.Status,
			ToStatus:      models.PaymentStatusFailed,
			ProcessStatus: models.ProcessStatusFailed,
			Source:        source,
			Reason:        reason,
			FailureReason: reason,
		}
		dedup.stamp(&params)
		applied, err := o.store.TransitionStatus(ctx, params)
		if err != nil {
			return false, err
		}
		if applied {
			util.PaymentsFailedTotal.WithLabelValues(string(p.Provider), "reconciled").Inc()
		}
		return applied, nil

	default:
		return false, apperr.Newf(apperr.CodeGateway, "unreconcilable provider status %s", remote.Status)
	}
}

func (o *PaymentOrchestrator) reconcileApproved(ctx context.Context, p *models.Payment, source string, dedup webhookDedup) (bool, error) {
	status := p.Status
	if status == models.PaymentStatusCreated {
		applied, err := o.store.TransitionStatus(ctx, store.TransitionParams{
			PaymentID:     p.PaymentID,
			FromStatus:    models.PaymentStatusCreated,
			ToStatus:      models.PaymentStatusPending,
			ProcessStatus: models.ProcessStatusApproving,
			Source:        source,
			Reason:        "provider approval observed",
		})
		if err != nil {
			return false, err
		}
		if !applied {
			current, err := o.store.GetPaymentByPaymentID(ctx, p.PaymentID)
			if err != nil {
				return false, err
			}
			status = current.Status
		} else {
			status = models.PaymentStatusPending
		}
	}

	if status != models.PaymentStatusPending {
		return false, nil
	}

	// The dedup marker rides the final hop only, so a retry after a failed
	// PENDING -> CONFIRMED write still applies.
	params := store.TransitionParams{
		PaymentID:     p.PaymentID,
		FromStatus:    models.PaymentStatusPending,
		ToStatus:      models.PaymentStatusConfirmed,
		ProcessStatus: models.ProcessStatusApproved,
		Source:        source,
		Reason:        "provider approval observed",
		StampApproved: true,
	}
	dedup.stamp(&params)
	applied, err := o.store.TransitionStatus(ctx, params)
	if err != nil {
		return false, err
	}
	if applied {
		util.PaymentsConfirmedTotal.WithLabelValues(string(p.Provider)).Inc()
		if err := o.orders.UpdatePaymentStatus(ctx, p.OrderID, models.OrderStatusPaid); err != nil {
			o.logger.Error("Failed to update order payment status", zap.Error(err))
		}
		o.publish(ctx, func() error {
			return o.publisher.PublishPaymentConfirmed(ctx, &models.PaymentConfirmedEvent{
				BaseEvent: newBaseEvent(models.EventTypePaymentConfirmed),
				PaymentID: p.PaymentID,
				OrderID:   p.OrderID,
				Provider:  p.Provider,
				Amount:    p.Amount,
			})
		})
	}
	return applied, nil
}

func (o *PaymentOrchestrator) reconcileCancelled(ctx context.Context, p *models.Payment, remote *gateway.StatusResult, source string, dedup webhookDedup) (bool, error) {
	if p.Status != models.PaymentStatusConfirmed && p.Status != models.PaymentStatusPartialCancelled {
		// Includes a CANCELLED notification arriving after a local REFUNDED
		// transition: accepted as a no-op, never reverted.
		return false, nil
	}

	delta := remote.CancelledAmount - p.CancelledAmount
	full := remote.Status == gateway.StatusCancelled
	if full && remote.CancelledAmount == 0 {
		delta = p.Remaining()
	}
	if delta <= 0 {
		return false, nil
	}

	target := models.PaymentStatusPartialCancelled
	if full {
		target = models.PaymentStatusCancelled
	}

	params := store.TransitionParams{
		PaymentID:            p.PaymentID,
		FromStatus:           p.Status,
		ToStatus:             target,
		ProcessStatus:        models.ProcessStatusCancelled,
		Source:               source,
		Reason:               "provider cancellation observed",
		CancelledAmountDelta: delta,
		StampCancelled:       full,
	}
	dedup.stamp(&params)
	applied, err := o.store.TransitionStatus(ctx, params)
	if err != nil {
		return false, err
	}
	if applied {
		kind := "partial"
		if full {
			kind = "full"
		}
		util.PaymentsCancelledTotal.WithLabelValues(string(p.Provider), kind).Inc()
	}
	return applied, nil
}

// GetPayment retrieves a payment by its gateway-assigned id.
func (o *PaymentOrchestrator) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	return o.store.GetPaymentByPaymentID(ctx, paymentID)
}

// GetPaymentByOrder retrieves the active payment for an order.
func (o *PaymentOrchestrator) GetPaymentByOrder(ctx context.Context, orderID string) (*models.Payment, error) {
	p, err := o.store.GetActivePaymentByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.Newf(apperr.CodeNotFound, "no active payment for order %s", orderID)
	}
	return p, nil
}

// GetHistory retrieves the append-only transition trail for a payment.
func (o *PaymentOrchestrator) GetHistory(ctx context.Context, paymentID string) ([]models.PaymentHistory, error) {
	if _, err := o.store.GetPaymentByPaymentID(ctx, paymentID); err != nil {
		return nil, err
	}
	return o.store.GetPaymentHistory(ctx, paymentID)
}

// recordFailure transitions a payment to FAILED after a gateway fault. The
// write happens before the caller's error propagates.
func (o *PaymentOrchestrator) recordFailure(ctx context.Context, paymentID, fromStatus string, cause error) {
	applied, err := o.store.TransitionStatus(ctx, store.TransitionParams{
		PaymentID:     paymentID,
		FromStatus:    fromStatus,
		ToStatus:      models.PaymentStatusFailed,
		ProcessStatus: models.ProcessStatusFailed,
		Source:        models.TransitionSourceAPI,
		Reason:        "gateway confirmation failed",
		FailureReason: cause.Error(),
	})
	if err != nil || !applied {
		o.logger.Error("Failed to record payment failure",
			zap.String("payment_id", paymentID),
			zap.Bool("applied", applied),
			zap.Error(err))
		return
	}

	p, err := o.store.GetPaymentByPaymentID(ctx, paymentID)
	if err != nil {
		o.logger.Error("Failed to load payment after failure", zap.Error(err))
		return
	}
	o.publish(ctx, func() error {
		return o.publisher.PublishPaymentFailed(ctx, &models.PaymentFailedEvent{
			BaseEvent: newBaseEvent(models.EventTypePaymentFailed),
			PaymentID: paymentID,
			OrderID:   p.OrderID,
			Provider:  p.Provider,
			Reason:    cause.Error(),
		})
	})
}

func (o *PaymentOrchestrator) conflict(ctx context.Context, paymentID, op string) error {
	current, err := o.store.GetPaymentByPaymentID(ctx, paymentID)
	if err != nil {
		return err
	}
	return apperr.Newf(apperr.CodeInvalidStateTransition,
		"payment %s moved to %s during %s", paymentID, current.Status, op)
}

// publish logs and swallows publishing failures; domain events are
// best-effort and never abort a completed money movement.
func (o *PaymentOrchestrator) publish(ctx context.Context, fn func() error) {
	if err := fn(); err != nil {
		o.logger.Error("Failed to publish event", zap.Error(err))
	}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: timeNow(),
	}
}
