package service

import (
	"context"
	"encoding/json"
	"time"

	"payment-service/internal/apperr"
	"payment-service/internal/gateway"
	"payment-service/internal/models"
	"payment-service/internal/util"

	"go.uber.org/zap"
)

// webhookSeenTTL bounds the redis fast-path dedup markers. The database
// dedup table keeps the durable record.
const webhookSeenTTL = 24 * time.Hour

// WebhookReconciler applies gateway notifications to the local ledger. It
// reuses the orchestrator's reconciliation so webhook-driven transitions obey
// the same state machine as the synchronous API path.
type WebhookReconciler struct {
	store        Store
	gateways     *gateway.Registry
	orchestrator *PaymentOrchestrator
	deduper      WebhookDeduper
	logger       *zap.Logger
}

// NewWebhookReconciler creates a webhook reconciler.
func NewWebhookReconciler(st Store, gateways *gateway.Registry, orchestrator *PaymentOrchestrator, deduper WebhookDeduper) *WebhookReconciler {
	return &WebhookReconciler{
		store:        st,
		gateways:     gateways,
		orchestrator: orchestrator,
		deduper:      deduper,
		logger:       util.GetLogger(),
	}
}

// Handle processes one raw webhook delivery. Unknown payments, duplicate
// deliveries and out-of-order notifications are all absorbed silently so the
// provider sees a 200 and stops retrying; only signature failures and
// infrastructure errors surface.
func (w *WebhookReconciler) Handle(ctx context.Context, provider models.Provider, payload []byte, signature string) error {
	ctx, span := util.StartSpan(ctx, "WebhookReconciler.Handle",
		util.ProviderAttr(string(provider)))
	defer span.End()

	util.WebhooksReceivedTotal.WithLabelValues(string(provider)).Inc()

	adapter, err := w.gateways.Get(provider)
	if err != nil {
		return err
	}

	if err := adapter.VerifyWebhookSignature(payload, signature); err != nil {
		util.WebhooksInvalidSignatureTotal.WithLabelValues(string(provider)).Inc()
		w.recordInvalidSignature(ctx, provider, payload)
		return err
	}

	event, err := adapter.ParseWebhook(payload)
	if err != nil {
		return err
	}

	p, err := w.store.GetPaymentByPaymentID(ctx, event.PaymentID)
	if err != nil {
		if apperr.IsNotFound(err) {
			w.logger.Warn("Webhook for unknown payment discarded",
				zap.String("provider", string(provider)),
				zap.String("payment_id", event.PaymentID),
				zap.String("event_type", event.EventType))
			return nil
		}
		return err
	}

	seen, err := w.deduper.WasWebhookSeen(ctx, string(provider), event.PaymentID, event.EventType, event.EventID)
	if err != nil {
		// Fall through to the database check when redis is down.
		w.logger.Warn("Webhook dedup cache unavailable", zap.Error(err))
	} else if seen {
		util.WebhooksDuplicateTotal.WithLabelValues(string(provider)).Inc()
		return nil
	}

	processed, err := w.store.IsWebhookProcessed(ctx, event.PaymentID, event.EventType, event.EventID)
	if err != nil {
		return err
	}
	if processed {
		util.WebhooksDuplicateTotal.WithLabelValues(string(provider)).Inc()
		w.logger.Info("Duplicate webhook ignored",
			zap.String("provider", string(provider)),
			zap.String("payment_id", event.PaymentID),
			zap.String("event_id", event.EventID))
		return nil
	}

	// The durable dedup marker commits inside the transition's transaction;
	// nothing is marked up front. A failed apply leaves the event unmarked so
	// the provider's retry of the identical delivery can still land.
	changed, err := w.orchestrator.ReconcileWebhook(ctx, p, w.toStatusResult(p, event), event.EventType, event.EventID)
	if err != nil {
		return err
	}
	if changed {
		w.markSeen(ctx, provider, event)
		return nil
	}

	w.logger.Info("Webhook carried no new state",
		zap.String("payment_id", event.PaymentID),
		zap.String("event_type", event.EventType),
		zap.String("local_status", p.Status))

	// A terminal payment can never accept this event, so the no-op is
	// absorbed permanently. Non-terminal no-ops stay unmarked: an
	// out-of-order delivery may apply once local state catches up.
	if models.IsTerminalStatus(p.Status) {
		if _, err := w.store.MarkWebhookProcessed(ctx, event.PaymentID, event.EventType, event.EventID); err != nil {
			w.logger.Warn("Failed to mark absorbed webhook", zap.Error(err))
			return nil
		}
		w.markSeen(ctx, provider, event)
	}
	return nil
}

// markSeen sets the redis fast-path marker. Best effort; the database marker
// is authoritative.
func (w *WebhookReconciler) markSeen(ctx context.Context, provider models.Provider, event *gateway.WebhookEvent) {
	if _, err := w.deduper.MarkWebhookSeen(ctx, string(provider), event.PaymentID, event.EventType, event.EventID, webhookSeenTTL); err != nil {
		w.logger.Warn("Webhook dedup cache unavailable", zap.Error(err))
	}
}

// toStatusResult lifts a webhook event into the provider-truth shape the
// reconciler consumes. Cancel events carry the cancelled delta, so the
// cumulative cancelled amount is the ledger value plus the event amount.
func (w *WebhookReconciler) toStatusResult(p *models.Payment, event *gateway.WebhookEvent) *gateway.StatusResult {
	result := &gateway.StatusResult{
		Status: event.Status,
		Amount: p.Amount,
		Raw:    event.Raw,
	}
	switch event.Status {
	case gateway.StatusCancelled, gateway.StatusPartialCancelled:
		result.CancelledAmount = p.CancelledAmount + event.Amount
	}
	return result
}

func (w *WebhookReconciler) recordInvalidSignature(ctx context.Context, provider models.Provider, payload []byte) {
	detail, err := json.Marshal(map[string]interface{}{
		"provider":     provider,
		"payload_size": len(payload),
	})
	if err != nil {
		return
	}
	if err := w.store.InsertSecurityEvent(ctx, &models.SecurityEvent{
		EventType: models.SecurityEventInvalidSignature,
		Severity:  models.RiskLevelHigh,
		Detail:    detail,
	}); err != nil {
		w.logger.Error("Failed to record signature failure", zap.Error(err))
	}
	w.logger.Warn("Webhook signature verification failed",
		zap.String("provider", string(provider)))
}
