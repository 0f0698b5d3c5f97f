package worker

import (
	"context"
	"fmt"
	"time"

	"payment-service/internal/apperr"
	"payment-service/internal/broker"
	"payment-service/internal/models"
	"payment-service/internal/service"
	"payment-service/internal/util"

	"go.uber.org/zap"
)

// AlertWorker consumes security alert events and fans them out to the
// configured notification channel.
type AlertWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	notifier     service.Notifier
	logger       *zap.Logger
}

// NewAlertWorker creates a new alert worker
func NewAlertWorker(consumer *broker.Consumer, notifier service.Notifier) *AlertWorker {
	w := &AlertWorker{
		consumer: consumer,
		notifier: notifier,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnSecurityAlert(w.handleSecurityAlert)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *AlertWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting alert worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *AlertWorker) Stop() error {
	w.logger.Info("Stopping alert worker")
	return w.consumer.Close()
}

func (w *AlertWorker) handleSecurityAlert(ctx context.Context, event *models.SecurityAlertEvent) error {
	severity := event.RiskLevel
	title := "High risk transaction"
	if event.AutoBlocked {
		title = "Transaction auto-blocked"
	}

	return w.notifier.SendAlert(ctx, service.Alert{
		Title:     title,
		Severity:  severity,
		PaymentID: event.PaymentID,
		OrderID:   event.OrderID,
		Message:   fmt.Sprintf("risk score %d for amount %d", event.RiskScore, event.Amount),
	})
}

// StuckPaymentLister finds payments that stalled before reaching a settled
// status. *store.Store implements it.
type StuckPaymentLister interface {
	ListStuckPayments(ctx context.Context, maxAge time.Duration, limit int) ([]models.Payment, error)
}

// Locker serializes the reconcile sweep across replicas.
// *redisclient.Client implements it.
type Locker interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

const (
	reconcileLockKey   = "payment-reconcile"
	reconcileBatchSize = 100
)

// ReconcileWorker periodically sweeps payments stuck in CREATED or PENDING
// and replays provider truth through the normal sync path. A distributed
// lock keeps replicas from sweeping concurrently.
type ReconcileWorker struct {
	store        StuckPaymentLister
	orchestrator *service.PaymentOrchestrator
	locker       Locker
	interval     time.Duration
	maxAge       time.Duration
	logger       *zap.Logger
}

// NewReconcileWorker creates a new reconcile worker
func NewReconcileWorker(st StuckPaymentLister, orchestrator *service.PaymentOrchestrator, locker Locker, interval, maxAge time.Duration) *ReconcileWorker {
	return &ReconcileWorker{
		store:        st,
		orchestrator: orchestrator,
		locker:       locker,
		interval:     interval,
		maxAge:       maxAge,
		logger:       util.GetLogger(),
	}
}

// Start runs the sweep loop until ctx is cancelled.
func (w *ReconcileWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting reconcile worker",
		zap.Duration("interval", w.interval),
		zap.Duration("max_age", w.maxAge))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Stopping reconcile worker")
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ReconcileWorker) sweep(ctx context.Context) {
	acquired, err := w.locker.AcquireLock(ctx, reconcileLockKey, w.interval)
	if err != nil {
		w.logger.Error("Failed to acquire reconcile lock", zap.Error(err))
		return
	}
	if !acquired {
		return
	}
	defer func() {
		if err := w.locker.ReleaseLock(ctx, reconcileLockKey); err != nil {
			w.logger.Error("Failed to release reconcile lock", zap.Error(err))
		}
	}()

	stuck, err := w.store.ListStuckPayments(ctx, w.maxAge, reconcileBatchSize)
	if err != nil {
		w.logger.Error("Failed to list stuck payments", zap.Error(err))
		return
	}
	if len(stuck) == 0 {
		return
	}

	w.logger.Info("Reconciling stuck payments", zap.Int("count", len(stuck)))
	for _, p := range stuck {
		if _, err := w.orchestrator.SyncStatus(ctx, p.PaymentID, models.TransitionSourceWorker); err != nil {
			// Gateway faults are expected here; the next sweep retries.
			if apperr.IsGateway(err) {
				w.logger.Warn("Stuck payment sync failed",
					zap.String("payment_id", p.PaymentID),
					zap.Error(err))
				continue
			}
			w.logger.Error("Stuck payment reconcile error",
				zap.String("payment_id", p.PaymentID),
				zap.Error(err))
		}
	}
}
