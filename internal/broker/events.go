package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"payment-service/internal/models"
	"payment-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishPaymentConfirmed publishes PaymentConfirmed event
func (ep *EventPublisher) PublishPaymentConfirmed(ctx context.Context, event *models.PaymentConfirmedEvent) error {
	return ep.producer.PublishEvent(ctx, paymentKey(event.PaymentID), event)
}

// PublishPaymentFailed publishes PaymentFailed event
func (ep *EventPublisher) PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	return ep.producer.PublishEvent(ctx, paymentKey(event.PaymentID), event)
}

// PublishPaymentCancelled publishes PaymentCancelled event
func (ep *EventPublisher) PublishPaymentCancelled(ctx context.Context, event *models.PaymentCancelledEvent) error {
	return ep.producer.PublishEvent(ctx, paymentKey(event.PaymentID), event)
}

// PublishRefundCompleted publishes RefundCompleted event
func (ep *EventPublisher) PublishRefundCompleted(ctx context.Context, event *models.RefundCompletedEvent) error {
	return ep.producer.PublishEvent(ctx, paymentKey(event.PaymentID), event)
}

// PublishSecurityAlert publishes SecurityAlert event
func (ep *EventPublisher) PublishSecurityAlert(ctx context.Context, event *models.SecurityAlertEvent) error {
	return ep.producer.PublishEvent(ctx, paymentKey(event.PaymentID), event)
}

// Messages are keyed by payment id so events for one payment stay ordered
// within a partition.
func paymentKey(paymentID string) string {
	return fmt.Sprintf("payment-%s", paymentID)
}

// EventHandler routes consumed events to registered callbacks
type EventHandler struct {
	logger          *zap.Logger
	onSecurityAlert func(context.Context, *models.SecurityAlertEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnSecurityAlert registers a handler for SecurityAlert events
func (eh *EventHandler) OnSecurityAlert(handler func(context.Context, *models.SecurityAlertEvent) error) {
	eh.onSecurityAlert = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeSecurityAlert:
		if eh.onSecurityAlert != nil {
			var event models.SecurityAlertEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal SecurityAlert event: %w", err)
			}
			return eh.onSecurityAlert(ctx, &event)
		}

	default:
		// Confirmed/failed/cancelled/refund events are consumed by other
		// services; this service only reacts to security alerts.
	}

	return nil
}
