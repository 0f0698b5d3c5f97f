package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"payment-service/internal/util"

	"go.uber.org/zap"
)

// WebhookNotifier posts alerts to an operations webhook (Slack-compatible).
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier creates a webhook notifier.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (n *WebhookNotifier) SendAlert(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("alert webhook unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// LogNotifier writes alerts to the service log. Used when no alert webhook
// is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: util.GetLogger()}
}

func (n *LogNotifier) SendAlert(ctx context.Context, alert Alert) error {
	n.logger.Warn("Security alert",
		zap.String("title", alert.Title),
		zap.String("severity", alert.Severity),
		zap.String("payment_id", alert.PaymentID),
		zap.String("order_id", alert.OrderID),
		zap.String("message", alert.Message))
	return nil
}
