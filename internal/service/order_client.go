package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"payment-service/config"
	"payment-service/internal/apperr"
	"payment-service/internal/models"
	"payment-service/internal/util"

	"go.uber.org/zap"
)

// HTTPOrderClient talks to the order service over its REST API.
type HTTPOrderClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPOrderClient creates an order-service client.
func NewHTTPOrderClient(cfg config.OrderServiceConfig) *HTTPOrderClient {
	return &HTTPOrderClient{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  util.GetLogger(),
	}
}

// GetOrder fetches an order by id.
func (c *HTTPOrderClient) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderClient.GetOrder")
	defer span.End()

	url := fmt.Sprintf("%s/api/v1/orders/%s", c.baseURL, orderID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("order service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, apperr.Newf(apperr.CodeNotFound, "order not found: %s", orderID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("order service returned status %d", resp.StatusCode)
	}

	var order models.Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, fmt.Errorf("failed to decode order response: %w", err)
	}
	return &order, nil
}

// UpdatePaymentStatus tells the order service about a payment outcome.
func (c *HTTPOrderClient) UpdatePaymentStatus(ctx context.Context, orderID, status string) error {
	ctx, span := util.StartSpan(ctx, "OrderClient.UpdatePaymentStatus")
	defer span.End()

	body, err := json.Marshal(map[string]string{"payment_status": status})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/api/v1/orders/%s/payment-status", c.baseURL, orderID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("order service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("order service returned status %d", resp.StatusCode)
	}

	c.logger.Info("Order payment status updated",
		zap.String("order_id", orderID),
		zap.String("status", status))
	return nil
}
