package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"payment-service/config"
	"payment-service/internal/util"

	"go.uber.org/zap"
)

// HTTPReputationClient queries the IP reputation service.
type HTTPReputationClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPReputationClient creates an IP reputation client.
func NewHTTPReputationClient(cfg config.RiskServiceConfig) *HTTPReputationClient {
	return &HTTPReputationClient{
		baseURL: cfg.ReputationURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  util.GetLogger(),
	}
}

// IsHighRiskIP reports whether ip is flagged by the reputation service.
// Lookup failures are returned so the caller can decide how to degrade; the
// risk scorer treats an unavailable lookup as not-high-risk.
func (c *HTTPReputationClient) IsHighRiskIP(ctx context.Context, ip string) (bool, error) {
	reqURL := fmt.Sprintf("%s/api/v1/reputation?ip=%s", c.baseURL, url.QueryEscape(ip))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return false, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("reputation service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("reputation service returned status %d", resp.StatusCode)
	}

	var result struct {
		HighRisk bool `json:"high_risk"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("failed to decode reputation response: %w", err)
	}
	return result.HighRisk, nil
}
