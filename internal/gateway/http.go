package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"payment-service/internal/apperr"
	"payment-service/internal/util"
)

// httpCaller wraps outbound provider calls with a bounded timeout and maps
// transport faults and HTTP statuses to GatewayError. 5xx and timeouts are
// retryable; 4xx provider rejections are final.
type httpCaller struct {
	client   *http.Client
	provider string
}

func newHTTPCaller(provider string, timeout time.Duration) *httpCaller {
	return &httpCaller{
		client:   &http.Client{Timeout: timeout},
		provider: provider,
	}
}

// postJSON sends a JSON body and returns the raw response bytes.
func (c *httpCaller) postJSON(ctx context.Context, op, rawURL string, body []byte, headers map[string]string) ([]byte, error) {
	return c.do(ctx, op, http.MethodPost, rawURL, bytes.NewReader(body), "application/json", headers)
}

// postForm sends form-encoded values and returns the raw response bytes.
func (c *httpCaller) postForm(ctx context.Context, op, rawURL string, form url.Values, headers map[string]string) ([]byte, error) {
	return c.do(ctx, op, http.MethodPost, rawURL, strings.NewReader(form.Encode()),
		"application/x-www-form-urlencoded;charset=utf-8", headers)
}

// get performs a GET and returns the raw response bytes.
func (c *httpCaller) get(ctx context.Context, op, rawURL string, headers map[string]string) ([]byte, error) {
	return c.do(ctx, op, http.MethodGet, rawURL, nil, "", headers)
}

func (c *httpCaller) do(ctx context.Context, op, method, rawURL string, body io.Reader, contentType string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", c.provider, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	util.GatewayCallLatency.WithLabelValues(c.provider, op).Observe(time.Since(start).Seconds())
	if err != nil {
		// Timeouts and connection faults may succeed on retry.
		util.GatewayErrorsTotal.WithLabelValues(c.provider, op, "true").Inc()
		return nil, &apperr.GatewayError{
			Provider:  c.provider,
			Message:   err.Error(),
			Retryable: true,
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		util.GatewayErrorsTotal.WithLabelValues(c.provider, op, "true").Inc()
		return nil, &apperr.GatewayError{
			Provider:  c.provider,
			Message:   fmt.Sprintf("failed to read response: %v", err),
			Retryable: true,
		}
	}

	if resp.StatusCode >= 500 {
		util.GatewayErrorsTotal.WithLabelValues(c.provider, op, "true").Inc()
		return nil, &apperr.GatewayError{
			Provider:  c.provider,
			Status:    resp.StatusCode,
			Message:   truncate(string(data), 512),
			Retryable: true,
		}
	}
	if resp.StatusCode >= 400 {
		util.GatewayErrorsTotal.WithLabelValues(c.provider, op, "false").Inc()
		return nil, &apperr.GatewayError{
			Provider:  c.provider,
			Status:    resp.StatusCode,
			Message:   truncate(string(data), 512),
			Retryable: false,
		}
	}

	return data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// verifyHMAC checks a hex-encoded HMAC-SHA256 signature over payload with a
// constant-time compare.
func verifyHMAC(provider string, secret, payload []byte, signature string) error {
	if signature == "" {
		return apperr.Newf(apperr.CodeInvalidSignature, "%s webhook signature missing", provider)
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return apperr.Newf(apperr.CodeInvalidSignature, "%s webhook signature mismatch", provider)
	}
	return nil
}

// unknownStatusErr is returned when a provider reports a status the mapping
// table does not know. Not retryable; syncStatus will surface it for triage.
func unknownStatusErr(provider, status string) error {
	return &apperr.GatewayError{
		Provider:  provider,
		Message:   fmt.Sprintf("unknown provider status %q", status),
		Retryable: false,
	}
}

var errNoRedirect = errors.New("provider response missing redirect url")
