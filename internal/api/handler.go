package api

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"payment-service/internal/apperr"
	"payment-service/internal/models"
	"payment-service/internal/service"
	"payment-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	payments *service.PaymentOrchestrator
	refunds  *service.RefundService
	webhooks *service.WebhookReconciler
	risk     *service.RiskScorer
}

// NewHandler creates a new HTTP handler
func NewHandler(payments *service.PaymentOrchestrator, refunds *service.RefundService, webhooks *service.WebhookReconciler, risk *service.RiskScorer) *Handler {
	return &Handler{
		payments: payments,
		refunds:  refunds,
		webhooks: webhooks,
		risk:     risk,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/payments", h.createPayment)
		v1.POST("/payments/:id/confirm", h.confirmPayment)
		v1.POST("/payments/:id/cancel", h.cancelPayment)
		v1.POST("/payments/:id/sync", h.syncPayment)
		v1.GET("/payments/:id", h.getPayment)
		v1.GET("/payments/:id/history", h.getPaymentHistory)
		v1.GET("/payments/:id/security-events", h.getSecurityEvents)
		v1.GET("/orders/:orderId/payment", h.getPaymentByOrder)
		v1.GET("/orders/:orderId/refunds", h.getRefundsByOrder)
		v1.POST("/refunds/eligibility", h.checkRefundEligibility)
		v1.POST("/refunds", h.createRefund)
		v1.GET("/refunds/:id", h.getRefund)
	}

	router.POST("/webhooks/:provider", h.handleWebhook)
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// createPayment starts a payment for an order
func (h *Handler) createPayment(c *gin.Context) {
	var req service.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	req.ClientIP = c.ClientIP()

	resp, err := h.payments.CreatePayment(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

type confirmPaymentRequest struct {
	OrderID string `json:"order_id" binding:"required"`
	Amount  int64  `json:"amount" binding:"required,min=1"`
}

// confirmPayment completes an approved checkout
func (h *Handler) confirmPayment(c *gin.Context) {
	var req confirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	payment, err := h.payments.ConfirmPayment(c.Request.Context(), c.Param("id"), req.OrderID, req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

type cancelPaymentRequest struct {
	CancelAmount int64  `json:"cancel_amount"`
	Reason       string `json:"reason"`
}

// cancelPayment cancels a confirmed payment fully or partially
func (h *Handler) cancelPayment(c *gin.Context) {
	var req cancelPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	payment, err := h.payments.CancelPayment(c.Request.Context(), c.Param("id"), req.CancelAmount, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

// syncPayment re-fetches provider truth for a payment
func (h *Handler) syncPayment(c *gin.Context) {
	payment, err := h.payments.SyncStatus(c.Request.Context(), c.Param("id"), models.TransitionSourceSync)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

// getPayment handles get payment by ID
func (h *Handler) getPayment(c *gin.Context) {
	payment, err := h.payments.GetPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

// getPaymentHistory returns the transition trail for a payment
func (h *Handler) getPaymentHistory(c *gin.Context) {
	history, err := h.payments.GetHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

// getSecurityEvents returns the risk audit trail for a payment
func (h *Handler) getSecurityEvents(c *gin.Context) {
	if _, err := h.payments.GetPayment(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	events, err := h.risk.GetSecurityEvents(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// getPaymentByOrder returns the active payment for an order
func (h *Handler) getPaymentByOrder(c *gin.Context) {
	payment, err := h.payments.GetPaymentByOrder(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

// checkRefundEligibility quotes a refund without executing it
func (h *Handler) checkRefundEligibility(c *gin.Context) {
	var req service.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	result, err := h.refunds.CheckEligibility(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// createRefund executes a refund
func (h *Handler) createRefund(c *gin.Context) {
	var req service.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	refund, err := h.refunds.CreateRefund(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, refund)
}

// getRefund handles get refund by ID
func (h *Handler) getRefund(c *gin.Context) {
	refund, err := h.refunds.GetRefund(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, refund)
}

// getRefundsByOrder lists refunds recorded against an order
func (h *Handler) getRefundsByOrder(c *gin.Context) {
	refunds, err := h.refunds.GetRefundsByOrder(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refunds": refunds})
}

// handleWebhook receives a gateway notification. Duplicates and unknown
// payments return 200 so the provider stops retrying.
func (h *Handler) handleWebhook(c *gin.Context) {
	provider := models.Provider(c.Param("provider"))
	if !models.ValidProvider(provider) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown provider"})
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	if err := h.webhooks.Handle(c.Request.Context(), provider, payload, webhookSignature(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

// webhookSignature extracts the HMAC signature header. Providers differ on
// the header name; the first non-empty one wins.
func webhookSignature(c *gin.Context) string {
	for _, header := range []string{"X-Webhook-Signature", "X-Kakao-Signature", "X-Toss-Signature", "X-Naver-Signature"} {
		if sig := c.GetHeader(header); sig != "" {
			return sig
		}
	}
	return ""
}

// writeError maps domain errors onto HTTP statuses. Gateway faults are
// reported generically; provider error detail stays in the logs.
func writeError(c *gin.Context, err error) {
	switch {
	case apperr.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case apperr.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case apperr.IsDuplicatePayment(err), apperr.IsInvalidStateTransition(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case apperr.IsInvalidSignature(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid webhook signature"})
	case apperr.IsGateway(err):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Payment processing failed"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
