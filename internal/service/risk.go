package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"payment-service/config"
	"payment-service/internal/models"
	"payment-service/internal/util"

	"go.uber.org/zap"
)

// Factor weights. The sum is capped at 100.
const (
	scoreHighAmount = 25
	scoreOffHours   = 15
	scoreHighRiskIP = 30
	scoreBurst      = 20
)

// RiskContext is the input to a risk analysis, captured before the payment
// row exists.
type RiskContext struct {
	PaymentID string
	OrderID   string
	UserID    int64
	Amount    int64
	ClientIP  string
}

// RiskScorer scores payment attempts from deterministic weighted factors.
type RiskScorer struct {
	policy     config.PolicyConfig
	reputation ReputationClient
	attempts   AttemptCounter
	store      Store
	publisher  Publisher
	logger     *zap.Logger
}

// NewRiskScorer creates a risk scorer.
func NewRiskScorer(policy config.PolicyConfig, reputation ReputationClient, attempts AttemptCounter, st Store, publisher Publisher) *RiskScorer {
	return &RiskScorer{
		policy:     policy,
		reputation: reputation,
		attempts:   attempts,
		store:      st,
		publisher:  publisher,
		logger:     util.GetLogger(),
	}
}

// Analyze scores one payment attempt. The same inputs always produce the
// same score; only the attempt counter moves between calls. Signal lookups
// that fail degrade to factor-absent rather than aborting the payment.
func (s *RiskScorer) Analyze(ctx context.Context, rc RiskContext) (*models.RiskAssessment, error) {
	ctx, span := util.StartSpan(ctx, "RiskScorer.Analyze",
		util.OrderIDAttr(rc.OrderID))
	defer span.End()

	now := timeNow()
	var factors []models.RiskFactor

	if rc.Amount > s.policy.RiskHighAmountThreshold {
		factors = append(factors, models.RiskFactor{
			Name:        "high_amount",
			Score:       scoreHighAmount,
			Description: fmt.Sprintf("amount %d above threshold %d", rc.Amount, s.policy.RiskHighAmountThreshold),
		})
	}

	if hour := now.Hour(); hour < 6 || hour > 22 {
		factors = append(factors, models.RiskFactor{
			Name:        "off_hours",
			Score:       scoreOffHours,
			Description: fmt.Sprintf("transaction at hour %d", hour),
		})
	}

	if rc.ClientIP != "" {
		highRisk, err := s.reputation.IsHighRiskIP(ctx, rc.ClientIP)
		if err != nil {
			s.logger.Warn("IP reputation lookup failed",
				zap.String("ip", rc.ClientIP),
				zap.Error(err))
		} else if highRisk {
			factors = append(factors, models.RiskFactor{
				Name:        "high_risk_ip",
				Score:       scoreHighRiskIP,
				Description: "client IP flagged by reputation service",
			})
		}
	}

	attempts, err := s.attempts.RecordPaymentAttempt(ctx, rc.UserID, time.Hour)
	if err != nil {
		s.logger.Warn("Attempt counter unavailable, falling back to database", zap.Error(err))
		attempts, err = s.store.CountRecentPaymentAttempts(ctx, rc.UserID, time.Hour)
	}
	if err != nil {
		s.logger.Warn("Attempt count unavailable, skipping burst factor", zap.Error(err))
	} else if attempts > s.policy.RiskBurstAttempts {
		factors = append(factors, models.RiskFactor{
			Name:        "burst_attempts",
			Score:       scoreBurst,
			Description: fmt.Sprintf("%d attempts in the last hour", attempts),
		})
	}

	score := 0
	for _, f := range factors {
		score += f.Score
	}
	if score > 100 {
		score = 100
	}

	level := riskLevel(score)
	assessment := &models.RiskAssessment{
		PaymentID:            rc.PaymentID,
		OrderID:              rc.OrderID,
		RiskScore:            score,
		RiskLevel:            level,
		Factors:              factors,
		AutoBlocked:          level == models.RiskLevelCritical && score >= s.policy.RiskAutoBlockScore,
		RequiresManualReview: level == models.RiskLevelHigh || level == models.RiskLevelCritical,
		AssessedAt:           now,
	}

	util.RiskAssessmentsTotal.WithLabelValues(level).Inc()
	if assessment.AutoBlocked {
		util.RiskAutoBlockedTotal.Inc()
	}

	if assessment.RequiresManualReview {
		s.recordSecurityEvent(ctx, rc, assessment)
	}
	if assessment.RequiresManualReview || rc.Amount >= s.policy.RiskCriticalAmountThreshold {
		s.publishAlert(ctx, rc, assessment)
	}

	return assessment, nil
}

// GetSecurityEvents retrieves the audit trail recorded against a payment.
func (s *RiskScorer) GetSecurityEvents(ctx context.Context, paymentID string) ([]models.SecurityEvent, error) {
	return s.store.GetSecurityEventsByPaymentID(ctx, paymentID)
}

func riskLevel(score int) string {
	switch {
	case score < 25:
		return models.RiskLevelLow
	case score < 50:
		return models.RiskLevelMedium
	case score < 75:
		return models.RiskLevelHigh
	default:
		return models.RiskLevelCritical
	}
}

func (s *RiskScorer) recordSecurityEvent(ctx context.Context, rc RiskContext, a *models.RiskAssessment) {
	eventType := models.SecurityEventHighRisk
	if a.AutoBlocked {
		eventType = models.SecurityEventAutoBlocked
	}

	detail, err := json.Marshal(a)
	if err != nil {
		s.logger.Error("Failed to encode risk assessment", zap.Error(err))
		return
	}

	if err := s.store.InsertSecurityEvent(ctx, &models.SecurityEvent{
		EventType: eventType,
		PaymentID: rc.PaymentID,
		OrderID:   rc.OrderID,
		Severity:  a.RiskLevel,
		Detail:    detail,
	}); err != nil {
		s.logger.Error("Failed to record security event",
			zap.String("order_id", rc.OrderID),
			zap.Error(err))
	}
}

func (s *RiskScorer) publishAlert(ctx context.Context, rc RiskContext, a *models.RiskAssessment) {
	if err := s.publisher.PublishSecurityAlert(ctx, &models.SecurityAlertEvent{
		BaseEvent:   newBaseEvent(models.EventTypeSecurityAlert),
		PaymentID:   rc.PaymentID,
		OrderID:     rc.OrderID,
		UserID:      rc.UserID,
		Amount:      rc.Amount,
		RiskScore:   a.RiskScore,
		RiskLevel:   a.RiskLevel,
		AutoBlocked: a.AutoBlocked,
	}); err != nil {
		s.logger.Error("Failed to publish security alert",
			zap.String("order_id", rc.OrderID),
			zap.Error(err))
	}
}
