package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"payment-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func riskContext(amount int64) RiskContext {
	return RiskContext{
		OrderID:  "O1",
		UserID:   42,
		Amount:   amount,
		ClientIP: "203.0.113.7",
	}
}

func TestAnalyzeLowRisk(t *testing.T) {
	f := newFixture(t)

	a, err := f.risk.Analyze(context.Background(), riskContext(30000))
	require.NoError(t, err)
	assert.Zero(t, a.RiskScore)
	assert.Equal(t, models.RiskLevelLow, a.RiskLevel)
	assert.False(t, a.AutoBlocked)
	assert.False(t, a.RequiresManualReview)
	assert.Empty(t, f.st.securityEvents)
	assert.Empty(t, f.pub.alerts)
}

func TestAnalyzeHighRiskRequiresReview(t *testing.T) {
	f := newFixture(t)
	// 2,000,000 at 03:00 with 6 recent attempts: 25 + 15 + 20 = 60.
	pinClock(t, time.Date(2025, 6, 10, 3, 0, 0, 0, time.UTC))
	f.attempts.count = 6

	a, err := f.risk.Analyze(context.Background(), riskContext(2000000))
	require.NoError(t, err)
	assert.Equal(t, 60, a.RiskScore)
	assert.Equal(t, models.RiskLevelHigh, a.RiskLevel)
	assert.False(t, a.AutoBlocked)
	assert.True(t, a.RequiresManualReview)

	require.Len(t, f.st.securityEvents, 1)
	assert.Equal(t, models.SecurityEventHighRisk, f.st.securityEvents[0].EventType)
	require.Len(t, f.pub.alerts, 1)
	assert.Equal(t, 60, f.pub.alerts[0].RiskScore)
}

func TestAnalyzeAutoBlock(t *testing.T) {
	f := newFixture(t)
	// All four factors: 25 + 15 + 30 + 20 = 90, critical and past the block score.
	pinClock(t, time.Date(2025, 6, 10, 23, 30, 0, 0, time.UTC))
	f.reputation.highRisk["203.0.113.7"] = true
	f.attempts.count = 9

	a, err := f.risk.Analyze(context.Background(), riskContext(1500000))
	require.NoError(t, err)
	assert.Equal(t, 90, a.RiskScore)
	assert.Equal(t, models.RiskLevelCritical, a.RiskLevel)
	assert.True(t, a.AutoBlocked)
	assert.True(t, a.RequiresManualReview)
	assert.Len(t, a.Factors, 4)

	require.Len(t, f.st.securityEvents, 1)
	assert.Equal(t, models.SecurityEventAutoBlocked, f.st.securityEvents[0].EventType)
}

func TestAnalyzeCriticalScoreBelowBlockThreshold(t *testing.T) {
	f := newFixture(t)
	// 25 + 30 + 20 = 75: critical level but under the auto-block score.
	f.reputation.highRisk["203.0.113.7"] = true
	f.attempts.count = 9

	a, err := f.risk.Analyze(context.Background(), riskContext(1500000))
	require.NoError(t, err)
	assert.Equal(t, 75, a.RiskScore)
	assert.Equal(t, models.RiskLevelCritical, a.RiskLevel)
	assert.False(t, a.AutoBlocked)
}

func TestAnalyzeAmountAtThresholdNotFlagged(t *testing.T) {
	f := newFixture(t)

	// The factor fires strictly above the threshold, not at it.
	a, err := f.risk.Analyze(context.Background(), riskContext(1000000))
	require.NoError(t, err)
	assert.Zero(t, a.RiskScore)
	assert.Empty(t, a.Factors)

	a, err = f.risk.Analyze(context.Background(), riskContext(1000001))
	require.NoError(t, err)
	assert.Equal(t, 25, a.RiskScore)
}

func TestAnalyzeBurstFallsBackToDatabase(t *testing.T) {
	f := newFixture(t)
	f.attempts.err = errors.New("redis down")
	f.st.attemptsByUser[42] = 9

	a, err := f.risk.Analyze(context.Background(), riskContext(30000))
	require.NoError(t, err)
	assert.Equal(t, 20, a.RiskScore, "burst factor fires from the database count")
	require.Len(t, a.Factors, 1)
	assert.Equal(t, "burst_attempts", a.Factors[0].Name)
}

func TestAnalyzeDegradesWhenSignalsUnavailable(t *testing.T) {
	f := newFixture(t)
	f.reputation.err = errors.New("reputation service down")
	f.attempts.err = errors.New("redis down")

	a, err := f.risk.Analyze(context.Background(), riskContext(2000000))
	require.NoError(t, err)
	assert.Equal(t, 25, a.RiskScore, "only the amount factor can fire")
	assert.Equal(t, models.RiskLevelMedium, a.RiskLevel)
}

func TestAnalyzeCriticalAmountAlwaysAlerts(t *testing.T) {
	f := newFixture(t)

	a, err := f.risk.Analyze(context.Background(), riskContext(6000000))
	require.NoError(t, err)
	assert.Equal(t, 25, a.RiskScore)
	assert.False(t, a.RequiresManualReview)
	require.Len(t, f.pub.alerts, 1, "critical amounts alert regardless of score")
	assert.Equal(t, int64(6000000), f.pub.alerts[0].Amount)
}

func TestGetSecurityEventsReturnsAuditTrail(t *testing.T) {
	f := newFixture(t)
	pinClock(t, time.Date(2025, 6, 10, 3, 0, 0, 0, time.UTC))
	f.attempts.count = 6

	rc := riskContext(2000000)
	rc.PaymentID = "toss-pay-risk-1"
	_, err := f.risk.Analyze(context.Background(), rc)
	require.NoError(t, err)

	events, err := f.risk.GetSecurityEvents(context.Background(), "toss-pay-risk-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.SecurityEventHighRisk, events[0].EventType)
}

func TestRiskLevelBoundaries(t *testing.T) {
	assert.Equal(t, models.RiskLevelLow, riskLevel(0))
	assert.Equal(t, models.RiskLevelLow, riskLevel(24))
	assert.Equal(t, models.RiskLevelMedium, riskLevel(25))
	assert.Equal(t, models.RiskLevelMedium, riskLevel(49))
	assert.Equal(t, models.RiskLevelHigh, riskLevel(50))
	assert.Equal(t, models.RiskLevelHigh, riskLevel(74))
	assert.Equal(t, models.RiskLevelCritical, riskLevel(75))
	assert.Equal(t, models.RiskLevelCritical, riskLevel(100))
}
