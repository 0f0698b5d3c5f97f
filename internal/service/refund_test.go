package service

import (
	"context"
	"testing"
	"time"

	"payment-service/internal/apperr"
	"payment-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var refundClockBase = time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)

// confirmedFixture creates an order with a confirmed 25000 payment at the
// pinned base time.
func confirmedFixture(t *testing.T) (*fixture, string) {
	t.Helper()
	f := newFixture(t, &models.Order{
		OrderID:     "O1",
		UserID:      42,
		TotalAmount: 25000,
		Status:      models.OrderStatusPending,
	})
	pinClock(t, refundClockBase)

	ctx := context.Background()
	resp, err := f.orch.CreatePayment(ctx, createRequest("O1", 25000))
	require.NoError(t, err)
	_, err = f.orch.ConfirmPayment(ctx, resp.PaymentID, "O1", 25000)
	require.NoError(t, err)
	return f, resp.PaymentID
}

func TestCalculateFee(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name       string
		amount     int64
		refundType string
		hours      float64
		want       int64
	}{
		{"inside free window", 100000, models.RefundTypePartial, 10, 0},
		{"exactly at boundary", 100000, models.RefundTypePartial, 24, 0},
		{"just past boundary", 100000, models.RefundTypePartial, 24.001, 3000},
		{"fee capped", 1000000, models.RefundTypeFull, 48, 5000},
		{"item cancel never charged", 1000000, models.RefundTypeItemCancel, 48, 0},
		{"delivery cancel charged", 100000, models.RefundTypeDeliveryCancel, 48, 3000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.refunds.calculateFee(tt.amount, tt.refundType, tt.hours))
		})
	}
}

func TestCheckEligibilityIsDeterministic(t *testing.T) {
	f, _ := confirmedFixture(t)
	pinClock(t, refundClockBase.Add(30*time.Hour))
	ctx := context.Background()

	req := &RefundRequest{OrderID: "O1", RefundType: models.RefundTypePartial, RequestedAmount: 10000}

	first, err := f.refunds.CheckEligibility(ctx, req)
	require.NoError(t, err)
	second, err := f.refunds.CheckEligibility(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, first.Eligible)
	assert.Equal(t, int64(25000), first.MaxRefundable)
	assert.Equal(t, int64(300), first.Fee)
	assert.Equal(t, int64(9700), first.ExpectedAmount)
	assert.Empty(t, first.Restrictions)

	// Quoting must not create refund rows or move the payment.
	refunds, err := f.refunds.GetRefundsByOrder(ctx, "O1")
	require.NoError(t, err)
	assert.Empty(t, refunds)
}

func TestCheckEligibilityRejections(t *testing.T) {
	f, _ := confirmedFixture(t)
	ctx := context.Background()

	_, err := f.refunds.CheckEligibility(ctx, &RefundRequest{
		OrderID: "O1", RefundType: "store_credit", RequestedAmount: 100,
	})
	assert.True(t, apperr.IsValidation(err))

	over, err := f.refunds.CheckEligibility(ctx, &RefundRequest{
		OrderID: "O1", RefundType: models.RefundTypePartial, RequestedAmount: 30000,
	})
	require.NoError(t, err)
	assert.False(t, over.Eligible)
	assert.Equal(t, int64(25000), over.MaxRefundable)

	f.orders.orders["O1"].Status = models.OrderStatusCancelled
	res, err := f.refunds.CheckEligibility(ctx, &RefundRequest{
		OrderID: "O1", RefundType: models.RefundTypePartial, RequestedAmount: 1000,
	})
	require.NoError(t, err)
	assert.False(t, res.Eligible)
}

func TestCreateRefundPartialWithFee(t *testing.T) {
	f, paymentID := confirmedFixture(t)
	pinClock(t, refundClockBase.Add(30*time.Hour))
	ctx := context.Background()

	refund, err := f.refunds.CreateRefund(ctx, &RefundRequest{
		OrderID:         "O1",
		RefundType:      models.RefundTypePartial,
		RequestedAmount: 10000,
		Reason:          "changed my mind",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RefundStatusCompleted, refund.Status)
	assert.Equal(t, int64(300), refund.Fee)
	assert.Equal(t, int64(9700), refund.ActualAmount)

	p, err := f.orch.GetPayment(ctx, paymentID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPartialCancelled, p.Status)
	assert.Equal(t, int64(9700), p.CancelledAmount)

	require.Len(t, f.pub.refunded, 1)
	assert.Equal(t, refund.ID, f.pub.refunded[0].RefundID)
}

func TestCreateRefundFullInsideFreeWindow(t *testing.T) {
	f, paymentID := confirmedFixture(t)
	pinClock(t, refundClockBase.Add(2*time.Hour))
	ctx := context.Background()

	refund, err := f.refunds.CreateRefund(ctx, &RefundRequest{
		OrderID:    "O1",
		RefundType: models.RefundTypeFull,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(25000), refund.RequestedAmount)
	assert.Zero(t, refund.Fee)
	assert.Equal(t, int64(25000), refund.ActualAmount)

	p, err := f.orch.GetPayment(ctx, paymentID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRefunded, p.Status)
	assert.Equal(t, models.OrderStatusRefunded, f.orders.updates["O1"])
}

func TestCreateRefundRequiresManualConfirmAfterReviewWindow(t *testing.T) {
	f, _ := confirmedFixture(t)
	pinClock(t, refundClockBase.Add(80*time.Hour))
	ctx := context.Background()

	req := &RefundRequest{
		OrderID:         "O1",
		RefundType:      models.RefundTypePartial,
		RequestedAmount: 10000,
	}

	quote, err := f.refunds.CheckEligibility(ctx, req)
	require.NoError(t, err)
	assert.Contains(t, quote.Restrictions, RestrictionManualConfirm)

	_, err = f.refunds.CreateRefund(ctx, req)
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))

	req.ManualConfirm = true
	refund, err := f.refunds.CreateRefund(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.RefundStatusCompleted, refund.Status)
}

func TestCreateRefundGatewayFailure(t *testing.T) {
	f, paymentID := confirmedFixture(t)
	ctx := context.Background()

	f.adapter.CancelErr = &apperr.GatewayError{
		Provider: "toss", Status: 500, Message: "upstream down", Retryable: false,
	}

	_, err := f.refunds.CreateRefund(ctx, &RefundRequest{
		OrderID:         "O1",
		RefundType:      models.RefundTypePartial,
		RequestedAmount: 5000,
	})
	require.Error(t, err)
	assert.True(t, apperr.IsGateway(err))

	refunds, err := f.refunds.GetRefundsByOrder(ctx, "O1")
	require.NoError(t, err)
	require.Len(t, refunds, 1)
	assert.Equal(t, models.RefundStatusFailed, refunds[0].Status)

	p, err := f.orch.GetPayment(ctx, paymentID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusConfirmed, p.Status, "payment untouched on gateway failure")
}

func TestRefundLedgerBoundsFollowUpRefunds(t *testing.T) {
	f, _ := confirmedFixture(t)
	ctx := context.Background()

	_, err := f.refunds.CreateRefund(ctx, &RefundRequest{
		OrderID: "O1", RefundType: models.RefundTypePartial, RequestedAmount: 20000,
	})
	require.NoError(t, err)

	quote, err := f.refunds.CheckEligibility(ctx, &RefundRequest{
		OrderID: "O1", RefundType: models.RefundTypePartial, RequestedAmount: 10000,
	})
	require.NoError(t, err)
	assert.False(t, quote.Eligible)
	assert.Equal(t, int64(5000), quote.MaxRefundable)

	refund, err := f.refunds.CreateRefund(ctx, &RefundRequest{
		OrderID: "O1", RefundType: models.RefundTypePartial, RequestedAmount: 5000,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5000), refund.ActualAmount)

	p, err := f.st.GetActivePaymentByOrderID(ctx, "O1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, models.PaymentStatusRefunded, p.Status)
}
