package handler

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-seat-hold-booking/internal/api"
	"github.com/sanosuguru/go-seat-hold-booking/internal/application"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/booking"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/hold"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/payment"
)

func testPayment(status payment.Status) *payment.Payment {
	p := payment.NewPayment("pay-1", "hold-123", "412345678901", time.Now())
	p.Status = status
	return p
}

func decodeStatus(t *testing.T, body []byte) PaymentStatusResponse {
	t.Helper()
	var resp PaymentStatusResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp
}

func TestPaymentWebhookHandler_Verifying(t *testing.T) {
	e := newTestEcho()

	t.Run("検証中になる", func(t *testing.T) {
		payments := new(MockPaymentService)
		payments.On("MarkVerifying", mock.Anything, "pay-1").Return(testPayment(payment.StatusVerifying), nil)

		c, rec := newHoldContext(e, http.MethodPost, "/payments/pay-1/verifying", "", "pay-1")
		require.NoError(t, NewPaymentWebhookHandler(payments).Verifying(c))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "verifying", decodeStatus(t, rec.Body.Bytes()).Status)
	})

	t.Run("存在しない支払い", func(t *testing.T) {
		payments := new(MockPaymentService)
		payments.On("MarkVerifying", mock.Anything, "missing").Return(nil, payment.ErrPaymentNotFound)

		c, _ := newHoldContext(e, http.MethodPost, "/payments/missing/verifying", "", "missing")
		err := NewPaymentWebhookHandler(payments).Verifying(c)

		requireHTTPError(t, err, http.StatusNotFound, KindNotFound)
	})
}

func TestPaymentWebhookHandler_Verified(t *testing.T) {
	e := newTestEcho()

	t.Run("予約が確定する", func(t *testing.T) {
		payments := new(MockPaymentService)
		payments.On("OnVerified", mock.Anything, "pay-1").Return(&booking.Booking{ID: "bk-1", HoldID: "hold-123"}, nil)

		c, rec := newHoldContext(e, http.MethodPost, "/payments/pay-1/verified", "", "pay-1")
		require.NoError(t, NewPaymentWebhookHandler(payments).Verified(c))

		resp := decodeStatus(t, rec.Body.Bytes())
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "verified", resp.Status)
		assert.Equal(t, "bk-1", resp.BookingID)
	})

	for _, cause := range []error{hold.ErrHoldExpired, hold.ErrHoldNotActive, application.ErrPaymentMismatch} {
		t.Run("座席を確保できなければ escalated: "+cause.Error(), func(t *testing.T) {
			payments := new(MockPaymentService)
			payments.On("OnVerified", mock.Anything, "pay-1").Return(nil, cause)

			c, rec := newHoldContext(e, http.MethodPost, "/payments/pay-1/verified", "", "pay-1")
			require.NoError(t, NewPaymentWebhookHandler(payments).Verified(c))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, StatusEscalated, decodeStatus(t, rec.Body.Bytes()).Status)
		})
	}

	t.Run("再送には現在の状態を返す", func(t *testing.T) {
		payments := new(MockPaymentService)
		reviewed := testPayment(payment.StatusVerified)
		reviewed.NeedsReview = true
		payments.On("OnVerified", mock.Anything, "pay-1").Return(nil, nil)
		payments.On("GetPayment", mock.Anything, "pay-1").Return(reviewed, nil)

		c, rec := newHoldContext(e, http.MethodPost, "/payments/pay-1/verified", "", "pay-1")
		require.NoError(t, NewPaymentWebhookHandler(payments).Verified(c))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, StatusEscalated, decodeStatus(t, rec.Body.Bytes()).Status)
	})

	t.Run("内部エラーはそのまま返す", func(t *testing.T) {
		payments := new(MockPaymentService)
		payments.On("OnVerified", mock.Anything, "pay-1").Return(nil, application.ErrIntegrity)

		c, _ := newHoldContext(e, http.MethodPost, "/payments/pay-1/verified", "", "pay-1")
		err := NewPaymentWebhookHandler(payments).Verified(c)

		assert.ErrorIs(t, err, application.ErrIntegrity)
	})
}

func TestPaymentWebhookHandler_Rejected(t *testing.T) {
	e := newTestEcho()

	t.Run("理由付きで拒否する", func(t *testing.T) {
		payments := new(MockPaymentService)
		payments.On("OnRejectedOrTimeout", mock.Anything, "pay-1", payment.ReasonTimeout).Return(nil)
		payments.On("GetPayment", mock.Anything, "pay-1").Return(testPayment(payment.StatusRejected), nil)

		c, rec := newHoldContext(e, http.MethodPost, "/payments/pay-1/rejected", `{"reason":"verification_timeout"}`, "pay-1")
		require.NoError(t, NewPaymentWebhookHandler(payments).Rejected(c))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "rejected", decodeStatus(t, rec.Body.Bytes()).Status)
		payments.AssertExpectations(t)
	})

	t.Run("本文なしでも受け付ける", func(t *testing.T) {
		payments := new(MockPaymentService)
		payments.On("OnRejectedOrTimeout", mock.Anything, "pay-1", "").Return(nil)
		payments.On("GetPayment", mock.Anything, "pay-1").Return(testPayment(payment.StatusRejected), nil)

		c, rec := newHoldContext(e, http.MethodPost, "/payments/pay-1/rejected", "", "pay-1")
		require.NoError(t, NewPaymentWebhookHandler(payments).Rejected(c))

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("未知の理由は400", func(t *testing.T) {
		payments := new(MockPaymentService)

		c, _ := newHoldContext(e, http.MethodPost, "/payments/pay-1/rejected", `{"reason":"fraud"}`, "pay-1")
		err := NewPaymentWebhookHandler(payments).Rejected(c)

		requireHTTPError(t, err, http.StatusBadRequest, api.KindValidationFailed)
		payments.AssertNotCalled(t, "OnRejectedOrTimeout", mock.Anything, mock.Anything, mock.Anything)
	})
}
