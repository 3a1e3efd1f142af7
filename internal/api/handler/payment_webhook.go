package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-seat-hold-booking/internal/api/middleware"
	"github.com/sanosuguru/go-seat-hold-booking/internal/application"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/hold"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/payment"
	"github.com/sanosuguru/go-seat-hold-booking/internal/pkg/logger"
)

// StatusEscalated は入金確認済みで座席を確保できなかったことを表す
const StatusEscalated = "escalated"

// PaymentWebhookHandler は決済側からのコールバックを受け付ける
// コールバックは再送されるため、同じ内容の2回目以降も200を返す
type PaymentWebhookHandler struct {
	payments PaymentServiceInterface
	log      *zap.Logger
}

func NewPaymentWebhookHandler(p PaymentServiceInterface) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{payments: p, log: logger.Component("payment_webhook")}
}

type RejectPaymentRequest struct {
	Reason string `json:"reason" validate:"omitempty,oneof=rejected verification_timeout" example:"rejected"`
}

type PaymentStatusResponse struct {
	PaymentID string `json:"payment_id"`
	HoldID    string `json:"hold_id,omitempty"`
	Status    string `json:"status" example:"verified"`
	BookingID string `json:"booking_id,omitempty"`
}

// Verifying godoc
// @Summary 検証開始を通知
// @Tags payments
// @Produce json
// @Param id path string true "支払いID"
// @Success 200 {object} PaymentStatusResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /internal/payments/{id}/verifying [post]
func (h *PaymentWebhookHandler) Verifying(c echo.Context) error {
	p, err := h.payments.MarkVerifying(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, toPaymentStatus(p))
}

// Verified godoc
// @Summary 検証完了を通知
// @Description 仮押さえが既に終了していた場合は escalated を返します
// @Tags payments
// @Produce json
// @Param id path string true "支払いID"
// @Success 200 {object} PaymentStatusResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /internal/payments/{id}/verified [post]
func (h *PaymentWebhookHandler) Verified(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	b, err := h.payments.OnVerified(ctx, id)
	switch {
	case err == nil && b != nil:
		return c.JSON(http.StatusOK, PaymentStatusResponse{
			PaymentID: id, HoldID: b.HoldID, Status: string(payment.StatusVerified), BookingID: b.ID,
		})
	case errors.Is(err, hold.ErrHoldExpired),
		errors.Is(err, hold.ErrHoldNotActive),
		errors.Is(err, application.ErrPaymentMismatch):
		h.log.Warn("入金確認を要確認として受け付けました",
			zap.String("payment_id", id),
			zap.String("subject", middleware.WebhookSubject(c)),
			zap.Error(err),
		)
		return c.JSON(http.StatusOK, PaymentStatusResponse{PaymentID: id, Status: StatusEscalated})
	case err != nil:
		return mapError(err)
	}

	// 既に終端の支払いへの再送
	p, err := h.payments.GetPayment(ctx, id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, toPaymentStatus(p))
}

// Rejected godoc
// @Summary 拒否を通知
// @Tags payments
// @Accept json
// @Produce json
// @Param id path string true "支払いID"
// @Param request body RejectPaymentRequest false "拒否理由"
// @Success 200 {object} PaymentStatusResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /internal/payments/{id}/rejected [post]
func (h *PaymentWebhookHandler) Rejected(c echo.Context) error {
	var req RejectPaymentRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return badRequest("無効なリクエスト")
		}
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	id := c.Param("id")
	if err := h.payments.OnRejectedOrTimeout(ctx, id, req.Reason); err != nil {
		return mapError(err)
	}
	p, err := h.payments.GetPayment(ctx, id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, toPaymentStatus(p))
}

func toPaymentStatus(p *payment.Payment) PaymentStatusResponse {
	status := string(p.Status)
	if p.NeedsReview {
		status = StatusEscalated
	}
	return PaymentStatusResponse{PaymentID: p.ID, HoldID: p.HoldID, Status: status}
}
