package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-seat-hold-booking/internal/api/middleware"
	"github.com/sanosuguru/go-seat-hold-booking/internal/application"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/hold"
)

type HoldHandler struct {
	holds    HoldServiceInterface
	payments PaymentServiceInterface
}

func NewHoldHandler(h HoldServiceInterface, p PaymentServiceInterface) *HoldHandler {
	return &HoldHandler{holds: h, payments: p}
}

type CreateHoldRequest struct {
	EventID        string   `json:"event_id" validate:"required" example:"spring-concert-2026"`
	SeatIDs        []string `json:"seat_ids" validate:"required,min=1,dive,seatid" example:"A1,A2"`
	Owner          string   `json:"owner" validate:"required,max=128" example:"user-123"`
	IdempotencyKey string   `json:"idempotency_key" validate:"max=128" example:"checkout-2026-001"`
}

type SubmitReferenceRequest struct {
	Reference string `json:"reference" validate:"required" example:"412345678901"`
}

// HoldResponse は仮押さえのレスポンス
// 残り時間の表示は expires_at と server_time の差で計算する
type HoldResponse struct {
	HoldID     string    `json:"hold_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	EventID    string    `json:"event_id" example:"spring-concert-2026"`
	SeatIDs    []string  `json:"seat_ids" example:"A1,A2"`
	Owner      string    `json:"owner" example:"user-123"`
	Status     string    `json:"status" example:"active"`
	Amount     int       `json:"amount" example:"10000"`
	Extended   bool      `json:"extended"`
	ExpiresAt  time.Time `json:"expires_at"`
	ServerTime time.Time `json:"server_time"`
	PaymentID  *string   `json:"payment_id,omitempty"`
	BookingID  *string   `json:"booking_id,omitempty"`
}

type PaymentReferenceResponse struct {
	PaymentID string `json:"payment_id"`
	HoldID    string `json:"hold_id"`
	Status    string `json:"status" example:"pending"`
}

func toHoldResponse(h *hold.Hold) HoldResponse {
	return HoldResponse{
		HoldID: h.ID, EventID: h.EventID, SeatIDs: h.SeatIDs, Owner: h.Owner,
		Status: string(h.Status), Amount: h.Amount, Extended: h.Extended,
		ExpiresAt: h.ExpiresAt, ServerTime: time.Now().UTC(),
		PaymentID: h.PaymentID, BookingID: h.BookingID,
	}
}

// Create godoc
// @Summary 座席を仮押さえ
// @Description 指定した座席をまとめて仮押さえします（10分間有効）
// @Tags holds
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "冪等性キー"
// @Param request body CreateHoldRequest true "仮押さえ情報"
// @Success 201 {object} HoldResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse "存在しない座席"
// @Failure 409 {object} api.ErrorResponse "SeatsUnavailable"
// @Router /holds [post]
func (h *HoldHandler) Create(c echo.Context) error {
	var req CreateHoldRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("無効なリクエスト")
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.Request().Header.Get(middleware.HeaderIdempotencyKey)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	created, err := h.holds.CreateHold(c.Request().Context(), application.CreateHoldInput{
		EventID: req.EventID, SeatIDs: req.SeatIDs, Owner: req.Owner, IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, toHoldResponse(created))
}

// GetByID godoc
// @Summary 仮押さえを取得
// @Tags holds
// @Produce json
// @Param id path string true "仮押さえID"
// @Success 200 {object} HoldResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /holds/{id} [get]
func (h *HoldHandler) GetByID(c echo.Context) error {
	got, err := h.holds.GetHold(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, toHoldResponse(got))
}

// Release godoc
// @Summary 仮押さえを解放
// @Description 既に終了している仮押さえに対しても成功を返します
// @Tags holds
// @Produce json
// @Param id path string true "仮押さえID"
// @Success 200 {object} HoldResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /holds/{id} [delete]
func (h *HoldHandler) Release(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if err := h.holds.ReleaseHold(ctx, id); err != nil {
		return mapError(err)
	}
	got, err := h.holds.GetHold(ctx, id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, toHoldResponse(got))
}

// Extend godoc
// @Summary 仮押さえを延長
// @Description 有効期限を一度だけ延長します
// @Tags holds
// @Produce json
// @Param id path string true "仮押さえID"
// @Success 200 {object} HoldResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "HoldNotActive / ExtensionUsed"
// @Router /holds/{id}/extend [post]
func (h *HoldHandler) Extend(c echo.Context) error {
	got, err := h.holds.ExtendHold(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, toHoldResponse(got))
}

// SubmitPaymentReference godoc
// @Summary 送金の参照番号を提出
// @Tags holds
// @Accept json
// @Produce json
// @Param id path string true "仮押さえID"
// @Param request body SubmitReferenceRequest true "参照番号"
// @Success 201 {object} PaymentReferenceResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "HoldNotActive / PaymentInProgress"
// @Router /holds/{id}/payment-reference [post]
func (h *HoldHandler) SubmitPaymentReference(c echo.Context) error {
	var req SubmitReferenceRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	p, err := h.payments.SubmitReference(c.Request().Context(), c.Param("id"), req.Reference)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, PaymentReferenceResponse{
		PaymentID: p.ID, HoldID: p.HoldID, Status: string(p.Status),
	})
}
