package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/event"
)

type SeatHandler struct {
	service SeatServiceInterface
}

func NewSeatHandler(s SeatServiceInterface) *SeatHandler {
	return &SeatHandler{service: s}
}

type SeatStatusResponse struct {
	EventID string            `json:"event_id"`
	Seats   map[string]string `json:"seats"`
}

type AvailableCountResponse struct {
	EventID string `json:"event_id"`
	Count   int    `json:"count" example:"42"`
}

type SeedSeatMapResponse struct {
	EventID string `json:"event_id"`
	Total   int    `json:"total"`
	Applied int    `json:"applied"`
}

// GetStatus godoc
// @Summary 座席の状態を取得
// @Description 存在しない座席は結果に含まれません
// @Tags seats
// @Produce json
// @Param event_id path string true "イベントID"
// @Param seat_ids query string true "カンマ区切りの座席ID" example(A1,A2)
// @Success 200 {object} SeatStatusResponse
// @Failure 400 {object} api.ErrorResponse
// @Router /events/{event_id}/seats/status [get]
func (h *SeatHandler) GetStatus(c echo.Context) error {
	eventID := c.Param("event_id")
	var ids []string
	for _, id := range strings.Split(c.QueryParam("seat_ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	st, err := h.service.GetStatus(c.Request().Context(), eventID, ids)
	if err != nil {
		return mapError(err)
	}
	resp := SeatStatusResponse{EventID: eventID, Seats: make(map[string]string, len(st))}
	for id, s := range st {
		resp.Seats[id] = string(s)
	}
	return c.JSON(http.StatusOK, resp)
}

// CountAvailable godoc
// @Summary 空席数を取得
// @Tags seats
// @Produce json
// @Param event_id path string true "イベントID"
// @Success 200 {object} AvailableCountResponse
// @Router /events/{event_id}/seats/available-count [get]
func (h *SeatHandler) CountAvailable(c echo.Context) error {
	eventID := c.Param("event_id")
	count, err := h.service.CountAvailableSeats(c.Request().Context(), eventID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, AvailableCountResponse{EventID: eventID, Count: count})
}

// PutSeatMap godoc
// @Summary 座席配置を反映
// @Description カタログから座席配置を受け取ります。仮押さえ中・予約済みの座席は変更しません
// @Tags seats
// @Accept json
// @Produce json
// @Param event_id path string true "イベントID"
// @Param request body event.SeatMap true "座席配置"
// @Success 200 {object} SeedSeatMapResponse
// @Failure 400 {object} api.ErrorResponse
// @Router /internal/events/{event_id}/seatmap [put]
func (h *SeatHandler) PutSeatMap(c echo.Context) error {
	eventID := c.Param("event_id")
	var m event.SeatMap
	if err := c.Bind(&m); err != nil {
		return badRequest("無効なリクエスト")
	}
	if m.EventID == "" {
		m.EventID = eventID
	} else if m.EventID != eventID {
		return mapError(event.ErrEventIDMismatch)
	}
	n, err := h.service.SeedSeatMap(c.Request().Context(), &m)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, SeedSeatMapResponse{EventID: eventID, Total: m.TotalSeats(), Applied: n})
}
