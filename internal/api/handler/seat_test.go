package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-seat-hold-booking/internal/api"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/event"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/seat"
)

func newEventContext(e *echo.Echo, method, target, body, eventID string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("event_id")
	c.SetParamValues(eventID)
	return c, rec
}

func TestSeatHandler_GetStatus(t *testing.T) {
	e := newTestEcho()

	t.Run("カンマ区切りの座席IDで取得する", func(t *testing.T) {
		svc := new(MockSeatService)
		svc.On("GetStatus", mock.Anything, "event-1", []string{"A1", "A2"}).
			Return(map[string]seat.Status{"A1": seat.StatusHeld, "A2": seat.StatusAvailable}, nil)

		c, rec := newEventContext(e, http.MethodGet, "/events/event-1/seats/status?seat_ids=A1,%20A2,", "", "event-1")
		require.NoError(t, NewSeatHandler(svc).GetStatus(c))

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp SeatStatusResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "held", resp.Seats["A1"])
		assert.Equal(t, "available", resp.Seats["A2"])
	})

	t.Run("座席IDなしは400", func(t *testing.T) {
		svc := new(MockSeatService)
		svc.On("GetStatus", mock.Anything, "event-1", []string(nil)).Return(nil, seat.ErrSeatIDsRequired)

		c, _ := newEventContext(e, http.MethodGet, "/events/event-1/seats/status", "", "event-1")
		err := NewSeatHandler(svc).GetStatus(c)

		requireHTTPError(t, err, http.StatusBadRequest, api.KindValidationFailed)
	})
}

func TestSeatHandler_CountAvailable(t *testing.T) {
	e := newTestEcho()
	svc := new(MockSeatService)
	svc.On("CountAvailableSeats", mock.Anything, "event-1").Return(42, nil)

	c, rec := newEventContext(e, http.MethodGet, "/events/event-1/seats/available-count", "", "event-1")
	require.NoError(t, NewSeatHandler(svc).CountAvailable(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":42`)
}

func TestSeatHandler_PutSeatMap(t *testing.T) {
	e := newTestEcho()
	body := `{"name":"Spring","sections":[{"id":"A","rows":[{"id":"1","seats":[{"id":"A1","price":5000},{"id":"A2","price":5000}]}]}]}`

	t.Run("パスのイベントIDで反映する", func(t *testing.T) {
		svc := new(MockSeatService)
		svc.On("SeedSeatMap", mock.Anything, mock.MatchedBy(func(m *event.SeatMap) bool {
			return m.EventID == "event-1" && m.TotalSeats() == 2
		})).Return(2, nil)

		c, rec := newEventContext(e, http.MethodPut, "/internal/events/event-1/seatmap", body, "event-1")
		require.NoError(t, NewSeatHandler(svc).PutSeatMap(c))

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp SeedSeatMapResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.Total)
		assert.Equal(t, 2, resp.Applied)
	})

	t.Run("イベントIDの不一致は400", func(t *testing.T) {
		svc := new(MockSeatService)

		c, _ := newEventContext(e, http.MethodPut, "/internal/events/event-1/seatmap", `{"event_id":"other","sections":[]}`, "event-1")
		err := NewSeatHandler(svc).PutSeatMap(c)

		requireHTTPError(t, err, http.StatusBadRequest, api.KindValidationFailed)
		svc.AssertNotCalled(t, "SeedSeatMap", mock.Anything, mock.Anything)
	})

	t.Run("不正な座席配置は400", func(t *testing.T) {
		svc := new(MockSeatService)
		svc.On("SeedSeatMap", mock.Anything, mock.Anything).Return(0, event.ErrDuplicateSeatID)

		c, _ := newEventContext(e, http.MethodPut, "/internal/events/event-1/seatmap", body, "event-1")
		err := NewSeatHandler(svc).PutSeatMap(c)

		requireHTTPError(t, err, http.StatusBadRequest, api.KindValidationFailed)
	})
}
