package e2e

import (
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-seat-hold-booking/internal/api"
	"github.com/sanosuguru/go-seat-hold-booking/internal/api/handler"
)

func createHold(t *testing.T, s *TestServer, owner string, seats ...string) handler.HoldResponse {
	t.Helper()
	rec := s.Request(http.MethodPost, "/api/v1/holds", map[string]any{
		"event_id": testEventID, "seat_ids": seats, "owner": owner,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[handler.HoldResponse](t, rec)
}

func seatStatus(t *testing.T, s *TestServer, ids string) map[string]string {
	t.Helper()
	rec := s.Request(http.MethodGet, "/api/v1/events/"+testEventID+"/seats/status?seat_ids="+ids, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	return decode[handler.SeatStatusResponse](t, rec).Seats
}

func TestE2E_HealthCheck(t *testing.T) {
	s := NewTestServer(t)

	rec := s.Request(http.MethodGet, "/health", nil, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

// 仮押さえから参照番号の提出、検証、予約確定までの一連の流れ
func TestE2E_CompleteBookingJourney(t *testing.T) {
	s := NewTestServer(t)
	s.SeedSeats(t, 5000, "A1", "A2", "A3")

	h := createHold(t, s, "user-1", "A2", "A1")
	assert.Equal(t, []string{"A1", "A2"}, h.SeatIDs)
	assert.Equal(t, 10000, h.Amount)
	assert.Equal(t, t0.Add(10*time.Minute), h.ExpiresAt.UTC())

	rec := s.Request(http.MethodGet, "/api/v1/events/"+testEventID+"/seats/available-count", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[handler.AvailableCountResponse](t, rec).Count)

	rec = s.Request(http.MethodPost, "/api/v1/holds/"+h.HoldID+"/payment-reference", map[string]string{"reference": "412345678901"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p := decode[handler.PaymentReferenceResponse](t, rec)

	s.Clock.Advance(9 * time.Minute)
	rec = s.Webhook(t, http.MethodPost, "/internal/payments/"+p.PaymentID+"/verifying", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// 検証開始で延長されているので当初の期限を過ぎても有効
	s.Clock.Advance(3 * time.Minute)
	rec = s.Request(http.MethodGet, "/api/v1/holds/"+h.HoldID, nil, nil)
	got := decode[handler.HoldResponse](t, rec)
	assert.Equal(t, "active", got.Status)
	assert.True(t, got.Extended)

	rec = s.Webhook(t, http.MethodPost, "/internal/payments/"+p.PaymentID+"/verified", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	verified := decode[handler.PaymentStatusResponse](t, rec)
	assert.Equal(t, "verified", verified.Status)
	assert.NotEmpty(t, verified.BookingID)

	// 再送されても同じ結果
	rec = s.Webhook(t, http.MethodPost, "/internal/payments/"+p.PaymentID+"/verified", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "verified", decode[handler.PaymentStatusResponse](t, rec).Status)

	st := seatStatus(t, s, "A1,A2,A3")
	assert.Equal(t, map[string]string{"A1": "booked", "A2": "booked", "A3": "available"}, st)

	rec = s.Request(http.MethodGet, "/api/v1/holds/"+h.HoldID, nil, nil)
	got = decode[handler.HoldResponse](t, rec)
	assert.Equal(t, "committed", got.Status)
	require.NotNil(t, got.BookingID)
	assert.Equal(t, verified.BookingID, *got.BookingID)
}

// 同じ座席への仮押さえは409 SeatsUnavailable
func TestE2E_HoldConflict(t *testing.T) {
	s := NewTestServer(t)
	s.SeedSeats(t, 5000, "B1", "B2", "B3")
	createHold(t, s, "user-1", "B1", "B2")

	rec := s.Request(http.MethodPost, "/api/v1/holds", map[string]any{
		"event_id": testEventID, "seat_ids": []string{"B2", "B3"}, "owner": "user-2",
	}, nil)

	require.Equal(t, http.StatusConflict, rec.Code)
	resp := decode[api.ErrorResponse](t, rec)
	assert.Equal(t, handler.KindSeatsUnavailable, resp.Kind)
	// 一部だけ仮押さえされることはない
	assert.Equal(t, "available", seatStatus(t, s, "B3")["B3"])
}

// 同時に大量の仮押さえが来ても成功するのは1件だけ
func TestE2E_ConcurrentHolds(t *testing.T) {
	s := NewTestServer(t)
	s.SeedSeats(t, 5000, "C1", "C2")

	const clients = 30
	codes := make([]int, clients)
	var wg sync.WaitGroup
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := s.Request(http.MethodPost, "/api/v1/holds", map[string]any{
				"event_id": testEventID, "seat_ids": []string{"C1", "C2"}, "owner": fmt.Sprintf("user-%d", i),
			}, nil)
			codes[i] = rec.Code
		}(i)
	}
	wg.Wait()

	created := 0
	for _, code := range codes {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
		default:
			t.Errorf("想定外のステータス: %d", code)
		}
	}
	assert.Equal(t, 1, created)
}

// 期限を過ぎた仮押さえはスイープで空席に戻り、確定できない
func TestE2E_HoldExpiry(t *testing.T) {
	s := NewTestServer(t)
	s.SeedSeats(t, 5000, "D1", "D2", "D3")
	h := createHold(t, s, "user-1", "D1", "D2", "D3")

	s.Clock.Advance(11 * time.Minute)
	n, err := s.Holds.ExpireDueHolds(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	st := seatStatus(t, s, "D1,D2,D3")
	assert.Equal(t, map[string]string{"D1": "available", "D2": "available", "D3": "available"}, st)

	rec := s.Request(http.MethodPost, "/api/v1/holds/"+h.HoldID+"/payment-reference", map[string]string{"reference": "412345678901"}, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, handler.KindHoldNotActive, decode[api.ErrorResponse](t, rec).Kind)

	rec = s.Request(http.MethodPost, "/api/v1/holds/"+h.HoldID+"/extend", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

// 失効後に届いた入金は escalated になり、座席は次の購入者のまま
func TestE2E_LatePaymentEscalates(t *testing.T) {
	s := NewTestServer(t)
	s.SeedSeats(t, 5000, "E1")
	first := createHold(t, s, "user-1", "E1")
	rec := s.Request(http.MethodPost, "/api/v1/holds/"+first.HoldID+"/payment-reference", map[string]string{"reference": "412345678901"}, nil)
	p := decode[handler.PaymentReferenceResponse](t, rec)

	s.Clock.Advance(11 * time.Minute)
	_, err := s.Holds.ExpireDueHolds(t.Context())
	require.NoError(t, err)
	second := createHold(t, s, "user-2", "E1")

	rec = s.Webhook(t, http.MethodPost, "/internal/payments/"+p.PaymentID+"/verified", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, handler.StatusEscalated, decode[handler.PaymentStatusResponse](t, rec).Status)
	rec = s.Request(http.MethodGet, "/api/v1/holds/"+second.HoldID, nil, nil)
	assert.Equal(t, "active", decode[handler.HoldResponse](t, rec).Status)
	assert.Equal(t, "held", seatStatus(t, s, "E1")["E1"])
}

// 解放と拒否はどちらも座席を戻し、繰り返しても結果は変わらない
func TestE2E_ReleaseAndReject(t *testing.T) {
	s := NewTestServer(t)
	s.SeedSeats(t, 5000, "F1", "F2")

	released := createHold(t, s, "user-1", "F1")
	for i := 0; i < 2; i++ {
		rec := s.Request(http.MethodDelete, "/api/v1/holds/"+released.HoldID, nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "released", decode[handler.HoldResponse](t, rec).Status)
	}

	rejected := createHold(t, s, "user-2", "F2")
	rec := s.Request(http.MethodPost, "/api/v1/holds/"+rejected.HoldID+"/payment-reference", map[string]string{"reference": "412345678901"}, nil)
	p := decode[handler.PaymentReferenceResponse](t, rec)
	for i := 0; i < 2; i++ {
		rec = s.Webhook(t, http.MethodPost, "/internal/payments/"+p.PaymentID+"/rejected", map[string]string{"reason": "rejected"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "rejected", decode[handler.PaymentStatusResponse](t, rec).Status)
	}

	st := seatStatus(t, s, "F1,F2")
	assert.Equal(t, map[string]string{"F1": "available", "F2": "available"}, st)
}

// 同じ冪等性キーの再送は同じ仮押さえを返す
func TestE2E_IdempotencyKey(t *testing.T) {
	s := NewTestServer(t)
	s.SeedSeats(t, 5000, "G1")
	headers := map[string]string{"Idempotency-Key": "checkout-42"}
	body := map[string]any{"event_id": testEventID, "seat_ids": []string{"G1"}, "owner": "user-1"}

	first := s.Request(http.MethodPost, "/api/v1/holds", body, headers)
	second := s.Request(http.MethodPost, "/api/v1/holds", body, headers)

	require.Equal(t, http.StatusCreated, first.Code)
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, decode[handler.HoldResponse](t, first).HoldID, decode[handler.HoldResponse](t, second).HoldID)
}

func TestE2E_InternalRequiresToken(t *testing.T) {
	s := NewTestServer(t)

	rec := s.Request(http.MethodPost, "/internal/payments/pay-1/verified", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.Request(http.MethodPost, "/internal/payments/pay-1/verified", nil,
		map[string]string{"Authorization": "Bearer not-a-token"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.Webhook(t, http.MethodPost, "/internal/payments/pay-1/verified", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestE2E_Metrics(t *testing.T) {
	s := NewTestServer(t)
	s.SeedSeats(t, 5000, "H1")
	createHold(t, s, "user-1", "H1")

	rec := s.Request(http.MethodGet, "/metrics", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}
