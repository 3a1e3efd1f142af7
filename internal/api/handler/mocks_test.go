package handler

import (
	"context"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-seat-hold-booking/internal/api"
	"github.com/sanosuguru/go-seat-hold-booking/internal/application"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/booking"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/event"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/hold"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/payment"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/seat"
)

// MockHoldService はHoldServiceInterfaceのモック
type MockHoldService struct {
	mock.Mock
}

func (m *MockHoldService) CreateHold(ctx context.Context, input application.CreateHoldInput) (*hold.Hold, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hold.Hold), args.Error(1)
}

func (m *MockHoldService) GetHold(ctx context.Context, id string) (*hold.Hold, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hold.Hold), args.Error(1)
}

func (m *MockHoldService) ExtendHold(ctx context.Context, id string) (*hold.Hold, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hold.Hold), args.Error(1)
}

func (m *MockHoldService) ReleaseHold(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// MockPaymentService はPaymentServiceInterfaceのモック
type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) SubmitReference(ctx context.Context, holdID, reference string) (*payment.Payment, error) {
	args := m.Called(ctx, holdID, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

func (m *MockPaymentService) GetPayment(ctx context.Context, id string) (*payment.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

func (m *MockPaymentService) MarkVerifying(ctx context.Context, paymentID string) (*payment.Payment, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

func (m *MockPaymentService) OnVerified(ctx context.Context, paymentID string) (*booking.Booking, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *MockPaymentService) OnRejectedOrTimeout(ctx context.Context, paymentID, reason string) error {
	return m.Called(ctx, paymentID, reason).Error(0)
}

// MockSeatService はSeatServiceInterfaceのモック
type MockSeatService struct {
	mock.Mock
}

func (m *MockSeatService) GetStatus(ctx context.Context, eventID string, seatIDs []string) (map[string]seat.Status, error) {
	args := m.Called(ctx, eventID, seatIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]seat.Status), args.Error(1)
}

func (m *MockSeatService) CountAvailableSeats(ctx context.Context, eventID string) (int, error) {
	args := m.Called(ctx, eventID)
	return args.Int(0), args.Error(1)
}

func (m *MockSeatService) SeedSeatMap(ctx context.Context, sm *event.SeatMap) (int, error) {
	args := m.Called(ctx, sm)
	return args.Int(0), args.Error(1)
}

// newTestEcho はバリデーターとエラーハンドラーを本番と同じ設定にした Echo を返す
func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	return e
}

// requireHTTPError はエラーのステータスと種別を確認する
func requireHTTPError(t *testing.T, err error, code int, kind string) {
	t.Helper()
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, code, he.Code)
	if kind != "" {
		resp, ok := he.Message.(api.ErrorResponse)
		require.True(t, ok, "ErrorResponse ではありません: %T", he.Message)
		assert.Equal(t, kind, resp.Kind)
	}
}
