package handler

import (
	"context"

	"github.com/sanosuguru/go-seat-hold-booking/internal/application"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/booking"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/event"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/hold"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/payment"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/seat"
)

// HoldServiceInterface は仮押さえサービスのインターフェース
type HoldServiceInterface interface {
	CreateHold(ctx context.Context, input application.CreateHoldInput) (*hold.Hold, error)
	GetHold(ctx context.Context, id string) (*hold.Hold, error)
	ExtendHold(ctx context.Context, id string) (*hold.Hold, error)
	ReleaseHold(ctx context.Context, id string) error
}

// PaymentServiceInterface は支払い照合のインターフェース
type PaymentServiceInterface interface {
	SubmitReference(ctx context.Context, holdID, reference string) (*payment.Payment, error)
	GetPayment(ctx context.Context, id string) (*payment.Payment, error)
	MarkVerifying(ctx context.Context, paymentID string) (*payment.Payment, error)
	OnVerified(ctx context.Context, paymentID string) (*booking.Booking, error)
	OnRejectedOrTimeout(ctx context.Context, paymentID, reason string) error
}

// SeatServiceInterface は座席サービスのインターフェース
type SeatServiceInterface interface {
	GetStatus(ctx context.Context, eventID string, seatIDs []string) (map[string]seat.Status, error)
	CountAvailableSeats(ctx context.Context, eventID string) (int, error)
	SeedSeatMap(ctx context.Context, m *event.SeatMap) (int, error)
}
