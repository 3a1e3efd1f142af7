package application

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/booking"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/hold"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/payment"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/seat"
	"github.com/sanosuguru/go-seat-hold-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-seat-hold-booking/internal/pkg/tracing"
)

// BookingCoordinator は仮押さえを予約に確定する
// 確定とスイープはどちらも Hold の Version に対する CAS で決着し、勝つのは一方だけ
type BookingCoordinator struct {
	holdService *HoldService
	seats       seat.Store
	holds       hold.Repository
	bookings    booking.Repository
	payments    payment.Repository
	deps
}

func NewBookingCoordinator(hs *HoldService, seats seat.Store, holds hold.Repository, bookings booking.Repository, payments payment.Repository, opts ...Option) *BookingCoordinator {
	return &BookingCoordinator{
		holdService: hs,
		seats:       seats,
		holds:       holds,
		bookings:    bookings,
		payments:    payments,
		deps:        newDeps(opts),
	}
}

// Commit は仮押さえを確定する
// paymentID が空でなければ、仮押さえに紐付いた支払いと一致する必要がある
// その支払いが rejected/expired なら仮押さえを解放して ErrPaymentFailed を返す
// 既に確定済みの場合は既存の予約と ErrAlreadyCommitted を返す
func (c *BookingCoordinator) Commit(ctx context.Context, holdID, paymentID string) (b *booking.Booking, err error) {
	ctx, span := c.tracer.Start(ctx, "BookingCoordinator.Commit",
		attribute.String("hold_id", holdID),
		attribute.String("payment_id", paymentID),
	)
	defer func() { tracing.End(span, err) }()

	for attempt := 0; attempt < maxCASRetries; attempt++ {
		h, err := c.holds.GetByID(ctx, holdID)
		if err != nil {
			return nil, err
		}
		now := c.clock.Now()

		switch h.Status {
		case hold.StatusCommitted:
			c.metrics.IncBooking("already_committed")
			existing, err := c.bookings.GetByHoldID(ctx, holdID)
			if err != nil {
				return nil, ErrAlreadyCommitted
			}
			return existing, ErrAlreadyCommitted
		case hold.StatusReleased, hold.StatusExpired:
			c.metrics.IncBooking("hold_expired")
			return nil, hold.ErrHoldExpired
		}

		if paymentID != "" && (h.PaymentID == nil || *h.PaymentID != paymentID) {
			return nil, ErrPaymentMismatch
		}

		var p *payment.Payment
		if paymentID != "" {
			p, err = c.payments.GetByID(ctx, paymentID)
			if err != nil {
				return nil, fmt.Errorf("支払い取得に失敗: %w", err)
			}
			if p.Status == payment.StatusRejected || p.Status == payment.StatusExpired {
				c.metrics.IncBooking("payment_failed")
				if err := c.holdService.ReleaseHold(ctx, h.ID); err != nil {
					logger.Warn("支払い失敗後の仮押さえ解放に失敗しました", zap.String("hold_id", h.ID), zap.Error(err))
				}
				return nil, ErrPaymentFailed
			}
		}

		if h.IsExpiredAt(now) {
			// スイープを待たずにここで期限切れにする
			expired, err := c.holdService.expireHold(ctx, h, now)
			if err != nil {
				return nil, fmt.Errorf("仮押さえの期限切れ処理に失敗: %w", err)
			}
			if !expired {
				continue
			}
			c.metrics.IncBooking("hold_expired")
			return nil, hold.ErrHoldExpired
		}

		bookingID := c.ids.NewID()
		prev := h.Version
		if err := h.Commit(bookingID, now); err != nil {
			return nil, err
		}
		err = c.holds.Update(ctx, h, prev)
		if errors.Is(err, hold.ErrVersionConflict) {
			continue
		}
		if err != nil {
			c.metrics.IncBooking("error")
			return nil, fmt.Errorf("仮押さえの更新に失敗: %w", err)
		}

		// ここで確定が決まる。以降で座席を他に渡すことはない
		if err := c.seats.CommitSeats(ctx, h.EventID, h.SeatIDs, h.ID, bookingID); err != nil {
			c.metrics.IncBooking("error")
			logger.Error("確定済みの仮押さえの座席を予約にできませんでした",
				zap.String("hold_id", h.ID),
				zap.String("booking_id", bookingID),
				zap.Strings("seat_ids", h.SeatIDs),
				zap.Error(err),
			)
			return nil, fmt.Errorf("%w: %v", ErrIntegrity, err)
		}

		b = &booking.Booking{
			ID:        bookingID,
			HoldID:    h.ID,
			EventID:   h.EventID,
			SeatIDs:   append([]string(nil), h.SeatIDs...),
			Owner:     h.Owner,
			Amount:    h.Amount,
			PaymentID: paymentID,
			CreatedAt: now,
		}
		if p != nil {
			b.PaymentReference = p.Reference
		}
		if err := c.bookings.Create(ctx, b); err != nil {
			c.metrics.IncBooking("error")
			logger.Error("予約の保存に失敗しました", zap.String("hold_id", h.ID), zap.String("booking_id", bookingID), zap.Error(err))
			return nil, fmt.Errorf("予約の保存に失敗: %w", err)
		}

		c.invalidate(ctx, h.EventID)
		c.publish(ctx, booking.CommittedEvent{Booking: b.Clone(), CommittedAt: now})
		c.metrics.IncBooking("committed")
		logger.Info("予約を確定しました",
			zap.String("booking_id", b.ID),
			zap.String("hold_id", h.ID),
			zap.Strings("seat_ids", b.SeatIDs),
		)
		return b, nil
	}
	return nil, hold.ErrVersionConflict
}

// GetBookingByHold は仮押さえから確定した予約を返す
func (c *BookingCoordinator) GetBookingByHold(ctx context.Context, holdID string) (*booking.Booking, error) {
	return c.bookings.GetByHoldID(ctx, holdID)
}
