package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/booking"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/outbox"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/payment"
	"github.com/sanosuguru/go-seat-hold-booking/internal/pkg/logger"
)

// Notifier は予約確定と要確認の支払いを外部へ通知する
type Notifier interface {
	NotifyBookingCommitted(ctx context.Context, ev booking.CommittedEvent) error
	NotifyEscalation(ctx context.Context, ev payment.EscalatedEvent) error
}

// NotificationDispatcher はイベントバスのイベントを Notifier に渡す
// 通知の失敗は確定済みの予約に影響しない
type NotificationDispatcher struct {
	notifier Notifier
	log      *zap.Logger
}

func NewNotificationDispatcher(n Notifier) *NotificationDispatcher {
	return &NotificationDispatcher{notifier: n, log: logger.Component("notification")}
}

// Register はハンドラをイベントバスに登録する
func (d *NotificationDispatcher) Register(sub outbox.Subscriber) {
	sub.Subscribe(booking.EventCommitted, d.handleBookingCommitted)
	sub.Subscribe(payment.EventEscalated, d.handleEscalated)
}

func (d *NotificationDispatcher) handleBookingCommitted(ctx context.Context, e outbox.Event) error {
	ev, ok := e.(booking.CommittedEvent)
	if !ok {
		return fmt.Errorf("想定外のイベント型: %T", e)
	}
	if err := d.notifier.NotifyBookingCommitted(ctx, ev); err != nil {
		d.log.Error("予約確定の通知に失敗",
			zap.String("booking_id", ev.Booking.ID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (d *NotificationDispatcher) handleEscalated(ctx context.Context, e outbox.Event) error {
	ev, ok := e.(payment.EscalatedEvent)
	if !ok {
		return fmt.Errorf("想定外のイベント型: %T", e)
	}
	if err := d.notifier.NotifyEscalation(ctx, ev); err != nil {
		d.log.Error("要確認の支払いの通知に失敗",
			zap.String("payment_id", ev.PaymentID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// LogNotifier はメッセージブローカーが無い環境でログに通知内容を出力する
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logger.Component("notification")}
}

func (n *LogNotifier) NotifyBookingCommitted(ctx context.Context, ev booking.CommittedEvent) error {
	b := ev.Booking
	n.log.Info("予約確定",
		zap.String("booking_id", b.ID),
		zap.String("hold_id", b.HoldID),
		zap.String("event_id", b.EventID),
		zap.Strings("seat_ids", b.SeatIDs),
		zap.String("owner", b.Owner),
		zap.Int("amount", b.Amount),
	)
	return nil
}

func (n *LogNotifier) NotifyEscalation(ctx context.Context, ev payment.EscalatedEvent) error {
	n.log.Warn("要確認の支払い",
		zap.String("payment_id", ev.PaymentID),
		zap.String("hold_id", ev.HoldID),
		zap.String("event_id", ev.EventID),
		zap.Strings("seat_ids", ev.SeatIDs),
		zap.String("reference", ev.Reference),
		zap.Int("amount", ev.Amount),
	)
	return nil
}
