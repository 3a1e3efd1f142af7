package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-seat-hold-booking/internal/config"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/booking"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/payment"
	"github.com/sanosuguru/go-seat-hold-booking/internal/pkg/logger"
)

// BookingConfirmedMessage は booking.confirmed キューに流すメッセージ
type BookingConfirmedMessage struct {
	BookingID        string    `json:"booking_id"`
	HoldID           string    `json:"hold_id"`
	EventID          string    `json:"event_id"`
	SeatIDs          []string  `json:"seat_ids"`
	Owner            string    `json:"owner"`
	Amount           int       `json:"amount"`
	PaymentReference string    `json:"payment_reference,omitempty"`
	CommittedAt      time.Time `json:"committed_at"`
}

// EscalationMessage は payment.escalated キューに流すメッセージ
type EscalationMessage struct {
	PaymentID  string    `json:"payment_id"`
	HoldID     string    `json:"hold_id"`
	EventID    string    `json:"event_id"`
	SeatIDs    []string  `json:"seat_ids"`
	Owner      string    `json:"owner"`
	Reference  string    `json:"reference"`
	Amount     int       `json:"amount"`
	DetectedAt time.Time `json:"detected_at"`
}

// publishChannel は amqp.Channel のうち通知に使う部分
type publishChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Notifier は予約確定と要対応の支払いを RabbitMQ に発行する
// 発行失敗は呼び出し側に返すが、予約処理そのものは巻き戻さない
type Notifier struct {
	mu              sync.Mutex
	conn            *amqp.Connection
	ch              publishChannel
	bookingQueue    string
	escalationQueue string
	declared        map[string]bool
	now             func() time.Time
}

// Dial はブローカーに接続して Notifier を作成する
func Dial(cfg config.RabbitMQConfig) (*Notifier, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("RabbitMQ接続に失敗: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("チャネル作成に失敗: %w", err)
	}
	n := newNotifier(ch, cfg.BookingQueue, cfg.EscalationQueue)
	n.conn = conn
	return n, nil
}

func newNotifier(ch publishChannel, bookingQueue, escalationQueue string) *Notifier {
	if bookingQueue == "" {
		bookingQueue = "booking.confirmed"
	}
	if escalationQueue == "" {
		escalationQueue = "payment.escalated"
	}
	return &Notifier{
		ch:              ch,
		bookingQueue:    bookingQueue,
		escalationQueue: escalationQueue,
		declared:        make(map[string]bool),
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func (n *Notifier) NotifyBookingCommitted(ctx context.Context, ev booking.CommittedEvent) error {
	b := ev.Booking
	msg := BookingConfirmedMessage{
		BookingID:        b.ID,
		HoldID:           b.HoldID,
		EventID:          b.EventID,
		SeatIDs:          b.SeatIDs,
		Owner:            b.Owner,
		Amount:           b.Amount,
		PaymentReference: b.PaymentReference,
		CommittedAt:      ev.CommittedAt,
	}
	return n.publish(ctx, n.bookingQueue, msg)
}

func (n *Notifier) NotifyEscalation(ctx context.Context, ev payment.EscalatedEvent) error {
	msg := EscalationMessage{
		PaymentID:  ev.PaymentID,
		HoldID:     ev.HoldID,
		EventID:    ev.EventID,
		SeatIDs:    ev.SeatIDs,
		Owner:      ev.Owner,
		Reference:  ev.Reference,
		Amount:     ev.Amount,
		DetectedAt: ev.DetectedAt,
	}
	return n.publish(ctx, n.escalationQueue, msg)
}

func (n *Notifier) publish(ctx context.Context, queue string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("メッセージのシリアライズに失敗: %w", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.declared[queue] {
		// durable キュー。宣言は冪等
		if _, err := n.ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("キュー宣言に失敗: %w", err)
		}
		n.declared[queue] = true
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    n.now(),
		Body:         body,
	}
	if err := n.ch.PublishWithContext(ctx, "", queue, false, false, pub); err != nil {
		logger.Warn("RabbitMQへの発行に失敗しました", zap.String("queue", queue), zap.Error(err))
		return fmt.Errorf("メッセージ発行に失敗: %w", err)
	}
	return nil
}

// Close はチャネルと接続を閉じる
func (n *Notifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.ch.Close(); err != nil {
		logger.Warn("チャネルのクローズに失敗しました", zap.Error(err))
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}
