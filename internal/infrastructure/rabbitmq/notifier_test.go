package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/booking"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/payment"
)

type published struct {
	key string
	msg amqp.Publishing
}

type fakeChannel struct {
	declared   []string
	published  []published
	publishErr error
	closed     bool
}

func (f *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	f.declared = append(f.declared, name)
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, published{key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

var committedAt = time.Date(2025, 3, 1, 12, 5, 0, 0, time.UTC)

func TestNotifier_NotifyBookingCommitted(t *testing.T) {
	ch := &fakeChannel{}
	n := newNotifier(ch, "", "")
	ev := booking.CommittedEvent{
		Booking: &booking.Booking{
			ID: "b1", HoldID: "h1", EventID: "ev1", SeatIDs: []string{"A1", "A2"},
			Owner: "user-1", Amount: 10000, PaymentReference: "123456789012",
		},
		CommittedAt: committedAt,
	}

	require.NoError(t, n.NotifyBookingCommitted(context.Background(), ev))
	require.NoError(t, n.NotifyBookingCommitted(context.Background(), ev))

	assert.Equal(t, []string{"booking.confirmed"}, ch.declared, "キュー宣言は1回だけ")
	require.Len(t, ch.published, 2)
	p := ch.published[0]
	assert.Equal(t, "booking.confirmed", p.key)
	assert.Equal(t, amqp.Persistent, p.msg.DeliveryMode)
	assert.Equal(t, "application/json", p.msg.ContentType)

	var msg BookingConfirmedMessage
	require.NoError(t, json.Unmarshal(p.msg.Body, &msg))
	assert.Equal(t, "b1", msg.BookingID)
	assert.Equal(t, []string{"A1", "A2"}, msg.SeatIDs)
	assert.Equal(t, 10000, msg.Amount)
	assert.True(t, committedAt.Equal(msg.CommittedAt))
}

func TestNotifier_NotifyEscalation(t *testing.T) {
	ch := &fakeChannel{}
	n := newNotifier(ch, "bookings", "escalations")

	err := n.NotifyEscalation(context.Background(), payment.EscalatedEvent{
		PaymentID: "p1", HoldID: "h1", EventID: "ev1", SeatIDs: []string{"A1"},
		Owner: "user-1", Reference: "123456789012", Amount: 5000, DetectedAt: committedAt,
	})

	require.NoError(t, err)
	require.Len(t, ch.published, 1)
	assert.Equal(t, "escalations", ch.published[0].key)
	var msg EscalationMessage
	require.NoError(t, json.Unmarshal(ch.published[0].msg.Body, &msg))
	assert.Equal(t, "p1", msg.PaymentID)
	assert.Equal(t, "123456789012", msg.Reference)
}

func TestNotifier_PublishError(t *testing.T) {
	ch := &fakeChannel{publishErr: errors.New("channel closed")}
	n := newNotifier(ch, "", "")

	err := n.NotifyEscalation(context.Background(), payment.EscalatedEvent{PaymentID: "p1"})

	assert.Error(t, err)
	require.NoError(t, n.Close())
	assert.True(t, ch.closed)
}
