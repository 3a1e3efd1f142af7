package booking

import "time"

// EventCommitted は予約確定イベント名
const EventCommitted = "booking.committed"

// CommittedEvent は予約確定時に通知先へ送られる
type CommittedEvent struct {
	Booking     *Booking
	CommittedAt time.Time
}

func (CommittedEvent) EventName() string { return EventCommitted }
