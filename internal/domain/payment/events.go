package payment

import "time"

// EventEscalated は検証済みだが座席を失った支払いのイベント名
const EventEscalated = "payment.escalated"

// EscalatedEvent はサポート対応が必要な支払いを通知する
type EscalatedEvent struct {
	PaymentID  string
	HoldID     string
	EventID    string
	SeatIDs    []string
	Owner      string
	Reference  string
	Amount     int
	DetectedAt time.Time
}

func (EscalatedEvent) EventName() string { return EventEscalated }
