package booking

import "time"

// Booking は確定した予約を表す
// 作成後は変更されない
type Booking struct {
	ID               string
	HoldID           string
	EventID          string
	SeatIDs          []string
	Owner            string
	Amount           int
	PaymentID        string
	PaymentReference string
	CreatedAt        time.Time
}

// Validate は予約の検証を行う
func (b *Booking) Validate() error {
	if b.ID == "" || b.HoldID == "" {
		return ErrBookingIDsRequired
	}
	if len(b.SeatIDs) == 0 {
		return ErrSeatIDsRequired
	}
	if b.Amount < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Clone は予約のコピーを返す
func (b *Booking) Clone() *Booking {
	c := *b
	c.SeatIDs = append([]string(nil), b.SeatIDs...)
	return &c
}
