package seat

import (
	"sort"
	"time"
)

// Status は座席の状態を表す
type Status string

const (
	StatusAvailable Status = "available"
	StatusHeld      Status = "held"
	StatusBooked    Status = "booked"
	StatusBlocked   Status = "blocked"
)

// Seat は座席エンティティを表す
// held のときは HeldBy、booked のときは BookedBy のみが設定される
type Seat struct {
	ID        string
	EventID   string
	SectionID string
	RowID     string
	Label     string
	Price     int
	Status    Status
	HeldBy    *string // hold_id
	HeldAt    *time.Time
	BookedBy  *string // booking_id
	UpdatedAt time.Time
	Version   int // 楽観的ロック用
}

// NewSeat は新しい座席を作成する
func NewSeat(eventID, id string, price int) *Seat {
	return &Seat{
		ID:        id,
		EventID:   eventID,
		Label:     id,
		Price:     price,
		Status:    StatusAvailable,
		UpdatedAt: time.Now(),
	}
}

// IsAvailable は座席が仮押さえ可能かを返す
func (s *Seat) IsAvailable() bool {
	return s.Status == StatusAvailable
}

// IsHeldBy は座席が指定の仮押さえに保持されているかを返す
func (s *Seat) IsHeldBy(holdID string) bool {
	return s.Status == StatusHeld && s.HeldBy != nil && *s.HeldBy == holdID
}

// Claim は座席を仮押さえ状態にする
func (s *Seat) Claim(holdID string, now time.Time) error {
	if s.Status != StatusAvailable {
		return ErrSeatNotAvailable
	}
	s.Status = StatusHeld
	s.HeldBy = &holdID
	s.HeldAt = &now
	s.UpdatedAt = now
	s.Version++
	return nil
}

// Release は仮押さえを解除して座席を空席に戻す
func (s *Seat) Release(holdID string, now time.Time) error {
	if !s.IsHeldBy(holdID) {
		return ErrSeatStale
	}
	s.Status = StatusAvailable
	s.HeldBy = nil
	s.HeldAt = nil
	s.UpdatedAt = now
	s.Version++
	return nil
}

// Commit は仮押さえ中の座席を予約確定にする
func (s *Seat) Commit(holdID, bookingID string, now time.Time) error {
	if !s.IsHeldBy(holdID) {
		return ErrSeatStale
	}
	s.Status = StatusBooked
	s.HeldBy = nil
	s.HeldAt = nil
	s.BookedBy = &bookingID
	s.UpdatedAt = now
	s.Version++
	return nil
}

// Clone は座席のコピーを返す
func (s *Seat) Clone() *Seat {
	c := *s
	if s.HeldBy != nil {
		v := *s.HeldBy
		c.HeldBy = &v
	}
	if s.HeldAt != nil {
		v := *s.HeldAt
		c.HeldAt = &v
	}
	if s.BookedBy != nil {
		v := *s.BookedBy
		c.BookedBy = &v
	}
	return &c
}

// Validate は座席の検証を行う
func (s *Seat) Validate() error {
	if s.EventID == "" {
		return ErrEventIDRequired
	}
	if s.ID == "" {
		return ErrSeatIDRequired
	}
	if s.Price < 0 {
		return ErrInvalidPrice
	}
	return nil
}

// NormalizeIDs は座席IDを重複排除してソートする
// 複数座席のロックは常にこの順序で取得する
func NormalizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
