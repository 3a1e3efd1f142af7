package event

import (
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/seat"
)

// SeatMap はカタログから受け取るイベントの座席配置を表す
// このサービスからは読み取り専用
type SeatMap struct {
	EventID  string    `json:"event_id"`
	Name     string    `json:"name"`
	Sections []Section `json:"sections"`
}

// Section は座席ブロック
type Section struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Rows []Row  `json:"rows"`
}

// Row は座席の列
type Row struct {
	ID    string      `json:"id"`
	Seats []SeatEntry `json:"seats"`
}

// SeatEntry は配置上の1席
type SeatEntry struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Price   int    `json:"price"`
	Blocked bool   `json:"blocked"`
}

// Validate は座席配置の検証を行う
func (m *SeatMap) Validate() error {
	if m.EventID == "" {
		return ErrEventIDRequired
	}
	seen := make(map[string]struct{})
	for _, sec := range m.Sections {
		for _, row := range sec.Rows {
			for _, e := range row.Seats {
				if e.ID == "" {
					return ErrSeatIDRequired
				}
				if _, dup := seen[e.ID]; dup {
					return ErrDuplicateSeatID
				}
				if e.Price < 0 {
					return ErrInvalidPrice
				}
				seen[e.ID] = struct{}{}
			}
		}
	}
	if len(seen) == 0 {
		return ErrNoSeats
	}
	return nil
}

// Seats は配置を座席エンティティの一覧に展開する
func (m *SeatMap) Seats() []*seat.Seat {
	var seats []*seat.Seat
	for _, sec := range m.Sections {
		for _, row := range sec.Rows {
			for _, e := range row.Seats {
				s := seat.NewSeat(m.EventID, e.ID, e.Price)
				s.SectionID = sec.ID
				s.RowID = row.ID
				if e.Label != "" {
					s.Label = e.Label
				}
				if e.Blocked {
					s.Status = seat.StatusBlocked
				}
				seats = append(seats, s)
			}
		}
	}
	return seats
}

// TotalSeats は座席数を返す
func (m *SeatMap) TotalSeats() int {
	n := 0
	for _, sec := range m.Sections {
		for _, row := range sec.Rows {
			n += len(row.Seats)
		}
	}
	return n
}
