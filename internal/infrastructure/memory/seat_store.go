package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/seat"
	"github.com/sanosuguru/go-seat-hold-booking/internal/pkg/clock"
)

// seatSlot は1席分の状態とロック
// 一度登録された slot は削除されない
type seatSlot struct {
	mu   sync.Mutex
	seat *seat.Seat
}

// SeatStore はプロセス内の座席ストア
// ロックは座席単位で、複数座席に触れる操作はID昇順にロックを取る
type SeatStore struct {
	mu     sync.RWMutex // events マップ自体を保護する
	events map[string]map[string]*seatSlot
	clock  clock.Clock
}

// NewSeatStore は新しい SeatStore を作成する
func NewSeatStore(c clock.Clock) *SeatStore {
	if c == nil {
		c = clock.Real{}
	}
	return &SeatStore{
		events: make(map[string]map[string]*seatSlot),
		clock:  c,
	}
}

// lookup は昇順の座席IDに対応する slot を返す
// missing は見つからなかった座席ID
func (s *SeatStore) lookup(eventID string, ids []string) (slots []*seatSlot, missing []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bySeat := s.events[eventID]
	slots = make([]*seatSlot, 0, len(ids))
	for _, id := range ids {
		sl, ok := bySeat[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		slots = append(slots, sl)
	}
	return slots, missing
}

func lockAll(slots []*seatSlot) {
	for _, sl := range slots {
		sl.mu.Lock()
	}
}

func unlockAll(slots []*seatSlot) {
	for i := len(slots) - 1; i >= 0; i-- {
		slots[i].mu.Unlock()
	}
}

func (s *SeatStore) ClaimSeats(ctx context.Context, eventID string, seatIDs []string, holdID string) error {
	ids := seat.NormalizeIDs(seatIDs)
	if len(ids) == 0 {
		return seat.ErrSeatIDsRequired
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	slots, missing := s.lookup(eventID, ids)
	if len(missing) > 0 {
		return seat.ErrSeatNotFound
	}

	lockAll(slots)
	defer unlockAll(slots)

	for _, sl := range slots {
		if !sl.seat.IsAvailable() {
			return seat.ErrSeatConflict
		}
	}
	now := s.clock.Now()
	for _, sl := range slots {
		_ = sl.seat.Claim(holdID, now)
	}
	return nil
}

func (s *SeatStore) ReleaseSeats(ctx context.Context, eventID string, seatIDs []string, holdID string) error {
	ids := seat.NormalizeIDs(seatIDs)
	slots, _ := s.lookup(eventID, ids)

	lockAll(slots)
	defer unlockAll(slots)

	now := s.clock.Now()
	released := 0
	for _, sl := range slots {
		if sl.seat.Release(holdID, now) == nil {
			released++
		}
	}
	if released == 0 {
		return seat.ErrSeatStale
	}
	return nil
}

func (s *SeatStore) CommitSeats(ctx context.Context, eventID string, seatIDs []string, holdID, bookingID string) error {
	ids := seat.NormalizeIDs(seatIDs)
	if len(ids) == 0 {
		return seat.ErrSeatIDsRequired
	}
	slots, missing := s.lookup(eventID, ids)
	if len(missing) > 0 {
		return seat.ErrSeatStale
	}

	lockAll(slots)
	defer unlockAll(slots)

	for _, sl := range slots {
		if !sl.seat.IsHeldBy(holdID) {
			return seat.ErrSeatStale
		}
	}
	now := s.clock.Now()
	for _, sl := range slots {
		_ = sl.seat.Commit(holdID, bookingID, now)
	}
	return nil
}

func (s *SeatStore) GetStatus(ctx context.Context, eventID string, seatIDs []string) (map[string]seat.Status, error) {
	ids := seat.NormalizeIDs(seatIDs)
	slots, _ := s.lookup(eventID, ids)

	lockAll(slots)
	defer unlockAll(slots)

	result := make(map[string]seat.Status, len(slots))
	for _, sl := range slots {
		result[sl.seat.ID] = sl.seat.Status
	}
	return result, nil
}

func (s *SeatStore) GetSeats(ctx context.Context, eventID string, seatIDs []string) ([]*seat.Seat, error) {
	ids := seat.NormalizeIDs(seatIDs)
	slots, missing := s.lookup(eventID, ids)
	if len(missing) > 0 {
		return nil, seat.ErrSeatNotFound
	}

	seats := make([]*seat.Seat, 0, len(slots))
	for _, sl := range slots {
		sl.mu.Lock()
		seats = append(seats, sl.seat.Clone())
		sl.mu.Unlock()
	}
	return seats, nil
}

func (s *SeatStore) CountAvailable(ctx context.Context, eventID string) (int, error) {
	s.mu.RLock()
	slots := make([]*seatSlot, 0, len(s.events[eventID]))
	for _, sl := range s.events[eventID] {
		slots = append(slots, sl)
	}
	s.mu.RUnlock()

	count := 0
	for _, sl := range slots {
		sl.mu.Lock()
		if sl.seat.IsAvailable() {
			count++
		}
		sl.mu.Unlock()
	}
	return count, nil
}

func (s *SeatStore) ListHeldBefore(ctx context.Context, heldBefore time.Time, limit int) ([]*seat.Seat, error) {
	s.mu.RLock()
	var slots []*seatSlot
	for _, bySeat := range s.events {
		for _, sl := range bySeat {
			slots = append(slots, sl)
		}
	}
	s.mu.RUnlock()

	var held []*seat.Seat
	for _, sl := range slots {
		sl.mu.Lock()
		if sl.seat.Status == seat.StatusHeld && sl.seat.HeldAt != nil && !sl.seat.HeldAt.After(heldBefore) {
			held = append(held, sl.seat.Clone())
		}
		sl.mu.Unlock()
	}
	sort.Slice(held, func(i, j int) bool { return held[i].HeldAt.Before(*held[j].HeldAt) })
	if limit > 0 && len(held) > limit {
		held = held[:limit]
	}
	return held, nil
}

func (s *SeatStore) Seed(ctx context.Context, seats []*seat.Seat) (int, error) {
	for _, se := range seats {
		if err := se.Validate(); err != nil {
			return 0, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	applied := 0
	now := s.clock.Now()
	for _, se := range seats {
		bySeat, ok := s.events[se.EventID]
		if !ok {
			bySeat = make(map[string]*seatSlot)
			s.events[se.EventID] = bySeat
		}
		sl, ok := bySeat[se.ID]
		if !ok {
			c := se.Clone()
			c.UpdatedAt = now
			bySeat[se.ID] = &seatSlot{seat: c}
			applied++
			continue
		}

		sl.mu.Lock()
		cur := sl.seat
		if cur.Status == seat.StatusAvailable || cur.Status == seat.StatusBlocked {
			cur.SectionID = se.SectionID
			cur.RowID = se.RowID
			cur.Label = se.Label
			cur.Price = se.Price
			if se.Status == seat.StatusBlocked {
				cur.Status = seat.StatusBlocked
			} else {
				cur.Status = seat.StatusAvailable
			}
			cur.UpdatedAt = now
			cur.Version++
			applied++
		}
		sl.mu.Unlock()
	}
	return applied, nil
}

var _ seat.Store = (*SeatStore)(nil)
