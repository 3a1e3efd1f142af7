package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/hold"
)

// HoldRepository はプロセス内の仮押さえリポジトリ
type HoldRepository struct {
	mu    sync.RWMutex
	holds map[string]*hold.Hold
}

func NewHoldRepository() *HoldRepository {
	return &HoldRepository{holds: make(map[string]*hold.Hold)}
}

func (r *HoldRepository) Create(ctx context.Context, h *hold.Hold) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.holds[h.ID]; exists {
		return hold.ErrHoldAlreadyExists
	}
	r.holds[h.ID] = h.Clone()
	return nil
}

func (r *HoldRepository) GetByID(ctx context.Context, id string) (*hold.Hold, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.holds[id]
	if !ok {
		return nil, hold.ErrHoldNotFound
	}
	return h.Clone(), nil
}

func (r *HoldRepository) GetActiveByIdempotencyKey(ctx context.Context, owner, key string) (*hold.Hold, error) {
	if key == "" {
		return nil, hold.ErrHoldNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, h := range r.holds {
		if h.IsActive() && h.Owner == owner && h.IdempotencyKey == key {
			return h.Clone(), nil
		}
	}
	return nil, hold.ErrHoldNotFound
}

// Update は楽観的ロックで仮押さえを保存する
func (r *HoldRepository) Update(ctx context.Context, h *hold.Hold, expectedVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.holds[h.ID]
	if !ok {
		return hold.ErrHoldNotFound
	}
	if cur.Version != expectedVersion {
		return hold.ErrVersionConflict
	}
	r.holds[h.ID] = h.Clone()
	return nil
}

func (r *HoldRepository) ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]*hold.Hold, error) {
	r.mu.RLock()
	var due []*hold.Hold
	for _, h := range r.holds {
		if h.IsActive() && h.IsExpiredAt(now) {
			due = append(due, h.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(due, func(i, j int) bool { return due[i].ExpiresAt.Before(due[j].ExpiresAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *HoldRepository) CountActive(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, h := range r.holds {
		if h.IsActive() {
			n++
		}
	}
	return n, nil
}

var _ hold.Repository = (*HoldRepository)(nil)
