package memory

import (
	"context"
	"sync"

	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/booking"
)

// BookingRepository はプロセス内の予約リポジトリ
type BookingRepository struct {
	mu     sync.RWMutex
	byID   map[string]*booking.Booking
	byHold map[string]string
}

func NewBookingRepository() *BookingRepository {
	return &BookingRepository{
		byID:   make(map[string]*booking.Booking),
		byHold: make(map[string]string),
	}
}

func (r *BookingRepository) Create(ctx context.Context, b *booking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byHold[b.HoldID]; exists {
		return booking.ErrBookingAlreadyExists
	}
	if _, exists := r.byID[b.ID]; exists {
		return booking.ErrBookingAlreadyExists
	}
	r.byID[b.ID] = b.Clone()
	r.byHold[b.HoldID] = b.ID
	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (*booking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.byID[id]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	return b.Clone(), nil
}

func (r *BookingRepository) GetByHoldID(ctx context.Context, holdID string) (*booking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byHold[holdID]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	return r.byID[id].Clone(), nil
}

var _ booking.Repository = (*BookingRepository)(nil)
