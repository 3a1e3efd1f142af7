package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/payment"
)

// PaymentRepository はプロセス内の支払いリポジトリ
type PaymentRepository struct {
	mu       sync.RWMutex
	payments map[string]*payment.Payment
}

func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{payments: make(map[string]*payment.Payment)}
}

func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.payments[p.ID]; exists {
		return payment.ErrPaymentAlreadyExists
	}
	r.payments[p.ID] = p.Clone()
	return nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*payment.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, payment.ErrPaymentNotFound
	}
	return p.Clone(), nil
}

func (r *PaymentRepository) GetOpenByHoldID(ctx context.Context, holdID string) (*payment.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.payments {
		if p.HoldID == holdID && !p.Status.IsTerminal() {
			return p.Clone(), nil
		}
	}
	return nil, payment.ErrPaymentNotFound
}

func (r *PaymentRepository) Update(ctx context.Context, p *payment.Payment, expectedVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.payments[p.ID]
	if !ok {
		return payment.ErrPaymentNotFound
	}
	if cur.Version != expectedVersion {
		return payment.ErrVersionConflict
	}
	r.payments[p.ID] = p.Clone()
	return nil
}

func (r *PaymentRepository) ListStale(ctx context.Context, submittedBefore time.Time, limit int) ([]*payment.Payment, error) {
	r.mu.RLock()
	var stale []*payment.Payment
	for _, p := range r.payments {
		if !p.Status.IsTerminal() && !p.SubmittedAt.After(submittedBefore) {
			stale = append(stale, p.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(stale, func(i, j int) bool { return stale[i].SubmittedAt.Before(stale[j].SubmittedAt) })
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	return stale, nil
}

var _ payment.Repository = (*PaymentRepository)(nil)
