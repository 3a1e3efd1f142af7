package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-seat-hold-booking/internal/config"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/hold"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/outbox"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/seat"
	"github.com/sanosuguru/go-seat-hold-booking/internal/infrastructure/id"
	"github.com/sanosuguru/go-seat-hold-booking/internal/infrastructure/memory"
	"github.com/sanosuguru/go-seat-hold-booking/internal/pkg/clock"
)

const testEventID = "concert-2025"

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

var testHoldConfig = config.HoldConfig{
	TTL:             10 * time.Minute,
	Extension:       5 * time.Minute,
	MaxSeatsPerHold: 10,
	SweepInterval:   5 * time.Second,
}

var testPaymentConfig = config.PaymentConfig{
	VerificationTimeout: 30 * time.Minute,
	SweepInterval:       15 * time.Second,
	ExtendWithin:        2 * time.Minute,
}

// recordingPublisher は発行されたイベントを記録する
type recordingPublisher struct {
	mu     sync.Mutex
	events []outbox.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e outbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) named(name string) []outbox.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []outbox.Event
	for _, e := range p.events {
		if e.EventName() == name {
			out = append(out, e)
		}
	}
	return out
}

// testEnv はメモリ実装と仮想時計で組み立てたサービス一式
type testEnv struct {
	clock       *clock.Fake
	seats       *memory.SeatStore
	holds       *memory.HoldRepository
	payments    *memory.PaymentRepository
	bookings    *memory.BookingRepository
	events      *recordingPublisher
	holdService *HoldService
	coordinator *BookingCoordinator
	reconciler  *PaymentReconciler
	seatService *SeatService
}

func newTestEnv(t testing.TB, seatIDs ...string) *testEnv {
	t.Helper()
	env := &testEnv{
		clock:    clock.NewFake(t0),
		holds:    memory.NewHoldRepository(),
		payments: memory.NewPaymentRepository(),
		bookings: memory.NewBookingRepository(),
		events:   &recordingPublisher{},
	}
	env.seats = memory.NewSeatStore(env.clock)

	env.holdService = NewHoldService(env.seats, env.holds, testHoldConfig,
		WithClock(env.clock), WithIDGenerator(id.NewSequence("hold")))
	env.coordinator = NewBookingCoordinator(env.holdService, env.seats, env.holds, env.bookings, env.payments,
		WithClock(env.clock), WithIDGenerator(id.NewSequence("booking")), WithPublisher(env.events))
	env.reconciler = NewPaymentReconciler(env.holds, env.payments, env.holdService, env.coordinator, testPaymentConfig,
		WithClock(env.clock), WithIDGenerator(id.NewSequence("payment")), WithPublisher(env.events))
	env.seatService = NewSeatService(env.seats, WithClock(env.clock))

	if len(seatIDs) > 0 {
		seats := make([]*seat.Seat, 0, len(seatIDs))
		for _, sid := range seatIDs {
			seats = append(seats, seat.NewSeat(testEventID, sid, 5000))
		}
		_, err := env.seats.Seed(context.Background(), seats)
		require.NoError(t, err)
	}
	return env
}

func (e *testEnv) hold(t *testing.T, owner string, seatIDs ...string) *hold.Hold {
	t.Helper()
	h, err := e.holdService.CreateHold(context.Background(), CreateHoldInput{
		EventID: testEventID,
		SeatIDs: seatIDs,
		Owner:   owner,
	})
	require.NoError(t, err)
	return h
}

func (e *testEnv) statuses(t *testing.T, seatIDs ...string) map[string]seat.Status {
	t.Helper()
	st, err := e.seats.GetStatus(context.Background(), testEventID, seatIDs)
	require.NoError(t, err)
	return st
}

func (e *testEnv) requireAll(t *testing.T, want seat.Status, seatIDs ...string) {
	t.Helper()
	st := e.statuses(t, seatIDs...)
	require.Len(t, st, len(seatIDs))
	for sid, got := range st {
		require.Equal(t, want, got, "座席 %s", sid)
	}
}

// === Mock implementations ===

type MockSeatStore struct {
	mock.Mock
}

func (m *MockSeatStore) ClaimSeats(ctx context.Context, eventID string, seatIDs []string, holdID string) error {
	args := m.Called(ctx, eventID, seatIDs, holdID)
	return args.Error(0)
}

func (m *MockSeatStore) ReleaseSeats(ctx context.Context, eventID string, seatIDs []string, holdID string) error {
	args := m.Called(ctx, eventID, seatIDs, holdID)
	return args.Error(0)
}

func (m *MockSeatStore) CommitSeats(ctx context.Context, eventID string, seatIDs []string, holdID, bookingID string) error {
	args := m.Called(ctx, eventID, seatIDs, holdID, bookingID)
	return args.Error(0)
}

func (m *MockSeatStore) GetStatus(ctx context.Context, eventID string, seatIDs []string) (map[string]seat.Status, error) {
	args := m.Called(ctx, eventID, seatIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]seat.Status), args.Error(1)
}

func (m *MockSeatStore) GetSeats(ctx context.Context, eventID string, seatIDs []string) ([]*seat.Seat, error) {
	args := m.Called(ctx, eventID, seatIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*seat.Seat), args.Error(1)
}

func (m *MockSeatStore) CountAvailable(ctx context.Context, eventID string) (int, error) {
	args := m.Called(ctx, eventID)
	return args.Int(0), args.Error(1)
}

func (m *MockSeatStore) ListHeldBefore(ctx context.Context, heldBefore time.Time, limit int) ([]*seat.Seat, error) {
	args := m.Called(ctx, heldBefore, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*seat.Seat), args.Error(1)
}

func (m *MockSeatStore) Seed(ctx context.Context, seats []*seat.Seat) (int, error) {
	args := m.Called(ctx, seats)
	return args.Int(0), args.Error(1)
}

type MockHoldRepository struct {
	mock.Mock
}

func (m *MockHoldRepository) Create(ctx context.Context, h *hold.Hold) error {
	args := m.Called(ctx, h)
	return args.Error(0)
}

func (m *MockHoldRepository) GetByID(ctx context.Context, id string) (*hold.Hold, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hold.Hold), args.Error(1)
}

func (m *MockHoldRepository) GetActiveByIdempotencyKey(ctx context.Context, owner, key string) (*hold.Hold, error) {
	args := m.Called(ctx, owner, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hold.Hold), args.Error(1)
}

func (m *MockHoldRepository) Update(ctx context.Context, h *hold.Hold, expectedVersion int) error {
	args := m.Called(ctx, h, expectedVersion)
	return args.Error(0)
}

func (m *MockHoldRepository) ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]*hold.Hold, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*hold.Hold), args.Error(1)
}

func (m *MockHoldRepository) CountActive(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockSeatLocker struct {
	mock.Mock
}

func (m *MockSeatLocker) LockSeats(ctx context.Context, eventID string, seatIDs []string) (func(context.Context), error) {
	args := m.Called(ctx, eventID, seatIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(func(context.Context)), args.Error(1)
}

type MockAvailabilityCache struct {
	mock.Mock
}

func (m *MockAvailabilityCache) GetAvailableCount(ctx context.Context, eventID string) (int, error) {
	args := m.Called(ctx, eventID)
	return args.Int(0), args.Error(1)
}

func (m *MockAvailabilityCache) SetAvailableCount(ctx context.Context, eventID string, count int, ttl time.Duration) error {
	args := m.Called(ctx, eventID, count, ttl)
	return args.Error(0)
}

func (m *MockAvailabilityCache) Invalidate(ctx context.Context, eventID string) error {
	args := m.Called(ctx, eventID)
	return args.Error(0)
}
