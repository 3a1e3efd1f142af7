package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/event"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/seat"
	redisinfra "github.com/sanosuguru/go-seat-hold-booking/internal/infrastructure/redis"
)

func testSeatMap() *event.SeatMap {
	return &event.SeatMap{
		EventID: testEventID,
		Name:    "Spring Concert",
		Sections: []event.Section{{
			ID: "A",
			Rows: []event.Row{{
				ID: "1",
				Seats: []event.SeatEntry{
					{ID: "A1", Price: 5000},
					{ID: "A2", Price: 5000},
					{ID: "A3", Price: 8000, Blocked: true},
				},
			}},
		}},
	}
}

type stubCatalog struct {
	maps []*event.SeatMap
	err  error
}

func (c *stubCatalog) ListSeatMaps(ctx context.Context) ([]*event.SeatMap, error) {
	return c.maps, c.err
}

func (c *stubCatalog) GetSeatMap(ctx context.Context, eventID string) (*event.SeatMap, error) {
	for _, m := range c.maps {
		if m.EventID == eventID {
			return m, nil
		}
	}
	return nil, event.ErrSeatMapNotFound
}

func TestSeatService_SeedSeatMap(t *testing.T) {
	ctx := context.Background()

	t.Run("座席配置を反映する", func(t *testing.T) {
		env := newTestEnv(t)

		n, err := env.seatService.SeedSeatMap(ctx, testSeatMap())

		require.NoError(t, err)
		assert.Equal(t, 3, n)
		st, err := env.seatService.GetStatus(ctx, testEventID, []string{"A1", "A3"})
		require.NoError(t, err)
		assert.Equal(t, seat.StatusAvailable, st["A1"])
		assert.Equal(t, seat.StatusBlocked, st["A3"])
	})

	t.Run("再反映しても仮押さえ中の座席は変わらない", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.seatService.SeedSeatMap(ctx, testSeatMap())
		require.NoError(t, err)
		env.hold(t, "user-1", "A1")

		n, err := env.seatService.SeedSeatMap(ctx, testSeatMap())

		require.NoError(t, err)
		assert.Equal(t, 2, n)
		env.requireAll(t, seat.StatusHeld, "A1")
	})

	t.Run("不正な座席配置は反映しない", func(t *testing.T) {
		env := newTestEnv(t)
		m := testSeatMap()
		m.EventID = ""

		_, err := env.seatService.SeedSeatMap(ctx, m)

		assert.ErrorIs(t, err, event.ErrEventIDRequired)
	})

	t.Run("カタログから一括で反映する", func(t *testing.T) {
		env := newTestEnv(t)
		other := testSeatMap()
		other.EventID = "other-event"

		n, err := env.seatService.SeedFromCatalog(ctx, &stubCatalog{maps: []*event.SeatMap{testSeatMap(), other}})

		require.NoError(t, err)
		assert.Equal(t, 6, n)
	})

	t.Run("カタログの取得に失敗", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.seatService.SeedFromCatalog(ctx, &stubCatalog{err: errors.New("unavailable")})

		assert.Error(t, err)
	})
}

func TestSeatService_GetStatus(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, "A1", "A2")

	_, err := env.seatService.GetStatus(ctx, "", []string{"A1"})
	assert.ErrorIs(t, err, seat.ErrEventIDRequired)

	_, err = env.seatService.GetStatus(ctx, testEventID, nil)
	assert.ErrorIs(t, err, seat.ErrSeatIDsRequired)

	st, err := env.seatService.GetStatus(ctx, testEventID, []string{"A1", "Z9"})
	require.NoError(t, err)
	assert.Len(t, st, 1, "存在しない座席は結果に含まれない")
}

func TestSeatService_CountAvailableSeats(t *testing.T) {
	ctx := context.Background()

	t.Run("キャッシュヒット時はストアを参照しない", func(t *testing.T) {
		seats := new(MockSeatStore)
		cache := new(MockAvailabilityCache)
		cache.On("GetAvailableCount", mock.Anything, testEventID).Return(42, nil)

		svc := NewSeatService(seats, WithAvailabilityCache(cache))
		count, err := svc.CountAvailableSeats(ctx, testEventID)

		require.NoError(t, err)
		assert.Equal(t, 42, count)
		seats.AssertNotCalled(t, "CountAvailable", mock.Anything, mock.Anything)
	})

	t.Run("キャッシュミス時はストアから取得してキャッシュする", func(t *testing.T) {
		seats := new(MockSeatStore)
		cache := new(MockAvailabilityCache)
		cache.On("GetAvailableCount", mock.Anything, testEventID).Return(0, redisinfra.ErrCacheMiss)
		seats.On("CountAvailable", mock.Anything, testEventID).Return(7, nil)
		cache.On("SetAvailableCount", mock.Anything, testEventID, 7, seatCacheTTL).Return(nil)

		svc := NewSeatService(seats, WithAvailabilityCache(cache))
		count, err := svc.CountAvailableSeats(ctx, testEventID)

		require.NoError(t, err)
		assert.Equal(t, 7, count)
		cache.AssertExpectations(t)
	})

	t.Run("キャッシュが無くてもストアから取得する", func(t *testing.T) {
		env := newTestEnv(t, "A1", "A2")
		env.hold(t, "user-1", "A1")

		count, err := env.seatService.CountAvailableSeats(ctx, testEventID)

		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("キャッシュエラーでもストアから取得する", func(t *testing.T) {
		seats := new(MockSeatStore)
		cache := new(MockAvailabilityCache)
		cache.On("GetAvailableCount", mock.Anything, testEventID).Return(0, errors.New("redis down"))
		seats.On("CountAvailable", mock.Anything, testEventID).Return(3, nil)
		cache.On("SetAvailableCount", mock.Anything, testEventID, 3, seatCacheTTL).Return(errors.New("redis down"))

		svc := NewSeatService(seats, WithAvailabilityCache(cache))
		count, err := svc.CountAvailableSeats(ctx, testEventID)

		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})
}
