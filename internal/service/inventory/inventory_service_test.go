package inventory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/logger"
	"github.com/Domenick1991/skybooking/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*InventoryService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return NewInventoryService(store.Transactor(), store.Classes(), store.Seats(), logger.Discard()), store
}

func createClass(t *testing.T, svc *InventoryService, capacity int) *domain.ClassFlight {
	t.Helper()
	class, err := svc.CreateClass(context.Background(), CreateClassInput{
		FlightID:     "PK-GAA-001",
		ClassType:    domain.ClassEconomy,
		SeatCapacity: capacity,
		PriceCents:   150000,
	})
	require.NoError(t, err)
	return class
}

func seatIDs(t *testing.T, store *memory.Store, classID int64) []int64 {
	t.Helper()
	seats, err := store.Seats().ListByClassFlight(context.Background(), classID)
	require.NoError(t, err)
	ids := make([]int64, 0, len(seats))
	for _, s := range seats {
		ids = append(ids, s.ID)
	}
	return ids
}

func passengers(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("P%d", i+1)
	}
	return ids
}

// assertInventoryConsistent checks 0 <= available <= capacity, capacity
// equals the seat count, available equals the free seat count and every
// booked seat carries a passenger.
func assertInventoryConsistent(t *testing.T, store *memory.Store, classID int64) *domain.ClassFlight {
	t.Helper()
	ctx := context.Background()
	class, err := store.Classes().GetByID(ctx, classID)
	require.NoError(t, err)
	seats, err := store.Seats().ListByClassFlight(ctx, classID)
	require.NoError(t, err)

	free := 0
	for _, s := range seats {
		if !s.IsBooked {
			free++
			assert.Nil(t, s.PassengerID, "free seat %s has a passenger", s.SeatCode)
			continue
		}
		assert.NotNil(t, s.PassengerID, "booked seat %s has no passenger", s.SeatCode)
		assert.NotNil(t, s.BookingID, "booked seat %s has no booking", s.SeatCode)
	}
	assert.GreaterOrEqual(t, class.AvailableSeats, 0)
	assert.LessOrEqual(t, class.AvailableSeats, class.SeatCapacity)
	assert.Equal(t, len(seats), class.SeatCapacity)
	assert.Equal(t, free, class.AvailableSeats)
	return class
}

func TestInventoryService_CreateClass(t *testing.T) {
	svc, store := newTestService(t)
	class := createClass(t, svc, 3)

	seats, err := store.Seats().ListByClassFlight(context.Background(), class.ID)
	require.NoError(t, err)
	require.Len(t, seats, 3)
	assert.Equal(t, "EC001", seats[0].SeatCode)
	assert.Equal(t, "EC003", seats[2].SeatCode)
	assertInventoryConsistent(t, store, class.ID)
}

func TestInventoryService_CreateClass_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateClass(ctx, CreateClassInput{FlightID: "F", ClassType: "premium", SeatCapacity: 1})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.CreateClass(ctx, CreateClassInput{FlightID: "F", ClassType: domain.ClassFirst, SeatCapacity: 0})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.CreateClass(ctx, CreateClassInput{FlightID: "F", ClassType: domain.ClassFirst, SeatCapacity: 2, PriceCents: -1})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestInventoryService_Hold_ExhaustsCapacity(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	class := createClass(t, svc, 2)

	held, err := svc.Hold(ctx, class.ID, "BK-1", passengers(2), nil)
	require.NoError(t, err)
	require.Len(t, held, 2)
	assert.Equal(t, "EC001", held[0].SeatCode)
	assert.Equal(t, "P1", *held[0].PassengerID)
	assert.Equal(t, "P2", *held[1].PassengerID)

	got := assertInventoryConsistent(t, store, class.ID)
	assert.Equal(t, 0, got.AvailableSeats)

	_, err = svc.Hold(ctx, class.ID, "BK-2", passengers(1), nil)
	assert.ErrorIs(t, err, domain.ErrCapacity)
}

func TestInventoryService_Hold_ExplicitSeats(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	class := createClass(t, svc, 4)
	ids := seatIDs(t, store, class.ID)

	held, err := svc.Hold(ctx, class.ID, "BK-1", passengers(2), []int64{ids[3], ids[1]})
	require.NoError(t, err)
	require.Len(t, held, 2)
	assert.Equal(t, "EC004", held[0].SeatCode)
	assert.Equal(t, "P1", *held[0].PassengerID)
	assert.Equal(t, "EC002", held[1].SeatCode)

	got := assertInventoryConsistent(t, store, class.ID)
	assert.Equal(t, 2, got.AvailableSeats)
}

func TestInventoryService_Allocate_Validation(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	class := createClass(t, svc, 3)
	other, err := svc.CreateClass(ctx, CreateClassInput{FlightID: "PK-GAA-001", ClassType: domain.ClassBusiness, SeatCapacity: 1})
	require.NoError(t, err)
	ids := seatIDs(t, store, class.ID)
	otherIDs := seatIDs(t, store, other.ID)

	_, err = svc.Hold(ctx, class.ID, "BK-0", passengers(1), []int64{ids[0]})
	require.NoError(t, err)

	testCases := []struct {
		name    string
		seats   []int64
		pax     []string
		message string
	}{
		{"count mismatch", []int64{ids[1]}, passengers(2), "1 seats requested for 2 passengers"},
		{"duplicate", []int64{ids[1], ids[1]}, passengers(2), fmt.Sprintf("seat %d requested more than once", ids[1])},
		{"missing", []int64{999}, passengers(1), "seat 999 does not exist"},
		{"other class", []int64{otherIDs[0]}, passengers(1), fmt.Sprintf("seat %d does not belong", otherIDs[0])},
		{"already booked", []int64{ids[1], ids[0]}, passengers(2), fmt.Sprintf("seat %d is already booked", ids[0])},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Allocate(ctx, class.ID, "BK-1", tc.seats, tc.pax)
			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.Contains(t, err.Error(), tc.message)
		})
	}

	// Nothing from the failed attempts stuck.
	held, err := store.Seats().ListByBooking(ctx, "BK-1")
	require.NoError(t, err)
	assert.Empty(t, held)
}

func TestInventoryService_Hold_RollsBackPartialAllocation(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	class := createClass(t, svc, 3)
	ids := seatIDs(t, store, class.ID)

	_, err := svc.Hold(ctx, class.ID, "BK-1", passengers(1), []int64{ids[2]})
	require.NoError(t, err)

	_, err = svc.Hold(ctx, class.ID, "BK-2", passengers(2), []int64{ids[0], ids[2]})
	assert.ErrorIs(t, err, domain.ErrValidation)

	got := assertInventoryConsistent(t, store, class.ID)
	assert.Equal(t, 2, got.AvailableSeats)
	held, err := store.Seats().ListByBooking(ctx, "BK-2")
	require.NoError(t, err)
	assert.Empty(t, held)
}

func TestInventoryService_ReleaseBookingAndRestore(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	class := createClass(t, svc, 3)

	_, err := svc.Hold(ctx, class.ID, "BK-1", passengers(2), nil)
	require.NoError(t, err)
	_, err = svc.Hold(ctx, class.ID, "BK-2", passengers(1), nil)
	require.NoError(t, err)

	released, err := svc.ReleaseBooking(ctx, "BK-1")
	require.NoError(t, err)
	assert.Len(t, released, 2)
	require.NoError(t, svc.Restore(ctx, class.ID, len(released)))

	got := assertInventoryConsistent(t, store, class.ID)
	assert.Equal(t, 2, got.AvailableSeats)

	held, err := store.Seats().ListByBooking(ctx, "BK-2")
	require.NoError(t, err)
	assert.Len(t, held, 1)
}

func TestInventoryService_RestoreIsCapped(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	class := createClass(t, svc, 2)

	require.NoError(t, svc.Restore(ctx, class.ID, 5))
	got, err := store.Classes().GetByID(ctx, class.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.AvailableSeats)
}

func TestInventoryService_Reserve(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	class := createClass(t, svc, 2)

	assert.ErrorIs(t, svc.Reserve(ctx, class.ID, 3), domain.ErrCapacity)
	require.NoError(t, svc.Reserve(ctx, class.ID, 2))
	got, err := store.Classes().GetByID(ctx, class.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.AvailableSeats)

	assert.ErrorIs(t, svc.Reserve(ctx, 404, 1), domain.ErrNotFound)
}

func TestInventoryService_ResizeCapacity_ShrinkRemovesHighestFree(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	class := createClass(t, svc, 5)

	_, err := svc.Hold(ctx, class.ID, "BK-1", passengers(2), nil)
	require.NoError(t, err)

	resized, err := svc.ResizeCapacity(ctx, class.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, resized.SeatCapacity)
	assert.Equal(t, 1, resized.AvailableSeats)

	seats, err := store.Seats().ListByClassFlight(ctx, class.ID)
	require.NoError(t, err)
	codes := make([]string, 0, len(seats))
	for _, s := range seats {
		codes = append(codes, s.SeatCode)
	}
	assert.Equal(t, []string{"EC001", "EC002", "EC003"}, codes)
	assertInventoryConsistent(t, store, class.ID)
}

func TestInventoryService_ResizeCapacity_ShrinkSkipsBookedTail(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	class := createClass(t, svc, 4)
	ids := seatIDs(t, store, class.ID)

	_, err := svc.Hold(ctx, class.ID, "BK-1", passengers(1), []int64{ids[3]})
	require.NoError(t, err)

	_, err = svc.ResizeCapacity(ctx, class.ID, 2)
	require.NoError(t, err)

	seats, err := store.Seats().ListByClassFlight(ctx, class.ID)
	require.NoError(t, err)
	require.Len(t, seats, 2)
	assert.Equal(t, "EC001", seats[0].SeatCode)
	assert.Equal(t, "EC004", seats[1].SeatCode)
	got := assertInventoryConsistent(t, store, class.ID)
	assert.Equal(t, 1, got.AvailableSeats)
}

func TestInventoryService_ResizeCapacity_BelowBookedFails(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	class := createClass(t, svc, 5)

	_, err := svc.Hold(ctx, class.ID, "BK-1", passengers(4), nil)
	require.NoError(t, err)

	_, err = svc.ResizeCapacity(ctx, class.ID, 2)
	assert.ErrorIs(t, err, domain.ErrCapacity)

	got := assertInventoryConsistent(t, store, class.ID)
	assert.Equal(t, 5, got.SeatCapacity)
	assert.Equal(t, 1, got.AvailableSeats)
}

func TestInventoryService_ResizeCapacity_GrowContinuesNumbering(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	class, err := svc.CreateClass(ctx, CreateClassInput{FlightID: "F", ClassType: domain.ClassBusiness, SeatCapacity: 2})
	require.NoError(t, err)

	_, err = svc.Hold(ctx, class.ID, "BK-1", passengers(1), nil)
	require.NoError(t, err)

	resized, err := svc.ResizeCapacity(ctx, class.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, resized.SeatCapacity)
	assert.Equal(t, 3, resized.AvailableSeats)

	seats, err := store.Seats().ListByClassFlight(ctx, class.ID)
	require.NoError(t, err)
	require.Len(t, seats, 4)
	assert.Equal(t, "BU003", seats[2].SeatCode)
	assert.Equal(t, "BU004", seats[3].SeatCode)
	assertInventoryConsistent(t, store, class.ID)
}

func TestInventoryService_Hold_ConcurrentBookingsNeverOversell(t *testing.T) {
	svc, store := newTestService(t)
	class := createClass(t, svc, 10)

	const workers = 40
	var wg sync.WaitGroup
	var succeeded, rejected atomic.Int32
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Hold(context.Background(), class.ID, fmt.Sprintf("BK-%d", i), []string{fmt.Sprintf("P%d", i)}, nil)
			switch {
			case err == nil:
				succeeded.Add(1)
			case assert.ErrorIs(t, err, domain.ErrCapacity):
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), succeeded.Load())
	assert.Equal(t, int32(workers-10), rejected.Load())
	got := assertInventoryConsistent(t, store, class.ID)
	assert.Equal(t, 0, got.AvailableSeats)
}
