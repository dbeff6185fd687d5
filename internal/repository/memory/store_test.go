package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithinTx_RollsBackOnError(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	err := store.Transactor().WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, store.Bills().Create(ctx, &domain.Bill{ID: "b1", CustomerID: "c1", AmountCents: 100, Status: domain.BillStatusUnpaid}))
		_, err := store.Sequences().Next(ctx, "k")
		require.NoError(t, err)
		return errors.New("boom")
	})
	assert.EqualError(t, err, "boom")

	_, err = store.Bills().GetByID(ctx, "b1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	next, err := store.Sequences().Next(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 1, next)
}

func TestWithinTx_NestedReusesOuter(t *testing.T) {
	store := NewStore()
	tr := store.Transactor()
	ctx := context.Background()

	err := tr.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, tr.Lock(ctx, "airplane:A1"))
		return tr.WithinTx(ctx, func(ctx context.Context) error {
			_, err := store.Sequences().Next(ctx, "k")
			return err
		})
	})
	require.NoError(t, err)

	assert.Error(t, tr.Lock(ctx, "airplane:A1"))
}

func TestSequence_ConcurrentCallersGetDistinctValues(t *testing.T) {
	store := NewStore()
	seq := store.Sequences()

	const workers = 50
	values := make(chan int, workers)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := seq.Next(context.Background(), "PK-001-CGK-DPS")
			assert.NoError(t, err)
			values <- v
		}()
	}
	wg.Wait()
	close(values)

	seen := make(map[int]bool)
	for v := range values {
		assert.False(t, seen[v], "duplicate value %d", v)
		seen[v] = true
	}
	assert.Len(t, seen, workers)
}

func TestSeats_AssignConflictAndFree(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	class := &domain.ClassFlight{FlightID: "F1", ClassType: domain.ClassEconomy, SeatCapacity: 2, AvailableSeats: 2}
	require.NoError(t, store.Classes().Create(ctx, class))
	require.NoError(t, store.Seats().CreateBatch(ctx, []domain.Seat{
		{ClassFlightID: class.ID, SeatCode: "EC002"},
		{ClassFlightID: class.ID, SeatCode: "EC001"},
	}))

	seats, err := store.Seats().ListByClassFlight(ctx, class.ID)
	require.NoError(t, err)
	require.Len(t, seats, 2)
	assert.Equal(t, "EC001", seats[0].SeatCode)

	require.NoError(t, store.Seats().Assign(ctx, seats[0].ID, "BK-1", "P1"))
	err = store.Seats().Assign(ctx, seats[0].ID, "BK-2", "P2")
	assert.ErrorIs(t, err, domain.ErrConflict)

	held, err := store.Seats().ListByBooking(ctx, "BK-1")
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, "P1", *held[0].PassengerID)

	require.NoError(t, store.Seats().Free(ctx, []int64{seats[0].ID}))
	held, err = store.Seats().ListByBooking(ctx, "BK-1")
	require.NoError(t, err)
	assert.Empty(t, held)
}

func TestSeats_OrderedBySeatNumber(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.Seats().CreateBatch(ctx, []domain.Seat{
		{ClassFlightID: 1, SeatCode: "EC1000"},
		{ClassFlightID: 1, SeatCode: "EC101"},
		{ClassFlightID: 1, SeatCode: "EC999"},
	}))

	seats, err := store.Seats().ListByClassFlight(ctx, 1)
	require.NoError(t, err)
	codes := make([]string, 0, len(seats))
	for _, s := range seats {
		codes = append(codes, s.SeatCode)
	}
	assert.Equal(t, []string{"EC101", "EC999", "EC1000"}, codes)
}

func TestSeats_DeleteSkipsBooked(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.Seats().CreateBatch(ctx, []domain.Seat{
		{ClassFlightID: 1, SeatCode: "EC001"},
		{ClassFlightID: 1, SeatCode: "EC002"},
	}))
	seats, err := store.Seats().ListByClassFlight(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, store.Seats().Assign(ctx, seats[0].ID, "BK-1", "P1"))

	require.NoError(t, store.Seats().Delete(ctx, []int64{seats[0].ID, seats[1].ID}))

	left, err := store.Seats().ListByClassFlight(ctx, 1)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "EC001", left[0].SeatCode)
}

func TestBills_MarkPaidOnce(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	require.NoError(t, store.Bills().Create(ctx, &domain.Bill{ID: "b1", CustomerID: "c1", AmountCents: 100, Status: domain.BillStatusUnpaid}))

	paidAt := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.Bills().MarkPaid(ctx, "b1", paidAt))
	assert.ErrorIs(t, store.Bills().MarkPaid(ctx, "b1", paidAt), domain.ErrConflict)
	assert.ErrorIs(t, store.Bills().MarkPaid(ctx, "missing", paidAt), domain.ErrNotFound)

	bill, err := store.Bills().GetByID(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, domain.BillStatusPaid, bill.Status)
	assert.Equal(t, paidAt, *bill.PaymentTimestamp)
}

func TestFlights_ListActiveByAirplane(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	at := func(h int) time.Time { return time.Date(2026, 5, 1, h, 0, 0, 0, time.UTC) }

	require.NoError(t, store.Flights().Create(ctx, &domain.Flight{ID: "A1-002", AirplaneID: "A1", DepartureTime: at(14), ArrivalTime: at(16), Status: domain.FlightStatusScheduled}))
	require.NoError(t, store.Flights().Create(ctx, &domain.Flight{ID: "A1-001", AirplaneID: "A1", DepartureTime: at(10), ArrivalTime: at(12), Status: domain.FlightStatusScheduled}))
	require.NoError(t, store.Flights().Create(ctx, &domain.Flight{ID: "A1-003", AirplaneID: "A1", DepartureTime: at(18), ArrivalTime: at(20), Status: domain.FlightStatusCancelled, IsDeleted: true}))
	require.NoError(t, store.Flights().Create(ctx, &domain.Flight{ID: "B1-001", AirplaneID: "B1", DepartureTime: at(10), ArrivalTime: at(12), Status: domain.FlightStatusScheduled}))

	flights, err := store.Flights().ListActiveByAirplane(ctx, "A1")
	require.NoError(t, err)
	require.Len(t, flights, 2)
	assert.Equal(t, "A1-001", flights[0].ID)
	assert.Equal(t, "A1-002", flights[1].ID)

	all, err := store.Flights().List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
