// Package memory keeps every repository in process memory. It backs the
// "memory" storage driver and the service tests.
package memory

import (
	"context"
	"errors"
	"maps"
	"sync"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/repository"
)

type txKey struct{}

// Store serializes all access with one mutex. A transaction holds the mutex
// for its whole duration and restores a snapshot when fn fails.
type Store struct {
	mu sync.Mutex

	airplanes         map[string]domain.Airplane
	flights           map[string]domain.Flight
	classes           map[int64]domain.ClassFlight
	seats             map[int64]domain.Seat
	bookings          map[string]domain.Booking
	bookingPassengers map[string][]string
	passengers        map[string]domain.Passenger
	bills             map[string]domain.Bill
	sequences         map[string]int

	nextClassID int64
	nextSeatID  int64
}

func NewStore() *Store {
	return &Store{
		airplanes:         make(map[string]domain.Airplane),
		flights:           make(map[string]domain.Flight),
		classes:           make(map[int64]domain.ClassFlight),
		seats:             make(map[int64]domain.Seat),
		bookings:          make(map[string]domain.Booking),
		bookingPassengers: make(map[string][]string),
		passengers:        make(map[string]domain.Passenger),
		bills:             make(map[string]domain.Bill),
		sequences:         make(map[string]int),
	}
}

// PutAirplane registers an airplane. Airplanes are master data owned
// elsewhere; the store only needs them for capacity and schedule checks.
func (s *Store) PutAirplane(a domain.Airplane) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.airplanes[a.ID] = a
}

func (s *Store) Transactor() repository.Transactor { return &transactor{s: s} }
func (s *Store) Flights() repository.FlightRepository { return &flightRepo{s: s} }
func (s *Store) Airplanes() repository.AirplaneRepository { return &airplaneRepo{s: s} }
func (s *Store) Classes() repository.ClassFlightRepository { return &classRepo{s: s} }
func (s *Store) Seats() repository.SeatRepository { return &seatRepo{s: s} }
func (s *Store) Bookings() repository.BookingRepository { return &bookingRepo{s: s} }
func (s *Store) Passengers() repository.PassengerRepository { return &passengerRepo{s: s} }
func (s *Store) Bills() repository.BillRepository { return &billRepo{s: s} }
func (s *Store) Sequences() repository.SequenceRepository { return &sequenceRepo{s: s} }

// guard locks the store unless ctx already runs inside a transaction.
func (s *Store) guard(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(bool)
	return ok
}

type snapshot struct {
	airplanes         map[string]domain.Airplane
	flights           map[string]domain.Flight
	classes           map[int64]domain.ClassFlight
	seats             map[int64]domain.Seat
	bookings          map[string]domain.Booking
	bookingPassengers map[string][]string
	passengers        map[string]domain.Passenger
	bills             map[string]domain.Bill
	sequences         map[string]int
	nextClassID       int64
	nextSeatID        int64
}

func (s *Store) snapshot() snapshot {
	junction := make(map[string][]string, len(s.bookingPassengers))
	for k, v := range s.bookingPassengers {
		junction[k] = append([]string(nil), v...)
	}
	return snapshot{
		airplanes:         maps.Clone(s.airplanes),
		flights:           maps.Clone(s.flights),
		classes:           maps.Clone(s.classes),
		seats:             maps.Clone(s.seats),
		bookings:          maps.Clone(s.bookings),
		bookingPassengers: junction,
		passengers:        maps.Clone(s.passengers),
		bills:             maps.Clone(s.bills),
		sequences:         maps.Clone(s.sequences),
		nextClassID:       s.nextClassID,
		nextSeatID:        s.nextSeatID,
	}
}

func (s *Store) restore(snap snapshot) {
	s.airplanes = snap.airplanes
	s.flights = snap.flights
	s.classes = snap.classes
	s.seats = snap.seats
	s.bookings = snap.bookings
	s.bookingPassengers = snap.bookingPassengers
	s.passengers = snap.passengers
	s.bills = snap.bills
	s.sequences = snap.sequences
	s.nextClassID = snap.nextClassID
	s.nextSeatID = snap.nextSeatID
}

type transactor struct {
	s *Store
}

func (t *transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	snap := t.s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		t.s.restore(snap)
		return err
	}
	return nil
}

// Lock is satisfied by the store-wide mutex a transaction already holds.
func (t *transactor) Lock(ctx context.Context, key string) error {
	if !inTx(ctx) {
		return errors.New("advisory lock requires a transaction")
	}
	return nil
}

var _ repository.Transactor = (*transactor)(nil)
