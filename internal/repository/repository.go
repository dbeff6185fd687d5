package repository

import (
	"context"
	"time"

	"github.com/Domenick1991/skybooking/internal/domain"
)

// Transactor runs fn inside one database transaction. Repositories called
// with the ctx handed to fn take part in that transaction; nested calls reuse
// the outer one.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	// Lock takes an exclusive lock on key held until the surrounding
	// transaction ends.
	Lock(ctx context.Context, key string) error
}

type FlightRepository interface {
	Create(ctx context.Context, flight *domain.Flight) error
	GetByID(ctx context.Context, id string) (*domain.Flight, error)
	List(ctx context.Context) ([]domain.Flight, error)
	// ListActiveByAirplane returns the non-cancelled, non-deleted flights of an airplane.
	ListActiveByAirplane(ctx context.Context, airplaneID string) ([]domain.Flight, error)
	Update(ctx context.Context, flight *domain.Flight) error
	UpdateStatus(ctx context.Context, id string, status domain.FlightStatus) error
}

type AirplaneRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Airplane, error)
}

type ClassFlightRepository interface {
	Create(ctx context.Context, class *domain.ClassFlight) error
	GetByID(ctx context.Context, id int64) (*domain.ClassFlight, error)
	// GetForUpdate loads the row and locks it until the transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*domain.ClassFlight, error)
	ListByFlight(ctx context.Context, flightID string) ([]domain.ClassFlight, error)
	UpdateInventory(ctx context.Context, id int64, seatCapacity, availableSeats int) error
}

type SeatRepository interface {
	CreateBatch(ctx context.Context, seats []domain.Seat) error
	// ListByClassFlight returns seats ordered by seat code.
	ListByClassFlight(ctx context.Context, classFlightID int64) ([]domain.Seat, error)
	GetByIDs(ctx context.Context, ids []int64) ([]domain.Seat, error)
	ListByBooking(ctx context.Context, bookingID string) ([]domain.Seat, error)
	// Assign books a free seat; it returns domain.ErrConflict when the seat is taken.
	Assign(ctx context.Context, seatID int64, bookingID, passengerID string) error
	Free(ctx context.Context, seatIDs []int64) error
	Delete(ctx context.Context, seatIDs []int64) error
}

type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking) error
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	ListActiveByFlight(ctx context.Context, flightID string) ([]domain.Booking, error)
	Update(ctx context.Context, booking *domain.Booking) error
	AddPassengers(ctx context.Context, bookingID string, passengerIDs []string) error
	// PassengerIDs returns the booking's passengers in the order they were added.
	PassengerIDs(ctx context.Context, bookingID string) ([]string, error)
}

type PassengerRepository interface {
	GetByIDNumber(ctx context.Context, idNumber string) (*domain.Passenger, error)
	GetByIDs(ctx context.Context, ids []string) ([]domain.Passenger, error)
	Create(ctx context.Context, passenger *domain.Passenger) error
	Update(ctx context.Context, passenger *domain.Passenger) error
}

type BillRepository interface {
	Create(ctx context.Context, bill *domain.Bill) error
	GetByID(ctx context.Context, id string) (*domain.Bill, error)
	ListByCustomer(ctx context.Context, customerID string) ([]domain.Bill, error)
	// MarkPaid moves an UNPAID bill to PAID; it returns domain.ErrConflict otherwise.
	MarkPaid(ctx context.Context, id string, paidAt time.Time) error
}

// SequenceRepository hands out per-key monotonic counters starting at 1.
// Values are never reused.
type SequenceRepository interface {
	Next(ctx context.Context, key string) (int, error)
}
