package domain

import (
	"fmt"
	"time"
)

type BookingStatus int

const (
	BookingStatusUnpaid    BookingStatus = 1
	BookingStatusPaid      BookingStatus = 2
	BookingStatusCancelled BookingStatus = 3
)

func (s BookingStatus) String() string {
	switch s {
	case BookingStatusUnpaid:
		return "UNPAID"
	case BookingStatusPaid:
		return "PAID"
	case BookingStatusCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Active reports whether the booking still holds inventory.
func (s BookingStatus) Active() bool {
	return s == BookingStatusUnpaid || s == BookingStatusPaid
}

type Booking struct {
	ID              string
	FlightID        string
	ClassFlightID   int64
	ContactEmail    string
	ContactPhone    string
	PassengerCount  int
	Status          BookingStatus
	TotalPriceCents int64
	IsDeleted       bool
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// Resolved on reads; not stored on the booking row.
	Passengers []Passenger
	Seats      []Seat
}

type Passenger struct {
	ID          string
	FullName    string
	BirthDate   time.Time
	Gender      string
	IDNumber    string
	Nationality string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BookingPrefix is the route prefix a booking code sequence is scoped to.
func BookingPrefix(flightID, origin, dest string) string {
	return fmt.Sprintf("%s-%s-%s", flightID, origin, dest)
}

// BookingID formats <flightId>-<origin>-<dest>-<seq>, seq zero-padded to 3 digits.
func BookingID(prefix string, seq int) string {
	return fmt.Sprintf("%s-%03d", prefix, seq)
}
