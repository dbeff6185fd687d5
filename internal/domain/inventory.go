package domain

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type ClassType string

const (
	ClassEconomy  ClassType = "economy"
	ClassBusiness ClassType = "business"
	ClassFirst    ClassType = "first"
)

func (c ClassType) Valid() bool {
	switch c {
	case ClassEconomy, ClassBusiness, ClassFirst:
		return true
	}
	return false
}

// SeatPrefix is the seat code prefix for a class; unknown classes fall back to economy.
func (c ClassType) SeatPrefix() string {
	switch c {
	case ClassBusiness:
		return "BU"
	case ClassFirst:
		return "FI"
	default:
		return "EC"
	}
}

// ClassFlight is the cabin-class inventory row of one flight.
// 0 <= AvailableSeats <= SeatCapacity; SeatCapacity equals the number of its seats.
type ClassFlight struct {
	ID             int64
	FlightID       string
	ClassType      ClassType
	SeatCapacity   int
	AvailableSeats int
	PriceCents     int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Seat is booked exactly when PassengerID (and BookingID) is set.
type Seat struct {
	ID            int64
	ClassFlightID int64
	SeatCode      string
	IsBooked      bool
	PassengerID   *string
	BookingID     *string
}

func SeatCode(prefix string, number int) string {
	return fmt.Sprintf("%s%03d", prefix, number)
}

// CompareSeatCodes orders seat codes by their numeric suffix, so EC1000
// sorts after EC999.
func CompareSeatCodes(a, b string) int {
	na, errA := SeatNumber(a)
	nb, errB := SeatNumber(b)
	if errA != nil || errB != nil {
		return cmp.Compare(a, b)
	}
	return cmp.Or(cmp.Compare(na, nb), cmp.Compare(a, b))
}

// SeatNumber extracts the numeric suffix of a seat code ("EC012" -> 12).
func SeatNumber(code string) (int, error) {
	i := strings.IndexFunc(code, func(r rune) bool { return r >= '0' && r <= '9' })
	if i < 0 {
		return 0, fmt.Errorf("seat code %q has no number", code)
	}
	return strconv.Atoi(code[i:])
}
