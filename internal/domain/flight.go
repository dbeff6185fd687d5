package domain

import (
	"fmt"
	"time"
)

type FlightStatus int

const (
	FlightStatusScheduled FlightStatus = 1
	FlightStatusInFlight  FlightStatus = 2
	FlightStatusFinished  FlightStatus = 3
	FlightStatusDelayed   FlightStatus = 4
	FlightStatusCancelled FlightStatus = 5
)

func (s FlightStatus) String() string {
	switch s {
	case FlightStatusScheduled:
		return "SCHEDULED"
	case FlightStatusInFlight:
		return "IN_FLIGHT"
	case FlightStatusFinished:
		return "FINISHED"
	case FlightStatusDelayed:
		return "DELAYED"
	case FlightStatusCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

type Flight struct {
	ID               string
	AirlineCode      string
	AirplaneID       string
	OriginAirport    string
	DestAirport      string
	DepartureTime    time.Time
	ArrivalTime      time.Time
	Terminal         string
	Gate             string
	BaggageAllowance int
	Status           FlightStatus
	IsDeleted        bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Airplane is the registry record the scheduler checks capacity against.
type Airplane struct {
	ID           string
	AirlineCode  string
	Model        string
	SeatCapacity int
	IsDeleted    bool
}

// DeriveStatus returns the status flight should have at now. Scheduled and
// Delayed flights move to InFlight inside [departure, arrival) and to
// Finished at or after arrival. Cancelled and deleted flights never change.
func DeriveStatus(f Flight, now time.Time) FlightStatus {
	if f.Status == FlightStatusCancelled || f.IsDeleted {
		return f.Status
	}
	switch {
	case !now.Before(f.ArrivalTime):
		return FlightStatusFinished
	case !now.Before(f.DepartureTime):
		return FlightStatusInFlight
	default:
		return f.Status
	}
}

// Overlaps reports whether the half-open windows [aStart, aEnd) and
// [bStart, bEnd) intersect. Touching boundaries do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// FlightID formats the human-readable id of the seq-th flight of an airplane.
func FlightID(airplaneID string, seq int) string {
	return fmt.Sprintf("%s-%03d", airplaneID, seq)
}

// FlightSequenceKey scopes the flight id counter per airplane.
func FlightSequenceKey(airplaneID string) string {
	return "flight:" + airplaneID
}

// FlightLockKey names the lock serializing bookings against changes to the
// flight they are on.
func FlightLockKey(flightID string) string {
	return "flight:" + flightID
}
