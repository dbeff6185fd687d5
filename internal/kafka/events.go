package kafka

import "time"

const (
	EventBookingCreated   = "booking_created"
	EventBookingUpdated   = "booking_updated"
	EventBookingCancelled = "booking_cancelled"
	EventBookingPaid      = "booking_paid"
	EventFlightCancelled  = "flight_cancelled"
	EventBillPaid         = "bill_paid"
)

// BookingEvent is published to the booking topic and, for the
// customer-facing types, to the notifications topic.
type BookingEvent struct {
	Type            string    `json:"type"`
	BookingID       string    `json:"booking_id"`
	FlightID        string    `json:"flight_id"`
	Email           string    `json:"email"`
	Status          string    `json:"status"`
	PassengerCount  int       `json:"passenger_count"`
	TotalPriceCents int64     `json:"total_price_cents"`
	OccurredAt      time.Time `json:"occurred_at"`
}

type FlightEvent struct {
	Type       string    `json:"type"`
	FlightID   string    `json:"flight_id"`
	Status     string    `json:"status"`
	Bookings   int       `json:"cancelled_bookings"`
	OccurredAt time.Time `json:"occurred_at"`
}

type BillEvent struct {
	Type               string    `json:"type"`
	BillID             string    `json:"bill_id"`
	CustomerID         string    `json:"customer_id"`
	ServiceName        string    `json:"service_name"`
	ServiceReferenceID string    `json:"service_reference_id"`
	AmountCents        int64     `json:"amount_cents"`
	OccurredAt         time.Time `json:"occurred_at"`
}
