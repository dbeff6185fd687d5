package domain

import "time"

type BillStatus string

const (
	BillStatusUnpaid BillStatus = "UNPAID"
	BillStatusPaid   BillStatus = "PAID"
)

type ServiceName string

const (
	ServiceFlight        ServiceName = "Flight"
	ServiceAccommodation ServiceName = "Accommodation"
	ServiceInsurance     ServiceName = "Insurance"
	ServiceVehicleRental ServiceName = "VehicleRental"
	ServiceTourPackage   ServiceName = "TourPackage"
)

var knownServices = map[ServiceName]struct{}{
	ServiceFlight:        {},
	ServiceAccommodation: {},
	ServiceInsurance:     {},
	ServiceVehicleRental: {},
	ServiceTourPackage:   {},
}

// Known reports whether the service name is on the bill whitelist.
func (n ServiceName) Known() bool {
	_, ok := knownServices[n]
	return ok
}

type Bill struct {
	ID                 string
	CustomerID         string
	ServiceName        ServiceName
	ServiceReferenceID string
	Description        string
	AmountCents        int64
	Status             BillStatus
	PaymentTimestamp   *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
