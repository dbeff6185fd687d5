package email

import (
	"context"

	"github.com/Domenick1991/skybooking/internal/kafka"
	"github.com/sirupsen/logrus"
)

// Sender turns booking notifications into customer e-mails. Delivery is
// logged; no mail transport is configured.
type Sender struct {
	logger *logrus.Logger
}

func NewSender(logger *logrus.Logger) *Sender {
	return &Sender{logger: logger}
}

func (s *Sender) Send(ctx context.Context, event kafka.BookingEvent) error {
	if event.Email == "" {
		s.logger.WithField("booking_id", event.BookingID).Warn("notification without recipient skipped")
		return nil
	}
	s.logger.WithFields(logrus.Fields{
		"to":         event.Email,
		"subject":    Subject(event),
		"booking_id": event.BookingID,
		"flight_id":  event.FlightID,
	}).Info("send email")
	return nil
}

func Subject(event kafka.BookingEvent) string {
	switch event.Type {
	case kafka.EventBookingCreated:
		return "Your booking " + event.BookingID + " is awaiting payment"
	case kafka.EventBookingPaid:
		return "Your booking " + event.BookingID + " is confirmed"
	case kafka.EventBookingCancelled:
		return "Your booking " + event.BookingID + " was cancelled"
	case kafka.EventBookingUpdated:
		return "Your booking " + event.BookingID + " was updated"
	default:
		return "Booking " + event.BookingID
	}
}
