package booking

import (
	"context"
	"errors"
	"net/mail"
	"time"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/kafka"
	"github.com/Domenick1991/skybooking/internal/obs"
	"github.com/Domenick1991/skybooking/internal/repository"
	"github.com/Domenick1991/skybooking/internal/service/inventory"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type BookingUseCase interface {
	CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error)
	UpdateBooking(ctx context.Context, id string, input UpdateBookingInput) (*domain.Booking, error)
	CancelBooking(ctx context.Context, id string) (*domain.Booking, error)
	GetBooking(ctx context.Context, id string) (*domain.Booking, error)
	// ConfirmPayment marks an unpaid booking paid. Confirming a paid booking
	// is a no-op.
	ConfirmPayment(ctx context.Context, id string) (*domain.Booking, error)
	CancelForFlight(ctx context.Context, flightID string) (int, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value any) error
}

type PassengerInput struct {
	FullName    string
	BirthDate   time.Time
	Gender      string
	IDNumber    string
	Nationality string
}

type CreateBookingInput struct {
	FlightID       string
	ClassFlightID  int64
	ContactEmail   string
	ContactPhone   string
	PassengerCount int
	Passengers     []PassengerInput
	// SeatIDs picks seats explicitly, one per passenger in order. Empty
	// means the first free seats of the class.
	SeatIDs []int64
}

// PassengerUpdate edits the details of a passenger already on the booking.
// The identity document number cannot change.
type PassengerUpdate struct {
	ID          string
	FullName    string
	BirthDate   time.Time
	Gender      string
	Nationality string
}

// UpdateBookingInput carries the fields to change; nil or empty fields are kept.
type UpdateBookingInput struct {
	ContactEmail *string
	ContactPhone *string
	Passengers   []PassengerUpdate
	SeatIDs      []int64
}

type BookingService struct {
	tx                 repository.Transactor
	bookings           repository.BookingRepository
	passengers         repository.PassengerRepository
	flights            repository.FlightRepository
	classes            repository.ClassFlightRepository
	seats              repository.SeatRepository
	sequences          repository.SequenceRepository
	inventory          inventory.InventoryUseCase
	producer           Producer
	bookingTopic       string
	notificationsTopic string
	logger             *logrus.Logger
	tracer             trace.Tracer
	now                func() time.Time
}

type BookingServiceOption func(*BookingService)

func WithProducer(producer Producer, bookingTopic string) BookingServiceOption {
	return func(s *BookingService) {
		s.producer = producer
		s.bookingTopic = bookingTopic
	}
}

func WithNotificationsTopic(topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.notificationsTopic = topic
	}
}

func WithClock(now func() time.Time) BookingServiceOption {
	return func(s *BookingService) {
		s.now = now
	}
}

func NewBookingService(
	tx repository.Transactor,
	bookings repository.BookingRepository,
	passengers repository.PassengerRepository,
	flights repository.FlightRepository,
	classes repository.ClassFlightRepository,
	seats repository.SeatRepository,
	sequences repository.SequenceRepository,
	inventory inventory.InventoryUseCase,
	logger *logrus.Logger,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		tx:         tx,
		bookings:   bookings,
		passengers: passengers,
		flights:    flights,
		classes:    classes,
		seats:      seats,
		sequences:  sequences,
		inventory:  inventory,
		logger:     logger,
		tracer:     obs.Tracer(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error) {
	ctx, span := s.tracer.Start(ctx, "booking.CreateBooking", trace.WithAttributes(
		attribute.String("flight_id", input.FlightID),
		attribute.Int64("class_flight_id", input.ClassFlightID),
		attribute.Int("passengers", input.PassengerCount),
	))
	defer span.End()

	if input.PassengerCount <= 0 {
		return nil, domain.Validationf("passenger count must be positive")
	}

	var booking *domain.Booking
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.tx.Lock(ctx, domain.FlightLockKey(input.FlightID)); err != nil {
			return err
		}
		flight, err := s.flights.GetByID(ctx, input.FlightID)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Validationf("unknown flight %s", input.FlightID)
		}
		if err != nil {
			return err
		}
		if flight.IsDeleted {
			return domain.Validationf("flight %s is deleted", flight.ID)
		}
		if status := domain.DeriveStatus(*flight, s.now()); status != domain.FlightStatusScheduled {
			return domain.Validationf("flight %s is %s and cannot be booked", flight.ID, status)
		}

		class, err := s.classes.GetForUpdate(ctx, input.ClassFlightID)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Validationf("unknown class flight %d", input.ClassFlightID)
		}
		if err != nil {
			return err
		}
		if class.FlightID != flight.ID {
			return domain.Validationf("class flight %d does not belong to flight %s", class.ID, flight.ID)
		}
		if class.AvailableSeats < input.PassengerCount {
			return domain.Capacityf("class flight %d has %d seats available, %d requested", class.ID, class.AvailableSeats, input.PassengerCount)
		}
		if err := validateCreate(input); err != nil {
			return err
		}

		prefix := domain.BookingPrefix(flight.ID, flight.OriginAirport, flight.DestAirport)
		seq, err := s.sequences.Next(ctx, prefix)
		if err != nil {
			return err
		}

		passengerIDs := make([]string, 0, len(input.Passengers))
		for _, p := range input.Passengers {
			id, err := s.resolvePassenger(ctx, p)
			if err != nil {
				return err
			}
			passengerIDs = append(passengerIDs, id)
		}

		booking = &domain.Booking{
			ID:              domain.BookingID(prefix, seq),
			FlightID:        flight.ID,
			ClassFlightID:   class.ID,
			ContactEmail:    input.ContactEmail,
			ContactPhone:    input.ContactPhone,
			PassengerCount:  input.PassengerCount,
			Status:          domain.BookingStatusUnpaid,
			TotalPriceCents: class.PriceCents * int64(input.PassengerCount),
		}
		if err := s.bookings.Create(ctx, booking); err != nil {
			return err
		}
		if err := s.bookings.AddPassengers(ctx, booking.ID, passengerIDs); err != nil {
			return err
		}
		if _, err := s.inventory.Hold(ctx, class.ID, booking.ID, passengerIDs, input.SeatIDs); err != nil {
			return err
		}
		return s.resolve(ctx, booking)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.publish(ctx, kafka.EventBookingCreated, booking)
	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"flight_id":  booking.FlightID,
		"passengers": booking.PassengerCount,
	}).Info("booking created")
	return booking, nil
}

// validateCreate runs after the flight and capacity checks: seats first,
// then the passenger list, then contact details.
func validateCreate(input CreateBookingInput) error {
	if len(input.SeatIDs) > 0 {
		if len(input.SeatIDs) != input.PassengerCount {
			return domain.Validationf("%d seats requested for %d passengers", len(input.SeatIDs), input.PassengerCount)
		}
		if dup, ok := firstDuplicate(input.SeatIDs); ok {
			return domain.Validationf("seat %d requested more than once", dup)
		}
	}
	if len(input.Passengers) != input.PassengerCount {
		return domain.Validationf("%d passengers given for passenger count %d", len(input.Passengers), input.PassengerCount)
	}
	documents := make(map[string]struct{}, len(input.Passengers))
	for _, p := range input.Passengers {
		if p.FullName == "" || p.IDNumber == "" {
			return domain.Validationf("passenger name and identity document are required")
		}
		if _, ok := documents[p.IDNumber]; ok {
			return domain.Validationf("passenger document %s listed twice", p.IDNumber)
		}
		documents[p.IDNumber] = struct{}{}
	}
	return validateEmail(input.ContactEmail)
}

func validateEmail(email string) error {
	if email == "" {
		return domain.Validationf("contact email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.Validationf("contact email %q is invalid", email)
	}
	return nil
}

// resolvePassenger reuses the passenger holding the same identity document,
// or creates one.
func (s *BookingService) resolvePassenger(ctx context.Context, input PassengerInput) (string, error) {
	existing, err := s.passengers.GetByIDNumber(ctx, input.IDNumber)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}

	p := &domain.Passenger{
		ID:          uuid.NewString(),
		FullName:    input.FullName,
		BirthDate:   input.BirthDate,
		Gender:      input.Gender,
		IDNumber:    input.IDNumber,
		Nationality: input.Nationality,
	}
	if err := s.passengers.Create(ctx, p); err != nil {
		return "", err
	}
	return p.ID, nil
}

func (s *BookingService) UpdateBooking(ctx context.Context, id string, input UpdateBookingInput) (*domain.Booking, error) {
	var booking *domain.Booking
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		booking, err = s.lockBooking(ctx, id)
		if err != nil {
			return err
		}
		if booking.IsDeleted || !booking.Status.Active() {
			return domain.Statef("booking %s is %s and cannot be updated", id, booking.Status)
		}
		flight, err := s.flights.GetByID(ctx, booking.FlightID)
		if err != nil {
			return err
		}
		switch status := domain.DeriveStatus(*flight, s.now()); status {
		case domain.FlightStatusScheduled, domain.FlightStatusDelayed:
		default:
			return domain.Statef("flight %s is %s, booking %s cannot be updated", flight.ID, status, id)
		}

		if input.ContactEmail != nil {
			if err := validateEmail(*input.ContactEmail); err != nil {
				return err
			}
			booking.ContactEmail = *input.ContactEmail
		}
		if input.ContactPhone != nil {
			booking.ContactPhone = *input.ContactPhone
		}

		passengerIDs, err := s.bookings.PassengerIDs(ctx, id)
		if err != nil {
			return err
		}
		if err := s.updatePassengers(ctx, booking, passengerIDs, input.Passengers); err != nil {
			return err
		}
		if len(input.SeatIDs) > 0 {
			if err := s.reseat(ctx, booking, passengerIDs, input.SeatIDs); err != nil {
				return err
			}
		}

		if err := s.bookings.Update(ctx, booking); err != nil {
			return err
		}
		return s.resolve(ctx, booking)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, kafka.EventBookingUpdated, booking)
	return booking, nil
}

func (s *BookingService) updatePassengers(ctx context.Context, booking *domain.Booking, passengerIDs []string, updates []PassengerUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	onBooking := make(map[string]bool, len(passengerIDs))
	for _, id := range passengerIDs {
		onBooking[id] = true
	}
	for _, u := range updates {
		if !onBooking[u.ID] {
			return domain.Validationf("passenger %s is not on booking %s", u.ID, booking.ID)
		}
		if u.FullName == "" {
			return domain.Validationf("passenger %s name is required", u.ID)
		}
		if err := s.passengers.Update(ctx, &domain.Passenger{
			ID:          u.ID,
			FullName:    u.FullName,
			BirthDate:   u.BirthDate,
			Gender:      u.Gender,
			Nationality: u.Nationality,
		}); err != nil {
			return err
		}
	}
	return nil
}

// reseat moves the booking to seatIDs. Each seat must be in the booking's
// class and either free or already held by this booking.
func (s *BookingService) reseat(ctx context.Context, booking *domain.Booking, passengerIDs []string, seatIDs []int64) error {
	if len(seatIDs) != booking.PassengerCount {
		return domain.Validationf("%d seats requested for %d passengers", len(seatIDs), booking.PassengerCount)
	}
	if dup, ok := firstDuplicate(seatIDs); ok {
		return domain.Validationf("seat %d requested more than once", dup)
	}

	if _, err := s.classes.GetForUpdate(ctx, booking.ClassFlightID); err != nil {
		return err
	}
	requested, err := s.seats.GetByIDs(ctx, seatIDs)
	if err != nil {
		return err
	}
	byID := make(map[int64]domain.Seat, len(requested))
	for _, seat := range requested {
		byID[seat.ID] = seat
	}
	for _, id := range seatIDs {
		seat, ok := byID[id]
		switch {
		case !ok:
			return domain.Validationf("seat %d does not exist", id)
		case seat.ClassFlightID != booking.ClassFlightID:
			return domain.Validationf("seat %d does not belong to class flight %d", id, booking.ClassFlightID)
		case seat.IsBooked && (seat.BookingID == nil || *seat.BookingID != booking.ID):
			return domain.Validationf("seat %d is already booked", id)
		}
	}

	if _, err := s.inventory.ReleaseBooking(ctx, booking.ID); err != nil {
		return err
	}
	_, err = s.inventory.Allocate(ctx, booking.ClassFlightID, booking.ID, seatIDs, passengerIDs)
	return err
}

func (s *BookingService) CancelBooking(ctx context.Context, id string) (*domain.Booking, error) {
	var booking *domain.Booking
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		booking, err = s.lockBooking(ctx, id)
		if err != nil {
			return err
		}
		if booking.IsDeleted || !booking.Status.Active() {
			return domain.Statef("booking %s is already cancelled", id)
		}
		flight, err := s.flights.GetByID(ctx, booking.FlightID)
		if err != nil {
			return err
		}
		switch status := domain.DeriveStatus(*flight, s.now()); status {
		case domain.FlightStatusInFlight, domain.FlightStatusFinished:
			return domain.Statef("flight %s is %s, booking %s cannot be cancelled", flight.ID, status, id)
		}

		if err := s.cancel(ctx, booking); err != nil {
			return err
		}
		return s.resolve(ctx, booking)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, kafka.EventBookingCancelled, booking)
	s.logger.WithField("booking_id", id).Info("booking cancelled")
	return booking, nil
}

// lockBooking takes the lock of the booking's flight and reads the booking
// again under it.
func (s *BookingService) lockBooking(ctx context.Context, id string) (*domain.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.tx.Lock(ctx, domain.FlightLockKey(booking.FlightID)); err != nil {
		return nil, err
	}
	return s.bookings.GetByID(ctx, id)
}

// CancelForFlight runs inside the flight cancellation transaction, so no
// events are published from here.
func (s *BookingService) CancelForFlight(ctx context.Context, flightID string) (int, error) {
	cancelled := 0
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.tx.Lock(ctx, domain.FlightLockKey(flightID)); err != nil {
			return err
		}
		active, err := s.bookings.ListActiveByFlight(ctx, flightID)
		if err != nil {
			return err
		}
		for i := range active {
			if err := s.cancel(ctx, &active[i]); err != nil {
				return err
			}
			cancelled++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return cancelled, nil
}

// cancel releases the booking's seats, gives its passenger count back to the
// class and soft-deletes it.
func (s *BookingService) cancel(ctx context.Context, booking *domain.Booking) error {
	if _, err := s.classes.GetForUpdate(ctx, booking.ClassFlightID); err != nil {
		return err
	}
	if _, err := s.inventory.ReleaseBooking(ctx, booking.ID); err != nil {
		return err
	}
	if err := s.inventory.Restore(ctx, booking.ClassFlightID, booking.PassengerCount); err != nil {
		return err
	}
	booking.Status = domain.BookingStatusCancelled
	booking.IsDeleted = true
	return s.bookings.Update(ctx, booking)
}

func (s *BookingService) ConfirmPayment(ctx context.Context, id string) (*domain.Booking, error) {
	var (
		booking *domain.Booking
		changed bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		booking, err = s.lockBooking(ctx, id)
		if err != nil {
			return err
		}
		switch {
		case booking.IsDeleted || booking.Status == domain.BookingStatusCancelled:
			return domain.Statef("booking %s is cancelled", id)
		case booking.Status == domain.BookingStatusUnpaid:
			booking.Status = domain.BookingStatusPaid
			if err := s.bookings.Update(ctx, booking); err != nil {
				return err
			}
			changed = true
		}
		return s.resolve(ctx, booking)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.publish(ctx, kafka.EventBookingPaid, booking)
	}
	return booking, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.resolve(ctx, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

// resolve loads the passengers in booking order and the held seats.
func (s *BookingService) resolve(ctx context.Context, booking *domain.Booking) error {
	ids, err := s.bookings.PassengerIDs(ctx, booking.ID)
	if err != nil {
		return err
	}
	found, err := s.passengers.GetByIDs(ctx, ids)
	if err != nil {
		return err
	}
	byID := make(map[string]domain.Passenger, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	booking.Passengers = make([]domain.Passenger, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			booking.Passengers = append(booking.Passengers, p)
		}
	}

	booking.Seats, err = s.seats.ListByBooking(ctx, booking.ID)
	return err
}

func (s *BookingService) publish(ctx context.Context, eventType string, booking *domain.Booking) {
	if s.producer == nil || s.bookingTopic == "" {
		return
	}
	event := kafka.BookingEvent{
		Type:            eventType,
		BookingID:       booking.ID,
		FlightID:        booking.FlightID,
		Email:           booking.ContactEmail,
		Status:          booking.Status.String(),
		PassengerCount:  booking.PassengerCount,
		TotalPriceCents: booking.TotalPriceCents,
		OccurredAt:      s.now(),
	}
	topics := []string{s.bookingTopic}
	if s.notificationsTopic != "" {
		topics = append(topics, s.notificationsTopic)
	}
	for _, topic := range topics {
		if err := s.producer.Publish(ctx, topic, booking.ID, event); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"type":       eventType,
				"booking_id": booking.ID,
				"topic":      topic,
			}).Warn("publish booking event failed")
		}
	}
}

func firstDuplicate(ids []int64) (int64, bool) {
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return id, true
		}
		seen[id] = struct{}{}
	}
	return 0, false
}

var _ BookingUseCase = (*BookingService)(nil)
