package flights

import (
	"context"
	"errors"
	"time"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/kafka"
	"github.com/Domenick1991/skybooking/internal/obs"
	"github.com/Domenick1991/skybooking/internal/repository"
	"github.com/Domenick1991/skybooking/internal/service/inventory"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type FlightUseCase interface {
	CreateFlight(ctx context.Context, input CreateFlightInput) (*FlightDetails, error)
	UpdateFlight(ctx context.Context, id string, input UpdateFlightInput) (*domain.Flight, error)
	CancelFlight(ctx context.Context, id string) (*domain.Flight, error)
	GetFlight(ctx context.Context, id string) (*domain.Flight, error)
	ListFlights(ctx context.Context) ([]domain.Flight, error)
	ListClasses(ctx context.Context, flightID string) ([]domain.ClassFlight, error)
	ListSeats(ctx context.Context, classFlightID int64) ([]domain.Seat, error)
	ResizeClass(ctx context.Context, flightID string, classFlightID int64, newCapacity int) (*domain.ClassFlight, error)
	ValidateSchedule(ctx context.Context, input ScheduleInput) error
	ValidateCapacity(ctx context.Context, airplaneID string, totalSeats int) error
	// RefreshStatuses persists the time-derived status of every flight whose
	// stored status drifted and returns how many changed.
	RefreshStatuses(ctx context.Context) (int, error)
}

type FlightCache interface {
	GetFlights(ctx context.Context) ([]domain.Flight, error)
	SetFlights(ctx context.Context, flights []domain.Flight) error
	InvalidateFlights(ctx context.Context) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value any) error
}

// BookingCanceller force-cancels the active bookings of a flight inside the
// caller's transaction and returns how many it cancelled.
type BookingCanceller interface {
	CancelForFlight(ctx context.Context, flightID string) (int, error)
}

type ClassInput struct {
	ClassType    domain.ClassType
	SeatCapacity int
	PriceCents   int64
}

type CreateFlightInput struct {
	AirlineCode      string
	AirplaneID       string
	OriginAirport    string
	DestAirport      string
	DepartureTime    time.Time
	ArrivalTime      time.Time
	Terminal         string
	Gate             string
	BaggageAllowance int
	Classes          []ClassInput
}

// UpdateFlightInput carries the fields to change; nil fields are kept.
type UpdateFlightInput struct {
	DepartureTime    *time.Time
	ArrivalTime      *time.Time
	Terminal         *string
	Gate             *string
	BaggageAllowance *int
}

type ScheduleInput struct {
	AirplaneID    string
	OriginAirport string
	DestAirport   string
	DepartureTime time.Time
	ArrivalTime   time.Time
	// ExcludeFlightID skips the flight being rescheduled.
	ExcludeFlightID string
}

type FlightDetails struct {
	Flight  domain.Flight
	Classes []domain.ClassFlight
}

type FlightService struct {
	tx        repository.Transactor
	flights   repository.FlightRepository
	airplanes repository.AirplaneRepository
	classes   repository.ClassFlightRepository
	seats     repository.SeatRepository
	sequences repository.SequenceRepository
	inventory inventory.InventoryUseCase
	bookings  BookingCanceller
	cache     FlightCache
	producer  Producer
	topic     string
	logger    *logrus.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

type FlightServiceOption func(*FlightService)

func WithCache(cache FlightCache) FlightServiceOption {
	return func(s *FlightService) {
		s.cache = cache
	}
}

func WithProducer(producer Producer, topic string) FlightServiceOption {
	return func(s *FlightService) {
		s.producer = producer
		s.topic = topic
	}
}

func WithBookingCanceller(bookings BookingCanceller) FlightServiceOption {
	return func(s *FlightService) {
		s.bookings = bookings
	}
}

func WithClock(now func() time.Time) FlightServiceOption {
	return func(s *FlightService) {
		s.now = now
	}
}

func NewFlightService(
	tx repository.Transactor,
	flights repository.FlightRepository,
	airplanes repository.AirplaneRepository,
	classes repository.ClassFlightRepository,
	seats repository.SeatRepository,
	sequences repository.SequenceRepository,
	inventory inventory.InventoryUseCase,
	logger *logrus.Logger,
	opts ...FlightServiceOption,
) *FlightService {
	service := &FlightService{
		tx:        tx,
		flights:   flights,
		airplanes: airplanes,
		classes:   classes,
		seats:     seats,
		sequences: sequences,
		inventory: inventory,
		logger:    logger,
		tracer:    obs.Tracer(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *FlightService) CreateFlight(ctx context.Context, input CreateFlightInput) (*FlightDetails, error) {
	ctx, span := s.tracer.Start(ctx, "flights.CreateFlight", trace.WithAttributes(attribute.String("airplane_id", input.AirplaneID)))
	defer span.End()

	if input.AirplaneID == "" {
		return nil, domain.Validationf("airplane is required")
	}
	if len(input.Classes) == 0 {
		return nil, domain.Validationf("flight needs at least one class")
	}
	total := 0
	seen := make(map[domain.ClassType]bool, len(input.Classes))
	for _, c := range input.Classes {
		if seen[c.ClassType] {
			return nil, domain.Validationf("class %s listed twice", c.ClassType)
		}
		seen[c.ClassType] = true
		total += c.SeatCapacity
	}

	details := &FlightDetails{}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.tx.Lock(ctx, airplaneLockKey(input.AirplaneID)); err != nil {
			return err
		}
		airplane, err := s.activeAirplane(ctx, input.AirplaneID)
		if err != nil {
			return err
		}
		if err := s.ValidateSchedule(ctx, ScheduleInput{
			AirplaneID:    input.AirplaneID,
			OriginAirport: input.OriginAirport,
			DestAirport:   input.DestAirport,
			DepartureTime: input.DepartureTime,
			ArrivalTime:   input.ArrivalTime,
		}); err != nil {
			return err
		}
		if err := s.ValidateCapacity(ctx, input.AirplaneID, total); err != nil {
			return err
		}

		seq, err := s.sequences.Next(ctx, domain.FlightSequenceKey(input.AirplaneID))
		if err != nil {
			return err
		}
		airline := input.AirlineCode
		if airline == "" {
			airline = airplane.AirlineCode
		}
		flight := domain.Flight{
			ID:               domain.FlightID(input.AirplaneID, seq),
			AirlineCode:      airline,
			AirplaneID:       input.AirplaneID,
			OriginAirport:    input.OriginAirport,
			DestAirport:      input.DestAirport,
			DepartureTime:    input.DepartureTime,
			ArrivalTime:      input.ArrivalTime,
			Terminal:         input.Terminal,
			Gate:             input.Gate,
			BaggageAllowance: input.BaggageAllowance,
			Status:           domain.FlightStatusScheduled,
		}
		if err := s.flights.Create(ctx, &flight); err != nil {
			return err
		}

		classes := make([]domain.ClassFlight, 0, len(input.Classes))
		for _, c := range input.Classes {
			class, err := s.inventory.CreateClass(ctx, inventory.CreateClassInput{
				FlightID:     flight.ID,
				ClassType:    c.ClassType,
				SeatCapacity: c.SeatCapacity,
				PriceCents:   c.PriceCents,
			})
			if err != nil {
				return err
			}
			classes = append(classes, *class)
		}
		details.Flight, details.Classes = flight, classes
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.invalidate(ctx)
	s.logger.WithFields(logrus.Fields{
		"flight_id":   details.Flight.ID,
		"airplane_id": details.Flight.AirplaneID,
		"seats":       total,
	}).Info("flight created")
	return details, nil
}

func (s *FlightService) UpdateFlight(ctx context.Context, id string, input UpdateFlightInput) (*domain.Flight, error) {
	var updated *domain.Flight
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.tx.Lock(ctx, domain.FlightLockKey(id)); err != nil {
			return err
		}
		flight, err := s.flights.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.tx.Lock(ctx, airplaneLockKey(flight.AirplaneID)); err != nil {
			return err
		}
		if flight.IsDeleted {
			return domain.Statef("flight %s already deleted", id)
		}
		switch domain.DeriveStatus(*flight, s.now()) {
		case domain.FlightStatusScheduled, domain.FlightStatusDelayed:
		default:
			return domain.Statef("cannot update flight %s in progress or finished", id)
		}

		departure, arrival := flight.DepartureTime, flight.ArrivalTime
		if input.DepartureTime != nil {
			departure = *input.DepartureTime
		}
		if input.ArrivalTime != nil {
			arrival = *input.ArrivalTime
		}
		if !departure.Equal(flight.DepartureTime) || !arrival.Equal(flight.ArrivalTime) {
			if err := s.ValidateSchedule(ctx, ScheduleInput{
				AirplaneID:      flight.AirplaneID,
				OriginAirport:   flight.OriginAirport,
				DestAirport:     flight.DestAirport,
				DepartureTime:   departure,
				ArrivalTime:     arrival,
				ExcludeFlightID: flight.ID,
			}); err != nil {
				return err
			}
			if departure.After(flight.DepartureTime) {
				flight.Status = domain.FlightStatusDelayed
			}
			flight.DepartureTime, flight.ArrivalTime = departure, arrival
		}
		if input.Terminal != nil {
			flight.Terminal = *input.Terminal
		}
		if input.Gate != nil {
			flight.Gate = *input.Gate
		}
		if input.BaggageAllowance != nil {
			if *input.BaggageAllowance < 0 {
				return domain.Validationf("baggage allowance must not be negative")
			}
			flight.BaggageAllowance = *input.BaggageAllowance
		}

		if err := s.flights.Update(ctx, flight); err != nil {
			return err
		}
		updated = flight
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return updated, nil
}

// CancelFlight force-cancels the flight's active bookings, then soft-deletes
// the flight, all in one transaction.
func (s *FlightService) CancelFlight(ctx context.Context, id string) (*domain.Flight, error) {
	ctx, span := s.tracer.Start(ctx, "flights.CancelFlight", trace.WithAttributes(attribute.String("flight_id", id)))
	defer span.End()

	var (
		cancelled *domain.Flight
		bookings  int
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.tx.Lock(ctx, domain.FlightLockKey(id)); err != nil {
			return err
		}
		flight, err := s.flights.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if flight.IsDeleted || flight.Status == domain.FlightStatusCancelled {
			return domain.Statef("flight %s already deleted", id)
		}
		switch domain.DeriveStatus(*flight, s.now()) {
		case domain.FlightStatusScheduled, domain.FlightStatusDelayed:
		default:
			return domain.Statef("cannot delete flight %s in progress or finished", id)
		}

		if s.bookings != nil {
			if bookings, err = s.bookings.CancelForFlight(ctx, id); err != nil {
				return err
			}
		}

		flight.Status = domain.FlightStatusCancelled
		flight.IsDeleted = true
		if err := s.flights.Update(ctx, flight); err != nil {
			return err
		}
		cancelled = flight
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.invalidate(ctx)
	s.publish(ctx, kafka.FlightEvent{
		Type:       kafka.EventFlightCancelled,
		FlightID:   cancelled.ID,
		Status:     cancelled.Status.String(),
		Bookings:   bookings,
		OccurredAt: s.now(),
	})
	s.logger.WithFields(logrus.Fields{"flight_id": id, "cancelled_bookings": bookings}).Info("flight cancelled")
	return cancelled, nil
}

func (s *FlightService) GetFlight(ctx context.Context, id string) (*domain.Flight, error) {
	flight, err := s.flights.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.refresh(ctx, flight) {
		s.invalidate(ctx)
	}
	return flight, nil
}

// ListFlights serves the raw list from cache when possible; statuses are
// derived after the read so a cached list never shows stale statuses.
func (s *FlightService) ListFlights(ctx context.Context) ([]domain.Flight, error) {
	var flights []domain.Flight
	if s.cache != nil {
		cached, err := s.cache.GetFlights(ctx)
		if err != nil {
			s.logger.WithError(err).Warn("flights cache read failed")
		}
		flights = cached
	}

	if flights == nil {
		var err error
		flights, err = s.flights.List(ctx)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.SetFlights(ctx, flights); err != nil {
				s.logger.WithError(err).Warn("flights cache write failed")
			}
		}
	}

	changed := false
	for i := range flights {
		if s.refresh(ctx, &flights[i]) {
			changed = true
		}
	}
	if changed {
		s.invalidate(ctx)
	}
	return flights, nil
}

func (s *FlightService) RefreshStatuses(ctx context.Context) (int, error) {
	flights, err := s.flights.List(ctx)
	if err != nil {
		return 0, err
	}
	changed := 0
	for i := range flights {
		if s.refresh(ctx, &flights[i]) {
			changed++
		}
	}
	if changed > 0 {
		s.invalidate(ctx)
	}
	return changed, nil
}

// refresh sets the derived status on flight and persists it when it differs
// from the stored one. It reports whether the stored status changed.
func (s *FlightService) refresh(ctx context.Context, flight *domain.Flight) bool {
	derived := domain.DeriveStatus(*flight, s.now())
	if derived == flight.Status {
		return false
	}
	flight.Status = derived
	if err := s.flights.UpdateStatus(ctx, flight.ID, derived); err != nil {
		s.logger.WithError(err).WithField("flight_id", flight.ID).Warn("persist derived flight status failed")
		return false
	}
	return true
}

func (s *FlightService) ListClasses(ctx context.Context, flightID string) ([]domain.ClassFlight, error) {
	if _, err := s.flights.GetByID(ctx, flightID); err != nil {
		return nil, err
	}
	return s.classes.ListByFlight(ctx, flightID)
}

func (s *FlightService) ListSeats(ctx context.Context, classFlightID int64) ([]domain.Seat, error) {
	if _, err := s.classes.GetByID(ctx, classFlightID); err != nil {
		return nil, err
	}
	return s.seats.ListByClassFlight(ctx, classFlightID)
}

// ResizeClass checks the airplane can hold the resized total, then delegates
// to the inventory.
func (s *FlightService) ResizeClass(ctx context.Context, flightID string, classFlightID int64, newCapacity int) (*domain.ClassFlight, error) {
	var resized *domain.ClassFlight
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.tx.Lock(ctx, domain.FlightLockKey(flightID)); err != nil {
			return err
		}
		flight, err := s.flights.GetByID(ctx, flightID)
		if err != nil {
			return err
		}
		if err := s.tx.Lock(ctx, airplaneLockKey(flight.AirplaneID)); err != nil {
			return err
		}
		if flight.IsDeleted {
			return domain.Statef("flight %s already deleted", flightID)
		}
		switch domain.DeriveStatus(*flight, s.now()) {
		case domain.FlightStatusScheduled, domain.FlightStatusDelayed:
		default:
			return domain.Statef("cannot resize flight %s in progress or finished", flightID)
		}

		classes, err := s.classes.ListByFlight(ctx, flightID)
		if err != nil {
			return err
		}
		total, found := newCapacity, false
		for _, c := range classes {
			if c.ID == classFlightID {
				found = true
				continue
			}
			total += c.SeatCapacity
		}
		if !found {
			return domain.Validationf("class flight %d does not belong to flight %s", classFlightID, flightID)
		}
		if err := s.ValidateCapacity(ctx, flight.AirplaneID, total); err != nil {
			return err
		}

		resized, err = s.inventory.ResizeCapacity(ctx, classFlightID, newCapacity)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resized, nil
}

// ValidateSchedule rejects an empty or reversed window, a round trip to the
// same airport, and any overlap with another active flight of the airplane.
// Windows are half-open, so back-to-back flights are allowed.
func (s *FlightService) ValidateSchedule(ctx context.Context, input ScheduleInput) error {
	if !input.DepartureTime.Before(input.ArrivalTime) {
		return domain.Validationf("departure must be before arrival")
	}
	if input.OriginAirport == "" || input.DestAirport == "" {
		return domain.Validationf("origin and destination airports are required")
	}
	if input.OriginAirport == input.DestAirport {
		return domain.Validationf("origin and destination must differ")
	}

	scheduled, err := s.flights.ListActiveByAirplane(ctx, input.AirplaneID)
	if err != nil {
		return err
	}
	for _, other := range scheduled {
		if other.ID == input.ExcludeFlightID {
			continue
		}
		if domain.Overlaps(input.DepartureTime, input.ArrivalTime, other.DepartureTime, other.ArrivalTime) {
			return domain.Validationf("airplane %s is already scheduled on flight %s from %s to %s",
				input.AirplaneID, other.ID, other.DepartureTime.Format(time.RFC3339), other.ArrivalTime.Format(time.RFC3339))
		}
	}
	return nil
}

func (s *FlightService) ValidateCapacity(ctx context.Context, airplaneID string, totalSeats int) error {
	airplane, err := s.activeAirplane(ctx, airplaneID)
	if err != nil {
		return err
	}
	if totalSeats > airplane.SeatCapacity {
		return domain.Capacityf("airplane %s has %d seats, %d requested", airplaneID, airplane.SeatCapacity, totalSeats)
	}
	return nil
}

func (s *FlightService) activeAirplane(ctx context.Context, id string) (*domain.Airplane, error) {
	airplane, err := s.airplanes.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.Validationf("unknown airplane %s", id)
	}
	if err != nil {
		return nil, err
	}
	if airplane.IsDeleted {
		return nil, domain.Validationf("airplane %s is retired", id)
	}
	return airplane, nil
}

func (s *FlightService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateFlights(ctx); err != nil {
		s.logger.WithError(err).Warn("flights cache invalidation failed")
	}
}

func (s *FlightService) publish(ctx context.Context, event kafka.FlightEvent) {
	if s.producer == nil || s.topic == "" {
		return
	}
	if err := s.producer.Publish(ctx, s.topic, event.FlightID, event); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{"type": event.Type, "flight_id": event.FlightID}).Warn("publish flight event failed")
	}
}

func airplaneLockKey(id string) string {
	return "airplane:" + id
}

var _ FlightUseCase = (*FlightService)(nil)
