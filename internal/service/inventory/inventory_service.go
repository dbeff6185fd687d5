package inventory

import (
	"cmp"
	"context"
	"errors"
	"slices"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/obs"
	"github.com/Domenick1991/skybooking/internal/repository"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// InventoryUseCase owns seat state and the capacity counters of class
// flights. Every method runs in a transaction; called with a ctx that is
// already inside one, it joins it.
type InventoryUseCase interface {
	CreateClass(ctx context.Context, input CreateClassInput) (*domain.ClassFlight, error)
	// Hold locks the class, checks availability, allocates seats for the
	// passengers (explicit seatIDs or the first free ones) and reserves them.
	Hold(ctx context.Context, classFlightID int64, bookingID string, passengerIDs []string, seatIDs []int64) ([]domain.Seat, error)
	Allocate(ctx context.Context, classFlightID int64, bookingID string, seatIDs []int64, passengerIDs []string) ([]domain.Seat, error)
	AutoAllocate(ctx context.Context, classFlightID int64, bookingID string, passengerIDs []string) ([]domain.Seat, error)
	Release(ctx context.Context, seatIDs []int64) error
	// ReleaseBooking frees every seat held by the booking and returns them.
	ReleaseBooking(ctx context.Context, bookingID string) ([]domain.Seat, error)
	Reserve(ctx context.Context, classFlightID int64, n int) error
	Restore(ctx context.Context, classFlightID int64, n int) error
	ResizeCapacity(ctx context.Context, classFlightID int64, newCapacity int) (*domain.ClassFlight, error)
}

type CreateClassInput struct {
	FlightID     string
	ClassType    domain.ClassType
	SeatCapacity int
	PriceCents   int64
}

type InventoryService struct {
	tx      repository.Transactor
	classes repository.ClassFlightRepository
	seats   repository.SeatRepository
	logger  *logrus.Logger
	tracer  trace.Tracer
}

func NewInventoryService(
	tx repository.Transactor,
	classes repository.ClassFlightRepository,
	seats repository.SeatRepository,
	logger *logrus.Logger,
) *InventoryService {
	return &InventoryService{
		tx:      tx,
		classes: classes,
		seats:   seats,
		logger:  logger,
		tracer:  obs.Tracer(),
	}
}

func (s *InventoryService) CreateClass(ctx context.Context, input CreateClassInput) (*domain.ClassFlight, error) {
	if !input.ClassType.Valid() {
		return nil, domain.Validationf("unknown class type %q", input.ClassType)
	}
	if input.SeatCapacity <= 0 {
		return nil, domain.Validationf("seat capacity of %s must be positive", input.ClassType)
	}
	if input.PriceCents < 0 {
		return nil, domain.Validationf("price of %s must not be negative", input.ClassType)
	}

	class := &domain.ClassFlight{
		FlightID:       input.FlightID,
		ClassType:      input.ClassType,
		SeatCapacity:   input.SeatCapacity,
		AvailableSeats: input.SeatCapacity,
		PriceCents:     input.PriceCents,
	}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.classes.Create(ctx, class); err != nil {
			return err
		}
		return s.seats.CreateBatch(ctx, newSeats(class.ID, input.ClassType, 1, input.SeatCapacity))
	})
	if err != nil {
		return nil, err
	}
	return class, nil
}

func (s *InventoryService) Hold(ctx context.Context, classFlightID int64, bookingID string, passengerIDs []string, seatIDs []int64) ([]domain.Seat, error) {
	ctx, span := s.tracer.Start(ctx, "inventory.Hold", trace.WithAttributes(
		attribute.Int64("class_flight_id", classFlightID),
		attribute.Int("passengers", len(passengerIDs)),
	))
	defer span.End()

	var held []domain.Seat
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		class, err := s.classes.GetForUpdate(ctx, classFlightID)
		if err != nil {
			return err
		}
		if class.AvailableSeats < len(passengerIDs) {
			return domain.Capacityf("class flight %d has %d seats available, %d requested", classFlightID, class.AvailableSeats, len(passengerIDs))
		}

		if len(seatIDs) > 0 {
			held, err = s.Allocate(ctx, classFlightID, bookingID, seatIDs, passengerIDs)
		} else {
			held, err = s.AutoAllocate(ctx, classFlightID, bookingID, passengerIDs)
		}
		if err != nil {
			return err
		}
		return s.Reserve(ctx, classFlightID, len(passengerIDs))
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return held, nil
}

func (s *InventoryService) Allocate(ctx context.Context, classFlightID int64, bookingID string, seatIDs []int64, passengerIDs []string) ([]domain.Seat, error) {
	if len(seatIDs) != len(passengerIDs) {
		return nil, domain.Validationf("%d seats requested for %d passengers", len(seatIDs), len(passengerIDs))
	}
	if dup, ok := firstDuplicate(seatIDs); ok {
		return nil, domain.Validationf("seat %d requested more than once", dup)
	}

	var allocated []domain.Seat
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		found, err := s.seats.GetByIDs(ctx, seatIDs)
		if err != nil {
			return err
		}
		byID := make(map[int64]domain.Seat, len(found))
		for _, seat := range found {
			byID[seat.ID] = seat
		}

		for _, id := range seatIDs {
			seat, ok := byID[id]
			switch {
			case !ok:
				return domain.Validationf("seat %d does not exist", id)
			case seat.ClassFlightID != classFlightID:
				return domain.Validationf("seat %d does not belong to class flight %d", id, classFlightID)
			case seat.IsBooked:
				return domain.Validationf("seat %d is already booked", id)
			}
		}

		allocated = make([]domain.Seat, 0, len(seatIDs))
		for i, id := range seatIDs {
			seat, err := s.assign(ctx, byID[id], bookingID, passengerIDs[i])
			if err != nil {
				return err
			}
			allocated = append(allocated, seat)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return allocated, nil
}

// AutoAllocate books the first free seats in seat-code order, one per
// passenger, linked positionally.
func (s *InventoryService) AutoAllocate(ctx context.Context, classFlightID int64, bookingID string, passengerIDs []string) ([]domain.Seat, error) {
	var allocated []domain.Seat
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		seats, err := s.seats.ListByClassFlight(ctx, classFlightID)
		if err != nil {
			return err
		}

		allocated = make([]domain.Seat, 0, len(passengerIDs))
		for _, seat := range seats {
			if len(allocated) == len(passengerIDs) {
				break
			}
			if seat.IsBooked {
				continue
			}
			seat, err := s.assign(ctx, seat, bookingID, passengerIDs[len(allocated)])
			if err != nil {
				return err
			}
			allocated = append(allocated, seat)
		}
		if len(allocated) < len(passengerIDs) {
			return domain.Capacityf("class flight %d has %d free seats, %d requested", classFlightID, len(allocated), len(passengerIDs))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return allocated, nil
}

func (s *InventoryService) assign(ctx context.Context, seat domain.Seat, bookingID, passengerID string) (domain.Seat, error) {
	if err := s.seats.Assign(ctx, seat.ID, bookingID, passengerID); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return seat, domain.Validationf("seat %d is already booked", seat.ID)
		}
		return seat, err
	}
	seat.IsBooked = true
	seat.BookingID = &bookingID
	seat.PassengerID = &passengerID
	return seat, nil
}

func (s *InventoryService) Release(ctx context.Context, seatIDs []int64) error {
	return s.seats.Free(ctx, seatIDs)
}

func (s *InventoryService) ReleaseBooking(ctx context.Context, bookingID string) ([]domain.Seat, error) {
	var released []domain.Seat
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		seats, err := s.seats.ListByBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		ids := make([]int64, 0, len(seats))
		for _, seat := range seats {
			ids = append(ids, seat.ID)
		}
		if err := s.seats.Free(ctx, ids); err != nil {
			return err
		}
		released = seats
		return nil
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}

func (s *InventoryService) Reserve(ctx context.Context, classFlightID int64, n int) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		class, err := s.classes.GetForUpdate(ctx, classFlightID)
		if err != nil {
			return err
		}
		if n > class.AvailableSeats {
			return domain.Capacityf("class flight %d has %d seats available, %d requested", classFlightID, class.AvailableSeats, n)
		}
		return s.classes.UpdateInventory(ctx, classFlightID, class.SeatCapacity, class.AvailableSeats-n)
	})
}

func (s *InventoryService) Restore(ctx context.Context, classFlightID int64, n int) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		class, err := s.classes.GetForUpdate(ctx, classFlightID)
		if err != nil {
			return err
		}
		return s.classes.UpdateInventory(ctx, classFlightID, class.SeatCapacity, min(class.AvailableSeats+n, class.SeatCapacity))
	})
}

// ResizeCapacity grows the class with seats numbered after the highest
// existing one, or shrinks it by deleting the highest-numbered free seats.
// Available seats are recounted from the seat rows afterwards.
func (s *InventoryService) ResizeCapacity(ctx context.Context, classFlightID int64, newCapacity int) (*domain.ClassFlight, error) {
	ctx, span := s.tracer.Start(ctx, "inventory.ResizeCapacity", trace.WithAttributes(
		attribute.Int64("class_flight_id", classFlightID),
		attribute.Int("new_capacity", newCapacity),
	))
	defer span.End()

	if newCapacity < 0 {
		return nil, domain.Validationf("seat capacity must not be negative")
	}

	var resized *domain.ClassFlight
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		class, err := s.classes.GetForUpdate(ctx, classFlightID)
		if err != nil {
			return err
		}
		seats, err := s.seats.ListByClassFlight(ctx, classFlightID)
		if err != nil {
			return err
		}

		free := make([]numberedSeat, 0, len(seats))
		maxNumber := 0
		for _, seat := range seats {
			n, err := domain.SeatNumber(seat.SeatCode)
			if err != nil {
				return err
			}
			maxNumber = max(maxNumber, n)
			if !seat.IsBooked {
				free = append(free, numberedSeat{id: seat.ID, number: n})
			}
		}
		booked := len(seats) - len(free)
		if newCapacity < booked {
			return domain.Capacityf("class flight %d has %d booked seats, cannot shrink to %d", classFlightID, booked, newCapacity)
		}

		unbooked := len(free)
		switch {
		case newCapacity > len(seats):
			add := newCapacity - len(seats)
			if err := s.seats.CreateBatch(ctx, newSeats(classFlightID, class.ClassType, maxNumber+1, add)); err != nil {
				return err
			}
			unbooked += add
		case newCapacity < len(seats):
			remove := len(seats) - newCapacity
			slices.SortFunc(free, func(a, b numberedSeat) int { return cmp.Compare(b.number, a.number) })
			ids := make([]int64, 0, remove)
			for _, seat := range free[:remove] {
				ids = append(ids, seat.id)
			}
			if err := s.seats.Delete(ctx, ids); err != nil {
				return err
			}
			unbooked -= remove
		}

		if err := s.classes.UpdateInventory(ctx, classFlightID, newCapacity, unbooked); err != nil {
			return err
		}
		class.SeatCapacity, class.AvailableSeats = newCapacity, unbooked
		resized = class
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"class_flight_id": classFlightID,
		"capacity":        resized.SeatCapacity,
		"available":       resized.AvailableSeats,
	}).Info("class capacity resized")
	return resized, nil
}

type numberedSeat struct {
	id     int64
	number int
}

func newSeats(classFlightID int64, classType domain.ClassType, from, count int) []domain.Seat {
	seats := make([]domain.Seat, 0, count)
	for n := from; n < from+count; n++ {
		seats = append(seats, domain.Seat{
			ClassFlightID: classFlightID,
			SeatCode:      domain.SeatCode(classType.SeatPrefix(), n),
		})
	}
	return seats
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

var _ InventoryUseCase = (*InventoryService)(nil)
