package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/repository"
)

type flightRepo struct{ s *Store }

func (r *flightRepo) Create(ctx context.Context, f *domain.Flight) error {
	defer r.s.guard(ctx)()
	if _, ok := r.s.flights[f.ID]; ok {
		return fmt.Errorf("%w: flight %s already exists", domain.ErrConflict, f.ID)
	}
	now := time.Now()
	f.CreatedAt, f.UpdatedAt = now, now
	r.s.flights[f.ID] = *f
	return nil
}

func (r *flightRepo) GetByID(ctx context.Context, id string) (*domain.Flight, error) {
	defer r.s.guard(ctx)()
	f, ok := r.s.flights[id]
	if !ok {
		return nil, domain.NotFoundf("flight %s", id)
	}
	return &f, nil
}

func (r *flightRepo) List(ctx context.Context) ([]domain.Flight, error) {
	defer r.s.guard(ctx)()
	return r.filter(func(f domain.Flight) bool { return !f.IsDeleted }), nil
}

func (r *flightRepo) ListActiveByAirplane(ctx context.Context, airplaneID string) ([]domain.Flight, error) {
	defer r.s.guard(ctx)()
	return r.filter(func(f domain.Flight) bool {
		return f.AirplaneID == airplaneID && !f.IsDeleted && f.Status != domain.FlightStatusCancelled
	}), nil
}

func (r *flightRepo) filter(keep func(domain.Flight) bool) []domain.Flight {
	flights := make([]domain.Flight, 0)
	for _, f := range r.s.flights {
		if keep(f) {
			flights = append(flights, f)
		}
	}
	slices.SortFunc(flights, func(a, b domain.Flight) int {
		return cmp.Or(a.DepartureTime.Compare(b.DepartureTime), cmp.Compare(a.ID, b.ID))
	})
	return flights
}

func (r *flightRepo) Update(ctx context.Context, f *domain.Flight) error {
	defer r.s.guard(ctx)()
	cur, ok := r.s.flights[f.ID]
	if !ok {
		return domain.NotFoundf("flight %s", f.ID)
	}
	cur.DepartureTime, cur.ArrivalTime = f.DepartureTime, f.ArrivalTime
	cur.Terminal, cur.Gate, cur.BaggageAllowance = f.Terminal, f.Gate, f.BaggageAllowance
	cur.Status, cur.IsDeleted = f.Status, f.IsDeleted
	cur.UpdatedAt = time.Now()
	r.s.flights[f.ID] = cur
	f.UpdatedAt = cur.UpdatedAt
	return nil
}

func (r *flightRepo) UpdateStatus(ctx context.Context, id string, status domain.FlightStatus) error {
	defer r.s.guard(ctx)()
	f, ok := r.s.flights[id]
	if !ok {
		return domain.NotFoundf("flight %s", id)
	}
	f.Status = status
	f.UpdatedAt = time.Now()
	r.s.flights[id] = f
	return nil
}

type airplaneRepo struct{ s *Store }

func (r *airplaneRepo) GetByID(ctx context.Context, id string) (*domain.Airplane, error) {
	defer r.s.guard(ctx)()
	a, ok := r.s.airplanes[id]
	if !ok {
		return nil, domain.NotFoundf("airplane %s", id)
	}
	return &a, nil
}

type classRepo struct{ s *Store }

func (r *classRepo) Create(ctx context.Context, c *domain.ClassFlight) error {
	defer r.s.guard(ctx)()
	for _, existing := range r.s.classes {
		if existing.FlightID == c.FlightID && existing.ClassType == c.ClassType {
			return fmt.Errorf("%w: flight %s already has class %s", domain.ErrConflict, c.FlightID, c.ClassType)
		}
	}
	r.s.nextClassID++
	now := time.Now()
	c.ID = r.s.nextClassID
	c.CreatedAt, c.UpdatedAt = now, now
	r.s.classes[c.ID] = *c
	return nil
}

func (r *classRepo) GetByID(ctx context.Context, id int64) (*domain.ClassFlight, error) {
	defer r.s.guard(ctx)()
	c, ok := r.s.classes[id]
	if !ok {
		return nil, domain.NotFoundf("class flight %d", id)
	}
	return &c, nil
}

// GetForUpdate needs no row lock: a transaction already owns the store.
func (r *classRepo) GetForUpdate(ctx context.Context, id int64) (*domain.ClassFlight, error) {
	return r.GetByID(ctx, id)
}

func (r *classRepo) ListByFlight(ctx context.Context, flightID string) ([]domain.ClassFlight, error) {
	defer r.s.guard(ctx)()
	classes := make([]domain.ClassFlight, 0)
	for _, c := range r.s.classes {
		if c.FlightID == flightID {
			classes = append(classes, c)
		}
	}
	slices.SortFunc(classes, func(a, b domain.ClassFlight) int { return cmp.Compare(a.ID, b.ID) })
	return classes, nil
}

func (r *classRepo) UpdateInventory(ctx context.Context, id int64, seatCapacity, availableSeats int) error {
	defer r.s.guard(ctx)()
	c, ok := r.s.classes[id]
	if !ok {
		return domain.NotFoundf("class flight %d", id)
	}
	if availableSeats < 0 || availableSeats > seatCapacity {
		return fmt.Errorf("class flight %d: available seats %d out of range [0, %d]", id, availableSeats, seatCapacity)
	}
	c.SeatCapacity, c.AvailableSeats = seatCapacity, availableSeats
	c.UpdatedAt = time.Now()
	r.s.classes[id] = c
	return nil
}

type seatRepo struct{ s *Store }

func (r *seatRepo) CreateBatch(ctx context.Context, seats []domain.Seat) error {
	defer r.s.guard(ctx)()
	for _, seat := range seats {
		for _, existing := range r.s.seats {
			if existing.ClassFlightID == seat.ClassFlightID && existing.SeatCode == seat.SeatCode {
				return fmt.Errorf("%w: seat %s already exists", domain.ErrConflict, seat.SeatCode)
			}
		}
		r.s.nextSeatID++
		r.s.seats[r.s.nextSeatID] = domain.Seat{ID: r.s.nextSeatID, ClassFlightID: seat.ClassFlightID, SeatCode: seat.SeatCode}
	}
	return nil
}

func (r *seatRepo) ListByClassFlight(ctx context.Context, classFlightID int64) ([]domain.Seat, error) {
	defer r.s.guard(ctx)()
	return r.filter(func(s domain.Seat) bool { return s.ClassFlightID == classFlightID }), nil
}

func (r *seatRepo) GetByIDs(ctx context.Context, ids []int64) ([]domain.Seat, error) {
	defer r.s.guard(ctx)()
	return r.filter(func(s domain.Seat) bool { return slices.Contains(ids, s.ID) }), nil
}

func (r *seatRepo) ListByBooking(ctx context.Context, bookingID string) ([]domain.Seat, error) {
	defer r.s.guard(ctx)()
	return r.filter(func(s domain.Seat) bool { return s.BookingID != nil && *s.BookingID == bookingID }), nil
}

func (r *seatRepo) filter(keep func(domain.Seat) bool) []domain.Seat {
	seats := make([]domain.Seat, 0)
	for _, s := range r.s.seats {
		if keep(s) {
			seats = append(seats, s)
		}
	}
	slices.SortFunc(seats, func(a, b domain.Seat) int {
		return cmp.Or(domain.CompareSeatCodes(a.SeatCode, b.SeatCode), cmp.Compare(a.ID, b.ID))
	})
	return seats
}

func (r *seatRepo) Assign(ctx context.Context, seatID int64, bookingID, passengerID string) error {
	defer r.s.guard(ctx)()
	seat, ok := r.s.seats[seatID]
	if !ok {
		return domain.NotFoundf("seat %d", seatID)
	}
	if seat.IsBooked {
		return fmt.Errorf("%w: seat %d is already booked", domain.ErrConflict, seatID)
	}
	seat.IsBooked = true
	seat.BookingID = &bookingID
	seat.PassengerID = &passengerID
	r.s.seats[seatID] = seat
	return nil
}

func (r *seatRepo) Free(ctx context.Context, seatIDs []int64) error {
	defer r.s.guard(ctx)()
	for _, id := range seatIDs {
		seat, ok := r.s.seats[id]
		if !ok {
			continue
		}
		seat.IsBooked = false
		seat.BookingID = nil
		seat.PassengerID = nil
		r.s.seats[id] = seat
	}
	return nil
}

func (r *seatRepo) Delete(ctx context.Context, seatIDs []int64) error {
	defer r.s.guard(ctx)()
	for _, id := range seatIDs {
		if seat, ok := r.s.seats[id]; ok && !seat.IsBooked {
			delete(r.s.seats, id)
		}
	}
	return nil
}

type bookingRepo struct{ s *Store }

func (r *bookingRepo) Create(ctx context.Context, b *domain.Booking) error {
	defer r.s.guard(ctx)()
	if _, ok := r.s.bookings[b.ID]; ok {
		return fmt.Errorf("%w: booking %s already exists", domain.ErrConflict, b.ID)
	}
	now := time.Now()
	b.CreatedAt, b.UpdatedAt = now, now
	stored := *b
	stored.Passengers, stored.Seats = nil, nil
	r.s.bookings[b.ID] = stored
	return nil
}

func (r *bookingRepo) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	defer r.s.guard(ctx)()
	b, ok := r.s.bookings[id]
	if !ok {
		return nil, domain.NotFoundf("booking %s", id)
	}
	return &b, nil
}

func (r *bookingRepo) ListActiveByFlight(ctx context.Context, flightID string) ([]domain.Booking, error) {
	defer r.s.guard(ctx)()
	bookings := make([]domain.Booking, 0)
	for _, b := range r.s.bookings {
		if b.FlightID == flightID && !b.IsDeleted && b.Status.Active() {
			bookings = append(bookings, b)
		}
	}
	slices.SortFunc(bookings, func(a, b domain.Booking) int { return cmp.Compare(a.ID, b.ID) })
	return bookings, nil
}

func (r *bookingRepo) Update(ctx context.Context, b *domain.Booking) error {
	defer r.s.guard(ctx)()
	cur, ok := r.s.bookings[b.ID]
	if !ok {
		return domain.NotFoundf("booking %s", b.ID)
	}
	cur.ContactEmail, cur.ContactPhone = b.ContactEmail, b.ContactPhone
	cur.Status, cur.IsDeleted = b.Status, b.IsDeleted
	cur.UpdatedAt = time.Now()
	r.s.bookings[b.ID] = cur
	b.UpdatedAt = cur.UpdatedAt
	return nil
}

func (r *bookingRepo) AddPassengers(ctx context.Context, bookingID string, passengerIDs []string) error {
	defer r.s.guard(ctx)()
	existing := r.s.bookingPassengers[bookingID]
	for _, id := range passengerIDs {
		if slices.Contains(existing, id) {
			return fmt.Errorf("%w: passenger %s already on booking %s", domain.ErrConflict, id, bookingID)
		}
		existing = append(existing, id)
	}
	r.s.bookingPassengers[bookingID] = existing
	return nil
}

func (r *bookingRepo) PassengerIDs(ctx context.Context, bookingID string) ([]string, error) {
	defer r.s.guard(ctx)()
	return append([]string{}, r.s.bookingPassengers[bookingID]...), nil
}

type passengerRepo struct{ s *Store }

func (r *passengerRepo) GetByIDNumber(ctx context.Context, idNumber string) (*domain.Passenger, error) {
	defer r.s.guard(ctx)()
	for _, p := range r.s.passengers {
		if p.IDNumber == idNumber {
			return &p, nil
		}
	}
	return nil, domain.NotFoundf("passenger with document %s", idNumber)
}

func (r *passengerRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.Passenger, error) {
	defer r.s.guard(ctx)()
	passengers := make([]domain.Passenger, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.s.passengers[id]; ok {
			passengers = append(passengers, p)
		}
	}
	return passengers, nil
}

func (r *passengerRepo) Create(ctx context.Context, p *domain.Passenger) error {
	defer r.s.guard(ctx)()
	for _, existing := range r.s.passengers {
		if existing.IDNumber == p.IDNumber {
			return fmt.Errorf("%w: passenger with document %s already exists", domain.ErrConflict, p.IDNumber)
		}
	}
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	r.s.passengers[p.ID] = *p
	return nil
}

func (r *passengerRepo) Update(ctx context.Context, p *domain.Passenger) error {
	defer r.s.guard(ctx)()
	cur, ok := r.s.passengers[p.ID]
	if !ok {
		return domain.NotFoundf("passenger %s", p.ID)
	}
	cur.FullName, cur.BirthDate, cur.Gender, cur.Nationality = p.FullName, p.BirthDate, p.Gender, p.Nationality
	cur.UpdatedAt = time.Now()
	r.s.passengers[p.ID] = cur
	p.UpdatedAt = cur.UpdatedAt
	return nil
}

type billRepo struct{ s *Store }

func (r *billRepo) Create(ctx context.Context, b *domain.Bill) error {
	defer r.s.guard(ctx)()
	if _, ok := r.s.bills[b.ID]; ok {
		return fmt.Errorf("%w: bill %s already exists", domain.ErrConflict, b.ID)
	}
	now := time.Now()
	b.CreatedAt, b.UpdatedAt = now, now
	r.s.bills[b.ID] = *b
	return nil
}

func (r *billRepo) GetByID(ctx context.Context, id string) (*domain.Bill, error) {
	defer r.s.guard(ctx)()
	b, ok := r.s.bills[id]
	if !ok {
		return nil, domain.NotFoundf("bill %s", id)
	}
	return &b, nil
}

func (r *billRepo) ListByCustomer(ctx context.Context, customerID string) ([]domain.Bill, error) {
	defer r.s.guard(ctx)()
	bills := make([]domain.Bill, 0)
	for _, b := range r.s.bills {
		if b.CustomerID == customerID {
			bills = append(bills, b)
		}
	}
	slices.SortFunc(bills, func(a, b domain.Bill) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return bills, nil
}

func (r *billRepo) MarkPaid(ctx context.Context, id string, paidAt time.Time) error {
	defer r.s.guard(ctx)()
	b, ok := r.s.bills[id]
	if !ok {
		return domain.NotFoundf("bill %s", id)
	}
	if b.Status != domain.BillStatusUnpaid {
		return fmt.Errorf("%w: bill %s is not unpaid", domain.ErrConflict, id)
	}
	b.Status = domain.BillStatusPaid
	b.PaymentTimestamp = &paidAt
	b.UpdatedAt = time.Now()
	r.s.bills[id] = b
	return nil
}

type sequenceRepo struct{ s *Store }

func (r *sequenceRepo) Next(ctx context.Context, key string) (int, error) {
	defer r.s.guard(ctx)()
	r.s.sequences[key]++
	return r.s.sequences[key], nil
}

var (
	_ repository.FlightRepository      = (*flightRepo)(nil)
	_ repository.AirplaneRepository    = (*airplaneRepo)(nil)
	_ repository.ClassFlightRepository = (*classRepo)(nil)
	_ repository.SeatRepository        = (*seatRepo)(nil)
	_ repository.BookingRepository     = (*bookingRepo)(nil)
	_ repository.PassengerRepository   = (*passengerRepo)(nil)
	_ repository.BillRepository        = (*billRepo)(nil)
	_ repository.SequenceRepository    = (*sequenceRepo)(nil)
)
