package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const classFlightColumns = `id, flight_id, class_type, seat_capacity, available_seats, price_cents, created_at, updated_at`

type PGClassFlightRepository struct {
	db *pgxpool.Pool
}

func NewClassFlightRepository(db *pgxpool.Pool) ClassFlightRepository {
	return &PGClassFlightRepository{db: db}
}

func scanClassFlight(row pgx.Row) (*domain.ClassFlight, error) {
	var c domain.ClassFlight
	if err := row.Scan(&c.ID, &c.FlightID, &c.ClassType, &c.SeatCapacity, &c.AvailableSeats, &c.PriceCents, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PGClassFlightRepository) Create(ctx context.Context, c *domain.ClassFlight) error {
	return conn(ctx, r.db).QueryRow(ctx, `INSERT INTO class_flights (flight_id, class_type, seat_capacity, available_seats, price_cents)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at, updated_at`,
		c.FlightID, c.ClassType, c.SeatCapacity, c.AvailableSeats, c.PriceCents).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (r *PGClassFlightRepository) GetByID(ctx context.Context, id int64) (*domain.ClassFlight, error) {
	return r.get(ctx, `SELECT `+classFlightColumns+` FROM class_flights WHERE id=$1`, id)
}

func (r *PGClassFlightRepository) GetForUpdate(ctx context.Context, id int64) (*domain.ClassFlight, error) {
	return r.get(ctx, `SELECT `+classFlightColumns+` FROM class_flights WHERE id=$1 FOR UPDATE`, id)
}

func (r *PGClassFlightRepository) get(ctx context.Context, query string, id int64) (*domain.ClassFlight, error) {
	c, err := scanClassFlight(conn(ctx, r.db).QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFoundf("class flight %d", id)
	}
	return c, err
}

func (r *PGClassFlightRepository) ListByFlight(ctx context.Context, flightID string) ([]domain.ClassFlight, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `SELECT `+classFlightColumns+` FROM class_flights WHERE flight_id=$1 ORDER BY id`, flightID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	classes := make([]domain.ClassFlight, 0)
	for rows.Next() {
		c, err := scanClassFlight(rows)
		if err != nil {
			return nil, err
		}
		classes = append(classes, *c)
	}
	return classes, rows.Err()
}

func (r *PGClassFlightRepository) UpdateInventory(ctx context.Context, id int64, seatCapacity, availableSeats int) error {
	res, err := conn(ctx, r.db).Exec(ctx, `UPDATE class_flights SET seat_capacity=$2, available_seats=$3, updated_at=now() WHERE id=$1`,
		id, seatCapacity, availableSeats)
	if err != nil {
		return fmt.Errorf("update class inventory: %w", err)
	}
	if res.RowsAffected() == 0 {
		return domain.NotFoundf("class flight %d", id)
	}
	return nil
}

// seatOrder sorts by the numeric suffix of the seat code, so EC1000 follows EC999.
const seatOrder = `substring(seat_code FROM '[0-9]+$')::int, id`

const seatColumns = `id, class_flight_id, seat_code, is_booked, passenger_id, booking_id`

type PGSeatRepository struct {
	db *pgxpool.Pool
}

func NewSeatRepository(db *pgxpool.Pool) SeatRepository {
	return &PGSeatRepository{db: db}
}

func (r *PGSeatRepository) CreateBatch(ctx context.Context, seats []domain.Seat) error {
	if len(seats) == 0 {
		return nil
	}
	_, err := conn(ctx, r.db).CopyFrom(ctx,
		pgx.Identifier{"seats"},
		[]string{"class_flight_id", "seat_code", "is_booked"},
		pgx.CopyFromSlice(len(seats), func(i int) ([]any, error) {
			return []any{seats[i].ClassFlightID, seats[i].SeatCode, false}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("create seats: %w", err)
	}
	return nil
}

func (r *PGSeatRepository) ListByClassFlight(ctx context.Context, classFlightID int64) ([]domain.Seat, error) {
	return r.list(ctx, `SELECT `+seatColumns+` FROM seats WHERE class_flight_id=$1 ORDER BY `+seatOrder, classFlightID)
}

func (r *PGSeatRepository) GetByIDs(ctx context.Context, ids []int64) ([]domain.Seat, error) {
	return r.list(ctx, `SELECT `+seatColumns+` FROM seats WHERE id = ANY($1) ORDER BY `+seatOrder, ids)
}

func (r *PGSeatRepository) ListByBooking(ctx context.Context, bookingID string) ([]domain.Seat, error) {
	return r.list(ctx, `SELECT `+seatColumns+` FROM seats WHERE booking_id=$1 ORDER BY `+seatOrder, bookingID)
}

func (r *PGSeatRepository) list(ctx context.Context, query string, args ...any) ([]domain.Seat, error) {
	rows, err := conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seats := make([]domain.Seat, 0)
	for rows.Next() {
		var s domain.Seat
		if err := rows.Scan(&s.ID, &s.ClassFlightID, &s.SeatCode, &s.IsBooked, &s.PassengerID, &s.BookingID); err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}

func (r *PGSeatRepository) Assign(ctx context.Context, seatID int64, bookingID, passengerID string) error {
	res, err := conn(ctx, r.db).Exec(ctx, `UPDATE seats SET is_booked=TRUE, passenger_id=$2, booking_id=$3
		WHERE id=$1 AND NOT is_booked`, seatID, passengerID, bookingID)
	if err != nil {
		return fmt.Errorf("assign seat %d: %w", seatID, err)
	}
	if res.RowsAffected() == 0 {
		return fmt.Errorf("%w: seat %d is already booked", domain.ErrConflict, seatID)
	}
	return nil
}

func (r *PGSeatRepository) Free(ctx context.Context, seatIDs []int64) error {
	if len(seatIDs) == 0 {
		return nil
	}
	_, err := conn(ctx, r.db).Exec(ctx, `UPDATE seats SET is_booked=FALSE, passenger_id=NULL, booking_id=NULL WHERE id = ANY($1)`, seatIDs)
	if err != nil {
		return fmt.Errorf("free seats: %w", err)
	}
	return nil
}

func (r *PGSeatRepository) Delete(ctx context.Context, seatIDs []int64) error {
	if len(seatIDs) == 0 {
		return nil
	}
	_, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM seats WHERE id = ANY($1) AND NOT is_booked`, seatIDs)
	if err != nil {
		return fmt.Errorf("delete seats: %w", err)
	}
	return nil
}

type PGSequenceRepository struct {
	db *pgxpool.Pool
}

func NewSequenceRepository(db *pgxpool.Pool) SequenceRepository {
	return &PGSequenceRepository{db: db}
}

// Next increments the counter in one statement; the row lock it takes
// serializes concurrent callers on the same key.
func (r *PGSequenceRepository) Next(ctx context.Context, key string) (int, error) {
	var next int
	err := conn(ctx, r.db).QueryRow(ctx, `INSERT INTO sequences (key, last_value) VALUES ($1, 1)
		ON CONFLICT (key) DO UPDATE SET last_value = sequences.last_value + 1
		RETURNING last_value`, key).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next sequence %s: %w", key, err)
	}
	return next, nil
}

var (
	_ ClassFlightRepository = (*PGClassFlightRepository)(nil)
	_ SeatRepository        = (*PGSeatRepository)(nil)
	_ SequenceRepository    = (*PGSequenceRepository)(nil)
)
