package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const bookingColumns = `id, flight_id, class_flight_id, contact_email, contact_phone, passenger_count, status,
	total_price_cents, is_deleted, created_at, updated_at`

type PGBookingRepository struct {
	db *pgxpool.Pool
}

func NewBookingRepository(db *pgxpool.Pool) BookingRepository {
	return &PGBookingRepository{db: db}
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	if err := row.Scan(&b.ID, &b.FlightID, &b.ClassFlightID, &b.ContactEmail, &b.ContactPhone, &b.PassengerCount, &b.Status,
		&b.TotalPriceCents, &b.IsDeleted, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *PGBookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	return conn(ctx, r.db).QueryRow(ctx, `INSERT INTO bookings (id, flight_id, class_flight_id, contact_email, contact_phone,
		passenger_count, status, total_price_cents, is_deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		b.ID, b.FlightID, b.ClassFlightID, b.ContactEmail, b.ContactPhone, b.PassengerCount, b.Status, b.TotalPriceCents, b.IsDeleted).
		Scan(&b.CreatedAt, &b.UpdatedAt)
}

func (r *PGBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	b, err := scanBooking(conn(ctx, r.db).QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFoundf("booking %s", id)
	}
	return b, err
}

func (r *PGBookingRepository) ListActiveByFlight(ctx context.Context, flightID string) ([]domain.Booking, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE flight_id=$1 AND NOT is_deleted AND status IN ($2, $3) ORDER BY id`,
		flightID, domain.BookingStatusUnpaid, domain.BookingStatusPaid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func (r *PGBookingRepository) Update(ctx context.Context, b *domain.Booking) error {
	err := conn(ctx, r.db).QueryRow(ctx, `UPDATE bookings SET contact_email=$2, contact_phone=$3, status=$4, is_deleted=$5, updated_at=now()
		WHERE id=$1 RETURNING updated_at`,
		b.ID, b.ContactEmail, b.ContactPhone, b.Status, b.IsDeleted).Scan(&b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NotFoundf("booking %s", b.ID)
	}
	return err
}

func (r *PGBookingRepository) AddPassengers(ctx context.Context, bookingID string, passengerIDs []string) error {
	batch := &pgx.Batch{}
	for i, id := range passengerIDs {
		batch.Queue(`INSERT INTO booking_passengers (booking_id, passenger_id, position) VALUES ($1, $2, $3)`, bookingID, id, i)
	}
	if err := conn(ctx, r.db).SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("add booking passengers: %w", err)
	}
	return nil
}

func (r *PGBookingRepository) PassengerIDs(ctx context.Context, bookingID string) ([]string, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `SELECT passenger_id FROM booking_passengers WHERE booking_id=$1 ORDER BY position`, bookingID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

const passengerColumns = `id, full_name, birth_date, gender, id_number, nationality, created_at, updated_at`

type PGPassengerRepository struct {
	db *pgxpool.Pool
}

func NewPassengerRepository(db *pgxpool.Pool) PassengerRepository {
	return &PGPassengerRepository{db: db}
}

func scanPassenger(row pgx.Row) (*domain.Passenger, error) {
	var p domain.Passenger
	var birth *time.Time
	if err := row.Scan(&p.ID, &p.FullName, &birth, &p.Gender, &p.IDNumber, &p.Nationality, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if birth != nil {
		p.BirthDate = *birth
	}
	return &p, nil
}

func (r *PGPassengerRepository) GetByIDNumber(ctx context.Context, idNumber string) (*domain.Passenger, error) {
	p, err := scanPassenger(conn(ctx, r.db).QueryRow(ctx, `SELECT `+passengerColumns+` FROM passengers WHERE id_number=$1`, idNumber))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFoundf("passenger with document %s", idNumber)
	}
	return p, err
}

func (r *PGPassengerRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.Passenger, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `SELECT `+passengerColumns+` FROM passengers WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	passengers := make([]domain.Passenger, 0, len(ids))
	for rows.Next() {
		p, err := scanPassenger(rows)
		if err != nil {
			return nil, err
		}
		passengers = append(passengers, *p)
	}
	return passengers, rows.Err()
}

func (r *PGPassengerRepository) Create(ctx context.Context, p *domain.Passenger) error {
	return conn(ctx, r.db).QueryRow(ctx, `INSERT INTO passengers (id, full_name, birth_date, gender, id_number, nationality)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at, updated_at`,
		p.ID, p.FullName, nullableDate(p.BirthDate), p.Gender, p.IDNumber, p.Nationality).
		Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *PGPassengerRepository) Update(ctx context.Context, p *domain.Passenger) error {
	err := conn(ctx, r.db).QueryRow(ctx, `UPDATE passengers SET full_name=$2, birth_date=$3, gender=$4, nationality=$5, updated_at=now()
		WHERE id=$1 RETURNING updated_at`,
		p.ID, p.FullName, nullableDate(p.BirthDate), p.Gender, p.Nationality).Scan(&p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NotFoundf("passenger %s", p.ID)
	}
	return err
}

func nullableDate(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

var (
	_ BookingRepository   = (*PGBookingRepository)(nil)
	_ PassengerRepository = (*PGPassengerRepository)(nil)
)
