package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const flightColumns = `id, airline_code, airplane_id, origin_airport, dest_airport, departure_time, arrival_time,
	terminal, gate, baggage_allowance, status, is_deleted, created_at, updated_at`

type PGFlightRepository struct {
	db *pgxpool.Pool
}

func NewFlightRepository(db *pgxpool.Pool) FlightRepository {
	return &PGFlightRepository{db: db}
}

func scanFlight(row pgx.Row) (*domain.Flight, error) {
	var f domain.Flight
	if err := row.Scan(&f.ID, &f.AirlineCode, &f.AirplaneID, &f.OriginAirport, &f.DestAirport, &f.DepartureTime, &f.ArrivalTime,
		&f.Terminal, &f.Gate, &f.BaggageAllowance, &f.Status, &f.IsDeleted, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *PGFlightRepository) Create(ctx context.Context, f *domain.Flight) error {
	return conn(ctx, r.db).QueryRow(ctx, `INSERT INTO flights (id, airline_code, airplane_id, origin_airport, dest_airport,
		departure_time, arrival_time, terminal, gate, baggage_allowance, status, is_deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`,
		f.ID, f.AirlineCode, f.AirplaneID, f.OriginAirport, f.DestAirport, f.DepartureTime, f.ArrivalTime,
		f.Terminal, f.Gate, f.BaggageAllowance, f.Status, f.IsDeleted).
		Scan(&f.CreatedAt, &f.UpdatedAt)
}

func (r *PGFlightRepository) GetByID(ctx context.Context, id string) (*domain.Flight, error) {
	f, err := scanFlight(conn(ctx, r.db).QueryRow(ctx, `SELECT `+flightColumns+` FROM flights WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFoundf("flight %s", id)
	}
	return f, err
}

func (r *PGFlightRepository) List(ctx context.Context) ([]domain.Flight, error) {
	return r.list(ctx, `SELECT `+flightColumns+` FROM flights WHERE NOT is_deleted ORDER BY departure_time`)
}

func (r *PGFlightRepository) ListActiveByAirplane(ctx context.Context, airplaneID string) ([]domain.Flight, error) {
	return r.list(ctx, `SELECT `+flightColumns+` FROM flights
		WHERE airplane_id=$1 AND NOT is_deleted AND status <> $2 ORDER BY departure_time`,
		airplaneID, domain.FlightStatusCancelled)
}

func (r *PGFlightRepository) list(ctx context.Context, query string, args ...any) ([]domain.Flight, error) {
	rows, err := conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	flights := make([]domain.Flight, 0)
	for rows.Next() {
		f, err := scanFlight(rows)
		if err != nil {
			return nil, err
		}
		flights = append(flights, *f)
	}
	return flights, rows.Err()
}

func (r *PGFlightRepository) Update(ctx context.Context, f *domain.Flight) error {
	err := conn(ctx, r.db).QueryRow(ctx, `UPDATE flights SET departure_time=$2, arrival_time=$3, terminal=$4, gate=$5,
		baggage_allowance=$6, status=$7, is_deleted=$8, updated_at=now()
		WHERE id=$1 RETURNING updated_at`,
		f.ID, f.DepartureTime, f.ArrivalTime, f.Terminal, f.Gate, f.BaggageAllowance, f.Status, f.IsDeleted).
		Scan(&f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NotFoundf("flight %s", f.ID)
	}
	return err
}

func (r *PGFlightRepository) UpdateStatus(ctx context.Context, id string, status domain.FlightStatus) error {
	res, err := conn(ctx, r.db).Exec(ctx, `UPDATE flights SET status=$2, updated_at=now() WHERE id=$1`, id, status)
	if err != nil {
		return fmt.Errorf("update flight status: %w", err)
	}
	if res.RowsAffected() == 0 {
		return domain.NotFoundf("flight %s", id)
	}
	return nil
}

type PGAirplaneRepository struct {
	db *pgxpool.Pool
}

func NewAirplaneRepository(db *pgxpool.Pool) AirplaneRepository {
	return &PGAirplaneRepository{db: db}
}

func (r *PGAirplaneRepository) GetByID(ctx context.Context, id string) (*domain.Airplane, error) {
	var a domain.Airplane
	err := conn(ctx, r.db).QueryRow(ctx, `SELECT id, airline_code, model, seat_capacity, is_deleted FROM airplanes WHERE id=$1`, id).
		Scan(&a.ID, &a.AirlineCode, &a.Model, &a.SeatCapacity, &a.IsDeleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFoundf("airplane %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

var (
	_ FlightRepository   = (*PGFlightRepository)(nil)
	_ AirplaneRepository = (*PGAirplaneRepository)(nil)
)
