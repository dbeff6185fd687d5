package bootstrap

import (
	"context"
	"fmt"

	"github.com/Domenick1991/skybooking/config"
	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/repository"
	"github.com/Domenick1991/skybooking/internal/repository/memory"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// Storage bundles the repositories of one storage driver.
type Storage struct {
	Tx         repository.Transactor
	Flights    repository.FlightRepository
	Airplanes  repository.AirplaneRepository
	Classes    repository.ClassFlightRepository
	Seats      repository.SeatRepository
	Bookings   repository.BookingRepository
	Passengers repository.PassengerRepository
	Bills      repository.BillRepository
	Sequences  repository.SequenceRepository

	close func()
}

func (s *Storage) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenStorage connects the driver named by cfg.Storage.Driver.
func OpenStorage(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Storage, error) {
	switch cfg.Storage.Driver {
	case "memory":
		return openMemory(cfg.Storage.Airplanes, logger), nil
	case "postgres":
		return openPostgres(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func openMemory(seeds []config.AirplaneSeed, logger *logrus.Logger) *Storage {
	store := memory.NewStore()
	for _, a := range seeds {
		store.PutAirplane(domain.Airplane{
			ID:           a.ID,
			AirlineCode:  a.AirlineCode,
			Model:        a.Model,
			SeatCapacity: a.SeatCapacity,
		})
	}
	logger.WithField("airplanes", len(seeds)).Warn("using in-memory storage, data is lost on exit")

	return &Storage{
		Tx:         store.Transactor(),
		Flights:    store.Flights(),
		Airplanes:  store.Airplanes(),
		Classes:    store.Classes(),
		Seats:      store.Seats(),
		Bookings:   store.Bookings(),
		Passengers: store.Passengers(),
		Bills:      store.Bills(),
		Sequences:  store.Sequences(),
	}
}

func openPostgres(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Storage, error) {
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if cfg.Storage.Migrate {
		if err := repository.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("database schema applied")
	}

	return &Storage{
		Tx:         repository.NewTransactor(pool),
		Flights:    repository.NewFlightRepository(pool),
		Airplanes:  repository.NewAirplaneRepository(pool),
		Classes:    repository.NewClassFlightRepository(pool),
		Seats:      repository.NewSeatRepository(pool),
		Bookings:   repository.NewBookingRepository(pool),
		Passengers: repository.NewPassengerRepository(pool),
		Bills:      repository.NewBillRepository(pool),
		Sequences:  repository.NewSequenceRepository(pool),
		close:      pool.Close,
	}, nil
}
