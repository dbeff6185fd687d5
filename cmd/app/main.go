package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/skybooking/api"
	"github.com/Domenick1991/skybooking/config"
	"github.com/Domenick1991/skybooking/internal/bootstrap"
	"github.com/Domenick1991/skybooking/internal/cache"
	"github.com/Domenick1991/skybooking/internal/clients"
	"github.com/Domenick1991/skybooking/internal/kafka"
	"github.com/Domenick1991/skybooking/internal/logger"
	"github.com/Domenick1991/skybooking/internal/obs"
	"github.com/Domenick1991/skybooking/internal/service/billing"
	"github.com/Domenick1991/skybooking/internal/service/booking"
	"github.com/Domenick1991/skybooking/internal/service/flights"
	"github.com/Domenick1991/skybooking/internal/service/inventory"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logg := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, cfg.Tracing)
	if err != nil {
		logg.WithError(err).Fatal("init tracer")
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logg.WithError(err).Warn("shutdown tracer")
		}
	}()

	storage, err := bootstrap.OpenStorage(ctx, cfg, logg)
	if err != nil {
		logg.WithError(err).Fatal("open storage")
	}
	defer storage.Close()

	var (
		flightOpts  []flights.FlightServiceOption
		bookingOpts []booking.BookingServiceOption
		billingOpts = []billing.BillingServiceOption{
			billing.WithTimeouts(cfg.Billing.BalanceTimeout, cfg.Billing.ConfirmTimeout),
		}
	)

	redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Booking.FlightsCacheTTL)*time.Second)
	if err := redisCache.Ping(ctx); err != nil {
		logg.WithError(err).Warn("redis unavailable, running without flight cache")
	} else {
		defer redisCache.Close()
		flightOpts = append(flightOpts, flights.WithCache(redisCache))
		billingOpts = append(billingOpts, billing.WithLocker(redisCache, cfg.Billing.PaymentLockTTL))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, logg)
		defer producer.Close()
		if err := producer.CheckConnection(ctx); err != nil {
			logg.WithError(err).Warn("kafka unreachable, events may be dropped")
		}
		flightOpts = append(flightOpts, flights.WithProducer(producer, cfg.Kafka.BookingTopic))
		bookingOpts = append(bookingOpts,
			booking.WithProducer(producer, cfg.Kafka.BookingTopic),
			booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		)
		billingOpts = append(billingOpts, billing.WithProducer(producer, cfg.Kafka.BillingTopic))
	}

	inventoryService := inventory.NewInventoryService(storage.Tx, storage.Classes, storage.Seats, logg)
	bookingService := booking.NewBookingService(
		storage.Tx,
		storage.Bookings,
		storage.Passengers,
		storage.Flights,
		storage.Classes,
		storage.Seats,
		storage.Sequences,
		inventoryService,
		logg,
		bookingOpts...,
	)
	flightOpts = append(flightOpts, flights.WithBookingCanceller(bookingService))
	flightService := flights.NewFlightService(
		storage.Tx,
		storage.Flights,
		storage.Airplanes,
		storage.Classes,
		storage.Seats,
		storage.Sequences,
		inventoryService,
		logg,
		flightOpts...,
	)
	billingService := billing.NewBillingService(
		storage.Tx,
		storage.Bills,
		clients.NewBalanceClient(cfg.Billing.BalanceURL, cfg.Billing.BalanceTimeout, logg),
		clients.NewConfirmationClient(cfg.Billing.ConfirmURLs, cfg.Billing.ConfirmTimeout, logg),
		logg,
		billingOpts...,
	)

	handlers := bootstrap.Handlers{
		Flights:  api.NewFlightHandler(flightService),
		Bookings: api.NewBookingHandler(bookingService),
		Bills:    api.NewBillHandler(billingService),
	}
	if err := bootstrap.Run(ctx, cfg, logg, handlers); err != nil {
		logg.WithError(err).Fatal("server error")
	}
}
