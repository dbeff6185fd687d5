package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/skybooking/config"
	"github.com/Domenick1991/skybooking/internal/bootstrap"
	"github.com/Domenick1991/skybooking/internal/cache"
	"github.com/Domenick1991/skybooking/internal/email"
	"github.com/Domenick1991/skybooking/internal/kafka"
	"github.com/Domenick1991/skybooking/internal/logger"
	"github.com/Domenick1991/skybooking/internal/service/flights"
	"github.com/Domenick1991/skybooking/internal/service/inventory"
	kafkaGo "github.com/segmentio/kafka-go"
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

	storage, err := bootstrap.OpenStorage(ctx, cfg, logg)
	if err != nil {
		logg.WithError(err).Fatal("open storage")
	}
	defer storage.Close()

	var flightOpts []flights.FlightServiceOption
	redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Booking.FlightsCacheTTL)*time.Second)
	if err := redisCache.Ping(ctx); err != nil {
		logg.WithError(err).Warn("redis unavailable, flight cache will not be invalidated")
	} else {
		defer redisCache.Close()
		flightOpts = append(flightOpts, flights.WithCache(redisCache))
	}

	inventoryService := inventory.NewInventoryService(storage.Tx, storage.Classes, storage.Seats, logg)
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

	if len(cfg.Kafka.Brokers) > 0 {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic)
		defer consumer.Close()

		sender := email.NewSender(logg)
		go func() {
			err := consumer.Consume(ctx, func(ctx context.Context, msg kafkaGo.Message) error {
				var event kafka.BookingEvent
				if err := json.Unmarshal(msg.Value, &event); err != nil {
					logg.WithError(err).WithField("offset", msg.Offset).Warn("skip undecodable notification")
					return nil
				}
				return sender.Send(ctx, event)
			})
			if err != nil {
				logg.WithError(err).Error("notification consumer stopped")
			}
		}()
	} else {
		logg.Warn("no kafka brokers configured, notifications disabled")
	}

	interval := time.Duration(cfg.Worker.StatusSweepMinutes) * time.Minute
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	sweepTicker := time.NewTicker(interval)
	defer sweepTicker.Stop()

	logg.WithField("sweep_interval", interval.String()).Info("worker started")
	for {
		select {
		case <-sweepTicker.C:
			changed, err := flightService.RefreshStatuses(ctx)
			if err != nil {
				logg.WithError(err).Error("refresh flight statuses")
				continue
			}
			if changed > 0 {
				logg.WithField("flights", changed).Info("flight statuses refreshed")
			}
		case <-ctx.Done():
			logg.Info("worker shutting down")
			return
		}
	}
}
