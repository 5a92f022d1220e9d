package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	attendancestore "rollcall/internal/attendance/store"
	"rollcall/internal/events"
	"rollcall/internal/events/outbox"
	outboxstore "rollcall/internal/events/outbox/store"
	otpstore "rollcall/internal/otp/store"
	"rollcall/internal/otp/workers/cleanup"
	"rollcall/internal/platform/config"
	redisclient "rollcall/internal/platform/redis"
	ratelimitmw "rollcall/internal/ratelimit/middleware"
	"rollcall/internal/ratelimit/store/bucket"
	"rollcall/pkg/platform/circuit"
)

// sessionBackend is the selected session store and, for backends that keep
// code leases in tables or maps, the lease store the cleanup worker sweeps.
type sessionBackend struct {
	store  otpstore.Store
	leases cleanup.LeaseStore
}

func newSessionBackend(cfg config.Server, db *sql.DB, rc *redisclient.Client, logger *slog.Logger) (sessionBackend, error) {
	switch cfg.OTP.Store {
	case config.StorePostgres:
		if db == nil {
			return sessionBackend{}, fmt.Errorf("postgres session store requires a database")
		}
		s := otpstore.NewPostgres(db)
		logger.Info("otp sessions stored in postgres")
		return sessionBackend{store: s, leases: s}, nil
	case config.StoreRedis:
		if rc == nil {
			return sessionBackend{}, fmt.Errorf("redis session store requires a redis client")
		}
		logger.Info("otp sessions stored in redis")
		// leases expire through key TTLs
		return sessionBackend{store: otpstore.NewRedis(rc.Client)}, nil
	default:
		s := otpstore.New()
		logger.Warn("otp sessions stored in memory; codes are lost on restart")
		return sessionBackend{store: s, leases: s}, nil
	}
}

func newAttendanceStore(db *sql.DB, logger *slog.Logger) attendancestore.Store {
	if db == nil {
		logger.Warn("attendance records stored in memory; set DATABASE_URL to persist them")
		return attendancestore.New()
	}
	return attendancestore.NewPostgres(db)
}

// claimLimiter is the selected rate limit store. sweep is set for stores that
// hold windows in process memory and need idle keys dropped.
type claimLimiter struct {
	limiter ratelimitmw.Limiter
	sweep   func(ctx context.Context) (int, error)
}

func newClaimLimiter(cfg config.Server, rc *redisclient.Client, logger *slog.Logger) claimLimiter {
	if cfg.RateLimit.Store == config.StoreRedis && rc != nil {
		logger.Info("claim rate limits stored in redis")
		return claimLimiter{limiter: bucket.NewRedis(rc.Client)}
	}
	s := bucket.NewInMemoryBucketStore()
	return claimLimiter{limiter: s, sweep: s.Sweep}
}

// eventDelivery is where domain events go. outbox is set when they are
// written to Postgres and relayed to Kafka by the outbox worker.
type eventDelivery struct {
	sink   events.Sink
	outbox outbox.Store
}

func newEventDelivery(db *sql.DB, kafka events.MessageProducer, topic string, logger *slog.Logger) eventDelivery {
	switch {
	case kafka == nil:
		return eventDelivery{sink: events.NewLogSink(logger)}
	case db != nil:
		ob := outboxstore.NewPostgres(db)
		logger.Info("domain events relayed to kafka through the postgres outbox")
		return eventDelivery{sink: outbox.NewSink(ob), outbox: ob}
	default:
		return eventDelivery{sink: events.NewFallbackSink(
			events.NewKafkaSink(kafka, topic),
			events.NewLogSink(logger),
			circuit.New("kafka-events"),
			logger,
		)}
	}
}
