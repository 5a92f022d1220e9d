package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"rollcall/internal/attendance/decision"
	attendancehandler "rollcall/internal/attendance/handler"
	attendancemetrics "rollcall/internal/attendance/metrics"
	attendanceservice "rollcall/internal/attendance/service"
	"rollcall/internal/events"
	outboxmetrics "rollcall/internal/events/outbox/metrics"
	outboxworker "rollcall/internal/events/outbox/worker"
	jwttoken "rollcall/internal/jwt_token"
	otphandler "rollcall/internal/otp/handler"
	otpmetrics "rollcall/internal/otp/metrics"
	otpservice "rollcall/internal/otp/service"
	"rollcall/internal/otp/workers/cleanup"
	"rollcall/internal/platform/config"
	"rollcall/internal/platform/database"
	"rollcall/internal/platform/health"
	"rollcall/internal/platform/kafka/producer"
	"rollcall/internal/platform/logger"
	"rollcall/internal/platform/metrics"
	redisclient "rollcall/internal/platform/redis"
	"rollcall/internal/platform/tracer"
	ratelimitmw "rollcall/internal/ratelimit/middleware"
	httptransport "rollcall/internal/transport/http"
	"rollcall/migrations"
	"rollcall/pkg/platform/middleware/request"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.FromEnv()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	log.Info("initializing rollcall",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"otp_store", cfg.OTP.Store,
	)

	shutdownTracing, err := tracer.Setup(ctx, cfg.Tracing, "rollcall", health.Version)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("trace exporter shutdown", "error", err)
		}
	}()

	platformMetrics := metrics.New()
	healthHandler := health.New(cfg.Environment)

	pool, err := database.New(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if pool != nil {
		defer pool.Close() //nolint:errcheck // shutdown path
		healthHandler.RegisterCheck("postgres", pool.Health)
		if err := platformMetrics.WatchDB("rollcall", pool.DB()); err != nil {
			return fmt.Errorf("register db metrics: %w", err)
		}
		if cfg.Database.AutoMigrate {
			applied, err := pool.Migrate(ctx, migrations.FS)
			if err != nil {
				return fmt.Errorf("migrate database: %w", err)
			}
			for _, m := range applied {
				log.Info("applied migration", "version", m.Version, "name", m.Name)
			}
		}
	}

	var rc *redisclient.Client
	if cfg.Redis.URL != "" {
		rc, err = redisclient.New(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rc.Close() //nolint:errcheck // shutdown path
		healthHandler.RegisterCheck("redis", rc.Health)
		if err := platformMetrics.Watch(redisclient.NewPoolCollector(rc)); err != nil {
			return fmt.Errorf("register redis metrics: %w", err)
		}
	}

	var (
		kp    *producer.Producer
		kafka events.MessageProducer
		relay *outboxworker.Worker
		// set when events are written to the outbox in the same transaction as their rows
		txDB *sql.DB
	)
	if cfg.Kafka.Brokers != "" {
		kp, err = producer.New(cfg.Kafka, log)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer kp.Close() //nolint:errcheck // shutdown path
		kafka = kp
		healthHandler.RegisterOptional("kafka", kp.Health)
		topicCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = kp.EnsureTopic(topicCtx, cfg.Kafka.EventsTopic,
			int32(cfg.Kafka.TopicPartitions), int16(cfg.Kafka.TopicReplication)) //nolint:gosec // bounded by config validation
		cancel()
		if err != nil {
			log.Warn("could not provision events topic", "topic", cfg.Kafka.EventsTopic, "error", err)
		}
	}

	delivery := newEventDelivery(pool.DB(), kafka, cfg.Kafka.EventsTopic, log)
	if delivery.outbox != nil {
		txDB = pool.DB()
		relay, err = outboxworker.New(delivery.outbox, kp,
			outboxworker.WithTopic(cfg.Kafka.EventsTopic),
			outboxworker.WithLogger(log),
			outboxworker.WithMetrics(outboxmetrics.New()),
		)
		if err != nil {
			return fmt.Errorf("init outbox relay: %w", err)
		}
	}
	publisher := events.NewPublisher(delivery.sink,
		events.WithAsyncBuffer(1024),
		events.WithPublisherLogger(log),
		events.WithPublisherMetrics(platformMetrics),
	)
	defer publisher.Close()

	db := pool.DB()
	backend, err := newSessionBackend(cfg, db, rc, log)
	if err != nil {
		return err
	}

	tr := tracer.NewOTel("rollcall")
	otpMetrics := otpmetrics.New()
	otpOpts := []otpservice.Option{
		otpservice.WithLogger(log),
		otpservice.WithMetrics(otpMetrics),
		otpservice.WithTracer(tr),
		otpservice.WithPublisher(publisher),
	}
	attendanceOpts := []attendanceservice.Option{
		attendanceservice.WithLogger(log),
		attendanceservice.WithMetrics(attendancemetrics.New()),
		attendanceservice.WithTracer(tr),
		attendanceservice.WithPublisher(publisher),
	}
	if txDB != nil {
		tx := newPostgresTx(txDB)
		attendanceOpts = append(attendanceOpts, attendanceservice.WithTx(attendanceTx{tx}))
		// only a postgres session store can share the outbox transaction
		if cfg.OTP.Store == config.StorePostgres {
			otpOpts = append(otpOpts, otpservice.WithTx(sessionTx{tx}))
		}
	}

	sessions, err := otpservice.New(backend.store, otpservice.Config{
		DefaultTTL:  cfg.OTP.SessionTTL,
		MinTTL:      cfg.OTP.MinTTL,
		MaxTTL:      cfg.OTP.MaxTTL,
		CodeLength:  cfg.OTP.CodeLength,
		MaxAttempts: cfg.OTP.MaxAttempts,
	}, otpOpts...)
	if err != nil {
		return fmt.Errorf("init otp service: %w", err)
	}

	ledger, err := attendanceservice.New(newAttendanceStore(db, log), sessions, attendanceservice.Config{
		BaseThreshold: cfg.Attendance.BaseThreshold,
		Policy: decision.Policy{
			LowConfidenceCutoff: cfg.Attendance.LowConfidenceCutoff,
			IndoorFloor:         cfg.Attendance.IndoorFloor,
			LowConfidenceCap:    cfg.Attendance.LowConfidenceCap,
			HighConfidenceCap:   cfg.Attendance.HighConfidenceCap,
		},
	}, append(attendanceOpts, attendanceservice.WithSessionLookup(sessions))...)
	if err != nil {
		return fmt.Errorf("init attendance service: %w", err)
	}

	sessionHandler := otphandler.New(sessions, log)
	limiter := newClaimLimiter(cfg, rc, log)
	claimLimit := ratelimitmw.New(limiter.limiter, cfg.RateLimit.ClaimsPerWindow, cfg.RateLimit.Window, log)
	attendanceHandler := attendancehandler.New(ledger, log,
		attendancehandler.WithClaimMiddleware(claimLimit.PerActor()),
	)
	jwt := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience)

	router := httptransport.NewRouter(httptransport.Routes{
		Public:   []httptransport.Registrar{healthHandler},
		Issuer:   []httptransport.Registrar{sessionHandler, httptransport.RouteFunc(attendanceHandler.RegisterIssuer)},
		Claimant: []httptransport.Registrar{attendanceHandler},
		Metrics:  promhttp.Handler(),
	}, httptransport.Options{
		Logger:         log,
		Validator:      jwttoken.NewJWTServiceAdapter(jwt),
		RequestMetrics: request.NewMetrics(),
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           otelhttp.NewHandler(router, "rollcall.http", otelhttp.WithFilter(traced)),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var sweeper *cleanup.CleanupService
	if backend.leases != nil {
		sweeper, err = cleanup.New(backend.leases,
			cleanup.WithCleanupInterval(cfg.CleanupInterval),
			cleanup.WithCleanupLogger(log),
			cleanup.WithCleanupMetrics(otpMetrics),
		)
		if err != nil {
			return fmt.Errorf("init lease cleanup: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if sweeper != nil {
		g.Go(func() error {
			if err := sweeper.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if relay != nil {
		g.Go(func() error {
			if err := relay.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if limiter.sweep != nil {
		g.Go(func() error {
			ticker := time.NewTicker(cfg.CleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					if n, err := limiter.sweep(gctx); err != nil {
						log.Warn("rate limit sweep failed", "error", err)
					} else if n > 0 {
						log.Debug("swept idle rate limit windows", "count", n)
					}
				}
			}
		})
	}

	return g.Wait()
}

// traced excludes probe and scrape traffic from tracing.
func traced(r *http.Request) bool {
	return !strings.HasPrefix(r.URL.Path, "/health") && r.URL.Path != "/metrics"
}
