package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends for OTP sessions.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	Environment     string
	LogLevel        string
	ShutdownTimeout time.Duration
	CleanupInterval time.Duration

	Auth       AuthConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	OTP        OTPConfig
	Attendance AttendanceConfig
	RateLimit  RateLimitConfig
	Tracing    TracingConfig
}

// AuthConfig configures validation of bearer tokens issued by the external credential service.
type AuthConfig struct {
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
}

// DatabaseConfig configures the Postgres pool. An empty URL disables Postgres.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// AutoMigrate applies pending migrations at startup.
	AutoMigrate     bool
}

// RedisConfig configures the Redis client. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures domain event publishing. Empty brokers disables Kafka.
type KafkaConfig struct {
	Brokers          string
	EventsTopic      string
	Acks             string
	Retries          int
	// -1 leaves partition count and replication to the broker defaults.
	TopicPartitions  int
	TopicReplication int
}

// TracingConfig configures span export over OTLP/gRPC. An empty endpoint
// disables export.
type TracingConfig struct {
	Endpoint    string
	Insecure    bool
	SampleRatio float64
}

// OTPConfig configures session issuance.
type OTPConfig struct {
	Store       string
	SessionTTL  time.Duration
	MinTTL      time.Duration
	MaxTTL      time.Duration
	CodeLength  int
	MaxAttempts int
}

// AttendanceConfig holds the presence decision constants, in meters.
type AttendanceConfig struct {
	BaseThreshold       float64
	LowConfidenceCutoff float64
	IndoorFloor         float64
	LowConfidenceCap    float64
	HighConfidenceCap   float64
}

// RateLimitConfig bounds claim submissions per claimant. A zero limit disables it.
type RateLimitConfig struct {
	Store           string
	ClaimsPerWindow int
	Window          time.Duration
}

// Defaults returns the canonical configuration used when no environment overrides are set.
func Defaults() Server {
	return Server{
		Addr:            ":8080",
		Environment:     "development",
		LogLevel:        "info",
		ShutdownTimeout: 10 * time.Second,
		CleanupInterval: time.Minute,
		Auth: AuthConfig{
			JWTSigningKey: "dev-secret-key-change-in-production",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			EventsTopic:      "rollcall.events",
			Acks:             "all",
			Retries:          3,
			TopicPartitions:  -1,
			TopicReplication: -1,
		},
		OTP: OTPConfig{
			Store:       StoreMemory,
			SessionTTL:  5 * time.Minute,
			MinTTL:      30 * time.Second,
			MaxTTL:      time.Hour,
			CodeLength:  6,
			MaxAttempts: 10,
		},
		Attendance: AttendanceConfig{
			BaseThreshold:       10,
			LowConfidenceCutoff: 20,
			IndoorFloor:         30,
			LowConfidenceCap:    20,
			HighConfidenceCap:   10,
		},
		RateLimit: RateLimitConfig{
			Store:           StoreMemory,
			ClaimsPerWindow: 10,
			Window:          time.Minute,
		},
		Tracing: TracingConfig{
			SampleRatio: 1,
		},
	}
}

// FromEnv builds a Server config from environment variables so main stays lean.
// Malformed values are reported rather than silently replaced by defaults.
func FromEnv() (Server, error) {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (Server, error) {
	cfg := Defaults()
	r := reader{lookup: lookup}

	r.str("ROLLCALL_ADDR", &cfg.Addr)
	r.str("ENVIRONMENT", &cfg.Environment)
	r.str("LOG_LEVEL", &cfg.LogLevel)
	r.duration("SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)
	r.duration("CLEANUP_INTERVAL", &cfg.CleanupInterval)

	r.str("JWT_SIGNING_KEY", &cfg.Auth.JWTSigningKey)
	r.str("JWT_ISSUER", &cfg.Auth.JWTIssuer)
	r.str("JWT_AUDIENCE", &cfg.Auth.JWTAudience)

	r.str("DATABASE_URL", &cfg.Database.URL)
	r.integer("DATABASE_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns)
	r.integer("DATABASE_MAX_IDLE_CONNS", &cfg.Database.MaxIdleConns)
	r.duration("DATABASE_CONN_MAX_LIFETIME", &cfg.Database.ConnMaxLifetime)
	r.boolean("DATABASE_AUTO_MIGRATE", &cfg.Database.AutoMigrate)

	r.str("REDIS_URL", &cfg.Redis.URL)
	r.integer("REDIS_POOL_SIZE", &cfg.Redis.PoolSize)
	r.integer("REDIS_MIN_IDLE_CONNS", &cfg.Redis.MinIdleConns)

	r.str("KAFKA_BROKERS", &cfg.Kafka.Brokers)
	r.str("KAFKA_EVENTS_TOPIC", &cfg.Kafka.EventsTopic)
	r.str("KAFKA_ACKS", &cfg.Kafka.Acks)
	r.integer("KAFKA_RETRIES", &cfg.Kafka.Retries)
	r.integer("KAFKA_TOPIC_PARTITIONS", &cfg.Kafka.TopicPartitions)
	r.integer("KAFKA_TOPIC_REPLICATION", &cfg.Kafka.TopicReplication)

	r.str("OTP_STORE", &cfg.OTP.Store)
	r.duration("OTP_SESSION_TTL", &cfg.OTP.SessionTTL)
	r.integer("OTP_CODE_LENGTH", &cfg.OTP.CodeLength)
	r.integer("OTP_MAX_ATTEMPTS", &cfg.OTP.MaxAttempts)

	r.float("ATTENDANCE_BASE_THRESHOLD_M", &cfg.Attendance.BaseThreshold)
	r.float("ATTENDANCE_LOW_CONFIDENCE_CUTOFF_M", &cfg.Attendance.LowConfidenceCutoff)
	r.float("ATTENDANCE_INDOOR_FLOOR_M", &cfg.Attendance.IndoorFloor)
	r.float("ATTENDANCE_LOW_CONFIDENCE_CAP_M", &cfg.Attendance.LowConfidenceCap)
	r.float("ATTENDANCE_HIGH_CONFIDENCE_CAP_M", &cfg.Attendance.HighConfidenceCap)

	r.str("RATE_LIMIT_STORE", &cfg.RateLimit.Store)
	r.integer("RATE_LIMIT_CLAIMS", &cfg.RateLimit.ClaimsPerWindow)
	r.duration("RATE_LIMIT_WINDOW", &cfg.RateLimit.Window)

	r.str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Tracing.Endpoint)
	r.boolean("OTEL_EXPORTER_OTLP_INSECURE", &cfg.Tracing.Insecure)
	r.float("OTEL_TRACES_SAMPLER_ARG", &cfg.Tracing.SampleRatio)

	cfg.OTP.Store = strings.ToLower(cfg.OTP.Store)
	cfg.RateLimit.Store = strings.ToLower(cfg.RateLimit.Store)

	if err := errors.Join(r.errs...); err != nil {
		return Server{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Server) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("ROLLCALL_ADDR must not be empty"))
	}
	if c.Auth.JWTSigningKey == "" {
		errs = append(errs, errors.New("JWT_SIGNING_KEY must not be empty"))
	}
	if c.Environment == "production" && c.Auth.JWTSigningKey == Defaults().Auth.JWTSigningKey {
		errs = append(errs, errors.New("JWT_SIGNING_KEY must be set in production"))
	}
	switch c.OTP.Store {
	case StoreMemory:
	case StorePostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("OTP_STORE=postgres requires DATABASE_URL"))
		}
	case StoreRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("OTP_STORE=redis requires REDIS_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("OTP_STORE must be one of memory, postgres, redis (got %q)", c.OTP.Store))
	}
	if c.OTP.SessionTTL < c.OTP.MinTTL || c.OTP.SessionTTL > c.OTP.MaxTTL {
		errs = append(errs, fmt.Errorf("OTP_SESSION_TTL must be between %s and %s", c.OTP.MinTTL, c.OTP.MaxTTL))
	}
	if c.OTP.CodeLength < 4 || c.OTP.CodeLength > 12 {
		errs = append(errs, errors.New("OTP_CODE_LENGTH must be between 4 and 12"))
	}
	if c.OTP.MaxAttempts < 1 {
		errs = append(errs, errors.New("OTP_MAX_ATTEMPTS must be at least 1"))
	}
	a := c.Attendance
	for name, v := range map[string]float64{
		"ATTENDANCE_BASE_THRESHOLD_M":        a.BaseThreshold,
		"ATTENDANCE_LOW_CONFIDENCE_CUTOFF_M": a.LowConfidenceCutoff,
		"ATTENDANCE_INDOOR_FLOOR_M":          a.IndoorFloor,
		"ATTENDANCE_LOW_CONFIDENCE_CAP_M":    a.LowConfidenceCap,
		"ATTENDANCE_HIGH_CONFIDENCE_CAP_M":   a.HighConfidenceCap,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}
	switch c.RateLimit.Store {
	case StoreMemory:
	case StoreRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("RATE_LIMIT_STORE=redis requires REDIS_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("RATE_LIMIT_STORE must be one of memory, redis (got %q)", c.RateLimit.Store))
	}
	if c.RateLimit.ClaimsPerWindow < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_CLAIMS must not be negative"))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive"))
	}
	switch c.Kafka.Acks {
	case "0", "1", "all":
	default:
		errs = append(errs, fmt.Errorf("KAFKA_ACKS must be one of 0, 1, all (got %q)", c.Kafka.Acks))
	}
	if c.Kafka.TopicPartitions == 0 || c.Kafka.TopicPartitions < -1 {
		errs = append(errs, errors.New("KAFKA_TOPIC_PARTITIONS must be positive or -1"))
	}
	if c.Kafka.TopicReplication == 0 || c.Kafka.TopicReplication < -1 || c.Kafka.TopicReplication > math.MaxInt16 {
		errs = append(errs, errors.New("KAFKA_TOPIC_REPLICATION must be positive or -1"))
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, errors.New("OTEL_TRACES_SAMPLER_ARG must be between 0 and 1"))
	}
	if c.CleanupInterval <= 0 {
		errs = append(errs, errors.New("CLEANUP_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}

type reader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (r *reader) get(key string) (string, bool) {
	v, ok := r.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (r *reader) str(key string, dst *string) {
	if v, ok := r.get(key); ok {
		*dst = v
	}
}

func (r *reader) duration(key string, dst *time.Duration) {
	if v, ok := r.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}
}

func (r *reader) integer(key string, dst *int) {
	if v, ok := r.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
}

func (r *reader) boolean(key string, dst *bool) {
	if v, ok := r.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = b
	}
}

func (r *reader) float(key string, dst *float64) {
	if v, ok := r.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = f
	}
}
