package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"rollcall/internal/geo"
	"rollcall/internal/otp/models"
	id "rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
)

const (
	leaseKeyPrefix   = "otp:lease:"
	codeKeyPrefix    = "otp:code:"
	sessionKeyPrefix = "otp:session:"

	// defaultRetention is how long session data outlives the claim window, so
	// late claims resolve as expired and issuers can still read the session.
	defaultRetention = 24 * time.Hour
)

// sessionJSON is the JSON-serializable representation of a Session.
type sessionJSON struct {
	ID              string            `json:"id"`
	Code            string            `json:"code"`
	AnchorLatitude  float64           `json:"anchor_latitude"`
	AnchorLongitude float64           `json:"anchor_longitude"`
	Classification  map[string]string `json:"classification,omitempty"`
	IssuerID        string            `json:"issuer_id"`
	IssuedAt        int64             `json:"issued_at"`  // Unix nano
	ExpiresAt       int64             `json:"expires_at"` // Unix nano
}

func sessionToJSON(s *models.Session) *sessionJSON {
	return &sessionJSON{
		ID:              uuid.UUID(s.ID).String(),
		Code:            s.Code,
		AnchorLatitude:  s.Anchor.Latitude,
		AnchorLongitude: s.Anchor.Longitude,
		Classification:  s.Classification,
		IssuerID:        uuid.UUID(s.IssuerID).String(),
		IssuedAt:        s.IssuedAt.UnixNano(),
		ExpiresAt:       s.ExpiresAt.UnixNano(),
	}
}

func sessionFromJSON(j *sessionJSON) (*models.Session, error) {
	sessionID, err := uuid.Parse(j.ID)
	if err != nil {
		return nil, fmt.Errorf("parse session id: %w", err)
	}
	issuerID, err := uuid.Parse(j.IssuerID)
	if err != nil {
		return nil, fmt.Errorf("parse issuer id: %w", err)
	}
	return &models.Session{
		ID:             id.SessionID(sessionID),
		Code:           j.Code,
		Anchor:         geo.Point{Latitude: j.AnchorLatitude, Longitude: j.AnchorLongitude},
		Classification: j.Classification,
		IssuerID:       id.IssuerID(issuerID),
		IssuedAt:       time.Unix(0, j.IssuedAt).UTC(),
		ExpiresAt:      time.Unix(0, j.ExpiresAt).UTC(),
	}, nil
}

// RedisStore persists sessions in Redis for multi-replica deployments.
//
// A lease key per code is taken with SET NX and a TTL equal to the session
// lifetime, so Redis itself releases codes when sessions expire. Session data
// and the code index are kept for the retention period after expiry.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
}

// RedisOption configures RedisStore.
type RedisOption func(*RedisStore)

// WithRetention overrides how long session data is kept after expiry.
func WithRetention(retention time.Duration) RedisOption {
	return func(s *RedisStore) {
		if retention > 0 {
			s.retention = retention
		}
	}
}

// NewRedis constructs a Redis-backed session store.
func NewRedis(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, retention: defaultRetention}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func leaseKey(code string) string              { return leaseKeyPrefix + code }
func codeKey(code string) string               { return codeKeyPrefix + code }
func sessionKey(sessionID id.SessionID) string { return sessionKeyPrefix + sessionID.String() }

func (s *RedisStore) Create(ctx context.Context, session *models.Session) error {
	if session == nil {
		return fmt.Errorf("session is required")
	}
	data, err := json.Marshal(sessionToJSON(session))
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	// The lease is measured from IssuedAt so a request that stalled before
	// reaching Redis cannot hold the code past the session's own expiry.
	leaseTTL := session.ExpiresAt.Sub(session.IssuedAt)
	if leaseTTL <= 0 {
		return fmt.Errorf("session lease must be positive")
	}
	acquired, err := s.client.SetNX(ctx, leaseKey(session.Code), session.ID.String(), leaseTTL).Result()
	if err != nil {
		return fmt.Errorf("lease session code: %w", err)
	}
	if !acquired {
		return sentinel.ErrConflict
	}

	dataTTL := leaseTTL + s.retention
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(session.ID), data, dataTTL)
		pipe.Set(ctx, codeKey(session.Code), session.ID.String(), dataTTL)
		return nil
	})
	if err != nil {
		// Release the lease so the code is not stranded without data.
		_ = s.client.Del(ctx, leaseKey(session.Code)).Err()
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisStore) FindByCode(ctx context.Context, code string) (*models.Session, error) {
	raw, err := s.client.Get(ctx, codeKey(code)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find session by code: %w", err)
	}
	sessionID, err := id.ParseSessionID(raw)
	if err != nil {
		return nil, fmt.Errorf("parse indexed session id: %w", err)
	}
	return s.FindByID(ctx, sessionID)
}

func (s *RedisStore) FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find session by id: %w", err)
	}
	var j sessionJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return sessionFromJSON(&j)
}

// DeleteExpiredLeases is a no-op: lease keys expire natively.
func (s *RedisStore) DeleteExpiredLeases(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}
