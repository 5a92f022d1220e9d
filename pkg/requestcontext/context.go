// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; services and stores read them without pulling in
// net/http. Tests inject them directly:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithActor(ctx, actorID, requestcontext.RoleClaimant)
package requestcontext

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Role is the actor role asserted by the external credential service.
type Role string

const (
	RoleIssuer   Role = "issuer"
	RoleClaimant Role = "claimant"
)

// IsValid reports whether the role is one this service understands.
func (r Role) IsValid() bool {
	return r == RoleIssuer || r == RoleClaimant
}

type (
	actorIDKey     struct{}
	roleKey        struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// ActorID retrieves the authenticated actor (issuer or claimant) from the context.
// Returns uuid.Nil if not set.
func ActorID(ctx context.Context) uuid.UUID {
	if actor, ok := ctx.Value(actorIDKey{}).(uuid.UUID); ok {
		return actor
	}
	return uuid.Nil
}

// ActorRole retrieves the authenticated actor's role.
func ActorRole(ctx context.Context) Role {
	if role, ok := ctx.Value(roleKey{}).(Role); ok {
		return role
	}
	return ""
}

// WithActor injects the authenticated actor and role into the context.
func WithActor(ctx context.Context, actorID uuid.UUID, role Role) context.Context {
	ctx = context.WithValue(ctx, actorIDKey{}, actorID)
	return context.WithValue(ctx, roleKey{}, role)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
