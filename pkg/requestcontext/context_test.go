package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestActorRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, uuid.Nil, ActorID(ctx))
	assert.Equal(t, Role(""), ActorRole(ctx))

	actor := uuid.New()
	ctx = WithActor(ctx, actor, RoleIssuer)
	assert.Equal(t, actor, ActorID(ctx))
	assert.Equal(t, RoleIssuer, ActorRole(ctx))
}

func TestRoleIsValid(t *testing.T) {
	assert.True(t, RoleIssuer.IsValid())
	assert.True(t, RoleClaimant.IsValid())
	assert.False(t, Role("admin").IsValid())
}

func TestNowFallsBackToWallClock(t *testing.T) {
	before := time.Now()
	assert.False(t, Now(context.Background()).Before(before))

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, fixed, Now(WithTime(context.Background(), fixed)))
}
