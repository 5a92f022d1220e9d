package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/attendance/decision"
	id "rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
	"rollcall/pkg/testutil"
)

func TestInMemoryStoreOperations(t *testing.T) {
	store := New()
	ctx := context.Background()
	session := testutil.NewSessionBuilder().Build()

	record := testutil.NewRecordBuilder(session).Build()
	require.NoError(t, store.Create(ctx, record))

	found, err := store.FindByClaimantAndSession(ctx, record.ClaimantID, session.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, found.ID)
	assert.Equal(t, decision.StatusPresent, found.Status)

	// Copy integrity
	found.Classification["cohort"] = "tampered"
	again, err := store.FindByClaimantAndSession(ctx, record.ClaimantID, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "CS101", again.Classification["cohort"])

	_, err = store.FindByClaimantAndSession(ctx, testutil.TestIDs.ClaimantID2, session.ID)
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryStoreRejectsSecondRecordForPair(t *testing.T) {
	store := New()
	ctx := context.Background()
	session := testutil.NewSessionBuilder().Build()

	first := testutil.NewRecordBuilder(session).Build()
	require.NoError(t, store.Create(ctx, first))

	second := testutil.NewRecordBuilder(session).WithStatus(decision.StatusAbsent).Build()
	require.ErrorIs(t, store.Create(ctx, second), sentinel.ErrConflict)

	kept, err := store.FindByClaimantAndSession(ctx, first.ClaimantID, session.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, kept.ID)
	assert.Equal(t, decision.StatusPresent, kept.Status)

	// a recycled code is a different session, so the same claimant may claim it
	recycled := testutil.NewSessionBuilder().WithCode(session.Code).Build()
	require.NoError(t, store.Create(ctx, testutil.NewRecordBuilder(recycled).Build()))
}

func TestInMemoryStoreListOrdering(t *testing.T) {
	store := New()
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	s1 := testutil.NewSessionBuilder().IssuedAt(base).Build()
	s2 := testutil.NewSessionBuilder().WithCode("654321").IssuedAt(base.Add(time.Hour)).Build()

	late := testutil.NewRecordBuilder(s1).WithClaimantID(testutil.TestIDs.ClaimantID2).CreatedAt(base.Add(3 * time.Minute)).Build()
	early := testutil.NewRecordBuilder(s1).CreatedAt(base.Add(time.Minute)).Build()
	other := testutil.NewRecordBuilder(s2).CreatedAt(base.Add(time.Hour + time.Minute)).Build()
	require.NoError(t, store.Create(ctx, late))
	require.NoError(t, store.Create(ctx, early))
	require.NoError(t, store.Create(ctx, other))

	roster, err := store.ListBySession(ctx, s1.ID)
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, early.ID, roster[0].ID)
	assert.Equal(t, late.ID, roster[1].ID)

	history, err := store.ListByClaimant(ctx, testutil.TestIDs.ClaimantID1)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, other.ID, history[0].ID)
	assert.Equal(t, early.ID, history[1].ID)

	none, err := store.ListByClaimant(ctx, id.ClaimantID(uuid.New()))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestInMemoryStoreConcurrentCreateSamePair(t *testing.T) {
	store := New()
	ctx := context.Background()
	session := testutil.NewSessionBuilder().Build()

	result := testutil.RunConcurrent(100, func(int) error {
		return store.Create(ctx, testutil.NewRecordBuilder(session).Build())
	})

	assert.Equal(t, int32(1), result.Successes)
	assert.Equal(t, int32(99), result.Conflicts)

	roster, err := store.ListBySession(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, roster, 1)
}
