package metrics

import (
	"database/sql"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchDB(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegisterer(reg)

	// sql.Open does not dial, so the stats are readable without a server.
	db, err := sql.Open("pgx", "postgres://rollcall@127.0.0.1:1/rollcall")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, m.WatchDB("rollcall", db))
	assert.Error(t, m.WatchDB("rollcall", db), "duplicate registration is rejected")

	n, err := testutil.GatherAndCount(reg, "go_sql_open_connections", "go_sql_max_open_connections")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestEventCounters(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())

	m.IncEventPublished("attendance.recorded")
	m.IncEventPublished("attendance.recorded")
	m.IncEventFailed("otp.session_issued")

	assert.InDelta(t, 2.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues("attendance.recorded")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.EventsFailed.WithLabelValues("otp.session_issued")), 0)
}
