package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(h *Handler, path string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	h.Register(r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func readiness(t *testing.T, w *httptest.ResponseRecorder) ReadinessResponse {
	t.Helper()
	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func up(context.Context) error { return nil }

func TestLiveness(t *testing.T) {
	w := serve(New("test"), "/health/live")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"alive"}`, w.Body.String())
}

func TestReadiness(t *testing.T) {
	refused := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name     string
		required map[string]CheckFunc
		optional map[string]CheckFunc
		code     int
		status   string
	}{
		{"no dependencies", nil, nil, http.StatusOK, "ready"},
		{"all up", map[string]CheckFunc{"postgres": up}, map[string]CheckFunc{"kafka": up}, http.StatusOK, "ready"},
		{"optional down", map[string]CheckFunc{"postgres": up}, map[string]CheckFunc{"kafka": refused}, http.StatusOK, "degraded"},
		{"required down", map[string]CheckFunc{"redis": refused}, map[string]CheckFunc{"kafka": refused}, http.StatusServiceUnavailable, "not_ready"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New("test")
			for name, fn := range tt.required {
				h.RegisterCheck(name, fn)
			}
			for name, fn := range tt.optional {
				h.RegisterOptional(name, fn)
			}

			w := serve(h, "/health/ready")

			assert.Equal(t, tt.code, w.Code)
			resp := readiness(t, w)
			assert.Equal(t, tt.status, resp.Status)
			assert.Len(t, resp.Checks, len(tt.required)+len(tt.optional))
		})
	}
}

func TestReadiness_ReportsFailure(t *testing.T) {
	h := New("test")
	h.RegisterOptional("kafka", func(context.Context) error { return errors.New("no brokers") })

	resp := readiness(t, serve(h, "/health/ready"))

	kafka := resp.Checks["kafka"]
	assert.Equal(t, "down", kafka.Status)
	assert.Equal(t, "no brokers", kafka.Error)
	assert.True(t, kafka.Optional)
}

func TestReadiness_ChecksTimeOutIndependently(t *testing.T) {
	h := New("test", WithCheckTimeout(20*time.Millisecond))
	h.RegisterCheck("stuck", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	h.RegisterCheck("postgres", up)

	resp := h.Ready(context.Background())

	assert.Equal(t, "not_ready", resp.Status)
	assert.Equal(t, "down", resp.Checks["stuck"].Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), resp.Checks["stuck"].Error)
	assert.Equal(t, "up", resp.Checks["postgres"].Status)
}

func TestStatus(t *testing.T) {
	h := New("staging")
	started := h.started
	h.now = func() time.Time { return started.Add(90 * time.Second) }

	w := serve(h, "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "staging", resp.Environment)
	assert.EqualValues(t, 90, resp.UptimeSeconds)
}
