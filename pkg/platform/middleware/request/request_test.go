package request

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/pkg/requestcontext"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{name: "no header", header: "", keep: false},
		{name: "plain id", header: "roster-export-7", keep: true},
		{name: "dots and underscores", header: "trace.span_1234", keep: true},
		{name: "at max length", header: strings.Repeat("a", MaxRequestIDLength), keep: true},
		{name: "over max length", header: strings.Repeat("a", MaxRequestIDLength+1), keep: false},
		{name: "newline injection", header: "ok\ninjected line", keep: false},
		{name: "space", header: "request id", keep: false},
		{name: "quote", header: `request"id`, keep: false},
		{name: "null byte", header: "request\x00id", keep: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var fromCtx string
			h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fromCtx = requestcontext.RequestID(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/v1/attendance/me", nil)
			if tc.header != "" {
				req.Header.Set("X-Request-ID", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			echoed := rec.Header().Get("X-Request-ID")
			assert.Equal(t, fromCtx, echoed)
			if tc.keep {
				assert.Equal(t, tc.header, echoed)
			} else {
				assert.Len(t, echoed, 36, "a UUID replaces unusable ids")
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("store exploded")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/attendance/claims", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error","code":"internal_error"}`, rec.Body.String())
}

func TestContentTypeJSON(t *testing.T) {
	h := ContentTypeJSON(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := map[string]struct {
		method, contentType string
		want                int
	}{
		"form post rejected":      {http.MethodPost, "application/x-www-form-urlencoded", http.StatusUnsupportedMediaType},
		"malformed type rejected": {http.MethodPost, "application/", http.StatusUnsupportedMediaType},
		"json with charset":       {http.MethodPost, "application/json; charset=utf-8", http.StatusNoContent},
		"missing type allowed":    {http.MethodPost, "", http.StatusNoContent},
		"GET ignores header":      {http.MethodGet, "text/plain", http.StatusNoContent},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/v1/otp/sessions", strings.NewReader("{}"))
			if tc.contentType != "" {
				req.Header.Set("Content-Type", tc.contentType)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestBodyLimit(t *testing.T) {
	read := func(limit int64, body string) ([]byte, error) {
		var data []byte
		var err error
		h := BodyLimit(limit)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			data, err = io.ReadAll(r.Body)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/attendance/claims", strings.NewReader(body)))
		return data, err
	}

	data, err := read(100, strings.Repeat("x", 100))
	require.NoError(t, err)
	assert.Len(t, data, 100, "exactly at the limit passes")

	_, err = read(100, strings.Repeat("x", 101))
	var maxErr *http.MaxBytesError
	require.True(t, errors.As(err, &maxErr))
	assert.Equal(t, int64(100), maxErr.Limit)

	data, err = read(100, "")
	require.NoError(t, err)
	assert.Empty(t, data)
}
