package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/requestcontext"
)

func decodeErrorResp(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"not found", dErrors.New(dErrors.CodeNotFound, "Invalid OTP code"), http.StatusNotFound, "not_found", "Invalid OTP code"},
		{"expired", dErrors.New(dErrors.CodeExpired, "OTP has expired"), http.StatusGone, "expired", "OTP has expired"},
		{"mismatch", dErrors.New(dErrors.CodeMismatch, "This code is for section=A, but you submitted section=B"), http.StatusForbidden, "mismatch", "This code is for section=A, but you submitted section=B"},
		{"duplicate", dErrors.New(dErrors.CodeConflict, "Attendance already marked for this session"), http.StatusConflict, "conflict", "Attendance already marked for this session"},
		{"exhausted", dErrors.New(dErrors.CodeExhausted, "could not allocate a unique code"), http.StatusConflict, "code_space_exhausted", "could not allocate a unique code"},
		{"invalid coordinate", dErrors.New(dErrors.CodeInvalidCoordinate, "latitude out of range"), http.StatusBadRequest, "invalid_coordinate", "latitude out of range"},
		{"validation", dErrors.New(dErrors.CodeValidation, "code is required"), http.StatusBadRequest, "validation_failed", "code is required"},
		{"internal hides details", dErrors.Wrap(errors.New("pq: connection refused"), dErrors.CodeInternal, "failed to save record"), http.StatusInternalServerError, "internal_error", "internal server error"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "internal_error", "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			resp := decodeErrorResp(t, w)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.Equal(t, tt.wantMsg, resp.Error)
		})
	}
}

func TestRequireActorID(t *testing.T) {
	_, err := RequireActorID(context.Background(), nil)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))

	actor := uuid.New()
	ctx := requestcontext.WithActor(context.Background(), actor, requestcontext.RoleClaimant)
	got, err := RequireActorID(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, actor, got)
}
