package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/requestcontext"

	"github.com/google/uuid"
)

const internalMessage = "internal server error"

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Errors after WriteHeader cannot change the status code, so we ignore encoding errors.
	_ = json.NewEncoder(w).Encode(response)
}

// ErrorResponse is the stable error payload returned to callers.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// WriteError centralizes domain error translation to HTTP responses.
// Internal errors never expose their message; details belong in logs.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		status := DomainCodeToHTTPStatus(domainErr.Code)
		message := domainErr.Message
		if status == http.StatusInternalServerError || message == "" {
			message = messageForStatus(status)
		}
		WriteJSON(w, status, ErrorResponse{Error: message, Code: string(domainErr.Code)})
		return
	}

	WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error: internalMessage,
		Code:  string(dErrors.CodeInternal),
	})
}

func messageForStatus(status int) string {
	if status == http.StatusInternalServerError {
		return internalMessage
	}
	return http.StatusText(status)
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidInput,
		dErrors.CodeInvariantViolation, dErrors.CodeInvalidCoordinate:
		return http.StatusBadRequest
	case dErrors.CodeExpired:
		return http.StatusGone
	case dErrors.CodeConflict, dErrors.CodeExhausted:
		return http.StatusConflict
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden, dErrors.CodeMismatch:
		return http.StatusForbidden
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// RequireActorID extracts the authenticated actor from context.
// The auth middleware guarantees it is set; a missing value is an internal error.
func RequireActorID(ctx context.Context, logger *slog.Logger) (uuid.UUID, error) {
	actorID := requestcontext.ActorID(ctx)
	if actorID == uuid.Nil {
		if logger != nil {
			logger.ErrorContext(ctx, "actor missing from context despite auth middleware",
				"request_id", requestcontext.RequestID(ctx))
		}
		return uuid.Nil, dErrors.New(dErrors.CodeInternal, "authentication context error")
	}
	return actorID, nil
}
