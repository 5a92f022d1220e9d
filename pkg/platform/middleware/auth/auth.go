package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"rollcall/pkg/platform/httputil"
	"rollcall/pkg/requestcontext"
)

// JWTValidator defines the interface for validating bearer tokens issued by
// the external credential service.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator
type JWTClaims struct {
	Subject string
	Role    string
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: msg, Code: "unauthorized"})
}

// parseClaims converts the string claims into a typed actor and role.
func parseClaims(claims *JWTClaims) (uuid.UUID, requestcontext.Role, error) {
	actorID, err := uuid.Parse(claims.Subject)
	if err != nil || actorID == uuid.Nil {
		return uuid.Nil, "", fmt.Errorf("invalid subject %q", claims.Subject)
	}
	role := requestcontext.Role(strings.ToLower(strings.TrimSpace(claims.Role)))
	if !role.IsValid() {
		return uuid.Nil, "", fmt.Errorf("invalid role %q", claims.Role)
	}
	return actorID, role, nil
}

// RequireAuth returns middleware that validates JWT tokens and stores the actor
// and role in the request context.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			actorID, role, err := parseClaims(claims)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - malformed token claims",
					"error", err,
					"request_id", requestID,
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			ctx = requestcontext.WithActor(ctx, actorID, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects authenticated actors whose role is not the given one.
// Must run after RequireAuth.
func RequireRole(role requestcontext.Role, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if got := requestcontext.ActorRole(ctx); got != role {
				logger.WarnContext(ctx, "forbidden - wrong role",
					"required_role", role,
					"actor_role", got,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteJSON(w, http.StatusForbidden, httputil.ErrorResponse{
					Error: fmt.Sprintf("%s role required", role),
					Code:  "forbidden",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
