package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"rollcall/internal/ratelimit/models"
	"rollcall/pkg/platform/httputil"
	"rollcall/pkg/requestcontext"
)

// Limiter consumes one unit from a keyed sliding window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
}

// Middleware bounds how often an authenticated claimant may submit codes,
// which caps brute-forcing of short numeric codes.
type Middleware struct {
	limiter Limiter
	limit   int
	window  time.Duration
	logger  *slog.Logger
}

func New(limiter Limiter, limit int, window time.Duration, logger *slog.Logger) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{
		limiter: limiter,
		limit:   limit,
		window:  window,
		logger:  logger,
	}
}

// PerActor limits requests by the authenticated actor. It must run after
// authentication. Store failures let the request through.
func (m *Middleware) PerActor() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m == nil || m.limiter == nil || m.limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			actorID := requestcontext.ActorID(ctx)
			if actorID == uuid.Nil {
				next.ServeHTTP(w, r)
				return
			}

			result, err := m.limiter.Allow(ctx, models.ClaimKey(actorID.String()), m.limit, m.window)
			if err != nil {
				m.logger.ErrorContext(ctx, "failed to check claim rate limit",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)
			if !result.Allowed {
				m.logger.WarnContext(ctx, "claim rate limit exceeded",
					"claimant_id", actorID.String(),
					"retry_after", result.RetryAfter,
				)
				writeRateLimitExceeded(w, result)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.RateLimitExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    "Too many attendance claims. Please try again later.",
		RetryAfter: result.RetryAfter,
	})
}
