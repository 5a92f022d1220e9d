package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"rollcall/pkg/platform/middleware/auth"
	"rollcall/pkg/platform/middleware/request"
	"rollcall/pkg/platform/middleware/requesttime"
	"rollcall/pkg/requestcontext"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultMaxBodyBytes   = 64 << 10
)

// Registrar mounts a group of routes.
type Registrar interface {
	Register(r chi.Router)
}

// RouteFunc adapts a plain function to Registrar.
type RouteFunc func(r chi.Router)

func (f RouteFunc) Register(r chi.Router) { f(r) }

// Routes lists everything the router serves. Public routes skip
// authentication; the role groups run behind RequireAuth and RequireRole.
type Routes struct {
	Public   []Registrar
	Issuer   []Registrar
	Claimant []Registrar
	Metrics  http.Handler
}

// Options configures the middleware stack.
type Options struct {
	Logger         *slog.Logger
	Validator      auth.JWTValidator
	RequestMetrics *request.Metrics
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

// NewRouter wires all public endpoints with middleware.
func NewRouter(routes Routes, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(opts.Logger))
	r.Use(request.RequestID)
	r.Use(request.Logger(opts.Logger))
	r.Use(request.Instrument(opts.RequestMetrics))
	r.Use(chimw.Timeout(opts.RequestTimeout))
	r.Use(request.BodyLimit(opts.MaxBodyBytes))
	r.Use(request.ContentTypeJSON)
	r.Use(requesttime.Middleware)

	for _, reg := range routes.Public {
		reg.Register(r)
	}
	if routes.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", routes.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(opts.Validator, opts.Logger))

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(requestcontext.RoleIssuer, opts.Logger))
			for _, reg := range routes.Issuer {
				reg.Register(r)
			}
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(requestcontext.RoleClaimant, opts.Logger))
			for _, reg := range routes.Claimant {
				reg.Register(r)
			}
		})
	})

	return r
}
