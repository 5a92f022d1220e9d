// Package tracer is the span API the services depend on. NoopTracer serves
// tests and OTelTracer forwards to OpenTelemetry; Setup installs the
// exporting provider.
package tracer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Span is an active span. End must be called exactly once; a non-nil err
// marks the span failed.
type Span interface {
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer starts spans and is safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

type Attribute = attribute.KeyValue

func String(key, value string) Attribute          { return attribute.String(key, value) }
func Bool(key string, value bool) Attribute       { return attribute.Bool(key, value) }
func Int64(key string, value int64) Attribute     { return attribute.Int64(key, value) }
func Float64(key string, value float64) Attribute { return attribute.Float64(key, value) }

// Duration records value in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return attribute.Int64(key, value.Milliseconds())
}

const (
	SpanIssue   = "otp.issue"
	SpanResolve = "otp.resolve"
	SpanClaim   = "attendance.claim"
)

// Codes are never recorded on spans; sessions are identified by ID.
const (
	AttrSessionID       = "session.id"
	AttrIssueAttempts   = "otp.issue_attempts"
	AttrDistanceMeters  = "geo.distance_m"
	AttrDistanceMethod  = "geo.method"
	AttrEffectiveThresh = "decision.effective_threshold_m"
	AttrLowConfidence   = "decision.low_confidence"
	AttrStatus          = "attendance.status"
)
