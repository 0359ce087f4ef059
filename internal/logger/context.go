package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds request-scoped logging context for one graft invocation:
// the repository name, the lease path it was granted, a correlation id for
// the session token, and the component currently acting (reader, planner,
// gateway client, ledger).
type LogContext struct {
	TraceID   string    // correlation id, usually the gateway session token
	Repo      string    // fully qualified repository name
	LeasePath string    // path subtree under lease
	Component string    // acting component: reader, planner, gateway, ledger
	StartTime time.Time // for duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for the given repository.
func NewLogContext(repo string) *LogContext {
	return &LogContext{
		Repo:      repo,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		TraceID:   lc.TraceID,
		Repo:      lc.Repo,
		LeasePath: lc.LeasePath,
		Component: lc.Component,
		StartTime: lc.StartTime,
	}
}

// WithComponent returns a copy with the component set
func (lc *LogContext) WithComponent(component string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Component = component
	}
	return clone
}

// WithLeasePath returns a copy with the lease path set
func (lc *LogContext) WithLeasePath(path string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.LeasePath = path
	}
	return clone
}

// WithTrace returns a copy with the correlation id set
func (lc *LogContext) WithTrace(traceID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
