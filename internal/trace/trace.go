// Package trace carries per-tick and per-request trace identifiers through logs.
// IDs follow the W3C Trace Context sizes so they can be forwarded as traceparent.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Header and metadata keys used for propagation.
const (
	TraceparentKey  = "traceparent"
	TraceIDKey      = "x-trace-id"
	SpanIDKey       = "x-span-id"
	ParentSpanIDKey = "x-parent-span-id"
)

const traceparentVersion = "00"

type ctxKey struct{}

var traceCtxKey = ctxKey{}

// Context holds trace identifiers for a single span.
type Context struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
}

// New creates a root context with fresh IDs.
func New() Context {
	return Context{
		TraceID: generateTraceID(),
		SpanID:  generateSpanID(),
	}
}

// NewChild creates a child context from parent.
func NewChild(parent Context) Context {
	if parent.TraceID == "" {
		return New()
	}
	return Context{
		TraceID:      parent.TraceID,
		SpanID:       generateSpanID(),
		ParentSpanID: parent.SpanID,
	}
}

// FromContext extracts trace context from context.Context.
func FromContext(ctx context.Context) (Context, bool) {
	tc, ok := ctx.Value(traceCtxKey).(Context)
	return tc, ok
}

// WithContext injects trace context into context.Context.
func WithContext(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, traceCtxKey, tc)
}

// EnsureContext returns existing trace context or creates a new one.
func EnsureContext(ctx context.Context) (context.Context, Context) {
	if tc, ok := FromContext(ctx); ok {
		return ctx, tc
	}
	tc := New()
	return WithContext(ctx, tc), tc
}

// generateTraceID derives a 128-bit trace ID from a random UUID.
func generateTraceID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// generateSpanID creates a 64-bit span ID.
func generateSpanID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Traceparent formats the context as a W3C traceparent value (sampled).
func (c Context) Traceparent() string {
	return fmt.Sprintf("%s-%s-%s-01", traceparentVersion, c.TraceID, c.SpanID)
}

// ParseTraceparent reads a W3C traceparent value. The caller's span becomes
// the parent of a freshly generated span.
func ParseTraceparent(v string) (Context, bool) {
	parts := strings.Split(strings.TrimSpace(v), "-")
	if len(parts) != 4 || parts[0] != traceparentVersion {
		return Context{}, false
	}
	traceID, spanID := parts[1], parts[2]
	if !isHex(traceID, 32) || !isHex(spanID, 16) {
		return Context{}, false
	}
	if traceID == strings.Repeat("0", 32) || spanID == strings.Repeat("0", 16) {
		return Context{}, false
	}
	return Context{TraceID: traceID, SpanID: generateSpanID(), ParentSpanID: spanID}, true
}

func isHex(s string, n int) bool {
	if len(s) != n {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// ToMap exports context as string map for gRPC metadata.
func (c Context) ToMap() map[string]string {
	m := map[string]string{
		TraceparentKey: c.Traceparent(),
		TraceIDKey:     c.TraceID,
		SpanIDKey:      c.SpanID,
	}
	if c.ParentSpanID != "" {
		m[ParentSpanIDKey] = c.ParentSpanID
	}
	return m
}

// FromMap extracts context from string map. traceparent wins over the x- keys.
func FromMap(m map[string]string) Context {
	if tc, ok := ParseTraceparent(m[TraceparentKey]); ok {
		return tc
	}
	tc := Context{
		TraceID:      m[TraceIDKey],
		SpanID:       generateSpanID(),
		ParentSpanID: m[SpanIDKey],
	}
	if tc.TraceID == "" {
		tc.TraceID = generateTraceID()
	}
	return tc
}

// LogAttrs returns slog attributes for logging.
func (c Context) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("trace_id", c.TraceID),
		slog.String("span_id", c.SpanID),
	}
	if c.ParentSpanID != "" {
		attrs = append(attrs, slog.String("parent_span_id", c.ParentSpanID))
	}
	return attrs
}

// Span times one pipeline stage (capture, extract, translate...). End logs the
// finished span at debug level through the trace-aware logger.
type Span struct {
	Name  string
	Ctx   Context
	Err   error
	start time.Time
	end   time.Time
	attrs []slog.Attr
	ctx   context.Context
}

// StartSpan begins a new span under whatever span ctx already carries.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent, _ := FromContext(ctx)
	tc := NewChild(parent)
	ctx = WithContext(ctx, tc)
	return ctx, &Span{Name: name, Ctx: tc, start: time.Now(), ctx: ctx}
}

// End finishes the span. Later calls are no-ops, so Fail followed by a
// deferred End logs once.
func (s *Span) End() {
	if !s.end.IsZero() {
		return
	}
	s.end = time.Now()
	slog.Default().LogAttrs(s.ctx, slog.LevelDebug, "span finished", slog.Any("span", s))
}

// Fail records err and ends the span.
func (s *Span) Fail(err error) {
	s.Err = err
	s.End()
}

// SetAttr attaches a key/value logged with the span. Repeated keys keep the last value.
func (s *Span) SetAttr(key string, val any) {
	for i := range s.attrs {
		if s.attrs[i].Key == key {
			s.attrs[i].Value = slog.AnyValue(val)
			return
		}
	}
	s.attrs = append(s.attrs, slog.Any(key, val))
}

// Ended reports whether End or Fail ran.
func (s *Span) Ended() bool { return !s.end.IsZero() }

// Duration is zero until the span ends.
func (s *Span) Duration() time.Duration {
	if s.end.IsZero() {
		return 0
	}
	return s.end.Sub(s.start)
}

// LogValue implements slog.LogValuer.
func (s *Span) LogValue() slog.Value {
	attrs := append([]slog.Attr{slog.String("name", s.Name)}, s.Ctx.LogAttrs()...)
	attrs = append(attrs, slog.Duration("duration", s.Duration()))
	if s.Err != nil {
		attrs = append(attrs, slog.String("error", s.Err.Error()))
	}
	return slog.GroupValue(append(attrs, s.attrs...)...)
}

// Logger returns the default logger annotated with ctx's trace IDs.
func Logger(ctx context.Context) *slog.Logger {
	tc, ok := FromContext(ctx)
	if !ok {
		return slog.Default()
	}
	attrs := tc.LogAttrs()
	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a
	}
	return slog.Default().With(args...)
}
