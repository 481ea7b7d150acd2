package domain

import (
	"time"

	"go.opentelemetry.io/otel/trace"
)

// SpanStatus is the terminal outcome of a TraceSpan (spec §4.13).
type SpanStatus string

const (
	SpanOK        SpanStatus = "OK"
	SpanError     SpanStatus = "ERROR"
	SpanTimeout   SpanStatus = "TIMEOUT"
	SpanCancelled SpanStatus = "CANCELLED"
)

// SpanLog is a single timestamped log entry attached to a span.
type SpanLog struct {
	Timestamp time.Time      `json:"timestamp"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// TraceSpan represents one stage of the pipeline (ingest, validate, seal,
// enqueue, worker.execute, persist) as it is traced end to end. IDs reuse
// otel's TraceID/SpanID types purely for their hex encode/decode and
// validity checks; no otel SDK is constructed.
type TraceSpan struct {
	TraceID      trace.TraceID  `json:"-"`
	SpanID       trace.SpanID   `json:"-"`
	ParentSpanID trace.SpanID   `json:"-"`
	Name         string         `json:"name"`
	StartedAt    time.Time      `json:"startedAt"`
	EndedAt      time.Time      `json:"endedAt,omitempty"`
	Status       SpanStatus     `json:"status,omitempty"`
	Tags         map[string]any `json:"tags,omitempty"`
	Logs         []SpanLog      `json:"logs,omitempty"`
}

// TraceIDHex returns the lowercase hex encoding used on the wire (OTLP JSON).
func (s TraceSpan) TraceIDHex() string { return s.TraceID.String() }

// SpanIDHex returns the lowercase hex encoding used on the wire (OTLP JSON).
func (s TraceSpan) SpanIDHex() string { return s.SpanID.String() }

// HasParent reports whether this span was created under another span.
func (s TraceSpan) HasParent() bool { return s.ParentSpanID.IsValid() }

// Duration returns the span's wall-clock duration once ended.
func (s TraceSpan) Duration() time.Duration {
	if s.EndedAt.IsZero() {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// Finish stamps the span's end time and terminal status. It returns a copy;
// callers hold spans by value while building them up.
func (s TraceSpan) Finish(at time.Time, status SpanStatus) TraceSpan {
	s.EndedAt = at
	s.Status = status
	return s
}
