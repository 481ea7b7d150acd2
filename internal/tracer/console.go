package tracer

import (
	"context"
	"log/slog"

	"auditcore/pkg/domain"
)

// ConsoleExporter logs each span via slog. Intended for local/dev use.
type ConsoleExporter struct {
	log *slog.Logger
}

// NewConsoleExporter constructs a ConsoleExporter.
func NewConsoleExporter(log *slog.Logger) *ConsoleExporter {
	return &ConsoleExporter{log: log}
}

func (e *ConsoleExporter) Export(ctx context.Context, spans []domain.TraceSpan) error {
	if e.log == nil {
		return nil
	}
	for _, s := range spans {
		e.log.Info("span",
			"name", s.Name,
			"traceId", s.TraceIDHex(),
			"spanId", s.SpanIDHex(),
			"status", s.Status,
			"durationMs", s.Duration().Milliseconds(),
		)
	}
	return nil
}
