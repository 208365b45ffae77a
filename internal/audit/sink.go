package audit

import (
	"context"
	"log/slog"
)

// SlogSink writes audit events as structured log records.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a sink that logs through logger, or the default logger
// when nil.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger.With("component", "audit")}
}

func (s *SlogSink) Write(ctx context.Context, events []Event) error {
	for _, e := range events {
		attrs := []slog.Attr{
			slog.String("event_id", e.ID.String()),
			slog.String("action", e.Action),
			slog.String("source", e.Source),
			slog.Time("occurred_at", e.OccurredAt),
		}
		if e.RequestID != "" {
			attrs = append(attrs, slog.String("request_id", e.RequestID))
		}
		if len(e.Metadata) > 0 {
			meta := make([]any, 0, len(e.Metadata)*2)
			for k, v := range e.Metadata {
				meta = append(meta, k, v)
			}
			attrs = append(attrs, slog.Group("metadata", meta...))
		}
		s.logger.LogAttrs(ctx, slog.LevelInfo, "audit event", attrs...)
	}
	return nil
}
