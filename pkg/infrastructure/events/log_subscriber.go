package events

import (
	"log/slog"
	"slices"
)

// DiagnosticLogger writes diagnostic events to a structured logger at WARN.
// A logger bound to a stream ignores events of other streams.
type DiagnosticLogger struct {
	logger *slog.Logger
	stream string
}

var _ EventHandler = (*DiagnosticLogger)(nil)

// NewDiagnosticLogger creates a subscriber logging to logger, slog.Default() when nil
func NewDiagnosticLogger(logger *slog.Logger) *DiagnosticLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &DiagnosticLogger{logger: logger}
}

// ForStream returns a logger that only handles events of streamID
func (l *DiagnosticLogger) ForStream(streamID string) *DiagnosticLogger {
	return &DiagnosticLogger{logger: l.logger, stream: streamID}
}

func (l *DiagnosticLogger) CanHandle(eventType string) bool {
	return slices.Contains(DiagnosticEventTypes, eventType)
}

func (l *DiagnosticLogger) Handle(event Event) error {
	if l.stream != "" && event.StreamID() != l.stream {
		return nil
	}
	attrs := []any{slog.String("run_id", event.StreamID())}

	switch d := event.Data().(type) {
	case RecordMalformed:
		attrs = append(attrs, slog.String("record", d.SourceRecordID), slog.Int("row", d.Row), slog.String("reason", d.Reason))
	case LocationUnresolved:
		attrs = append(attrs, slog.String("raw_location", d.RawLocation), slog.Int("events", d.Events))
	case RecordDuplicate:
		attrs = append(attrs, slog.String("record", d.SourceRecordID), slog.Int("occurrences", d.Occurrences))
	case ClosingNegative:
		attrs = append(attrs, slog.String("location", d.Location), slog.String("period", d.Period), slog.String("closing", d.ClosingStock.String()))
	case ReferenceMismatch:
		attrs = append(attrs,
			slog.String("location", d.Location),
			slog.String("period", d.Period),
			slog.String("computed", d.Computed.String()),
			slog.String("reference", d.Reference.String()),
			slog.String("delta", d.Delta.String()),
			slog.String("alert", d.AlertLevel),
		)
	case ValidationFailed:
		attrs = append(attrs, slog.Int("errors", len(d.Errors)))
		if len(d.Errors) > 0 {
			attrs = append(attrs, slog.String("first", d.Errors[0]))
		}
	case DeadStockDetected:
		attrs = append(attrs, slog.Int("cases", d.Cases))
	}

	l.logger.Warn(event.Type(), attrs...)
	return nil
}
