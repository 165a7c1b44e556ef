package sinks

import (
	"context"

	"go.uber.org/zap"

	"promptharvest/internal/progress"
)

// LogSink emits structured logs for the event stream. Useful during
// development or audits where a durable store is unavailable.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.Stringer("run_id", evt.RunUUID()),
			zap.String("kind", string(evt.Kind)),
		}
		switch evt.Kind {
		case progress.KindAttempt:
			fields = append(fields,
				zap.String("url", evt.URL),
				zap.Bool("success", evt.Success),
				zap.Duration("latency", evt.Latency),
				zap.Bool("from_cache", evt.FromCache),
			)
			if evt.BlockSignal {
				fields = append(fields, zap.String("marker", evt.Marker))
			}
		case progress.KindCircuitChange, progress.KindHealthChange:
			fields = append(fields,
				zap.String("from", evt.From),
				zap.String("to", evt.To),
				zap.String("reason", evt.Reason),
			)
		case progress.KindResourceWarning:
			fields = append(fields,
				zap.String("reason", evt.Reason),
				zap.Float64("memory_mb", evt.MemoryMB),
				zap.Float64("cpu_percent", evt.CPUPercent),
			)
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		s.logger.Info("fleet event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
