package sinks

import (
	"context"
	"time"

	"go.uber.org/zap"

	"promptharvest/internal/progress"
	"promptharvest/internal/publisher"
)

// Alert is the operator-facing payload published for severe events.
type Alert struct {
	RunID    string    `json:"run_id"`
	At       time.Time `json:"at"`
	Kind     string    `json:"kind"`
	State    string    `json:"state,omitempty"`
	Reason   string    `json:"reason"`
	MemoryMB float64   `json:"memory_mb,omitempty"`
}

// AlertSink forwards severe events to a publisher: circuit trips, BLOCKED
// health, and resource breaches. Routine failures never alert; the governor
// already handles those with backoff.
type AlertSink struct {
	pub    publisher.Publisher
	topic  string
	logger *zap.Logger
}

// NewAlertSink constructs an AlertSink publishing to topic.
func NewAlertSink(pub publisher.Publisher, topic string, logger *zap.Logger) *AlertSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertSink{pub: pub, topic: topic, logger: logger}
}

// Consume publishes an alert per severe event. Publish failures are logged
// and swallowed so a broken alert channel never stalls the hub.
func (s *AlertSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.pub == nil {
		return nil
	}
	for _, evt := range batch {
		alert, ok := alertFor(evt)
		if !ok {
			continue
		}
		if _, err := s.pub.Publish(ctx, s.topic, alert); err != nil {
			s.logger.Warn("alert publish failed",
				zap.String("kind", alert.Kind),
				zap.Error(err),
			)
		}
	}
	return nil
}

func alertFor(evt progress.Event) (Alert, bool) {
	switch {
	case evt.Kind == progress.KindCircuitChange && evt.To == "OPEN":
		return Alert{
			RunID:  evt.RunUUID().String(),
			At:     evt.TS,
			Kind:   "circuit_open",
			State:  evt.To,
			Reason: evt.Reason,
		}, true
	case evt.Kind == progress.KindHealthChange && evt.To == "BLOCKED":
		return Alert{
			RunID:  evt.RunUUID().String(),
			At:     evt.TS,
			Kind:   "target_blocking",
			State:  evt.To,
			Reason: evt.Reason,
		}, true
	case evt.Kind == progress.KindResourceWarning:
		return Alert{
			RunID:    evt.RunUUID().String(),
			At:       evt.TS,
			Kind:     "resource_breach",
			Reason:   evt.Reason,
			MemoryMB: evt.MemoryMB,
		}, true
	}
	return Alert{}, false
}

// Close implements the Sink interface; it performs no action.
func (s *AlertSink) Close(context.Context) error {
	return nil
}
