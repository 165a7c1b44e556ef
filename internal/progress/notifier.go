package progress

import (
	"time"

	"github.com/google/uuid"

	"promptharvest/internal/governor"
	"promptharvest/internal/guard"
)

// Notifier bridges governor and guard notifications onto the hub as typed
// events. Emit never blocks, which keeps the governor's notification calls
// safe inside its hot path.
type Notifier struct {
	runID   [16]byte
	emitter Emitter
}

// NewNotifier builds a Notifier scoped to one harvest run.
func NewNotifier(runID uuid.UUID, emitter Emitter) *Notifier {
	return &Notifier{runID: UUIDToBytes(runID), emitter: emitter}
}

// CircuitTransition implements governor.Notifier.
func (n *Notifier) CircuitTransition(t governor.Transition) {
	n.emitter.Emit(Event{
		RunID:  n.runID,
		TS:     time.Now().UTC(),
		Kind:   KindCircuitChange,
		From:   string(t.From),
		To:     string(t.To),
		Reason: t.Reason,
	})
}

// HealthChange implements governor.Notifier.
func (n *Notifier) HealthChange(from, to governor.HealthState, snap governor.HealthSnapshot) {
	n.emitter.Emit(Event{
		RunID:  n.runID,
		TS:     time.Now().UTC(),
		Kind:   KindHealthChange,
		From:   string(from),
		To:     string(to),
		Reason: healthReason(snap),
	})
}

// ResourceWarning implements guard.Notifier.
func (n *Notifier) ResourceWarning(s guard.Sample, reason string) {
	n.emitter.Emit(Event{
		RunID:      n.runID,
		TS:         time.Now().UTC(),
		Kind:       KindResourceWarning,
		Reason:     reason,
		MemoryMB:   s.MemoryMB,
		CPUPercent: s.CPUPercent,
	})
}

func healthReason(snap governor.HealthSnapshot) string {
	switch snap.State {
	case governor.HealthBlocked:
		return "block signal in window"
	case governor.HealthCritical:
		return "error rate above critical threshold"
	case governor.HealthWarning:
		return "elevated error rate or latency"
	default:
		return "window recovered"
	}
}
