// Package progress defines the typed events emitted by the governor, the
// resource guard, and the fetch workers, plus the hub that fans them out to
// sinks. Emitting is always non-blocking; consumers that fall behind lose
// events rather than slowing the fleet.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind denotes what an Event describes.
type Kind string

// Supported event kinds.
const (
	KindRunStart        Kind = "RUN_START"
	KindRunDone         Kind = "RUN_DONE"
	KindAttempt         Kind = "ATTEMPT"
	KindCircuitChange   Kind = "CIRCUIT_CHANGE"
	KindHealthChange    Kind = "HEALTH_CHANGE"
	KindResourceWarning Kind = "RESOURCE_WARNING"
)

// Event captures one observation from the fleet. Only the fields relevant to
// its Kind are set.
type Event struct {
	// RunID identifies the harvest run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Kind denotes what happened.
	Kind Kind

	// URL is the attempted page for ATTEMPT events.
	URL string
	// Success reports the attempt outcome.
	Success bool
	// Latency is the attempt duration.
	Latency time.Duration
	// BlockSignal marks attempts the target actively refused.
	BlockSignal bool
	// Marker is the matched block marker, when BlockSignal is set.
	Marker string
	// FromCache marks attempts served without touching the target.
	FromCache bool

	// From and To carry the old and new state for CIRCUIT_CHANGE and
	// HEALTH_CHANGE events.
	From string
	To   string
	// Reason explains a state change or resource warning.
	Reason string

	// MemoryMB and CPUPercent carry the breaching sample for
	// RESOURCE_WARNING events.
	MemoryMB   float64
	CPUPercent float64

	// Note attaches low-volume context such as error text or a body digest.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Kind {
	case KindRunStart, KindRunDone:
	case KindAttempt:
		if e.URL == "" {
			return errors.New("attempt requires url")
		}
	case KindCircuitChange, KindHealthChange:
		if e.From == "" || e.To == "" {
			return errors.New("state change requires from and to")
		}
	case KindResourceWarning:
		if e.Reason == "" {
			return errors.New("resource warning requires reason")
		}
	default:
		return fmt.Errorf("unknown kind %q", e.Kind)
	}
	if e.Latency < 0 {
		return errors.New("latency must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID for repositories.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
