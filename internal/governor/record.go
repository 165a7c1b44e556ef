package governor

import "time"

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// FailureKind labels why an attempt failed.
type FailureKind string

// Supported failure kinds.
const (
	FailureNone        FailureKind = ""
	FailureTransient   FailureKind = "transient"
	FailureBlockSignal FailureKind = "block_signal"
)

// AttemptRecord captures one completed fetch attempt. Records are append-only
// and immutable once written to the window.
type AttemptRecord struct {
	At          time.Time
	Success     bool
	Kind        FailureKind
	Latency     time.Duration
	BlockSignal bool
}

// window is a fixed-capacity ring over the most recent attempts. Oldest
// entries are overwritten as new ones arrive. Not safe for concurrent use;
// the Monitor serializes access.
type window struct {
	records []AttemptRecord
	next    int
	full    bool
}

func newWindow(size int) *window {
	if size <= 0 {
		size = 50
	}
	return &window{records: make([]AttemptRecord, size)}
}

func (w *window) append(rec AttemptRecord) {
	w.records[w.next] = rec
	w.next++
	if w.next == len(w.records) {
		w.next = 0
		w.full = true
	}
}

func (w *window) len() int {
	if w.full {
		return len(w.records)
	}
	return w.next
}

// each visits every record currently held, oldest ordering not guaranteed.
// Classification is an aggregate over the set, so order does not matter.
func (w *window) each(fn func(AttemptRecord)) {
	n := w.len()
	for i := 0; i < n; i++ {
		fn(w.records[i])
	}
}
