package governor

import (
	"context"
	"errors"
	"fmt"
)

// BlockSignalError reports that the target actively refused automated
// access. Marker is the matched literal, Source describes where it was seen.
type BlockSignalError struct {
	Marker string
	Source string
}

func (e *BlockSignalError) Error() string {
	return fmt.Sprintf("block signal %q in %s", e.Marker, e.Source)
}

// Classify maps an attempt error to a FailureKind. Block signals take
// precedence; context cancellation is caller shutdown, not a target failure,
// and maps to FailureNone so it never feeds the breaker. Everything else,
// timeouts and resets included, is transient.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	var blockErr *BlockSignalError
	if errors.As(err, &blockErr) {
		return FailureBlockSignal
	}
	if errors.Is(err, context.Canceled) {
		return FailureNone
	}
	return FailureTransient
}
