package headless

import (
	"context"
	"errors"

	"promptharvest/internal/fetch"
)

// Noop implements fetch.Fetcher but always returns an error, for builds and
// deployments where a browser is unavailable.
type Noop struct{}

// NewNoop creates a new Noop fetcher.
func NewNoop() *Noop {
	return &Noop{}
}

// Fetch returns an error since this is a stub implementation.
func (Noop) Fetch(_ context.Context, _ fetch.Request) (fetch.Response, error) {
	return fetch.Response{}, errors.New("headless fetcher not configured")
}
