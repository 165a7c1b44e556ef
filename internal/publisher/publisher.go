// Package publisher declares the outbound alert interface. Alerts are the
// operator-facing subset of events: circuit trips and block signals, not
// ordinary failures.
package publisher

import "context"

// Publisher delivers one payload to a named topic and returns the message ID.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}
