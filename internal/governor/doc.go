// Package governor implements the adaptive request governor: a circuit
// breaker, a rolling health monitor, and an adaptive delay controller that
// together decide whether a fetch worker may proceed and how long it must
// wait first. All decisions are returned as data; the governor never halts
// workers itself.
package governor
