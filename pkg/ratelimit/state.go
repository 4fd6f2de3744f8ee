// Package ratelimit implements the run-wide admission gate that bounds how
// many POI API requests are in flight at once.
//
// One Gate is shared by every worker and every query of a harvest run. It is
// the only cross-worker mutable state of the pipeline.
package ratelimit

import "time"

// Defaults for the admission gate.
const (
	// DefaultConcurrency is the default number of requests allowed in flight.
	DefaultConcurrency = 25

	// UnlimitedRate disables request pacing.
	UnlimitedRate = 0
)

// GateStats is a point-in-time snapshot of a Gate.
type GateStats struct {
	// Limit is the maximum number of requests allowed in flight.
	Limit int `json:"limit"`

	// InFlight is the number of admitted requests not yet released.
	InFlight int `json:"in_flight"`

	// Peak is the highest InFlight observed since the gate was created.
	Peak int `json:"peak"`

	// Admitted is the total number of admissions.
	Admitted int64 `json:"admitted"`

	// TotalWait is the cumulative time callers spent waiting for admission.
	TotalWait time.Duration `json:"total_wait"`
}

// Saturated reports whether every slot is taken.
func (s GateStats) Saturated() bool {
	return s.InFlight >= s.Limit
}
