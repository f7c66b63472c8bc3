package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// GaugeReading is the latest measured discharge at a gauge site.
type GaugeReading struct {
	CFS       float64   `json:"cfs"`
	Timestamp time.Time `json:"timestamp"`
}

// GaugeClient is the read-only boundary supplying live discharge data.
// Implementations return a *GaugeError for every failure mode so callers can
// distinguish a timeout from a malformed response without string matching.
type GaugeClient interface {
	Latest(ctx context.Context, gaugeID string) (GaugeReading, error)
}

// FailureReason classifies why a gauge reading was unavailable.
type FailureReason string

const (
	FailureNetwork     FailureReason = "network"
	FailureTimeout     FailureReason = "timeout"
	FailureBadStatus   FailureReason = "bad_status"
	FailureNotFound    FailureReason = "not_found"
	FailureMalformed   FailureReason = "malformed"
	FailureEmptySeries FailureReason = "empty_series"
)

// GaugeError is the structured failure returned by gauge clients.
type GaugeError struct {
	GaugeID string
	Reason  FailureReason
	Err     error
}

func (e *GaugeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gauge %s: %s: %v", e.GaugeID, e.Reason, e.Err)
	}
	return fmt.Sprintf("gauge %s: %s", e.GaugeID, e.Reason)
}

func (e *GaugeError) Unwrap() error { return e.Err }

// ReasonOf extracts the failure reason from an error chain, or "unknown" if
// the error is not a GaugeError.
func ReasonOf(err error) FailureReason {
	var ge *GaugeError
	if errors.As(err, &ge) {
		return ge.Reason
	}
	return "unknown"
}
