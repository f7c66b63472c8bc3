package domain

import (
	"fmt"
	"math"
	"time"
)

// FlowParams are the propagation constants, loaded once from configuration
// and never derived from request input.
type FlowParams struct {
	// AssumedVelocityMPH is the constant water travel speed in miles per hour.
	AssumedVelocityMPH float64
	// AttenuationMiles is the e-folding distance of the exponential decay law.
	AttenuationMiles float64
	// EstimateFraction of dam capacity stands in for the source flow when no
	// live reading is available.
	EstimateFraction float64
	// UpstreamFactor scales the source flow for at-or-upstream targets. There
	// is no physical model behind it; the result is a nominal placeholder.
	UpstreamFactor float64
}

// DefaultFlowParams returns the standard Cumberland routing constants.
func DefaultFlowParams() FlowParams {
	return FlowParams{
		AssumedVelocityMPH: 3.0,
		AttenuationMiles:   100.0,
		EstimateFraction:   0.4,
		UpstreamFactor:     0.5,
	}
}

// Validate rejects parameter sets that would make propagation meaningless.
func (p FlowParams) Validate() error {
	if !isFinite(p.AssumedVelocityMPH) || p.AssumedVelocityMPH <= 0 {
		return fmt.Errorf("%w: assumed velocity must be positive, got %v", ErrBadRiverTable, p.AssumedVelocityMPH)
	}
	if !isFinite(p.AttenuationMiles) || p.AttenuationMiles <= 0 {
		return fmt.Errorf("%w: attenuation distance must be positive, got %v", ErrBadRiverTable, p.AttenuationMiles)
	}
	if !isFinite(p.EstimateFraction) || p.EstimateFraction <= 0 || p.EstimateFraction > 1 {
		return fmt.Errorf("%w: estimate fraction must be in (0, 1], got %v", ErrBadRiverTable, p.EstimateFraction)
	}
	if !isFinite(p.UpstreamFactor) || p.UpstreamFactor < 0 || p.UpstreamFactor > 1 {
		return fmt.Errorf("%w: upstream factor must be in [0, 1], got %v", ErrBadRiverTable, p.UpstreamFactor)
	}
	return nil
}

// Attenuate applies the exponential distance-decay law. The result is
// monotonically non-increasing in travelMiles, asymptotic to zero, and never
// negative.
func Attenuate(sourceCFS, travelMiles, attenuationMiles float64) float64 {
	return sourceCFS * math.Exp(-travelMiles/attenuationMiles)
}

// FallbackReading estimates a dam's discharge when the gauge is unavailable:
// capacity × estimate fraction, stamped with the current time.
func (p FlowParams) FallbackReading(dam Dam) GaugeReading {
	return GaugeReading{
		CFS:       dam.CapacityCFS * p.EstimateFraction,
		Timestamp: clock.Now(),
	}
}

// Propagation is the routed flow at a target mile.
type Propagation struct {
	TravelMiles float64
	TravelHours float64
	ArrivalTime time.Time
	TargetCFS   float64
	// Upstream marks the placeholder branch: the target is at or above the
	// dam, no routing was performed, and TargetCFS is not a measured quantity.
	Upstream bool
}

// Propagate routes sourceCFS from the dam's mile to the target mile.
// Downstream means targetMile < damMile; travel distance is the river-mile
// delta by definition.
func (p FlowParams) Propagate(damMile, targetMile, sourceCFS float64) Propagation {
	now := clock.Now()

	if targetMile >= damMile {
		return Propagation{
			ArrivalTime: now,
			TargetCFS:   sourceCFS * p.UpstreamFactor,
			Upstream:    true,
		}
	}

	travelMiles := damMile - targetMile
	travelHours := travelMiles / p.AssumedVelocityMPH
	return Propagation{
		TravelMiles: travelMiles,
		TravelHours: travelHours,
		ArrivalTime: now.Add(time.Duration(travelHours * float64(time.Hour))),
		TargetCFS:   Attenuate(sourceCFS, travelMiles, p.AttenuationMiles),
	}
}
