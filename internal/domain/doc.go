// Package domain models the Cumberland River as a one-dimensional river-mile
// axis and propagates dam discharge readings along it.
//
// # River Miles
//
// The primary coordinate is the river mile: distance along the channel from
// the river's mouth at Smithland, KY (mile 0) upstream to Wolf Creek Dam
// (mile ~461). Anchors and dams are ordered on this axis; "downstream of a
// dam" means a smaller river mile than the dam's.
//
// # Reference Path
//
// A [ReferencePath] is an immutable table of (mile, lat, lon) anchors marking
// known points on the channel. Coordinates between anchors are produced by
// linear interpolation, which is an explicit approximation: the real channel
// meanders between anchors, so an interpolated coordinate lies on the straight
// chord between its two bracketing anchors, not on the water. The accuracy
// bound is the chord of the two nearest real anchors.
//
// Because of that same meandering, geographic distance between two
// interpolated points under- or over-counts true channel length. Travel
// distance is therefore ALWAYS the river-mile delta, never a sum of
// interpolated segment lengths; great-circle math exists only to support
// nearest-point matching and map payloads.
//
// Nearest-by-coordinate is not nearest-by-river-mile: a horseshoe bend can
// place mile 120 and mile 145 a few hundred yards apart. [ReferencePath.NearestAnchor]
// returns the closest anchor by great-circle distance, and callers must treat
// the implied mile as an inference, not a measurement.
//
// # Gauge Data
//
// Live discharge comes from USGS instantaneous-value gauges (parameter code
// 00060, discharge in cubic feet per second). Every gauge failure mode
// (network error, timeout, bad status, malformed body, empty series) collapses
// into a typed [*GaugeError] with a [FailureReason]; no failure escapes as a
// hard error from the propagation engine. When a reading is unavailable the
// engine estimates the source flow as capacity × estimate fraction (default
// 0.4) and flags the result as not fresh.
//
// # Flow Propagation
//
// Downstream propagation is a first-order approximation, not a hydraulic
// simulation:
//
//	travelMiles = damMile − targetMile
//	travelHours = travelMiles / assumedVelocityMPH   (default 3.0)
//	targetCFS   = sourceCFS × exp(−travelMiles / attenuationMiles)   (default 100)
//
// The exponential distance decay is monotonically non-increasing, asymptotic
// to zero, and never negative. Upstream targets have no routing model at all:
// the engine returns sourceCFS × upstream factor (default 0.5) as a nominal
// placeholder and marks the result Upstream so callers present it as "not
// applicable" rather than a measured quantity.
package domain
