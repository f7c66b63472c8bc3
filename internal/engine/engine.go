// Package engine answers flow queries: given a dam and a downstream river
// mile, it fetches the dam's latest discharge, routes it along the reference
// path, and assembles the rendered result.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/twpayne/go-polyline"

	"github.com/couchcryptid/river-flow-service/internal/domain"
	"github.com/couchcryptid/river-flow-service/internal/observability"
)

var (
	// ErrUnknownDam means the query named a dam that is not in the registry.
	ErrUnknownDam = errors.New("unknown dam")
	// ErrInvalidQuery means the query itself is malformed, before any lookup.
	ErrInvalidQuery = errors.New("invalid query")
)

// Publisher receives completed results for downstream consumers. Publishing
// is best-effort; a failing publisher never fails the query.
type Publisher interface {
	Publish(ctx context.Context, r *Result) error
}

// Query identifies one flow computation: a dam and a target river mile.
type Query struct {
	DamID      string
	TargetMile float64
}

// Marker is a labelled point for map rendering. It carries the flow,
// distance, and arrival data a tooltip needs, so a map front end can render
// from the markers alone.
type Marker struct {
	Kind  string  `json:"kind"` // "dam" or "target"
	Label string  `json:"label"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Mile  float64 `json:"mile"`

	// FlowCFS is the release at the dam marker and the routed flow at the
	// target marker.
	FlowCFS     float64   `json:"flow_cfs"`
	TravelMiles float64   `json:"travel_miles,omitempty"`
	TravelHours float64   `json:"travel_hours,omitempty"`
	ArrivalTime time.Time `json:"arrival_time,omitzero"`
}

// Result is the complete answer to a flow query.
type Result struct {
	DamID        string            `json:"dam_id"`
	DamName      string            `json:"dam_name"`
	OfficialName string            `json:"official_name,omitempty"`
	DamMile      float64           `json:"dam_mile"`
	DamLocation  domain.Coordinate `json:"dam_location"`

	TargetMile     float64           `json:"target_mile"`
	TargetLocation domain.Coordinate `json:"target_location"`

	SourceCFS   float64   `json:"source_cfs"`
	TargetCFS   float64   `json:"target_cfs"`
	TravelMiles float64   `json:"travel_miles"`
	TravelHours float64   `json:"travel_hours"`
	ArrivalTime time.Time `json:"arrival_time"`

	// Upstream marks the placeholder branch for targets at or above the dam.
	Upstream bool `json:"upstream"`

	// DataFresh is false when the source flow is the capacity-based estimate
	// rather than a live gauge reading. GaugeFailure then says why.
	DataFresh    bool      `json:"data_fresh"`
	GaugeFailure string    `json:"gauge_failure,omitempty"`
	MeasuredAt   time.Time `json:"measured_at"`
	ComputedAt   time.Time `json:"computed_at"`

	Path        []domain.Coordinate `json:"path"`
	EncodedPath string              `json:"encoded_path"`
	Markers     []Marker            `json:"markers"`
}

// Options tune the engine. Zero values get reasonable defaults.
type Options struct {
	Flow          domain.FlowParams
	GaugeTimeout  time.Duration // per-query budget for the gauge fetch
	PathStepMiles float64       // sampling step for the rendered path
	Publisher     Publisher     // optional
}

// Engine wires the river table, the gauge client, and the flow parameters
// into a query service.
type Engine struct {
	path    *domain.ReferencePath
	dams    *domain.DamRegistry
	gauges  domain.GaugeClient
	flow    domain.FlowParams
	timeout time.Duration
	step    float64
	pub     Publisher
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates an Engine. The flow parameters must already be validated.
func New(path *domain.ReferencePath, dams *domain.DamRegistry, gauges domain.GaugeClient, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Engine {
	if opts.GaugeTimeout <= 0 {
		opts.GaugeTimeout = 10 * time.Second
	}
	if opts.PathStepMiles <= 0 {
		opts.PathStepMiles = 1.0
	}
	return &Engine{
		path:    path,
		dams:    dams,
		gauges:  gauges,
		flow:    opts.Flow,
		timeout: opts.GaugeTimeout,
		step:    opts.PathStepMiles,
		pub:     opts.Publisher,
		logger:  logger,
		metrics: metrics,
	}
}

// Path returns the reference path the engine serves.
func (e *Engine) Path() *domain.ReferencePath { return e.path }

// Dams returns the dam registry the engine serves.
func (e *Engine) Dams() *domain.DamRegistry { return e.dams }

// CheckReadiness reports whether the engine can serve queries. The river
// table is validated at construction, so a constructed engine is ready.
func (e *Engine) CheckReadiness(_ context.Context) error {
	if e.path == nil || e.dams == nil {
		return errors.New("river table not loaded")
	}
	return nil
}

// Flow answers one query. A gauge failure degrades to the capacity-based
// estimate instead of failing the query; only bad input is an error.
func (e *Engine) Flow(ctx context.Context, q Query) (*Result, error) {
	start := time.Now()

	dam, err := e.resolve(q)
	if err != nil {
		return nil, err
	}

	reading, failure := e.fetchReading(ctx, dam)
	prop := e.flow.Propagate(dam.Mile, q.TargetMile, reading.CFS)

	res := e.assemble(dam, q.TargetMile, reading, failure, prop)

	e.metrics.FlowQueries.WithLabelValues("ok").Inc()
	e.metrics.QueryDuration.Observe(time.Since(start).Seconds())

	e.publish(ctx, res)
	return res, nil
}

func (e *Engine) resolve(q Query) (domain.Dam, error) {
	if q.DamID == "" {
		e.metrics.FlowQueries.WithLabelValues("invalid").Inc()
		return domain.Dam{}, fmt.Errorf("%w: dam id is required", ErrInvalidQuery)
	}
	if math.IsNaN(q.TargetMile) || math.IsInf(q.TargetMile, 0) {
		e.metrics.FlowQueries.WithLabelValues("invalid").Inc()
		return domain.Dam{}, fmt.Errorf("%w: target mile must be finite", ErrInvalidQuery)
	}
	if !e.path.Contains(q.TargetMile) {
		e.metrics.FlowQueries.WithLabelValues("invalid").Inc()
		return domain.Dam{}, fmt.Errorf("%w: target mile %v is outside the path span [%v, %v]",
			ErrInvalidQuery, q.TargetMile, e.path.MinMile(), e.path.MaxMile())
	}

	dam, ok := e.dams.Get(q.DamID)
	if !ok {
		e.metrics.FlowQueries.WithLabelValues("unknown_dam").Inc()
		return domain.Dam{}, fmt.Errorf("%w: %q", ErrUnknownDam, q.DamID)
	}
	return dam, nil
}

// fetchReading gets the dam's latest discharge, falling back to the capacity
// estimate on any gauge failure. The returned reason is empty on success.
func (e *Engine) fetchReading(ctx context.Context, dam domain.Dam) (domain.GaugeReading, domain.FailureReason) {
	fetchCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	reading, err := e.gauges.Latest(fetchCtx, dam.GaugeID)
	if err == nil {
		return reading, ""
	}

	reason := domain.ReasonOf(err)
	e.logger.Warn("gauge unavailable, using capacity estimate",
		"dam", dam.ID,
		"gauge", dam.GaugeID,
		"reason", string(reason),
		"error", err,
	)
	e.metrics.FallbackEstimates.Inc()
	return e.flow.FallbackReading(dam), reason
}

func (e *Engine) assemble(dam domain.Dam, targetMile float64, reading domain.GaugeReading, failure domain.FailureReason, prop domain.Propagation) *Result {
	target := e.path.CoordinateAt(targetMile)
	pathPts := e.path.Polyline(dam.Mile, targetMile, e.step)

	coords := make([][]float64, len(pathPts))
	for i, p := range pathPts {
		coords[i] = []float64{p.Lat, p.Lon}
	}

	return &Result{
		DamID:        dam.ID,
		DamName:      dam.Name,
		OfficialName: dam.OfficialName,
		DamMile:      dam.Mile,
		DamLocation:  dam.Coordinate(),

		TargetMile:     targetMile,
		TargetLocation: target,

		SourceCFS:   reading.CFS,
		TargetCFS:   prop.TargetCFS,
		TravelMiles: prop.TravelMiles,
		TravelHours: prop.TravelHours,
		ArrivalTime: prop.ArrivalTime,
		Upstream:    prop.Upstream,

		DataFresh:    failure == "",
		GaugeFailure: string(failure),
		MeasuredAt:   reading.Timestamp,
		ComputedAt:   domain.Now(),

		Path:        pathPts,
		EncodedPath: string(polyline.EncodeCoords(coords)),
		Markers: []Marker{
			{
				Kind:    "dam",
				Label:   dam.Name,
				Lat:     dam.Lat,
				Lon:     dam.Lon,
				Mile:    dam.Mile,
				FlowCFS: reading.CFS,
			},
			{
				Kind:        "target",
				Label:       fmt.Sprintf("Mile %.1f", targetMile),
				Lat:         target.Lat,
				Lon:         target.Lon,
				Mile:        targetMile,
				FlowCFS:     prop.TargetCFS,
				TravelMiles: prop.TravelMiles,
				TravelHours: prop.TravelHours,
				ArrivalTime: prop.ArrivalTime,
			},
		},
	}
}

func (e *Engine) publish(ctx context.Context, res *Result) {
	if e.pub == nil {
		return
	}
	if err := e.pub.Publish(ctx, res); err != nil {
		e.metrics.PublishErrors.Inc()
		e.logger.Error("estimate publish failed", "dam", res.DamID, "error", err)
		return
	}
	e.metrics.EstimatesPublished.Inc()
}
