package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/river-flow-service/internal/domain"
	"github.com/couchcryptid/river-flow-service/internal/observability"
)

var frozenNow = time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)

func freezeClock(t *testing.T) {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(frozenNow))
	t.Cleanup(func() { domain.SetClock(clockwork.NewRealClock()) })
}

type stubGaugeClient struct {
	reading domain.GaugeReading
	err     error
	calls   int
}

func (s *stubGaugeClient) Latest(_ context.Context, _ string) (domain.GaugeReading, error) {
	s.calls++
	if s.err != nil {
		return domain.GaugeReading{}, s.err
	}
	return s.reading, nil
}

type capturingPublisher struct {
	published []*Result
	err       error
}

func (p *capturingPublisher) Publish(_ context.Context, r *Result) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, r)
	return nil
}

func testEngine(t *testing.T, gauges domain.GaugeClient, opts Options) *Engine {
	t.Helper()

	path, err := domain.NewReferencePath([]domain.Anchor{
		{Mile: 100, Lat: 36.0, Lon: -86.0},
		{Mile: 50, Lat: 35.5, Lon: -86.5},
		{Mile: 0, Lat: 35.0, Lon: -87.0},
	})
	require.NoError(t, err)

	dams, err := domain.NewDamRegistry([]domain.Dam{
		{ID: "mid-river", Name: "Mid River Dam", Mile: 50, Lat: 35.5, Lon: -86.5, CapacityCFS: 120000, GaugeID: "03431500"},
		{ID: "headwater", Name: "Headwater Dam", Mile: 100, Lat: 36.0, Lon: -86.0, CapacityCFS: 70000, GaugeID: "03160000"},
	}, path)
	require.NoError(t, err)

	if opts.Flow == (domain.FlowParams{}) {
		opts.Flow = domain.DefaultFlowParams()
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(path, dams, gauges, logger, observability.NewMetricsForTesting(), opts)
}

func TestFlow_Downstream(t *testing.T) {
	freezeClock(t)

	measured := frozenNow.Add(-30 * time.Minute)
	gauges := &stubGaugeClient{reading: domain.GaugeReading{CFS: 100000, Timestamp: measured}}
	e := testEngine(t, gauges, Options{})

	res, err := e.Flow(context.Background(), Query{DamID: "mid-river", TargetMile: 20})
	require.NoError(t, err)

	assert.Equal(t, "mid-river", res.DamID)
	assert.Equal(t, "Mid River Dam", res.DamName)
	assert.Equal(t, 50.0, res.DamMile)
	assert.Equal(t, 20.0, res.TargetMile)

	// 30 miles of travel at 3 mph with a 100 mile attenuation distance.
	assert.Equal(t, 30.0, res.TravelMiles)
	assert.InDelta(t, 10.0, res.TravelHours, 1e-9)
	assert.InDelta(t, 100000*math.Exp(-0.3), res.TargetCFS, 1e-6)
	assert.True(t, res.ArrivalTime.Equal(frozenNow.Add(10*time.Hour)))

	assert.Equal(t, 100000.0, res.SourceCFS)
	assert.True(t, res.DataFresh)
	assert.Empty(t, res.GaugeFailure)
	assert.True(t, res.MeasuredAt.Equal(measured))
	assert.True(t, res.ComputedAt.Equal(frozenNow))
	assert.False(t, res.Upstream)
}

func TestFlow_PathAndMarkers(t *testing.T) {
	freezeClock(t)

	gauges := &stubGaugeClient{reading: domain.GaugeReading{CFS: 50000, Timestamp: frozenNow}}
	e := testEngine(t, gauges, Options{PathStepMiles: 10})

	res, err := e.Flow(context.Background(), Query{DamID: "mid-river", TargetMile: 20})
	require.NoError(t, err)

	// Path runs from the dam to the target, endpoints included.
	require.NotEmpty(t, res.Path)
	first, last := res.Path[0], res.Path[len(res.Path)-1]
	assert.Equal(t, domain.Coordinate{Lat: 35.5, Lon: -86.5}, first)
	assert.Equal(t, res.TargetLocation, last)
	assert.NotEmpty(t, res.EncodedPath)

	// Each marker carries enough payload to render its tooltip on its own.
	require.Len(t, res.Markers, 2)
	dam := res.Markers[0]
	assert.Equal(t, "dam", dam.Kind)
	assert.Equal(t, "Mid River Dam", dam.Label)
	assert.Equal(t, 50.0, dam.Mile)
	assert.Equal(t, 50000.0, dam.FlowCFS)

	target := res.Markers[1]
	assert.Equal(t, "target", target.Kind)
	assert.Equal(t, "Mile 20.0", target.Label)
	assert.Equal(t, 20.0, target.Mile)
	assert.Equal(t, res.TargetCFS, target.FlowCFS)
	assert.Equal(t, 30.0, target.TravelMiles)
	assert.InDelta(t, 10.0, target.TravelHours, 1e-9)
	assert.True(t, target.ArrivalTime.Equal(res.ArrivalTime))
}

func TestFlow_Upstream(t *testing.T) {
	freezeClock(t)

	gauges := &stubGaugeClient{reading: domain.GaugeReading{CFS: 80000, Timestamp: frozenNow}}
	e := testEngine(t, gauges, Options{})

	res, err := e.Flow(context.Background(), Query{DamID: "mid-river", TargetMile: 75})
	require.NoError(t, err)

	assert.True(t, res.Upstream)
	assert.Equal(t, 0.0, res.TravelMiles)
	assert.Equal(t, 80000*0.5, res.TargetCFS)
}

func TestFlow_GaugeFailureFallsBack(t *testing.T) {
	freezeClock(t)

	gauges := &stubGaugeClient{err: &domain.GaugeError{
		GaugeID: "03431500",
		Reason:  domain.FailureTimeout,
	}}
	e := testEngine(t, gauges, Options{})

	res, err := e.Flow(context.Background(), Query{DamID: "mid-river", TargetMile: 20})
	require.NoError(t, err)

	// Capacity 120000 at the default 0.4 estimate fraction.
	assert.Equal(t, 48000.0, res.SourceCFS)
	assert.False(t, res.DataFresh)
	assert.Equal(t, "timeout", res.GaugeFailure)
	assert.True(t, res.MeasuredAt.Equal(frozenNow))
}

func TestFlow_UnknownDam(t *testing.T) {
	e := testEngine(t, &stubGaugeClient{}, Options{})

	_, err := e.Flow(context.Background(), Query{DamID: "nope", TargetMile: 20})
	require.ErrorIs(t, err, ErrUnknownDam)
}

func TestFlow_InvalidQuery(t *testing.T) {
	e := testEngine(t, &stubGaugeClient{}, Options{})

	cases := []struct {
		name string
		q    Query
	}{
		{"missing dam id", Query{TargetMile: 20}},
		{"nan mile", Query{DamID: "mid-river", TargetMile: math.NaN()}},
		{"below span", Query{DamID: "mid-river", TargetMile: -1}},
		{"above span", Query{DamID: "mid-river", TargetMile: 101}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.Flow(context.Background(), tc.q)
			require.ErrorIs(t, err, ErrInvalidQuery)
		})
	}
}

func TestFlow_PublishesResult(t *testing.T) {
	freezeClock(t)

	pub := &capturingPublisher{}
	gauges := &stubGaugeClient{reading: domain.GaugeReading{CFS: 60000, Timestamp: frozenNow}}
	e := testEngine(t, gauges, Options{Publisher: pub})

	res, err := e.Flow(context.Background(), Query{DamID: "headwater", TargetMile: 40})
	require.NoError(t, err)

	require.Len(t, pub.published, 1)
	assert.Same(t, res, pub.published[0])
}

func TestFlow_PublishFailureDoesNotFailQuery(t *testing.T) {
	freezeClock(t)

	pub := &capturingPublisher{err: errors.New("broker down")}
	gauges := &stubGaugeClient{reading: domain.GaugeReading{CFS: 60000, Timestamp: frozenNow}}
	e := testEngine(t, gauges, Options{Publisher: pub})

	_, err := e.Flow(context.Background(), Query{DamID: "mid-river", TargetMile: 20})
	require.NoError(t, err)
}

func TestCheckReadiness(t *testing.T) {
	e := testEngine(t, &stubGaugeClient{}, Options{})
	assert.NoError(t, e.CheckReadiness(context.Background()))

	var empty Engine
	assert.Error(t, empty.CheckReadiness(context.Background()))
}
