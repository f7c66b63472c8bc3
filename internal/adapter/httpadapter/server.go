// Package httpadapter exposes the flow engine over HTTP alongside the usual
// health, readiness, and metrics routes.
package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twpayne/go-polyline"

	"github.com/couchcryptid/river-flow-service/internal/engine"
)

// Server exposes the flow API plus /healthz, /readyz, and /metrics.
type Server struct {
	httpServer *http.Server
	engine     *engine.Engine
	logger     *slog.Logger
}

// NewServer builds the route table around an engine.
func NewServer(addr string, eng *engine.Engine, ready sharedobs.ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		engine: eng,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/dams", s.handleDams)
	mux.HandleFunc("GET /v1/flow", s.handleFlow)
	mux.HandleFunc("GET /v1/nearest", s.handleNearest)
	mux.HandleFunc("GET /v1/path", s.handlePath)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleDams(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"dams": s.engine.Dams().All()})
}

// locatedBy records how a lat/lon query was snapped onto the river. The mile
// is inferred by proximity, so the snap distance is always reported.
type locatedBy struct {
	Lat           float64 `json:"lat"`
	Lon           float64 `json:"lon"`
	AnchorMile    float64 `json:"anchor_mile"`
	DistanceMiles float64 `json:"distance_miles"`
}

type flowResponse struct {
	*engine.Result
	LocatedBy *locatedBy `json:"located_by,omitempty"`
}

func (s *Server) handleFlow(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	damID := q.Get("dam")

	var (
		mile    float64
		located *locatedBy
	)
	switch {
	case q.Has("mile"):
		m, err := parseFloatParam(q.Get("mile"), "mile")
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		mile = m
	case q.Has("lat") && q.Has("lon"):
		lat, err := parseFloatParam(q.Get("lat"), "lat")
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		lon, err := parseFloatParam(q.Get("lon"), "lon")
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		match := s.engine.Path().NearestAnchor(lat, lon)
		mile = match.Anchor.Mile
		located = &locatedBy{
			Lat:           lat,
			Lon:           lon,
			AnchorMile:    match.Anchor.Mile,
			DistanceMiles: match.DistanceMiles,
		}
	default:
		writeError(w, http.StatusBadRequest, errors.New("either mile or lat and lon are required"))
		return
	}

	res, err := s.engine.Flow(r.Context(), engine.Query{DamID: damID, TargetMile: mile})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, flowResponse{Result: res, LocatedBy: located})
}

func (s *Server) handleNearest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err := parseFloatParam(q.Get("lat"), "lat")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	lon, err := parseFloatParam(q.Get("lon"), "lon")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	match := s.engine.Path().NearestAnchor(lat, lon)
	dam, damDist := s.engine.Dams().NearestDam(lat, lon)

	writeJSON(w, http.StatusOK, map[string]any{
		"anchor": map[string]any{
			"mile":           match.Anchor.Mile,
			"lat":            match.Anchor.Lat,
			"lon":            match.Anchor.Lon,
			"distance_miles": match.DistanceMiles,
		},
		"nearest_dam": map[string]any{
			"dam":            dam,
			"distance_miles": damDist,
		},
	})
}

func (s *Server) handlePath(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	path := s.engine.Path()

	from, to := path.MinMile(), path.MaxMile()
	var err error
	if q.Has("from") {
		if from, err = parseFloatParam(q.Get("from"), "from"); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if q.Has("to") {
		if to, err = parseFloatParam(q.Get("to"), "to"); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	step := 1.0
	if q.Has("step") {
		if step, err = parseFloatParam(q.Get("step"), "step"); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if step <= 0 {
			writeError(w, http.StatusBadRequest, errors.New("step must be positive"))
			return
		}
	}
	if !path.Contains(from) || !path.Contains(to) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("miles must lie within [%v, %v]", path.MinMile(), path.MaxMile()))
		return
	}

	pts := path.Polyline(from, to, step)
	coords := make([][]float64, len(pts))
	for i, p := range pts {
		coords[i] = []float64{p.Lat, p.Lon}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"from":         from,
		"to":           to,
		"step":         step,
		"points":       pts,
		"encoded_path": string(polyline.EncodeCoords(coords)),
	})
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, engine.ErrUnknownDam):
		writeError(w, http.StatusNotFound, err)
	default:
		s.logger.Error("flow query failed", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func parseFloatParam(raw, name string) (float64, error) {
	if raw == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return v, nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response write
}
