// Command genpath samples a river table's reference path at a fixed spacing
// and writes a JSON fixture with the sampled points and their encoded
// polyline. The fixture feeds map frontends that want the full channel shape
// without calling the service (one point per mile is plenty for rendering).
//
// Usage:
//
//	go run ./cmd/genpath -step 1 -out data/cumberland_path.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/twpayne/go-polyline"

	"github.com/couchcryptid/river-flow-service/internal/config"
	"github.com/couchcryptid/river-flow-service/internal/domain"
)

type pathFixture struct {
	River       string          `json:"river"`
	StepMiles   float64         `json:"step_miles"`
	Points      []domain.Anchor `json:"points"`
	EncodedPath string          `json:"encoded_path"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	tablePath := flag.String("table", "", "river table JSON file (empty uses the embedded table)")
	step := flag.Float64("step", 1.0, "sample spacing in river miles")
	out := flag.String("out", "", "output path for the fixture (empty writes to stdout)")
	flag.Parse()

	table, err := config.LoadRiverTable(*tablePath)
	if err != nil {
		return err
	}
	path, _, err := table.Build()
	if err != nil {
		return err
	}

	dense, err := path.Densify(*step)
	if err != nil {
		return err
	}

	points := dense.Anchors()
	coords := make([][]float64, len(points))
	for i, a := range points {
		coords[i] = []float64{a.Lat, a.Lon}
	}

	fixture := pathFixture{
		River:       table.River,
		StepMiles:   *step,
		Points:      points,
		EncodedPath: string(polyline.EncodeCoords(coords)),
	}

	data, err := json.MarshalIndent(fixture, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if *out == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		return fmt.Errorf("write fixture: %w", err)
	}
	log.Printf("wrote %d points to %s", len(points), *out)
	return nil
}
