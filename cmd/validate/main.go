// Command validate performs integrity checks on a river table: anchor
// geometry, dam placement against the reference path, and flow parameter
// sanity. It is meant to run against a table file before deploying it.
//
// Usage:
//
//	go run ./cmd/validate -table data/cumberland.json
//
// With no -table flag it checks the embedded Cumberland table.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/couchcryptid/river-flow-service/internal/config"
	"github.com/couchcryptid/river-flow-service/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	tablePath := flag.String("table", "", "river table JSON file (empty checks the embedded table)")
	// Tributary dams sit off the main stem, so the default tolerance is
	// generous; tighten it for tables that only carry main-stem dams.
	maxSnapMiles := flag.Float64("max-snap-miles", 25.0, "maximum allowed distance between a dam and the path point at its mile")
	flag.Parse()

	if code := run(*tablePath, *maxSnapMiles); code != 0 {
		os.Exit(code)
	}
}

func run(tablePath string, maxSnapMiles float64) int {
	fmt.Println("=== River Table Validation ===")
	fmt.Println()

	table, err := config.LoadRiverTable(tablePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load river table: %v\n", err)
		return 1
	}

	path, dams, err := table.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: build reference path: %v\n", err)
		return 1
	}
	registry, err := domain.NewDamRegistry(dams, path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: build dam registry: %v\n", err)
		return 1
	}

	fmt.Printf("table: %s (%d anchors, %d dams, miles %.1f to %.1f)\n",
		table.River, len(path.Anchors()), len(dams), path.MinMile(), path.MaxMile())

	phases := []*phase{
		validateGeometry(path),
		validateDamPlacement(path, registry, maxSnapMiles),
		validateFlowDefaults(),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		if p.passed() {
			fmt.Printf("PASS %s\n", p.name)
			continue
		}
		allPassed = false
		fmt.Printf("FAIL %s\n", p.name)
		for _, e := range p.errors {
			fmt.Printf("  - %s\n", e)
		}
	}

	if !allPassed {
		return 1
	}
	fmt.Println()
	fmt.Println("all checks passed")
	return 0
}

// validateGeometry checks that consecutive anchors are physically plausible:
// the straight-line distance between them must not exceed the river-mile
// delta, since a channel is never shorter than its chord.
func validateGeometry(path *domain.ReferencePath) *phase {
	p := &phase{name: "anchor geometry"}

	anchors := path.Anchors()
	for i := 0; i < len(anchors)-1; i++ {
		a, b := anchors[i], anchors[i+1]
		mileDelta := b.Mile - a.Mile
		chord := domain.HaversineMiles(a.Coordinate(), b.Coordinate())
		if chord > mileDelta {
			p.errorf("anchors at miles %.1f and %.1f are %.1f miles apart in a straight line, more than the %.1f river miles between them",
				a.Mile, b.Mile, chord, mileDelta)
		}
	}
	return p
}

// validateDamPlacement checks each dam's surveyed coordinate against the
// interpolated path point at its mile.
func validateDamPlacement(path *domain.ReferencePath, registry *domain.DamRegistry, maxSnapMiles float64) *phase {
	p := &phase{name: "dam placement"}

	for _, dam := range registry.All() {
		onPath := path.CoordinateAt(dam.Mile)
		snap := domain.HaversineMiles(dam.Coordinate(), onPath)
		if snap > maxSnapMiles {
			p.errorf("dam %q at mile %.1f is %.1f miles from the path point there (limit %.1f); check its mile or add anchors nearby",
				dam.ID, dam.Mile, snap, maxSnapMiles)
		}
	}
	return p
}

func validateFlowDefaults() *phase {
	p := &phase{name: "flow parameters"}

	params := domain.DefaultFlowParams()
	if err := params.Validate(); err != nil {
		p.errorf("default parameters rejected: %v", err)
		return p
	}

	// Attenuation spot checks: identity at zero distance, strict decay after.
	if got := domain.Attenuate(100000, 0, params.AttenuationMiles); got != 100000 {
		p.errorf("attenuation at zero distance changed the flow: %v", got)
	}
	if got := domain.Attenuate(100000, 50, params.AttenuationMiles); got >= 100000 || got <= 0 {
		p.errorf("attenuation over 50 miles out of range: %v", got)
	}
	return p
}
