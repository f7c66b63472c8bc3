package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/couchcryptid/river-flow-service/internal/domain"
)

// defaultRiverTable is the Cumberland River table: main-stem shape anchors
// plus the seven Army Corps dams with their USGS gauge sites.
//
//go:embed cumberland.json
var defaultRiverTable []byte

// RiverTable is the on-disk shape of the anchor/dam configuration.
type RiverTable struct {
	River   string          `json:"river"`
	Anchors []domain.Anchor `json:"anchors"`
	Dams    []domain.Dam    `json:"dams"`
}

// LoadRiverTable reads and parses a river table file. An empty path loads the
// embedded Cumberland table.
func LoadRiverTable(path string) (*RiverTable, error) {
	data := defaultRiverTable
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read river table: %w", err)
		}
	}

	var table RiverTable
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("%w: parse river table: %v", domain.ErrBadRiverTable, err)
	}
	return &table, nil
}

// Build constructs the validated reference path and dam slice. Dam registry
// construction is left to the caller so site-name enrichment can run on the
// dams first.
func (t *RiverTable) Build() (*domain.ReferencePath, []domain.Dam, error) {
	path, err := domain.NewReferencePath(t.Anchors)
	if err != nil {
		return nil, nil, err
	}
	return path, t.Dams, nil
}
