// Package invalidation describes upstream zone-change notifications that purge cached zone data.
package invalidation

import (
	"fmt"
	"strings"
	"time"

	"github.com/mohammed-shakir/dggs-stac-export/internal/core/dggs"
	"github.com/mohammed-shakir/dggs-stac-export/internal/extent"
)

// ZoneUpdate announces that the data of some zones changed upstream. It names the zones
// directly or gives a bbox that is resolved to zones at Level.
type ZoneUpdate struct {
	Version int       `json:"version"`
	Op      string    `json:"op"`
	System  string    `json:"dggs"`
	Zones   []string  `json:"zones,omitempty"`
	BBox    []float64 `json:"bbox,omitempty"`
	Level   int       `json:"zone_level,omitempty"`
	// Seq orders updates per zone; a zero Seq is always applied.
	Seq uint64    `json:"seq,omitempty"`
	TS  time.Time `json:"ts"`
}

func (e ZoneUpdate) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	switch e.Op {
	case "insert", "update", "delete":
	default:
		return fmt.Errorf("op must be insert|update|delete")
	}
	if strings.TrimSpace(e.System) == "" {
		return fmt.Errorf("dggs is required")
	}
	if !dggs.KnownSystem(e.System) {
		return fmt.Errorf("unknown dggs %q", e.System)
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	hasZones := len(e.Zones) > 0
	hasBBox := len(e.BBox) > 0
	if hasZones == hasBBox {
		return fmt.Errorf("exactly one of zones or bbox is required")
	}
	if hasBBox {
		if _, err := e.Extent(); err != nil {
			return err
		}
	}
	for _, z := range e.Zones {
		if strings.TrimSpace(z) == "" {
			return fmt.Errorf("blank zone id")
		}
	}
	return nil
}

// Extent returns the bbox as a WGS84 extent.
func (e ZoneUpdate) Extent() (extent.GeoExtent, error) {
	if len(e.BBox) != 4 {
		return extent.GeoExtent{}, fmt.Errorf("bbox needs 4 numbers, got %d", len(e.BBox))
	}
	b := e.BBox
	if b[0] < -180 || b[2] > 180 || b[1] < -90 || b[3] > 90 {
		return extent.GeoExtent{}, fmt.Errorf("bbox out of range")
	}
	ext, err := extent.New(b[0], b[1], b[2], b[3])
	if err != nil {
		return extent.GeoExtent{}, fmt.Errorf("bbox: %w", err)
	}
	return ext, nil
}
