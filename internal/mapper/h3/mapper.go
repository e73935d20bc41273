// Package h3mapper derives zone geometry locally for H3 zone ids.
package h3mapper

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/dggs-stac-export/internal/extent"
)

type Mapper struct{}

func New() *Mapper { return &Mapper{} }

// CellsForExtent lists the H3 cells at res whose centers fall inside ext, sorted.
func (m *Mapper) CellsForExtent(ext extent.GeoExtent, res int) ([]string, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	// v4 wants degrees
	outer := toLoop(ext.Ring())
	return polyfillOne(outer, res)
}

// ZoneBounds returns the bounding box of an H3 cell id. ok is false when zoneID is not a valid cell.
func (m *Mapper) ZoneBounds(zoneID string) (extent.GeoExtent, bool) {
	c, err := parseCell(zoneID)
	if err != nil {
		return extent.GeoExtent{}, false
	}
	b, err := c.Boundary()
	if err != nil || len(b) < 3 {
		return extent.GeoExtent{}, false
	}

	bound := orb.Bound{
		Min: orb.Point{math.Inf(1), math.Inf(1)},
		Max: orb.Point{math.Inf(-1), math.Inf(-1)},
	}
	for _, ll := range b {
		bound = bound.Extend(orb.Point{ll.Lng, ll.Lat})
	}
	// a cell spanning more than half the globe in longitude wraps the antimeridian
	if bound.Max[0]-bound.Min[0] > 180 {
		bound.Min[0], bound.Max[0] = -180, 180
	}
	ge, err := extent.FromBound(bound)
	if err != nil {
		return extent.GeoExtent{}, false
	}
	return ge, true
}

func (m *Mapper) ValidCell(zoneID string) bool {
	_, err := parseCell(zoneID)
	return err == nil
}

// --- helpers ---

func parseCell(s string) (h3.Cell, error) {
	var c h3.Cell
	if err := c.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("parse cell: %w", err)
	}
	if !c.IsValid() {
		return 0, fmt.Errorf("invalid h3 cell %q", s)
	}
	return c, nil
}

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}

// drops the duplicated closing vertex if present
func toLoop(ring orb.Ring) h3.GeoLoop {
	loop := make(h3.GeoLoop, 0, len(ring))
	for _, p := range ring {
		loop = append(loop, h3.LatLng{Lat: p[1], Lng: p[0]})
	}
	if len(loop) >= 2 {
		last := loop[len(loop)-1]
		first := loop[0]
		if last.Lat == first.Lat && last.Lng == first.Lng {
			loop = loop[:len(loop)-1]
		}
	}
	return loop
}

// polyfillOne computes unique cells and returns them sorted for determinism.
func polyfillOne(outer h3.GeoLoop, res int) ([]string, error) {
	if len(outer) < 3 {
		return nil, errors.New("outer ring has < 3 vertices")
	}
	poly := h3.GeoPolygon{GeoLoop: outer}

	indexes, err := h3.PolygonToCells(poly, res)
	if err != nil {
		return nil, fmt.Errorf("h3 polyfill: %w", err)
	}

	out := make([]string, 0, len(indexes))
	seen := make(map[string]struct{}, len(indexes))
	for _, idx := range indexes {
		s := idx.String()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}
