// Package extent provides WGS84 rectangle helpers used across the DGGS and STAC pipeline.
package extent

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

const (
	// MaxDGGSLat is the Web-Mercator style latitude limit applied before zone queries.
	MaxDGGSLat = 85.0511
	MaxDGGSLon = 180.0

	DefaultMaxWidth  = 180.0
	DefaultMaxHeight = 90.0
)

// GeoExtent is an immutable lon/lat rectangle in WGS84 degrees.
type GeoExtent struct {
	b orb.Bound
}

func New(minLon, minLat, maxLon, maxLat float64) (GeoExtent, error) {
	for _, v := range []float64{minLon, minLat, maxLon, maxLat} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return GeoExtent{}, fmt.Errorf("extent: non-finite coordinate in [%g,%g,%g,%g]", minLon, minLat, maxLon, maxLat)
		}
	}
	if minLon > maxLon || minLat > maxLat {
		return GeoExtent{}, fmt.Errorf("extent: min must not exceed max in [%g,%g,%g,%g]", minLon, minLat, maxLon, maxLat)
	}
	if maxLon-minLon > 360 || maxLat-minLat > 180 {
		return GeoExtent{}, fmt.Errorf("extent: %gx%g degrees exceeds the globe", maxLon-minLon, maxLat-minLat)
	}
	return GeoExtent{b: orb.Bound{Min: orb.Point{minLon, minLat}, Max: orb.Point{maxLon, maxLat}}}, nil
}

// MustNew is New for literals known to be valid.
func MustNew(minLon, minLat, maxLon, maxLat float64) GeoExtent {
	e, err := New(minLon, minLat, maxLon, maxLat)
	if err != nil {
		panic(err)
	}
	return e
}

func FromBound(b orb.Bound) (GeoExtent, error) {
	return New(b.Min[0], b.Min[1], b.Max[0], b.Max[1])
}

// World is the full WGS84 domain.
func World() GeoExtent { return MustNew(-180, -90, 180, 90) }

func (e GeoExtent) MinLon() float64 { return e.b.Min[0] }
func (e GeoExtent) MinLat() float64 { return e.b.Min[1] }
func (e GeoExtent) MaxLon() float64 { return e.b.Max[0] }
func (e GeoExtent) MaxLat() float64 { return e.b.Max[1] }

func (e GeoExtent) Width() float64  { return e.b.Max[0] - e.b.Min[0] }
func (e GeoExtent) Height() float64 { return e.b.Max[1] - e.b.Min[1] }

func (e GeoExtent) Bound() orb.Bound { return e.b }

// BBox returns [minLon, minLat, maxLon, maxLat].
func (e GeoExtent) BBox() []float64 {
	return []float64{e.b.Min[0], e.b.Min[1], e.b.Max[0], e.b.Max[1]}
}

// Ring is the closed counter-clockwise ring starting at (minLon, minLat).
func (e GeoExtent) Ring() orb.Ring { return e.b.ToRing() }

// Intersects is an inclusive overlap test: shared edges or corners count.
func (e GeoExtent) Intersects(o GeoExtent) bool { return e.b.Intersects(o.b) }

func (e GeoExtent) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", e.b.Min[0], e.b.Min[1], e.b.Max[0], e.b.Max[1])
}

func (e GeoExtent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		XMin float64 `json:"xmin"`
		YMin float64 `json:"ymin"`
		XMax float64 `json:"xmax"`
		YMax float64 `json:"ymax"`
	}{e.b.Min[0], e.b.Min[1], e.b.Max[0], e.b.Max[1]})
}

// Combine returns the minimal rectangle covering a and b.
func Combine(a, b GeoExtent) GeoExtent {
	return GeoExtent{b: orb.Bound{
		Min: orb.Point{math.Min(a.b.Min[0], b.b.Min[0]), math.Min(a.b.Min[1], b.b.Min[1])},
		Max: orb.Point{math.Max(a.b.Max[0], b.b.Max[0]), math.Max(a.b.Max[1], b.b.Max[1])},
	}}
}

// CombineAll folds Combine over exts; ok is false when exts is empty.
func CombineAll(exts ...GeoExtent) (out GeoExtent, ok bool) {
	for i, e := range exts {
		if i == 0 {
			out = e
			continue
		}
		out = Combine(out, e)
	}
	return out, len(exts) > 0
}

// ClampToDGGSBounds clips latitude to ±MaxDGGSLat and longitude to ±180.
func ClampToDGGSBounds(e GeoExtent) GeoExtent {
	return GeoExtent{b: orb.Bound{
		Min: orb.Point{clamp(e.b.Min[0], -MaxDGGSLon, MaxDGGSLon), clamp(e.b.Min[1], -MaxDGGSLat, MaxDGGSLat)},
		Max: orb.Point{clamp(e.b.Max[0], -MaxDGGSLon, MaxDGGSLon), clamp(e.b.Max[1], -MaxDGGSLat, MaxDGGSLat)},
	}}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// ExtentTooLargeError carries the measured size of a rejected extent.
type ExtentTooLargeError struct {
	Width, Height       float64
	MaxWidth, MaxHeight float64
}

func (e *ExtentTooLargeError) Error() string {
	return fmt.Sprintf("extent too large: %.4f x %.4f degrees (limit %.4f x %.4f); try a smaller area",
		e.Width, e.Height, e.MaxWidth, e.MaxHeight)
}

// ValidateSize rejects extents wider than maxWidth or taller than maxHeight. Limits are inclusive;
// non-positive limits fall back to the defaults.
func ValidateSize(e GeoExtent, maxWidth, maxHeight float64) error {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	if maxHeight <= 0 {
		maxHeight = DefaultMaxHeight
	}
	w, h := e.Width(), e.Height()
	if w > maxWidth || h > maxHeight {
		return &ExtentTooLargeError{Width: w, Height: h, MaxWidth: maxWidth, MaxHeight: maxHeight}
	}
	return nil
}
