package extent

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

func TestCombine_AssociativeCommutativeIdempotent(t *testing.T) {
	a := MustNew(0, 0, 1, 1)
	b := MustNew(-1, -1, 0, 0)
	c := MustNew(10, -5, 12, 3)

	if Combine(Combine(a, b), c) != Combine(a, Combine(b, c)) {
		t.Fatalf("combine is not associative")
	}
	if Combine(a, b) != Combine(b, a) {
		t.Fatalf("combine is not commutative")
	}
	if Combine(a, a) != a {
		t.Fatalf("combine(a,a)=%v want %v", Combine(a, a), a)
	}
	if got, want := Combine(a, b), MustNew(-1, -1, 1, 1); got != want {
		t.Fatalf("combine=%v want %v", got, want)
	}
}

func TestCombineAll_Empty(t *testing.T) {
	if _, ok := CombineAll(); ok {
		t.Fatalf("expected ok=false for no extents")
	}
	got, ok := CombineAll(MustNew(0, 0, 1, 1), MustNew(2, 2, 3, 3))
	if !ok || got != MustNew(0, 0, 3, 3) {
		t.Fatalf("got %v ok=%v", got, ok)
	}
}

func TestNew_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		in   [4]float64
	}{
		{"min-lon-gt-max", [4]float64{2, 0, 1, 1}},
		{"min-lat-gt-max", [4]float64{0, 2, 1, 1}},
		{"too-wide", [4]float64{-200, 0, 200, 1}},
		{"nan", [4]float64{math.NaN(), 0, 1, 1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.in[0], tc.in[1], tc.in[2], tc.in[3]); err == nil {
				t.Fatalf("expected error for %v", tc.in)
			}
		})
	}
}

func TestClamp_IdempotentAndSubset(t *testing.T) {
	in := []GeoExtent{
		MustNew(-180, -90, 180, 90),
		MustNew(-10, 80, 10, 89),
		MustNew(-122.5, 37.7, -122.3, 37.9),
	}
	for _, e := range in {
		c := ClampToDGGSBounds(e)
		if ClampToDGGSBounds(c) != c {
			t.Fatalf("clamp not idempotent for %v", e)
		}
		if c.MinLon() < e.MinLon() || c.MinLat() < e.MinLat() || c.MaxLon() > e.MaxLon() || c.MaxLat() > e.MaxLat() {
			t.Fatalf("clamp(%v)=%v is not a subset", e, c)
		}
		if c.MaxLat() > MaxDGGSLat || c.MinLat() < -MaxDGGSLat {
			t.Fatalf("latitude not clamped: %v", c)
		}
	}
}

func TestValidateSize_BoundaryInclusive(t *testing.T) {
	if err := ValidateSize(MustNew(-90, -45, 90, 45), 180, 90); err != nil {
		t.Fatalf("180x90 should pass: %v", err)
	}
	err := ValidateSize(MustNew(-90.5, -45, 90, 45), 180, 90)
	var tooLarge *ExtentTooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("expected ExtentTooLargeError, got %v", err)
	}
	if tooLarge.Width != 180.5 || tooLarge.Height != 90 {
		t.Fatalf("diagnostics=%+v", tooLarge)
	}
	if err := ValidateSize(MustNew(0, -46, 1, 45), 0, 0); err == nil {
		t.Fatalf("height 91 should fail with default limits")
	}
}

func TestIntersects_TouchingCornerCounts(t *testing.T) {
	q := MustNew(-122.5, 37.7, -122.3, 37.9)
	zone := MustNew(-122.3, 37.9, -122.0, 38.0)
	if !q.Intersects(zone) {
		t.Fatalf("touching corner must intersect")
	}
	gap := MustNew(-122.29, 37.9, -122.0, 38.0)
	if q.Intersects(gap) {
		t.Fatalf("separated rectangles must not intersect")
	}
}

func TestRing_CounterClockwiseFromMin(t *testing.T) {
	r := MustNew(0, 0, 2, 1).Ring()
	want := orb.Ring{{0, 0}, {2, 0}, {2, 1}, {0, 1}, {0, 0}}
	if !r.Equal(want) {
		t.Fatalf("ring=%v want %v", r, want)
	}
}

type failingReprojector struct{}

func (failingReprojector) TransformBBox(orb.Bound, string, string) (orb.Bound, error) {
	return orb.Bound{}, errors.New("no transform")
}

func TestReprojectToWGS84(t *testing.T) {
	b := orb.Bound{Min: orb.Point{1, 2}, Max: orb.Point{3, 4}}

	got, err := ReprojectToWGS84(failingReprojector{}, b, "epsg:4326")
	if err != nil {
		t.Fatalf("identity reprojection: %v", err)
	}
	if got != MustNew(1, 2, 3, 4) {
		t.Fatalf("identity changed extent: %v", got)
	}

	if _, err := ReprojectToWGS84(failingReprojector{}, b, "EPSG:32633"); !errors.Is(err, ErrReprojection) {
		t.Fatalf("expected ErrReprojection, got %v", err)
	}

	merc := orb.Bound{Min: orb.Point{-20037508.342789244, 0}, Max: orb.Point{0, 20037508.342789244}}
	got, err = ReprojectToWGS84(Mercator{}, merc, "EPSG:3857")
	if err != nil {
		t.Fatalf("mercator: %v", err)
	}
	if math.Abs(got.MinLon()+180) > 1e-9 || math.Abs(got.MaxLat()-85.0511287798) > 1e-6 {
		t.Fatalf("mercator extent=%v", got)
	}
}

func TestMercator_RoundTripAndAliases(t *testing.T) {
	lo := project.WGS84.ToMercator(orb.Point{11.5, 55.25})
	hi := project.WGS84.ToMercator(orb.Point{12.75, 56})
	for _, crs := range []string{"EPSG:3857", "epsg:900913", "EPSG:102100"} {
		got, err := ReprojectToWGS84(Mercator{}, orb.Bound{Min: lo, Max: hi}, crs)
		if err != nil {
			t.Fatalf("%s: %v", crs, err)
		}
		if math.Abs(got.MinLon()-11.5) > 1e-9 || math.Abs(got.MinLat()-55.25) > 1e-9 ||
			math.Abs(got.MaxLon()-12.75) > 1e-9 || math.Abs(got.MaxLat()-56) > 1e-9 {
			t.Fatalf("%s: extent=%v", crs, got)
		}
	}

	if _, err := (Mercator{}).TransformBBox(orb.Bound{}, "EPSG:3857", "EPSG:3035"); err == nil {
		t.Fatalf("expected error for non-WGS84 target")
	}
	if _, err := ReprojectToWGS84(Mercator{}, orb.Bound{}, "EPSG:25832"); !errors.Is(err, ErrReprojection) {
		t.Fatalf("expected ErrReprojection for unsupported source, got %v", err)
	}
}
