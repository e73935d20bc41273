package extent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

const WGS84 = "EPSG:4326"

var ErrReprojection = errors.New("reprojection failed")

// ReprojectionError wraps a collaborator failure for a given source CRS.
type ReprojectionError struct {
	SourceCRS string
	Err       error
}

func (e *ReprojectionError) Error() string {
	return fmt.Sprintf("reproject %s to %s: %v", e.SourceCRS, WGS84, e.Err)
}

func (e *ReprojectionError) Unwrap() error { return e.Err }

func (e *ReprojectionError) Is(target error) bool { return target == ErrReprojection }

// Reprojector transforms a rectangle between coordinate reference systems.
type Reprojector interface {
	TransformBBox(b orb.Bound, sourceCRS, targetCRS string) (orb.Bound, error)
}

// IsWGS84 compares by authority code.
func IsWGS84(crs string) bool {
	c := strings.ToUpper(strings.TrimSpace(crs))
	return c == WGS84 || c == "OGC:CRS84"
}

// ReprojectToWGS84 returns b unchanged when sourceCRS is already WGS84, otherwise asks r.
func ReprojectToWGS84(r Reprojector, b orb.Bound, sourceCRS string) (GeoExtent, error) {
	if IsWGS84(sourceCRS) {
		e, err := FromBound(b)
		if err != nil {
			return GeoExtent{}, &ReprojectionError{SourceCRS: sourceCRS, Err: err}
		}
		return e, nil
	}
	if r == nil {
		return GeoExtent{}, &ReprojectionError{SourceCRS: sourceCRS, Err: errors.New("no reprojector configured")}
	}
	out, err := r.TransformBBox(b, sourceCRS, WGS84)
	if err != nil {
		return GeoExtent{}, &ReprojectionError{SourceCRS: sourceCRS, Err: err}
	}
	e, err := FromBound(out)
	if err != nil {
		return GeoExtent{}, &ReprojectionError{SourceCRS: sourceCRS, Err: err}
	}
	return e, nil
}

// Mercator handles spherical Web-Mercator sources (EPSG:3857 and aliases) into WGS84.
type Mercator struct{}

var _ Reprojector = Mercator{}

func (Mercator) TransformBBox(b orb.Bound, sourceCRS, targetCRS string) (orb.Bound, error) {
	if !IsWGS84(targetCRS) {
		return orb.Bound{}, fmt.Errorf("unsupported target CRS %q", targetCRS)
	}
	switch strings.ToUpper(strings.TrimSpace(sourceCRS)) {
	case "EPSG:3857", "EPSG:900913", "EPSG:3785", "EPSG:102100":
	default:
		return orb.Bound{}, fmt.Errorf("unsupported source CRS %q", sourceCRS)
	}
	// the inverse projection is monotonic per axis, corners are enough
	lo := project.Mercator.ToWGS84(b.Min)
	hi := project.Mercator.ToWGS84(b.Max)
	return orb.Bound{Min: lo, Max: hi}, nil
}
