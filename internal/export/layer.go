package export

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/dggs-stac-export/internal/extent"
	"github.com/mohammed-shakir/dggs-stac-export/internal/stac"
)

var ErrNoExtent = errors.New("layer has no extent")

// Layer is either a *VectorLayer or an *ImageryLayer.
type Layer interface {
	LayerName() string
	Kind() stac.AssetKind
	// SourceCRS is the authority code of the layer's coordinates, e.g. "EPSG:3857".
	SourceCRS() string
	// Bounds are expressed in SourceCRS.
	Bounds() (orb.Bound, error)
	sealed()
}

// VectorLayer carries its features in memory.
type VectorLayer struct {
	Name     string
	CRS      string
	Features *geojson.FeatureCollection
	// Extent overrides the bounds computed from Features.
	Extent *orb.Bound
}

// ImageryLayer references a raster file that is described but not re-encoded.
type ImageryLayer struct {
	Name   string
	CRS    string
	Source string
	Extent orb.Bound
}

func (l *VectorLayer) LayerName() string { return l.Name }
func (l *VectorLayer) Kind() stac.AssetKind { return stac.KindFeature }
func (l *VectorLayer) SourceCRS() string { return crsOrDefault(l.CRS) }
func (l *VectorLayer) sealed() {}
func (l *ImageryLayer) LayerName() string { return l.Name }
func (l *ImageryLayer) Kind() stac.AssetKind { return stac.KindImagery }
func (l *ImageryLayer) SourceCRS() string { return crsOrDefault(l.CRS) }
func (l *ImageryLayer) sealed() {}

func (l *VectorLayer) Bounds() (orb.Bound, error) {
	if l.Extent != nil {
		return *l.Extent, nil
	}
	if l.Features == nil {
		return orb.Bound{}, ErrNoExtent
	}
	var (
		b     orb.Bound
		found bool
	)
	for _, f := range l.Features.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		fb := f.Geometry.Bound()
		if !found {
			b, found = fb, true
			continue
		}
		b = b.Union(fb)
	}
	if !found {
		return orb.Bound{}, ErrNoExtent
	}
	return b, nil
}

func (l *ImageryLayer) Bounds() (orb.Bound, error) {
	if l.Extent == (orb.Bound{}) {
		return orb.Bound{}, ErrNoExtent
	}
	return l.Extent, nil
}

func crsOrDefault(crs string) string {
	if strings.TrimSpace(crs) == "" {
		return extent.WGS84
	}
	return crs
}

// LoadVectorFile reads a GeoJSON FeatureCollection. The layer CRS is taken from crs, then from a
// legacy "crs" member in the file, then defaults to WGS84.
func LoadVectorFile(path, name, crs string) (*VectorLayer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if crs == "" {
		crs = legacyCRS(fc)
	}
	return &VectorLayer{Name: name, CRS: crs, Features: fc}, nil
}

// legacyCRS reads {"crs":{"type":"name","properties":{"name":"urn:ogc:def:crs:EPSG::3857"}}}.
func legacyCRS(fc *geojson.FeatureCollection) string {
	m, ok := fc.ExtraMembers["crs"].(map[string]any)
	if !ok {
		return ""
	}
	props, ok := m["properties"].(map[string]any)
	if !ok {
		return ""
	}
	name, _ := props["name"].(string)
	return normalizeCRS(name)
}

func normalizeCRS(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.Index(strings.ToUpper(name), "EPSG::"); i >= 0 {
		return "EPSG:" + name[i+len("EPSG::"):]
	}
	if strings.HasSuffix(strings.ToUpper(name), "CRS84") {
		return "OGC:CRS84"
	}
	return name
}
