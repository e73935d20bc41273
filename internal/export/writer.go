package export

import (
	"errors"
	"fmt"
	"io"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/dggs-stac-export/internal/atomicfile"
)

// VectorWriter persists a vector layer's features as GeoJSON.
type VectorWriter interface {
	WriteGeoJSON(layer *VectorLayer, path string) error
}

// GeoJSONWriter writes indented UTF-8 GeoJSON through a temporary file.
type GeoJSONWriter struct{}

func (GeoJSONWriter) WriteGeoJSON(layer *VectorLayer, path string) error {
	fc := layer.Features
	if fc == nil {
		fc = geojson.NewFeatureCollection()
	}
	return atomicfile.WriteJSON(path, fc)
}

var errNoGeometries = errors.New("flatgeobuf: no encodable geometries")

// writeFlatGeobuf writes a geometry-only FlatGeobuf copy of fc in EPSG:4326.
func writeFlatGeobuf(path string, fc *geojson.FeatureCollection) error {
	var geoms []orb.Geometry
	if fc != nil {
		for _, f := range fc.Features {
			if f != nil && f.Geometry != nil && fgbType(f.Geometry) != flattypes.GeometryTypeUnknown {
				geoms = append(geoms, f.Geometry)
			}
		}
	}
	if len(geoms) == 0 {
		return errNoGeometries
	}

	geomType := fgbType(geoms[0])
	for _, g := range geoms[1:] {
		if fgbType(g) != geomType {
			geomType = flattypes.GeometryTypeUnknown
			break
		}
	}

	return atomicfile.Write(path, func(w io.Writer) error {
		builder := flatbuffers.NewBuilder(4096)
		header := writer.NewHeader(builder)
		header.SetGeometryType(geomType)
		header.SetName("dggs-stac-export")

		crs := writer.NewCrs(builder)
		crs.SetOrg("EPSG")
		crs.SetCode(4326)
		header.SetCrs(crs)

		gen := &geometryGenerator{geoms: geoms}
		if _, err := writer.NewWriter(header, true, gen, nil).Write(w); err != nil {
			return fmt.Errorf("flatgeobuf: %w", err)
		}
		return nil
	})
}

type geometryGenerator struct {
	geoms []orb.Geometry
	i     int
}

func (g *geometryGenerator) Generate() *writer.Feature {
	if g.i >= len(g.geoms) {
		return nil
	}
	geom := g.geoms[g.i]
	g.i++

	builder := flatbuffers.NewBuilder(1024)
	fg := toFGB(geom, builder)
	if fg == nil {
		return g.Generate()
	}
	f := writer.NewFeature(builder)
	f.SetGeometry(fg)
	return f
}

func fgbType(geom orb.Geometry) flattypes.GeometryType {
	switch geom.(type) {
	case orb.Point:
		return flattypes.GeometryTypePoint
	case orb.MultiPoint:
		return flattypes.GeometryTypeMultiPoint
	case orb.LineString:
		return flattypes.GeometryTypeLineString
	case orb.MultiLineString:
		return flattypes.GeometryTypeMultiLineString
	case orb.Polygon:
		return flattypes.GeometryTypePolygon
	case orb.MultiPolygon:
		return flattypes.GeometryTypeMultiPolygon
	default:
		return flattypes.GeometryTypeUnknown
	}
}

func toFGB(geom orb.Geometry, builder *flatbuffers.Builder) *writer.Geometry {
	g := writer.NewGeometry(builder)
	g.SetType(fgbType(geom))

	switch v := geom.(type) {
	case orb.Point:
		g.SetXY([]float64{v[0], v[1]})
	case orb.MultiPoint:
		g.SetXY(pointsXY(v))
	case orb.LineString:
		g.SetXY(pointsXY(v))
	case orb.MultiLineString:
		lines := make([][]orb.Point, len(v))
		for i, ls := range v {
			lines[i] = ls
		}
		xy, ends := partsXY(lines)
		g.SetXY(xy)
		g.SetEnds(ends)
	case orb.Polygon:
		xy, ends := polygonXY(v)
		g.SetXY(xy)
		g.SetEnds(ends)
	case orb.MultiPolygon:
		parts := make([]writer.Geometry, 0, len(v))
		for _, poly := range v {
			pg := writer.NewGeometry(builder)
			pg.SetType(flattypes.GeometryTypePolygon)
			xy, ends := polygonXY(poly)
			pg.SetXY(xy)
			pg.SetEnds(ends)
			parts = append(parts, *pg)
		}
		g.SetParts(parts)
	default:
		return nil
	}
	return g
}

func pointsXY[P ~[]orb.Point](pts P) []float64 {
	xy := make([]float64, 0, len(pts)*2)
	for _, p := range pts {
		xy = append(xy, p[0], p[1])
	}
	return xy
}

func polygonXY(poly orb.Polygon) ([]float64, []uint32) {
	rings := make([][]orb.Point, len(poly))
	for i, r := range poly {
		rings[i] = r
	}
	return partsXY(rings)
}

// ends are cumulative vertex counts per part
func partsXY(parts [][]orb.Point) ([]float64, []uint32) {
	var xy []float64
	ends := make([]uint32, 0, len(parts))
	var n uint32
	for _, p := range parts {
		xy = append(xy, pointsXY(p)...)
		n += uint32(len(p))
		ends = append(ends, n)
	}
	return xy, ends
}
