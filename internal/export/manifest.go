package export

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/dggs-stac-export/internal/stac"
)

// Manifest describes an export run in TOML:
//
//	create_zip = true
//	[collection]
//	id = "op-test"
//	[cop]
//	mission = "OP-TEST"
//	[coverage]
//	enabled = true
//	system = "rHEALPix"
//	[[layer]]
//	name = "Roads"
//	path = "roads.geojson"
//	[[layer]]
//	name = "DEM"
//	kind = "imagery"
//	path = "dem.tif"
//	bbox = [10.0, 50.0, 11.0, 51.0]
type Manifest struct {
	CreateZip  bool             `toml:"create_zip"`
	Collection ManifestColl     `toml:"collection"`
	COP        stac.COPMetadata `toml:"cop"`
	Coverage   ManifestCoverage `toml:"coverage"`
	Layers     []ManifestLayer  `toml:"layer"`
}

type ManifestColl struct {
	ID          string `toml:"id"`
	Title       string `toml:"title"`
	Description string `toml:"description"`
}

type ManifestCoverage struct {
	Enabled bool   `toml:"enabled"`
	System  string `toml:"system"`
	ZoneID  string `toml:"zone_id"`
}

type ManifestLayer struct {
	Name string    `toml:"name"`
	Kind string    `toml:"kind"`
	Path string    `toml:"path"`
	CRS  string    `toml:"crs"`
	BBox []float64 `toml:"bbox"`
}

// LoadManifest decodes path over the default COP values with create_zip on.
func LoadManifest(path string) (*Manifest, error) {
	m := &Manifest{CreateZip: true, COP: stac.DefaultCOP()}
	md, err := toml.DecodeFile(path, m)
	if err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	if un := md.Undecoded(); len(un) > 0 {
		return nil, fmt.Errorf("manifest %s: unknown keys %v", path, un)
	}
	return m, nil
}

// Request loads the listed layers. Relative paths resolve against baseDir.
func (m *Manifest) Request(baseDir string) (Request, error) {
	req := Request{
		COP:                   m.COP,
		CollectionID:          m.Collection.ID,
		CollectionTitle:       m.Collection.Title,
		CollectionDescription: m.Collection.Description,
		Coverage:              m.Coverage.Enabled,
		DGGSSystem:            m.Coverage.System,
		ZoneID:                m.Coverage.ZoneID,
		CreateZip:             m.CreateZip,
	}
	for i, ml := range m.Layers {
		l, err := ml.load(baseDir)
		if err != nil {
			return Request{}, fmt.Errorf("layer %d (%s): %w", i, ml.Name, err)
		}
		req.Layers = append(req.Layers, l)
	}
	return req, nil
}

func (ml ManifestLayer) load(baseDir string) (Layer, error) {
	path := ml.Path
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	name := ml.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	var bound *orb.Bound
	if len(ml.BBox) > 0 {
		if len(ml.BBox) != 4 {
			return nil, fmt.Errorf("bbox needs 4 numbers, got %d", len(ml.BBox))
		}
		b := orb.Bound{Min: orb.Point{ml.BBox[0], ml.BBox[1]}, Max: orb.Point{ml.BBox[2], ml.BBox[3]}}
		bound = &b
	}

	switch strings.ToLower(ml.Kind) {
	case "", "vector", "feature":
		l, err := LoadVectorFile(path, name, ml.CRS)
		if err != nil {
			return nil, err
		}
		l.Extent = bound
		return l, nil
	case "imagery", "raster":
		if bound == nil {
			return nil, fmt.Errorf("imagery layers need a bbox")
		}
		return &ImageryLayer{Name: name, CRS: ml.CRS, Source: path, Extent: *bound}, nil
	default:
		return nil, fmt.Errorf("unknown layer kind %q", ml.Kind)
	}
}
