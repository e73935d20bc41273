package stac

import (
	"github.com/paulmach/orb/geojson"
)

const (
	Version      = "1.0.0"
	COPExtension = "https://stac-extensions.github.io/cop/v1.0.0/schema.json"
	License      = "proprietary"
)

// AssetKind selects how a layer's data asset is described.
type AssetKind int

const (
	KindFeature AssetKind = iota
	KindImagery
)

func (k AssetKind) MediaType() string {
	if k == KindImagery {
		return "image/tiff"
	}
	return "application/geo+json"
}

// COPType is the value of cop:asset_type.
func (k AssetKind) COPType() string {
	if k == KindImagery {
		return "imagery"
	}
	return "feature"
}

func (k AssetKind) String() string { return k.COPType() }

// COPMetadata holds the Common Operational Picture fields. Empty fields are left out of items.
type COPMetadata struct {
	Mission         string `json:"mission,omitempty" toml:"mission"`
	Classification  string `json:"classification,omitempty" toml:"classification"`
	Releasability   string `json:"releasability,omitempty" toml:"releasability"`
	DGGSCRS         string `json:"dggs_crs,omitempty" toml:"dggs_crs"`
	DGGSZoneID      string `json:"dggs_zone_id,omitempty" toml:"dggs_zone_id"`
	ServiceProvider string `json:"service_provider,omitempty" toml:"service_provider"`
}

type Item struct {
	StacVersion    string            `json:"stac_version"`
	StacExtensions []string          `json:"stac_extensions"`
	Type           string            `json:"type"`
	ID             string            `json:"id"`
	BBox           []float64         `json:"bbox"`
	Geometry       *geojson.Geometry `json:"geometry"`
	Properties     Properties        `json:"properties"`
	Assets         map[string]Asset  `json:"assets"`
	Links          []Link            `json:"links"`
}

type Properties struct {
	Datetime        string `json:"datetime"`
	Title           string `json:"title"`
	Mission         string `json:"cop:mission,omitempty"`
	Classification  string `json:"cop:classification,omitempty"`
	Releasability   string `json:"cop:releasability,omitempty"`
	DGGSCRS         string `json:"cop:dggs_crs,omitempty"`
	DGGSZoneID      string `json:"cop:dggs_zone_id,omitempty"`
	ServiceProvider string `json:"cop:service_provider,omitempty"`
}

type Asset struct {
	Href      string   `json:"href"`
	Title     string   `json:"title,omitempty"`
	Type      string   `json:"type"`
	Roles     []string `json:"roles"`
	AssetType string   `json:"cop:asset_type"`
}

type Link struct {
	Rel   string `json:"rel"`
	Href  string `json:"href"`
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`
}

type Collection struct {
	StacVersion    string   `json:"stac_version"`
	StacExtensions []string `json:"stac_extensions"`
	Type           string   `json:"type"`
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	License        string   `json:"license"`
	Extent         Extent   `json:"extent"`
	Links          []Link   `json:"links"`
}

type Extent struct {
	Spatial  SpatialExtent  `json:"spatial"`
	Temporal TemporalExtent `json:"temporal"`
}

type SpatialExtent struct {
	BBox [][]float64 `json:"bbox"`
}

type TemporalExtent struct {
	Interval [][]string `json:"interval"`
}

// SelfHref returns the href of the item's self link, if any.
func (it Item) SelfHref() string {
	for _, l := range it.Links {
		if l.Rel == "self" {
			return l.Href
		}
	}
	return ""
}

// DefaultCOP holds the field values an operator starts from.
func DefaultCOP() COPMetadata {
	return COPMetadata{
		Classification: "public release",
		Releasability:  "1:N",
		DGGSCRS:        "rHEALPix-R12",
	}
}
