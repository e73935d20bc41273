// Package stac builds STAC Items and Collections carrying the COP extension.
package stac

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/text/unicode/norm"

	"github.com/mohammed-shakir/dggs-stac-export/internal/extent"
)

// DatetimeLayout is fixed width so timestamps compare correctly as strings.
const DatetimeLayout = "2006-01-02T15:04:05.000000-07:00"

const CollectionFile = "collection.json"

type Synthesizer struct {
	now   func() time.Time
	newID func() string
}

type Option func(*Synthesizer)

func WithClock(now func() time.Time) Option {
	return func(s *Synthesizer) { s.now = now }
}

func WithIDs(newID func() string) Option {
	return func(s *Synthesizer) { s.newID = newID }
}

func New(opts ...Option) *Synthesizer {
	s := &Synthesizer{now: time.Now, newID: uuid.NewString}
	for _, o := range opts {
		o(s)
	}
	return s
}

var std = New()

// MakeItem describes one exported layer. selfHref defaults to "./{id}.json" when empty.
func MakeItem(ext extent.GeoExtent, kind AssetKind, assetHref, title string, cop COPMetadata, selfHref string) Item {
	return std.MakeItem(ext, kind, assetHref, title, cop, selfHref)
}

func MakeCollection(id, title, description string, items []Item) Collection {
	return std.MakeCollection(id, title, description, items)
}

func (s *Synthesizer) MakeItem(ext extent.GeoExtent, kind AssetKind, assetHref, title string, cop COPMetadata, selfHref string) Item {
	id := s.newID()
	if selfHref == "" {
		selfHref = "./" + id + ".json"
	}
	return Item{
		StacVersion:    Version,
		StacExtensions: []string{COPExtension},
		Type:           "Feature",
		ID:             id,
		BBox:           ext.BBox(),
		Geometry:       geojson.NewGeometry(orb.Polygon{ext.Ring()}),
		Properties: Properties{
			Datetime:        s.timestamp(),
			Title:           title,
			Mission:         strings.TrimSpace(cop.Mission),
			Classification:  strings.TrimSpace(cop.Classification),
			Releasability:   strings.TrimSpace(cop.Releasability),
			DGGSCRS:         strings.TrimSpace(cop.DGGSCRS),
			DGGSZoneID:      strings.TrimSpace(cop.DGGSZoneID),
			ServiceProvider: strings.TrimSpace(cop.ServiceProvider),
		},
		Assets: map[string]Asset{
			"data": {
				Href:      assetHref,
				Title:     title + " Data",
				Type:      kind.MediaType(),
				Roles:     []string{"data"},
				AssetType: kind.COPType(),
			},
		},
		Links: []Link{{Rel: "self", Href: selfHref}},
	}
}

// MakeCollection derives a collection from items as they are now. Items keep their order in the links.
func (s *Synthesizer) MakeCollection(id, title, description string, items []Item) Collection {
	bbox := []float64{-180, -90, 180, 90}
	var exts []extent.GeoExtent
	for _, it := range items {
		if len(it.BBox) != 4 {
			continue
		}
		e, err := extent.New(it.BBox[0], it.BBox[1], it.BBox[2], it.BBox[3])
		if err != nil {
			continue
		}
		exts = append(exts, e)
	}
	if all, ok := extent.CombineAll(exts...); ok {
		bbox = all.BBox()
	}

	var first, last string
	for _, it := range items {
		dt := it.Properties.Datetime
		if dt == "" {
			continue
		}
		if first == "" || dt < first {
			first = dt
		}
		if last == "" || dt > last {
			last = dt
		}
	}
	if first == "" {
		now := s.timestamp()
		first, last = now, now
	}

	self := "./" + CollectionFile
	links := []Link{
		{Rel: "self", Href: self},
		{Rel: "root", Href: self},
	}
	for _, it := range items {
		href := it.SelfHref()
		if href == "" {
			href = "./" + it.ID + ".json"
		}
		links = append(links, Link{Rel: "item", Href: href})
	}

	return Collection{
		StacVersion:    Version,
		StacExtensions: []string{COPExtension},
		Type:           "Collection",
		ID:             id,
		Title:          title,
		Description:    description,
		License:        License,
		Extent: Extent{
			Spatial:  SpatialExtent{BBox: [][]float64{bbox}},
			Temporal: TemporalExtent{Interval: [][]string{{first, last}}},
		},
		Links: links,
	}
}

func (s *Synthesizer) timestamp() string {
	return s.now().UTC().Format(DatetimeLayout)
}

// SanitizeID maps a layer name onto [a-z0-9_-], prefixing "item_" when the result would not
// start with a letter or digit.
func SanitizeID(name string) string {
	name = norm.NFC.String(name)
	var b strings.Builder
	b.Grow(len(name) + 5)
	for _, r := range name {
		if isAlnum(r) || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	out := b.String()
	first := []rune(out)
	if len(first) == 0 || !isAlnum(first[0]) {
		out = "item_" + out
	}
	return strings.ToLower(out)
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
