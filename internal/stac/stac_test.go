package stac

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mohammed-shakir/dggs-stac-export/internal/extent"
)

func fixedClock(ts ...time.Time) func() time.Time {
	i := 0
	return func() time.Time {
		t := ts[min(i, len(ts)-1)]
		i++
		return t
	}
}

func TestMakeItem_ShapeAndKeys(t *testing.T) {
	now := time.Date(2024, 5, 6, 7, 8, 9, 123456000, time.FixedZone("CEST", 2*3600))
	s := New(WithClock(fixedClock(now)))
	ext := extent.MustNew(-122.5, 37.7, -122.3, 37.9)

	it := s.MakeItem(ext, KindFeature, "assets/roads.geojson", "Roads",
		COPMetadata{Mission: "", Classification: "public release"}, "")

	if _, err := uuid.Parse(it.ID); err != nil {
		t.Fatalf("id %q is not a uuid: %v", it.ID, err)
	}
	if !reflect.DeepEqual(it.BBox, []float64{-122.5, 37.7, -122.3, 37.9}) {
		t.Fatalf("bbox=%v", it.BBox)
	}

	b, err := json.Marshal(it)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, k := range []string{"stac_version", "stac_extensions", "type", "id", "bbox", "geometry", "properties", "assets", "links"} {
		if _, ok := doc[k]; !ok {
			t.Fatalf("missing key %q in %s", k, b)
		}
	}
	if len(doc) != 9 {
		t.Fatalf("unexpected extra keys: %s", b)
	}

	var props map[string]any
	_ = json.Unmarshal(doc["properties"], &props)
	if props["cop:classification"] != "public release" {
		t.Fatalf("classification missing: %v", props)
	}
	for _, k := range []string{"cop:mission", "cop:releasability", "cop:dggs_crs", "cop:dggs_zone_id", "cop:service_provider"} {
		if _, ok := props[k]; ok {
			t.Fatalf("%s should be omitted: %v", k, props)
		}
	}
	if props["datetime"] != "2024-05-06T05:08:09.123456+00:00" {
		t.Fatalf("datetime=%v", props["datetime"])
	}

	var geom struct {
		Type        string          `json:"type"`
		Coordinates [][][2]float64 `json:"coordinates"`
	}
	_ = json.Unmarshal(doc["geometry"], &geom)
	wantRing := [][2]float64{{-122.5, 37.7}, {-122.3, 37.7}, {-122.3, 37.9}, {-122.5, 37.9}, {-122.5, 37.7}}
	if geom.Type != "Polygon" || len(geom.Coordinates) != 1 || !reflect.DeepEqual(geom.Coordinates[0], wantRing) {
		t.Fatalf("geometry=%s", doc["geometry"])
	}

	a := it.Assets["data"]
	if a.Type != "application/geo+json" || a.AssetType != "feature" || a.Title != "Roads Data" || a.Href != "assets/roads.geojson" {
		t.Fatalf("asset=%+v", a)
	}
	if it.SelfHref() != "./"+it.ID+".json" {
		t.Fatalf("self=%q", it.SelfHref())
	}
}

func TestMakeItem_ImageryAndUniqueIDs(t *testing.T) {
	ext := extent.MustNew(0, 0, 1, 1)
	a := MakeItem(ext, KindImagery, "dem.tif", "DEM", COPMetadata{}, "./dem.json")
	b := MakeItem(ext, KindImagery, "dem.tif", "DEM", COPMetadata{}, "./dem.json")
	if a.ID == b.ID {
		t.Fatalf("ids must differ")
	}
	if a.Assets["data"].Type != "image/tiff" || a.Assets["data"].AssetType != "imagery" {
		t.Fatalf("asset=%+v", a.Assets["data"])
	}
	if a.SelfHref() != "./dem.json" {
		t.Fatalf("self=%q", a.SelfHref())
	}
}

func TestMakeCollection_ExtentAndLinks(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	n := 0
	s := New(WithClock(fixedClock(t2, t1)), WithIDs(func() string { n++; return fmt.Sprintf("id-%d", n) }))

	first := s.MakeItem(extent.MustNew(0, 0, 1, 1), KindFeature, "a", "A", COPMetadata{}, "./a.json")
	second := s.MakeItem(extent.MustNew(-1, -1, 0, 0), KindFeature, "b", "B", COPMetadata{}, "./b.json")

	c := s.MakeCollection("op-test", "OP", "desc", []Item{first, second})
	if !reflect.DeepEqual(c.Extent.Spatial.BBox, [][]float64{{-1, -1, 1, 1}}) {
		t.Fatalf("spatial=%v", c.Extent.Spatial.BBox)
	}
	want := [][]string{{t1.Format(DatetimeLayout), t2.Format(DatetimeLayout)}}
	if !reflect.DeepEqual(c.Extent.Temporal.Interval, want) {
		t.Fatalf("temporal=%v want %v", c.Extent.Temporal.Interval, want)
	}
	wantLinks := []Link{
		{Rel: "self", Href: "./collection.json"},
		{Rel: "root", Href: "./collection.json"},
		{Rel: "item", Href: "./a.json"},
		{Rel: "item", Href: "./b.json"},
	}
	if !reflect.DeepEqual(c.Links, wantLinks) {
		t.Fatalf("links=%+v", c.Links)
	}
	if c.License != "proprietary" || c.Type != "Collection" || c.StacVersion != "1.0.0" {
		t.Fatalf("collection header=%+v", c)
	}
}

func TestMakeCollection_EmptyDefaults(t *testing.T) {
	now := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	c := New(WithClock(fixedClock(now))).MakeCollection("c", "t", "d", nil)
	if !reflect.DeepEqual(c.Extent.Spatial.BBox, [][]float64{{-180, -90, 180, 90}}) {
		t.Fatalf("spatial=%v", c.Extent.Spatial.BBox)
	}
	ts := "2025-02-03T04:05:06.000000+00:00"
	if !reflect.DeepEqual(c.Extent.Temporal.Interval, [][]string{{ts, ts}}) {
		t.Fatalf("temporal=%v", c.Extent.Temporal.Interval)
	}
	if len(c.Links) != 2 {
		t.Fatalf("links=%v", c.Links)
	}
}

func TestSanitizeID(t *testing.T) {
	cases := map[string]string{
		"Roads Layer":     "roads_layer",
		"DEM-2024_v1":     "dem-2024_v1",
		"_hidden":         "item__hidden",
		"-dash":           "item_-dash",
		"(copy) Rivers":   "item__copy__rivers",
		"Cafe\u0301 Map":   "caf\u00e9_map",
		"weird/..\\name":  "weird____name",
		"":                "item_",
		"\u00c5\u00c4\u00d6":  "\u00e5\u00e4\u00f6",
	}
	for in, want := range cases {
		if got := SanitizeID(in); got != want {
			t.Errorf("SanitizeID(%q)=%q want %q", in, got, want)
		}
	}
	if got := SanitizeID("A.B"); strings.ContainsAny(got, ". ") {
		t.Fatalf("dots must be replaced: %q", got)
	}
}
