package coverage

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/dggs-stac-export/internal/extent"
)

// Summary describes one coverage query. It is recomputed on every query.
type Summary struct {
	Success        bool              `json:"success"`
	Error          string            `json:"error,omitempty"`
	ZoneCount      int               `json:"zone_count"`
	FeatureCount   int               `json:"feature_count"`
	Zones          []string          `json:"zones"`
	DGGSCRS        string            `json:"dggs_crs,omitempty"`
	Extent         *extent.GeoExtent `json:"extent,omitempty"`
	ElevationStats *ElevationStats   `json:"elevation_stats,omitempty"`
}

// MarshalJSON always writes zones for a successful summary, even when no feature matched.
// A failed summary carries no zones.
func (s Summary) MarshalJSON() ([]byte, error) {
	type plain Summary
	if !s.Success {
		return json.Marshal(struct {
			plain
			Zones []string `json:"zones,omitempty"`
		}{plain: plain(s)})
	}
	if s.Zones == nil {
		s.Zones = []string{}
	}
	return json.Marshal(plain(s))
}

type ElevationStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int     `json:"count"`
}

var (
	zoneIDKeys    = []string{"dggs_zone_id", "zone_id"}
	elevationKeys = []string{"elevation", "height"}
)

// DistinctZoneIDs returns the sorted set of zone ids referenced by fc's features, probing
// dggs_zone_id, then zone_id, then the feature id.
func DistinctZoneIDs(fc *geojson.FeatureCollection) []string {
	if fc == nil {
		return []string{}
	}
	seen := make(map[string]struct{})
	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		id := ""
		for _, k := range zoneIDKeys {
			if id = asID(f.Properties[k]); id != "" {
				break
			}
		}
		if id == "" {
			id = asID(f.ID)
		}
		if id != "" {
			seen[id] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Elevation scans features for the first present elevation key. Values that are not finite
// numbers are skipped. Returns nil when no feature carries one.
func Elevation(fc *geojson.FeatureCollection) *ElevationStats {
	if fc == nil {
		return nil
	}
	var st *ElevationStats
	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		v, ok := elevationOf(f.Properties)
		if !ok {
			continue
		}
		if st == nil {
			st = &ElevationStats{Min: v, Max: v}
		}
		st.Min = math.Min(st.Min, v)
		st.Max = math.Max(st.Max, v)
		st.Count++
	}
	return st
}

func elevationOf(props geojson.Properties) (float64, bool) {
	for _, k := range elevationKeys {
		raw, ok := props[k]
		if !ok {
			continue
		}
		v, ok := number(raw)
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	}
	return 0, false
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func asID(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
