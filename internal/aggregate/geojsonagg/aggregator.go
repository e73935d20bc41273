package geojsonagg

import (
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/dggs-stac-export/internal/aggregate"
)

type Aggregator struct {
	DeduplicateByID bool
}

var _ aggregate.Interface = (*Aggregator)(nil)

func New(dedup bool) *Aggregator {
	return &Aggregator{DeduplicateByID: dedup}
}

// Merge concatenates the features of parts in order. Nil parts contribute nothing. With
// DeduplicateByID the first feature carrying a given id wins; features without an id are always kept.
func (a *Aggregator) Merge(parts []*geojson.FeatureCollection) *geojson.FeatureCollection {
	out := geojson.NewFeatureCollection()
	n := 0
	for _, p := range parts {
		if p != nil {
			n += len(p.Features)
		}
	}
	out.Features = make([]*geojson.Feature, 0, n)

	seen := map[string]struct{}{} // used for deduplication by id if enabled
	for _, p := range parts {
		if p == nil {
			continue
		}
		for _, f := range p.Features {
			if f == nil {
				continue
			}
			if a.DeduplicateByID {
				if key := canonicalIDKey(f.ID); key != "" {
					if _, dup := seen[key]; dup {
						continue
					}
					seen[key] = struct{}{}
				}
			}
			out.Features = append(out.Features, f)
		}
	}
	return out
}

// string and numeric ids never collide
func canonicalIDKey(id any) string {
	switch t := id.(type) {
	case nil:
		return ""
	case string:
		if strings.TrimSpace(t) == "" {
			return ""
		}
		return "s:" + t
	case float64:
		return "n:" + strconv.FormatFloat(t, 'g', -1, 64)
	case int:
		return "n:" + strconv.Itoa(t)
	default:
		return ""
	}
}
