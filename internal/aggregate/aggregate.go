// Package aggregate defines how per-zone feature collections are combined.
package aggregate

import "github.com/paulmach/orb/geojson"

type Interface interface {
	Merge(parts []*geojson.FeatureCollection) *geojson.FeatureCollection
}
