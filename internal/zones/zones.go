// Package zones resolves which DGGS zones intersect a geographic extent using the remote zone listing.
package zones

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/dggs-stac-export/internal/dggsclient"
	"github.com/mohammed-shakir/dggs-stac-export/internal/extent"
)

// Lister fetches zone listing documents.
type Lister interface {
	FetchZonesList(ctx context.Context, system string, zoneLevel int) (json.RawMessage, error)
	ZonesListURL(system string, zoneLevel int) string
}

// BoundsSource supplies bounds for zones whose listing entry carries none.
type BoundsSource interface {
	ZoneBounds(zoneID string) (extent.GeoExtent, bool)
}

// Zone is one entry of a zone listing. Bounds is nil when the listing did not carry all four edges.
type Zone struct {
	ID     string
	Bounds *extent.GeoExtent
}

// bound property names, first present wins per axis
var (
	minLatKeys = []string{"min_lat", "min_latitude"}
	maxLatKeys = []string{"max_lat", "max_latitude"}
	minLonKeys = []string{"min_lon", "min_longitude"}
	maxLonKeys = []string{"max_lon", "max_longitude"}
)

type Resolver struct {
	logger   *slog.Logger
	lister   Lister
	listings *lru.Cache[string, []Zone]
	fallback BoundsSource
}

type Option func(*Resolver) error

// WithListingCache memoizes up to size parsed listings keyed by request URL.
func WithListingCache(size int) Option {
	return func(r *Resolver) error {
		if size <= 0 {
			return nil
		}
		c, err := lru.New[string, []Zone](size)
		if err != nil {
			return fmt.Errorf("listing cache: %w", err)
		}
		r.listings = c
		return nil
	}
}

// WithBoundsFallback is consulted for zones listed without bounds; zones it cannot place are still included.
func WithBoundsFallback(b BoundsSource) Option {
	return func(r *Resolver) error {
		r.fallback = b
		return nil
	}
}

func New(logger *slog.Logger, lister Lister, opts ...Option) (*Resolver, error) {
	if lister == nil {
		return nil, fmt.Errorf("zones: nil lister")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r := &Resolver{logger: logger, lister: lister}
	for _, o := range opts {
		if err := o(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ListZonesForExtent returns the ids of listed zones intersecting ext, in listing order.
// Zones without bounds are always included.
func (r *Resolver) ListZonesForExtent(ctx context.Context, ext extent.GeoExtent, system string, zoneLevel int) ([]string, error) {
	listing, err := r.listing(ctx, system, zoneLevel)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(listing))
	for _, z := range listing {
		b := z.Bounds
		if b == nil && r.fallback != nil {
			if fb, ok := r.fallback.ZoneBounds(z.ID); ok {
				b = &fb
			}
		}
		if b == nil || ext.Intersects(*b) {
			out = append(out, z.ID)
		}
	}
	r.logger.Debug("zones resolved",
		"system", system,
		"level", zoneLevel,
		"listed", len(listing),
		"matched", len(out))
	return out, nil
}

func (r *Resolver) listing(ctx context.Context, system string, zoneLevel int) ([]Zone, error) {
	url := r.lister.ZonesListURL(system, zoneLevel)
	if r.listings != nil {
		if zs, ok := r.listings.Get(url); ok {
			return zs, nil
		}
	}

	raw, err := r.lister.FetchZonesList(ctx, system, zoneLevel)
	if err != nil {
		return nil, fmt.Errorf("list zones: %w", err)
	}
	zs, err := ParseListing(raw)
	if err != nil {
		return nil, fmt.Errorf("list zones: %w", &dggsclient.DecodeError{URL: url, Err: err})
	}
	r.logger.Info("zone listing fetched", "url", url, "zones", len(zs))
	if r.listings != nil {
		r.listings.Add(url, zs)
	}
	return zs, nil
}

// ParseListing extracts zones from a zone listing FeatureCollection. Features without an id are skipped.
func ParseListing(raw []byte) ([]Zone, error) {
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, err
	}
	out := make([]Zone, 0, len(fc.Features))
	for _, f := range fc.Features {
		id := idString(f.ID)
		if id == "" {
			continue
		}
		out = append(out, Zone{ID: id, Bounds: boundsFrom(f.Properties)})
	}
	return out, nil
}

func boundsFrom(props geojson.Properties) *extent.GeoExtent {
	minLat, ok1 := firstNumber(props, minLatKeys)
	maxLat, ok2 := firstNumber(props, maxLatKeys)
	minLon, ok3 := firstNumber(props, minLonKeys)
	maxLon, ok4 := firstNumber(props, maxLonKeys)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil
	}
	ge, err := extent.New(minLon, minLat, maxLon, maxLat)
	if err != nil {
		// malformed bounds are treated like missing ones
		return nil
	}
	return &ge
}

func firstNumber(props geojson.Properties, keys []string) (float64, bool) {
	for _, k := range keys {
		v, ok := props[k]
		if !ok || v == nil {
			continue
		}
		return toFloat(v)
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	case int:
		return float64(t), true
	default:
		return 0, false
	}
}

func idString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
