package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/dggs-stac-export/internal/core/dggs"
	"github.com/mohammed-shakir/dggs-stac-export/internal/coverage"
	"github.com/mohammed-shakir/dggs-stac-export/internal/extent"
)

// Service answers coverage questions for a validated query.
type Service interface {
	Summary(ctx context.Context, q Query) coverage.Summary
	Zones(ctx context.Context, q Query) ([]string, error)
}

// Backend adapts the coverage aggregator and zone resolver to Service.
type Backend struct {
	Aggregator *coverage.Aggregator
	Resolver   coverage.ZoneResolver
}

func (b Backend) Summary(ctx context.Context, q Query) coverage.Summary {
	return b.Aggregator.AtLevel(q.Level).SummarizeZone(ctx, q.Extent, q.System, q.ZoneID)
}

func (b Backend) Zones(ctx context.Context, q Query) ([]string, error) {
	return b.Resolver.ListZonesForExtent(ctx, q.Extent, q.System, q.Level)
}

// Defaults fill in parameters the caller left out.
type Defaults struct {
	System    string
	Level     int
	MaxWidth  float64
	MaxHeight float64
}

type Query struct {
	Extent extent.GeoExtent
	System string
	ZoneID string
	Level  int
}

// validates input query params and calls the service
func HandleCoverage(logger *slog.Logger, def Defaults, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := ParseQuery(r, def)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s := svc.Summary(r.Context(), q)
		status := http.StatusOK
		if !s.Success {
			status = http.StatusBadGateway
			if s.Error == coverage.ErrNoZonesFound.Error() {
				status = http.StatusNotFound
			}
			logger.WarnContext(r.Context(), "coverage failed", "system", q.System, "extent", q.Extent.String(), "err", s.Error)
		}
		writeJSON(w, status, s)
	}
}

type zonesResponse struct {
	System string   `json:"dggs_crs"`
	Level  int      `json:"zone_level"`
	Zones  []string `json:"zones"`
}

func HandleZones(logger *slog.Logger, def Defaults, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := ParseQuery(r, def)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		zs, err := svc.Zones(r.Context(), q)
		if err != nil {
			logger.WarnContext(r.Context(), "zone listing failed", "system", q.System, "err", err)
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		if zs == nil {
			zs = []string{}
		}
		writeJSON(w, http.StatusOK, zonesResponse{System: q.System, Level: q.Level, Zones: zs})
	}
}

func HandleSystems() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string][]string{"systems": dggs.AvailableSystems()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ParseQuery reads bbox, dggs, zone and level from the query string.
func ParseQuery(r *http.Request, def Defaults) (Query, error) {
	v := r.URL.Query()

	rawBBox := strings.TrimSpace(v.Get("bbox"))
	if rawBBox == "" {
		return Query{}, errors.New("missing required parameter: bbox")
	}
	ext, err := ParseBBox(rawBBox)
	if err != nil {
		return Query{}, fmt.Errorf("invalid bbox: %w", err)
	}
	ext = extent.ClampToDGGSBounds(ext)
	if err := extent.ValidateSize(ext, def.MaxWidth, def.MaxHeight); err != nil {
		return Query{}, err
	}

	system := strings.TrimSpace(v.Get("dggs"))
	if system == "" {
		system = def.System
	}
	if !dggs.KnownSystem(system) {
		return Query{}, fmt.Errorf("unknown DGGS %q", system)
	}

	level := def.Level
	if raw := strings.TrimSpace(v.Get("level")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return Query{}, fmt.Errorf("invalid level %q", raw)
		}
		level = n
	}

	return Query{
		Extent: ext,
		System: system,
		ZoneID: strings.TrimSpace(v.Get("zone")),
		Level:  level,
	}, nil
}

// ParseBBox accepts minLon,minLat,maxLon,maxLat with an optional trailing EPSG:4326.
func ParseBBox(bboxParam string) (extent.GeoExtent, error) {
	parts := strings.Split(bboxParam, ",")
	if len(parts) != 4 && len(parts) != 5 {
		return extent.GeoExtent{}, errors.New("expected 4 comma-separated values: minLon,minLat,maxLon,maxLat")
	}
	if len(parts) == 5 {
		if crs := strings.ToUpper(strings.TrimSpace(parts[4])); !extent.IsWGS84(crs) {
			return extent.GeoExtent{}, fmt.Errorf("only EPSG:4326 is supported (got %q)", crs)
		}
	}
	var f [4]float64
	for i, name := range []string{"minLon", "minLat", "maxLon", "maxLat"} {
		n, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return extent.GeoExtent{}, fmt.Errorf("%s: %w", name, err)
		}
		f[i] = n
	}
	if f[0] < -180 || f[2] > 180 || f[1] < -90 || f[3] > 90 {
		return extent.GeoExtent{}, errors.New("coordinates must lie within [-180,-90,180,90]")
	}
	return extent.New(f[0], f[1], f[2], f[3])
}
