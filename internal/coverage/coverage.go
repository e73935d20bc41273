// Package coverage fans zone-data queries out over the zones intersecting an extent and merges the results.
package coverage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/dggs-stac-export/internal/aggregate"
	"github.com/mohammed-shakir/dggs-stac-export/internal/aggregate/geojsonagg"
	"github.com/mohammed-shakir/dggs-stac-export/internal/atomicfile"
	"github.com/mohammed-shakir/dggs-stac-export/internal/core/dggs"
	"github.com/mohammed-shakir/dggs-stac-export/internal/core/observability"
	"github.com/mohammed-shakir/dggs-stac-export/internal/dggsclient"
	"github.com/mohammed-shakir/dggs-stac-export/internal/extent"
	mylog "github.com/mohammed-shakir/dggs-stac-export/internal/logger"
)

const DefaultWorkers = 4

type ZoneSource interface {
	FetchZoneData(ctx context.Context, system, zoneID string) (*geojson.FeatureCollection, error)
}

type ZoneResolver interface {
	ListZonesForExtent(ctx context.Context, ext extent.GeoExtent, system string, zoneLevel int) ([]string, error)
}

type Aggregator struct {
	logger    *slog.Logger
	source    ZoneSource
	resolver  ZoneResolver
	merger    aggregate.Interface
	workers   int
	zoneLevel int
}

type Option func(*Aggregator)

// WithWorkers bounds the number of zone fetches in flight.
func WithWorkers(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.workers = n
		}
	}
}

func WithZoneLevel(level int) Option {
	return func(a *Aggregator) {
		if level >= 0 {
			a.zoneLevel = level
		}
	}
}

// WithDedup drops repeated feature ids across zones, keeping the first.
func WithDedup(on bool) Option {
	return func(a *Aggregator) { a.merger = geojsonagg.New(on) }
}

func New(logger *slog.Logger, source ZoneSource, resolver ZoneResolver, opts ...Option) *Aggregator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	a := &Aggregator{
		logger:    logger,
		source:    source,
		resolver:  resolver,
		merger:    geojsonagg.New(false),
		workers:   DefaultWorkers,
		zoneLevel: dggs.DefaultZoneLevel,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// AtLevel returns a copy of a that resolves zones at level.
func (a *Aggregator) AtLevel(level int) *Aggregator {
	cp := *a
	if level >= 0 {
		cp.zoneLevel = level
	}
	return &cp
}

// QueryZoneData fetches one zone. A 404 means the zone has no data and yields an empty collection.
func (a *Aggregator) QueryZoneData(ctx context.Context, zoneID, system string) (*geojson.FeatureCollection, error) {
	ctx = mylog.WithZone(ctx, zoneID)
	fc, err := a.source.FetchZoneData(ctx, system, zoneID)
	switch {
	case dggsclient.IsNotFound(err):
		observability.IncZoneFetch(observability.ZoneMiss)
		a.logger.WarnContext(ctx, "no data available for zone", "zone", zoneID, "system", system)
		return geojson.NewFeatureCollection(), nil
	case err != nil:
		observability.IncZoneFetch(observability.ZoneError)
		return nil, err
	}
	observability.IncZoneFetch(observability.ZoneOK)
	if fc == nil {
		fc = geojson.NewFeatureCollection()
	}
	return fc, nil
}

// QueryCoverage returns the merged features of zoneID, or of every zone intersecting ext when
// zoneID is empty. Features keep resolver order regardless of fetch completion order. Any hard
// error or cancellation discards all partial results.
func (a *Aggregator) QueryCoverage(ctx context.Context, ext extent.GeoExtent, system, zoneID string) (*geojson.FeatureCollection, error) {
	var zones []string
	if zoneID != "" {
		zones = []string{zoneID}
	} else {
		var err error
		zones, err = a.resolver.ListZonesForExtent(ctx, ext, system, a.zoneLevel)
		if err != nil {
			return nil, &UpstreamError{Err: err}
		}
		if len(zones) == 0 {
			return nil, ErrNoZonesFound
		}
	}

	parts, err := a.fetchAll(ctx, zones, system)
	if err != nil {
		return nil, err
	}
	out := a.merger.Merge(parts)
	a.logger.Info("coverage done",
		"system", system,
		"zones", len(zones),
		"features", len(out.Features))
	return out, nil
}

func (a *Aggregator) fetchAll(parent context.Context, zones []string, system string) ([]*geojson.FeatureCollection, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	parts := make([]*geojson.FeatureCollection, len(zones))
	jobs := make(chan int)

	var (
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	workerN := min(a.workers, len(zones))
	var wg sync.WaitGroup
	wg.Add(workerN)
	for range workerN {
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					continue
				}
				fc, err := a.QueryZoneData(ctx, zones[i], system)
				if err != nil {
					fail(&UpstreamError{Zone: zones[i], Err: err})
					continue
				}
				parts[i] = fc
			}
		}()
	}

feed:
	for i := range zones {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := parent.Err(); err != nil {
		return nil, &UpstreamError{Err: err}
	}
	return parts, nil
}

// FetchAndPersist writes the coverage of ext as indented GeoJSON to dest. The file only appears
// once fully written.
func (a *Aggregator) FetchAndPersist(ctx context.Context, ext extent.GeoExtent, system, zoneID, dest string) error {
	fc, err := a.QueryCoverage(ctx, ext, system, zoneID)
	if err != nil {
		return &PersistError{Path: dest, Err: err}
	}
	if err := atomicfile.WriteJSON(dest, fc); err != nil {
		return &PersistError{Path: dest, Err: err}
	}
	a.logger.Info("coverage saved", "path", dest, "features", len(fc.Features))
	return nil
}

// Summarize never returns an error; failures are reported in the summary itself.
func (a *Aggregator) Summarize(ctx context.Context, ext extent.GeoExtent, system string) Summary {
	return a.SummarizeZone(ctx, ext, system, "")
}

// SummarizeZone is Summarize restricted to a single zone when zoneID is set.
func (a *Aggregator) SummarizeZone(ctx context.Context, ext extent.GeoExtent, system, zoneID string) Summary {
	fc, err := a.QueryCoverage(ctx, ext, system, zoneID)
	if err != nil {
		return Summary{Success: false, Error: errorText(err)}
	}
	zones := DistinctZoneIDs(fc)
	e := ext
	return Summary{
		Success:        true,
		ZoneCount:      len(zones),
		FeatureCount:   len(fc.Features),
		Zones:          zones,
		DGGSCRS:        system,
		Extent:         &e,
		ElevationStats: Elevation(fc),
	}
}

func errorText(err error) string {
	if errors.Is(err, ErrNoZonesFound) {
		return ErrNoZonesFound.Error()
	}
	return fmt.Sprint(err)
}
