package main

import (
	"context"
	"log/slog"

	"github.com/mohammed-shakir/dggs-stac-export/internal/cache/redisstore"
	"github.com/mohammed-shakir/dggs-stac-export/internal/core/config"
	"github.com/mohammed-shakir/dggs-stac-export/internal/core/httpclient"
	"github.com/mohammed-shakir/dggs-stac-export/internal/coverage"
	"github.com/mohammed-shakir/dggs-stac-export/internal/dggsclient"
	"github.com/mohammed-shakir/dggs-stac-export/internal/events"
	h3mapper "github.com/mohammed-shakir/dggs-stac-export/internal/mapper/h3"
	"github.com/mohammed-shakir/dggs-stac-export/internal/zones"
)

// pipeline holds the DGGS collaborators shared by every subcommand.
type pipeline struct {
	client   *dggsclient.Client
	resolver *zones.Resolver
	agg      *coverage.Aggregator
	cache    *redisstore.Client
}

func newPipeline(ctx context.Context, cfg config.Config, log *slog.Logger) (*pipeline, error) {
	p := &pipeline{}

	var cache dggsclient.Cache
	if cfg.Cache.RedisAddr != "" {
		rc, err := redisstore.New(ctx, cfg.Cache.RedisAddr)
		if err != nil {
			// the cache only saves round trips, run without it
			log.Warn("zone cache unavailable", "addr", cfg.Cache.RedisAddr, "err", err)
		} else {
			p.cache = rc
			cache = rc
		}
	}

	p.client = dggsclient.New(log, httpclient.NewOutbound(cfg.DGGS.Timeout), dggsclient.Config{
		BaseURL:        cfg.DGGS.BaseURL,
		Collection:     cfg.DGGS.Collection,
		Timeout:        cfg.DGGS.Timeout,
		Cache:          cache,
		CacheTTL:       cfg.Cache.TTL,
		CacheOpTimeout: cfg.Cache.OpTimeout,
	})

	opts := []zones.Option{zones.WithListingCache(cfg.DGGS.ZoneListCacheSize)}
	if cfg.DGGS.H3LocalBounds {
		opts = append(opts, zones.WithBoundsFallback(h3mapper.New()))
	}
	r, err := zones.New(log, p.client, opts...)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.resolver = r

	p.agg = coverage.New(log, p.client, p.resolver,
		coverage.WithWorkers(cfg.DGGS.MaxWorkers),
		coverage.WithZoneLevel(cfg.DGGS.ZoneLevel),
	)
	return p, nil
}

func (p *pipeline) Close() {
	if p.cache != nil {
		_ = p.cache.Close()
	}
}

// newPublisher returns nil when events are disabled or the brokers are unreachable.
func newPublisher(cfg config.Config, log *slog.Logger) *events.Publisher {
	if !cfg.Events.Enabled {
		return nil
	}
	brokers := cfg.Events.BrokerList()
	if len(brokers) == 0 {
		log.Warn("events enabled without brokers")
		return nil
	}
	pub, err := events.NewPublisher(log, brokers, cfg.Events.Topic, 0)
	if err != nil {
		log.Warn("export events disabled", "err", err)
		return nil
	}
	return pub
}
