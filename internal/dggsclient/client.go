// Package dggsclient talks to a remote OGC API - DGGS service.
package dggsclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/dggs-stac-export/internal/core/dggs"
	"github.com/mohammed-shakir/dggs-stac-export/internal/core/httpclient"
	"github.com/mohammed-shakir/dggs-stac-export/internal/core/observability"
)

const maxExcerpt = 8 << 10

// Cache stores raw zone-data bodies. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

type Config struct {
	BaseURL    string
	Collection string
	// Timeout applies to each request separately.
	Timeout time.Duration

	Cache          Cache
	CacheTTL       time.Duration
	CacheOpTimeout time.Duration
}

type Client struct {
	logger     *slog.Logger
	http       *http.Client
	baseURL    string
	collection string
	timeout    time.Duration

	cache          Cache
	cacheTTL       time.Duration
	cacheOpTimeout time.Duration

	startNow func() time.Time // for tests
}

func New(logger *slog.Logger, hc *http.Client, cfg Config) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = httpclient.DefaultTimeout
	}
	if hc == nil {
		hc = httpclient.NewOutbound(cfg.Timeout)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = dggs.DefaultBaseURL
	}
	if cfg.Collection == "" {
		cfg.Collection = dggs.DefaultCollection
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	if cfg.CacheOpTimeout <= 0 {
		cfg.CacheOpTimeout = 250 * time.Millisecond
	}
	return &Client{
		logger:         logger,
		http:           hc,
		baseURL:        cfg.BaseURL,
		collection:     cfg.Collection,
		timeout:        cfg.Timeout,
		cache:          cfg.Cache,
		cacheTTL:       cfg.CacheTTL,
		cacheOpTimeout: cfg.CacheOpTimeout,
		startNow:       time.Now,
	}
}

func (c *Client) BaseURL() string    { return c.baseURL }
func (c *Client) Collection() string { return c.collection }

func (c *Client) ZoneDataURL(system, zoneID string) string {
	return dggs.ZoneDataURL(c.baseURL, c.collection, system, zoneID)
}

func (c *Client) ZonesListURL(system string, zoneLevel int) string {
	return dggs.ZonesListURL(c.baseURL, c.collection, system, zoneLevel)
}

// FetchJSON performs a single GET and returns the validated JSON body.
func (c *Client) FetchJSON(ctx context.Context, url string) (json.RawMessage, error) {
	return c.fetch(ctx, "json", url)
}

func (c *Client) fetch(ctx context.Context, endpoint, url string) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &TransportError{URL: url, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	start := c.startNow()
	resp, err := c.http.Do(req)
	observability.ObserveUpstreamLatency(endpoint, time.Since(start).Seconds())
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxExcerpt))
		return nil, &HTTPStatusError{URL: url, Code: resp.StatusCode, BodyExcerpt: string(b)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}
	var raw json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &DecodeError{URL: url, Err: err}
	}
	return raw, nil
}

// FetchZonesList returns the zone listing document for a system and level.
func (c *Client) FetchZonesList(ctx context.Context, system string, zoneLevel int) (json.RawMessage, error) {
	url := c.ZonesListURL(system, zoneLevel)
	c.logger.Debug("fetch zones list", "url", url)
	return c.fetch(ctx, "zones", url)
}

// FetchZoneData returns the features of one zone. A 404 is returned as an *HTTPStatusError;
// deciding that it means "no data" is left to the caller.
func (c *Client) FetchZoneData(ctx context.Context, system, zoneID string) (*geojson.FeatureCollection, error) {
	url := c.ZoneDataURL(system, zoneID)
	key := c.zoneKey(system, zoneID)

	if body, ok := c.cacheGet(ctx, key); ok {
		fc, err := geojson.UnmarshalFeatureCollection(body)
		if err == nil {
			return fc, nil
		}
		c.logger.Warn("discarding undecodable cache entry", "key", key, "err", err)
	}

	c.logger.Debug("query zone", "zone", zoneID, "url", url)
	raw, err := c.fetch(ctx, "zone_data", url)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, &DecodeError{URL: url, Err: err}
	}
	c.cacheSet(ctx, key, raw)
	return fc, nil
}

func (c *Client) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	if c.cache == nil {
		return nil, false
	}
	cctx, cancel := context.WithTimeout(ctx, c.cacheOpTimeout)
	defer cancel()

	b, ok, err := c.cache.Get(cctx, key)
	switch {
	case err != nil:
		observability.IncCacheResult("error")
		c.logger.Warn("zone cache get failed", "key", key, "err", err)
		return nil, false
	case !ok:
		observability.IncCacheResult("miss")
		return nil, false
	}
	observability.IncCacheResult("hit")
	return bytes.Clone(b), true
}

func (c *Client) cacheSet(ctx context.Context, key string, body []byte) {
	if c.cache == nil {
		return
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cacheOpTimeout)
	defer cancel()
	if err := c.cache.Set(cctx, key, body, c.cacheTTL); err != nil {
		c.logger.Warn("zone cache set failed", "key", key, "err", err)
	}
}
