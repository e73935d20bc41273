package dggsclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/mohammed-shakir/dggs-stac-export/internal/cache/keys"
)

var ErrCacheUnsupported = errors.New("zone cache not configured or lacks bulk operations")

type bulkCache interface {
	MGet(ctx context.Context, keys []string) (map[string][]byte, error)
}

type purgeableCache interface {
	Del(ctx context.Context, keys ...string) error
}

func (c *Client) zoneKey(system, zoneID string) string {
	return keys.ZoneDataKey(c.collection, system, zoneID, c.ZoneDataURL(system, zoneID))
}

// CachedZones reports which of zoneIDs currently have a cached zone-data body.
func (c *Client) CachedZones(ctx context.Context, system string, zoneIDs []string) (map[string]bool, error) {
	bc, ok := c.cache.(bulkCache)
	if !ok {
		return nil, ErrCacheUnsupported
	}
	byKey := make(map[string]string, len(zoneIDs))
	ks := make([]string, 0, len(zoneIDs))
	for _, z := range zoneIDs {
		k := c.zoneKey(system, z)
		byKey[k] = z
		ks = append(ks, k)
	}

	cctx, cancel := context.WithTimeout(ctx, c.cacheOpTimeout)
	defer cancel()
	found, err := bc.MGet(cctx, ks)
	if err != nil {
		return nil, fmt.Errorf("cache lookup: %w", err)
	}
	out := make(map[string]bool, len(zoneIDs))
	for _, z := range zoneIDs {
		out[z] = false
	}
	for k := range found {
		out[byKey[k]] = true
	}
	return out, nil
}

// Forget drops cached zone-data bodies so the next fetch goes upstream.
func (c *Client) Forget(ctx context.Context, system string, zoneIDs ...string) error {
	if len(zoneIDs) == 0 {
		return nil
	}
	pc, ok := c.cache.(purgeableCache)
	if !ok {
		return ErrCacheUnsupported
	}
	ks := make([]string, 0, len(zoneIDs))
	for _, z := range zoneIDs {
		ks = append(ks, c.zoneKey(system, z))
	}
	cctx, cancel := context.WithTimeout(ctx, c.cacheOpTimeout)
	defer cancel()
	if err := pc.Del(cctx, ks...); err != nil {
		return fmt.Errorf("cache purge: %w", err)
	}
	return nil
}
