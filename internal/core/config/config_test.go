package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	c := FromEnv()
	if c.DGGS.BaseURL != "https://maps.gnosis.earth/ogcapi" || c.DGGS.Collection != "SRTM_ViewFinderPanorama" {
		t.Fatalf("dggs defaults=%+v", c.DGGS)
	}
	if c.DGGS.ZoneLevel != 2 || c.DGGS.Timeout != 30*time.Second || c.DGGS.MaxWorkers != 4 {
		t.Fatalf("dggs defaults=%+v", c.DGGS)
	}
	if c.Cache.RedisAddr != "" || c.Cache.TTL != 10*time.Minute {
		t.Fatalf("cache defaults=%+v", c.Cache)
	}
	if c.Export.MaxWidth != 180 || c.Export.MaxHeight != 90 || c.Export.OutputDir != "." {
		t.Fatalf("export defaults=%+v", c.Export)
	}
	if c.Events.Enabled || c.Events.Topic != "stac-cop-exports" {
		t.Fatalf("events defaults=%+v", c.Events)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("DGGS_SYSTEM", "H3")
	t.Setenv("DGGS_ZONE_LEVEL", "5")
	t.Setenv("DGGS_TIMEOUT", "2s")
	t.Setenv("DGGS_MAX_WORKERS", "0")
	t.Setenv("EXPORT_COPY_IMAGERY", "yes")
	t.Setenv("EXTENT_MAX_WIDTH", "360")
	t.Setenv("KAFKA_BROKERS", "a:9092, ,b:9092")
	t.Setenv("DGGS_H3_LOCAL_BOUNDS", "not-a-bool")

	c := FromEnv()
	if c.DGGS.System != "H3" || c.DGGS.ZoneLevel != 5 || c.DGGS.Timeout != 2*time.Second {
		t.Fatalf("dggs=%+v", c.DGGS)
	}
	if c.DGGS.MaxWorkers != 1 {
		t.Fatalf("workers should be clamped to 1, got %d", c.DGGS.MaxWorkers)
	}
	if !c.Export.CopyImagery || c.Export.MaxWidth != 360 {
		t.Fatalf("export=%+v", c.Export)
	}
	if c.DGGS.H3LocalBounds {
		t.Fatalf("unparseable bool should keep the default")
	}
	if got := c.Events.BrokerList(); !reflect.DeepEqual(got, []string{"a:9092", "b:9092"}) {
		t.Fatalf("brokers=%v", got)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "copexport.toml")
	body := `
log_level = "debug"

[dggs]
collection = "Elevation"
zone_level = 3

[cache]
redis_addr = "cache:6379"

[export]
flatgeobuf = true
`
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("DGGS_ZONE_LEVEL", "4")

	c, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.LogLevel != "debug" || c.DGGS.Collection != "Elevation" || c.Cache.RedisAddr != "cache:6379" || !c.Export.FlatGeobuf {
		t.Fatalf("file values not applied: %+v", c)
	}
	if c.DGGS.ZoneLevel != 4 {
		t.Fatalf("env should win over file, zone_level=%d", c.DGGS.ZoneLevel)
	}
	if c.DGGS.BaseURL == "" || c.DGGS.MaxWorkers != 4 {
		t.Fatalf("unset keys should keep defaults: %+v", c.DGGS)
	}
}

func TestLoad_MissingFileAndUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	c, err := Load(filepath.Join(dir, "absent.toml"))
	if err != nil {
		t.Fatalf("missing file: %v", err)
	}
	if c.DGGS.System != "rHEALPix" {
		t.Fatalf("system=%q", c.DGGS.System)
	}

	p := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(p, []byte("[dggs]\nsistem = \"H3\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(p); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestFromEnv_Invalidation(t *testing.T) {
	t.Setenv("INVALIDATION_ENABLED", "true")
	t.Setenv("KAFKA_GROUP_ID", "g1")
	c := FromEnv()
	if !c.Invalidation.Enabled || c.Invalidation.GroupID != "g1" || c.Invalidation.Topic != "dggs-zone-updates" {
		t.Fatalf("invalidation=%+v", c.Invalidation)
	}
}
