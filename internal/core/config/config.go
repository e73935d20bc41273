package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/mohammed-shakir/dggs-stac-export/internal/core/dggs"
	"github.com/mohammed-shakir/dggs-stac-export/internal/extent"
)

type DGGSCfg struct {
	BaseURL           string        `toml:"base_url"`
	Collection        string        `toml:"collection"`
	System            string        `toml:"system"`
	ZoneLevel         int           `toml:"zone_level"`
	Timeout           time.Duration `toml:"timeout"`
	MaxWorkers        int           `toml:"max_workers"`
	H3LocalBounds     bool          `toml:"h3_local_bounds"`
	ZoneListCacheSize int           `toml:"zone_list_cache_size"`
}

type CacheCfg struct {
	RedisAddr string        `toml:"redis_addr"`
	TTL       time.Duration `toml:"ttl"`
	OpTimeout time.Duration `toml:"op_timeout"`
}

type ExportCfg struct {
	OutputDir   string  `toml:"output_dir"`
	FlatGeobuf  bool    `toml:"flatgeobuf"`
	CopyImagery bool    `toml:"copy_imagery"`
	MaxWidth    float64 `toml:"max_width"`
	MaxHeight   float64 `toml:"max_height"`
}

type EventsCfg struct {
	Enabled bool   `toml:"enabled"`
	Brokers string `toml:"brokers"`
	Topic   string `toml:"topic"`
}

// InvalidationCfg drives the consumer that purges cached zones on upstream updates.
// It shares the broker list with EventsCfg.
type InvalidationCfg struct {
	Enabled bool   `toml:"enabled"`
	Topic   string `toml:"topic"`
	GroupID string `toml:"group_id"`
}

type Config struct {
	Addr           string    `toml:"addr"`
	LogLevel       string    `toml:"log_level"`
	LogConsole     bool      `toml:"log_console"`
	MetricsEnabled bool      `toml:"metrics_enabled"`
	DGGS           DGGSCfg   `toml:"dggs"`
	Cache          CacheCfg  `toml:"cache"`
	Export         ExportCfg `toml:"export"`
	Events         EventsCfg `toml:"events"`

	Invalidation InvalidationCfg `toml:"invalidation"`
}

func Defaults() Config {
	return Config{
		Addr:           ":8090",
		LogLevel:       "info",
		MetricsEnabled: true,
		DGGS: DGGSCfg{
			BaseURL:           dggs.DefaultBaseURL,
			Collection:        dggs.DefaultCollection,
			System:            dggs.DefaultSystem,
			ZoneLevel:         dggs.DefaultZoneLevel,
			Timeout:           30 * time.Second,
			MaxWorkers:        4,
			ZoneListCacheSize: 64,
		},
		Cache: CacheCfg{
			TTL:       10 * time.Minute,
			OpTimeout: 250 * time.Millisecond,
		},
		Export: ExportCfg{
			OutputDir: ".",
			MaxWidth:  extent.DefaultMaxWidth,
			MaxHeight: extent.DefaultMaxHeight,
		},
		Events: EventsCfg{
			Brokers: "localhost:9092",
			Topic:   "stac-cop-exports",
		},
		Invalidation: InvalidationCfg{
			Topic:   "dggs-zone-updates",
			GroupID: "copexport-cache",
		},
	}
}

func FromEnv() Config {
	return applyEnv(Defaults())
}

// Load reads an optional TOML file over the defaults; environment variables still win.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) != "" {
		md, err := toml.DecodeFile(path, &cfg)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			cfg = Defaults()
		case err != nil:
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		default:
			if und := md.Undecoded(); len(und) > 0 {
				return Config{}, fmt.Errorf("load config %s: unknown keys %v", path, und)
			}
		}
	}
	return applyEnv(cfg), nil
}

func applyEnv(c Config) Config {
	c.Addr = getenv("ADDR", c.Addr)
	c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)
	c.LogConsole = getbool("LOG_CONSOLE", c.LogConsole)
	c.MetricsEnabled = getbool("METRICS_ENABLED", c.MetricsEnabled)

	c.DGGS.BaseURL = getenv("DGGS_BASE_URL", c.DGGS.BaseURL)
	c.DGGS.Collection = getenv("DGGS_COLLECTION", c.DGGS.Collection)
	c.DGGS.System = getenv("DGGS_SYSTEM", c.DGGS.System)
	c.DGGS.ZoneLevel = getint("DGGS_ZONE_LEVEL", c.DGGS.ZoneLevel)
	c.DGGS.Timeout = getduration("DGGS_TIMEOUT", c.DGGS.Timeout)
	c.DGGS.MaxWorkers = getint("DGGS_MAX_WORKERS", c.DGGS.MaxWorkers)
	c.DGGS.H3LocalBounds = getbool("DGGS_H3_LOCAL_BOUNDS", c.DGGS.H3LocalBounds)
	c.DGGS.ZoneListCacheSize = getint("ZONE_LIST_CACHE_SIZE", c.DGGS.ZoneListCacheSize)

	c.Cache.RedisAddr = getenv("REDIS_ADDR", c.Cache.RedisAddr)
	c.Cache.TTL = getduration("ZONE_CACHE_TTL", c.Cache.TTL)
	c.Cache.OpTimeout = getduration("CACHE_OP_TIMEOUT", c.Cache.OpTimeout)

	c.Export.OutputDir = getenv("OUTPUT_DIR", c.Export.OutputDir)
	c.Export.FlatGeobuf = getbool("EXPORT_FLATGEOBUF", c.Export.FlatGeobuf)
	c.Export.CopyImagery = getbool("EXPORT_COPY_IMAGERY", c.Export.CopyImagery)
	c.Export.MaxWidth = getfloat("EXTENT_MAX_WIDTH", c.Export.MaxWidth)
	c.Export.MaxHeight = getfloat("EXTENT_MAX_HEIGHT", c.Export.MaxHeight)

	c.Events.Enabled = getbool("EVENTS_ENABLED", c.Events.Enabled)
	c.Events.Brokers = getenv("KAFKA_BROKERS", c.Events.Brokers)
	c.Events.Topic = getenv("KAFKA_TOPIC", c.Events.Topic)

	c.Invalidation.Enabled = getbool("INVALIDATION_ENABLED", c.Invalidation.Enabled)
	c.Invalidation.Topic = getenv("INVALIDATION_TOPIC", c.Invalidation.Topic)
	c.Invalidation.GroupID = getenv("KAFKA_GROUP_ID", c.Invalidation.GroupID)

	if c.DGGS.ZoneLevel < 0 {
		c.DGGS.ZoneLevel = dggs.DefaultZoneLevel
	}
	if c.DGGS.MaxWorkers < 1 {
		c.DGGS.MaxWorkers = 1
	}
	return c
}

// BrokerList splits the comma separated broker list, dropping blanks.
func (e EventsCfg) BrokerList() []string {
	var out []string
	for b := range strings.SplitSeq(e.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
