package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	obs "github.com/mohammed-shakir/dggs-stac-export/internal/core/observability"
	"github.com/mohammed-shakir/dggs-stac-export/internal/extent"
	"github.com/mohammed-shakir/dggs-stac-export/internal/invalidation"
	mylog "github.com/mohammed-shakir/dggs-stac-export/internal/logger"
)

// Purger drops cached zone data.
type Purger interface {
	Forget(ctx context.Context, system string, zoneIDs ...string) error
}

// ZoneResolver turns a bbox update into zone ids.
type ZoneResolver interface {
	ListZonesForExtent(ctx context.Context, ext extent.GeoExtent, system string, zoneLevel int) ([]string, error)
}

type Consumer struct {
	cfg       Config
	logger    *slog.Logger
	purger    Purger
	resolver  ZoneResolver
	zoneLevel int
	seen      *seqDedupe
}

func New(cfg Config, logger *slog.Logger, p Purger, r ZoneResolver, defaultLevel int) *Consumer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Consumer{
		cfg:       cfg,
		logger:    logger,
		purger:    p,
		resolver:  r,
		zoneLevel: defaultLevel,
		seen:      newSeqDedupe(cfg.DedupeSize),
	}
}

// consumes zone update events from kafka until ctx is done
func (c *Consumer) Start(ctx context.Context) error {
	if c.purger == nil || c.resolver == nil {
		return errors.New("kafkaconsumer: missing dependencies (purger/resolver)")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.ClientID = "copexport"
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	ctx = mylog.WithComponent(ctx, "zone_invalidation")
	handler := &groupHandler{process: c.ProcessOne}

	c.logger.InfoContext(ctx, "zone invalidation consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "zone invalidation consumer shutting down")
			return nil
		default:
			if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
				c.logger.ErrorContext(ctx, "kafka consumer error", "topic", c.cfg.Topic, "err", err)
				select {
				case <-ctx.Done():
				case <-time.After(2 * time.Second):
				}
			}
		}
	}
}

// ProcessOne purges the zones named by one message. Malformed events are logged and skipped;
// only purge and resolution failures are returned so the message is redelivered.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	start := time.Now()
	defer func() { obs.ObserveUpstreamLatency("invalidation", time.Since(start).Seconds()) }()

	var ev invalidation.ZoneUpdate
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		obs.IncInvalidation("decode")
		c.logger.ErrorContext(ctx, "undecodable zone update",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
		return nil
	}
	if err := ev.Validate(); err != nil {
		obs.IncInvalidation("invalid")
		c.logger.WarnContext(ctx, "invalid zone update", "offset", msg.Offset, "err", err)
		return nil
	}

	zones, err := c.zonesFor(ctx, ev)
	if err != nil {
		obs.IncInvalidation("resolve")
		return fmt.Errorf("resolve zones: %w", err)
	}

	fresh := zones[:0:0]
	for _, z := range zones {
		if c.seen.shouldApply(ev.System+"/"+z, ev.Seq) {
			fresh = append(fresh, z)
		}
	}
	if len(fresh) == 0 {
		obs.IncInvalidation("stale")
		c.logger.DebugContext(ctx, "no zones to purge", "dggs", ev.System, "op", ev.Op)
		return nil
	}

	if err := c.purger.Forget(ctx, ev.System, fresh...); err != nil {
		obs.IncInvalidation("purge")
		return fmt.Errorf("purge: %w", err)
	}
	for _, z := range fresh {
		c.seen.commit(ev.System+"/"+z, ev.Seq)
	}
	obs.IncInvalidation("ok")
	c.logger.InfoContext(ctx, "purged cached zones", "dggs", ev.System, "op", ev.Op, "zones", len(fresh))
	return nil
}

func (c *Consumer) zonesFor(ctx context.Context, ev invalidation.ZoneUpdate) ([]string, error) {
	if len(ev.Zones) > 0 {
		return ev.Zones, nil
	}
	ext, err := ev.Extent()
	if err != nil {
		return nil, err
	}
	level := c.zoneLevel
	if ev.Level > 0 {
		level = ev.Level
	}
	return c.resolver.ListZonesForExtent(ctx, ext, ev.System, level)
}
