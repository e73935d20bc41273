package kafkaconsumer

import (
	"time"
)

type Config struct {
	Brokers             []string
	Topic               string
	GroupID             string
	SessionTimeout      time.Duration
	Heartbeat           time.Duration
	RebalanceTimeout    time.Duration
	InitialOffsetOldest bool
	// DedupeSize bounds the per-zone sequence memory.
	DedupeSize int
}

// NewConfig fills the group timeouts with the values used in production.
func NewConfig(brokers []string, topic, groupID string) Config {
	if topic == "" {
		topic = "dggs-zone-updates"
	}
	if groupID == "" {
		groupID = "copexport-cache"
	}
	return Config{
		Brokers:             brokers,
		Topic:               topic,
		GroupID:             groupID,
		SessionTimeout:      30 * time.Second,
		Heartbeat:           3 * time.Second,
		RebalanceTimeout:    30 * time.Second,
		InitialOffsetOldest: false,
		DedupeSize:          4096,
	}
}
