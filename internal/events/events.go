// Package events publishes export lifecycle events to Kafka.
package events

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
)

const DefaultTopic = "stac-cop-exports"

type ExportCompleted struct {
	ExportID   string    `json:"export_id"`
	Collection string    `json:"collection,omitempty"`
	Items      int       `json:"items"`
	Failed     int       `json:"failed,omitempty"`
	Archive    string    `json:"archive,omitempty"`
	SHA256     string    `json:"sha256,omitempty"`
	At         time.Time `json:"at"`
}

type Publisher struct {
	logger  *slog.Logger
	topic   string
	events  chan ExportCompleted
	prod    sarama.AsyncProducer
	stopped chan struct{}
}

func NewConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.ClientID = "copexport"
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	return cfg
}

func NewPublisher(logger *slog.Logger, brokers []string, topic string, queueSize int) (*Publisher, error) {
	prod, err := sarama.NewAsyncProducer(brokers, NewConfig())
	if err != nil {
		return nil, fmt.Errorf("events: create async producer: %w", err)
	}
	return NewWithProducer(logger, prod, topic, queueSize), nil
}

// NewWithProducer takes ownership of prod.
func NewWithProducer(logger *slog.Logger, prod sarama.AsyncProducer, topic string, queueSize int) *Publisher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	if topic == "" {
		topic = DefaultTopic
	}
	p := &Publisher{
		logger:  logger,
		topic:   topic,
		events:  make(chan ExportCompleted, queueSize),
		prod:    prod,
		stopped: make(chan struct{}),
	}

	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				p.logger.Error("events: marshal", "err", err)
				continue
			}
			p.prod.Input() <- &sarama.ProducerMessage{
				Topic: p.topic,
				Key:   sarama.StringEncoder(ev.ExportID),
				Value: sarama.ByteEncoder(b),
			}
		}
	}()

	go func() {
		for err := range p.prod.Errors() {
			if err != nil {
				p.logger.Warn("events: producer error", "err", err)
			}
		}
	}()

	return p
}

// Publish never blocks; events are dropped when the queue is full.
func (p *Publisher) Publish(ev ExportCompleted) {
	select {
	case p.events <- ev:
	default:
		p.logger.Warn("events: queue full, dropping", "export_id", ev.ExportID)
	}
}

func (p *Publisher) Close() error {
	close(p.events)
	<-p.stopped

	if err := p.prod.Close(); err != nil {
		return fmt.Errorf("events: close producer: %w", err)
	}
	return nil
}
