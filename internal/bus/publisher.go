// Package bus publishes normalized records to the Kafka-compatible
// ingestion bus. Enqueue never blocks the caller: a bounded channel sits
// between publishers and a single writer goroutine per Publisher, which is
// how this replaces the source's detached fire-and-forget task per publish
// (see DESIGN.md) while still bounding memory under a slow or down broker.
package bus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/quikmile/gpsingest/internal/metrics"
)

const queueCapacity = 1024

type outbound struct {
	topic string
	key   []byte
	value []byte
}

// Publisher is the single shared sink every Session publishes through.
type Publisher struct {
	writers map[string]*kafka.Writer
	queue   chan outbound
	metrics *metrics.Registry
	log     zerolog.Logger
}

// New dials no connections eagerly; kafka-go writers connect lazily on
// first write. One writer per fixed topic, as the source maps 1:1 between
// logical topic and destination.
func New(broker string, m *metrics.Registry, log zerolog.Logger) *Publisher {
	writers := make(map[string]*kafka.Writer, 3)
	for _, topic := range []string{TopicEvents, TopicLocation, TopicStatus} {
		writers[topic] = &kafka.Writer{
			Addr:         kafka.TCP(broker),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		}
	}

	p := &Publisher{
		writers: writers,
		queue:   make(chan outbound, queueCapacity),
		metrics: m,
		log:     log,
	}
	go p.run()
	return p
}

// Publish enriches and enqueues a record: a JSON object record that lacks
// "imei" gets the caller's imei, and one with no (or a zero) "timestamp"
// gets the current time in seconds since epoch. imei must already be known to
// the caller (the session gates on login before calling this); a record
// published with no IMEI is dropped and logged, matching the source's
// "unknown device" warning rather than publishing an unattributable record.
func (p *Publisher) Publish(topic, imei string, record any) {
	if imei == "" {
		p.log.Warn().Str("topic", topic).Msg("dropping publish: unknown device")
		p.metrics.PublishesDropped.WithLabelValues(topic).Inc()
		return
	}

	value, err := json.Marshal(record)
	if err != nil {
		p.log.Error().Err(err).Str("topic", topic).Msg("failed to marshal record")
		p.metrics.PublishesDropped.WithLabelValues(topic).Inc()
		return
	}

	var fields map[string]any
	if json.Unmarshal(value, &fields) == nil && fields != nil {
		if _, ok := fields["imei"]; !ok {
			fields["imei"] = imei
		}
		if ts, _ := fields["timestamp"].(float64); ts == 0 {
			fields["timestamp"] = time.Now().Unix()
		}
		if enriched, err := json.Marshal(fields); err == nil {
			value = enriched
		}
	}

	select {
	case p.queue <- outbound{topic: topic, key: []byte(imei), value: value}:
		p.metrics.PublishesEnqueued.WithLabelValues(topic).Inc()
	default:
		p.log.Warn().Str("topic", topic).Str("imei", imei).Msg("publish queue full, dropping record")
		p.metrics.PublishesDropped.WithLabelValues(topic).Inc()
	}
}

// Close stops accepting new publishes and closes the underlying writers
// once the queue drains.
func (p *Publisher) Close() {
	close(p.queue)
}

func (p *Publisher) run() {
	for msg := range p.queue {
		w := p.writers[msg.topic]
		err := w.WriteMessages(context.Background(), kafka.Message{Key: msg.key, Value: msg.value})
		if err != nil {
			p.log.Warn().Err(err).Str("topic", msg.topic).Msg("bus write failed")
			p.metrics.PublishFailures.WithLabelValues(msg.topic).Inc()
		}
	}
	for _, w := range p.writers {
		_ = w.Close()
	}
}
