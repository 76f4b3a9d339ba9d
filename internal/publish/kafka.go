// Package publish pushes live price snapshots to Kafka.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/atmx/price-feed/internal/config"
	"github.com/atmx/price-feed/internal/feed"
	"github.com/atmx/price-feed/internal/metrics"
	"github.com/atmx/price-feed/internal/model"
)

// Header keys carried by every message.
const (
	HeaderCorrupted  = "is_corrupted"
	HeaderCorruption = "corruption"
	HeaderSource     = "source"
)

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes price points to a Kafka topic, keyed by card id so a
// card's records stay ordered within a partition.
type Publisher struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// NewKafkaPublisher creates a publisher for cfg.Topic on cfg.Brokers.
func NewKafkaPublisher(cfg config.KafkaConfig, logger *slog.Logger) *Publisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		Compression:            kafka.Gzip,
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		WriteBackoffMin:        100 * time.Millisecond,
		WriteBackoffMax:        time.Second,
	}
	return newPublisher(w, cfg.Topic, logger)
}

func newPublisher(w messageWriter, topic string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{writer: w, topic: topic, logger: logger.With("topic", topic)}
}

// Messages encodes prices in the public feed shape. The corruption flag
// travels in headers only.
func Messages(prices []model.PricePoint) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(prices))
	for _, p := range prices {
		data, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("marshal price %s: %w", p.ID, err)
		}
		msg := kafka.Message{
			Key:   []byte(messageKey(p)),
			Value: data,
			Headers: []kafka.Header{
				{Key: HeaderCorrupted, Value: []byte(strconv.FormatBool(p.IsCorrupted))},
				{Key: HeaderSource, Value: []byte(p.Source)},
			},
		}
		if p.Missing != model.FieldTimestamp {
			msg.Time = p.Timestamp
		}
		if p.IsCorrupted {
			msg.Headers = append(msg.Headers, kafka.Header{Key: HeaderCorruption, Value: []byte(p.Corruption)})
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// messageKey is the card id, or the record id when the card id was dropped.
func messageKey(p model.PricePoint) string {
	if p.Missing == model.FieldCardID || p.CardID == "" {
		return p.ID
	}
	return p.CardID
}

// Publish writes prices as one batch.
func (p *Publisher) Publish(ctx context.Context, prices []model.PricePoint) error {
	if len(prices) == 0 {
		return nil
	}
	msgs, err := Messages(prices)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		metrics.PublishedMessages.WithLabelValues("error").Add(float64(len(msgs)))
		return fmt.Errorf("publish %d prices: %w", len(msgs), err)
	}
	metrics.PublishedMessages.WithLabelValues("ok").Add(float64(len(msgs)))
	metrics.RecordsServed.WithLabelValues("kafka").Add(float64(len(msgs)))
	p.logger.Debug("prices published", "count", len(msgs))
	return nil
}

// Run publishes a latest snapshot of limit records from f every interval
// until ctx is done. Failed publishes are logged and retried on the next
// tick.
func (p *Publisher) Run(ctx context.Context, f feed.Feed, interval time.Duration, limit int) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.logger.Info("kafka publisher started", "interval", interval, "limit", limit)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("kafka publisher stopped")
			return nil
		case <-ticker.C:
		}

		prices, err := f.GenerateLatest(ctx, limit)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Warn("snapshot failed", "err", err)
			continue
		}
		if err := p.Publish(ctx, prices); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Warn("publish failed", "err", err)
		}
	}
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
