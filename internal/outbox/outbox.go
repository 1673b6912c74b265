// Package outbox publishes recorded basket lifecycle events to Kafka.
package outbox

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/TelesNascimento25/Checkout-service/internal/domain/basket"
)

// Source yields events that still need publishing.
type Source interface {
	Pending(ctx context.Context, limit int) ([]basket.Event, error)
	MarkPublished(ctx context.Context, ids []string) error
}

// Writer is the subset of *kafka.Writer the poller uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaWriter creates a writer for topic on the given brokers.
func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
	}
}

// Poller periodically moves pending events from a Source to a Writer.
// Delivery is at least once: events are marked only after a successful write.
type Poller struct {
	source    Source
	writer    Writer
	interval  time.Duration
	batchSize int
}

// NewPoller creates a Poller.
func NewPoller(source Source, writer Writer, interval time.Duration, batchSize int) *Poller {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Poller{
		source:    source,
		writer:    writer,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run publishes until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	lg := zctx.From(ctx)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := p.PublishPending(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				lg.Error("Publish outbox events", zap.Error(err))
				continue
			}
			if n > 0 {
				lg.Debug("Published outbox events", zap.Int("count", n))
			}
		}
	}
}

// PublishPending publishes one batch and returns how many events were sent.
func (p *Poller) PublishPending(ctx context.Context) (int, error) {
	events, err := p.source.Pending(ctx, p.batchSize)
	if err != nil {
		return 0, errors.Wrap(err, "fetch pending events")
	}
	if len(events) == 0 {
		return 0, nil
	}

	msgs := make([]kafka.Message, len(events))
	ids := make([]string, len(events))
	for i, e := range events {
		msgs[i] = message(e)
		ids[i] = e.ID
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return 0, errors.Wrap(err, "write messages")
	}
	if err := p.source.MarkPublished(ctx, ids); err != nil {
		return 0, errors.Wrap(err, "mark published")
	}
	return len(events), nil
}

// message keys by basket so events of one basket stay ordered.
func message(e basket.Event) kafka.Message {
	return kafka.Message{
		Key:   []byte(strconv.FormatInt(e.BasketID, 10)),
		Value: e.Payload,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(e.ID)},
			{Key: "event_type", Value: []byte(e.Type)},
		},
	}
}
