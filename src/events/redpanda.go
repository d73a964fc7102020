package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"

	"copilot-dash/src/logger"
)

const clientID = "copilot-dash"

// RedpandaBroker mirrors dashboard events to a Kafka-compatible cluster and tails
// them back for `copilot events`.
type RedpandaBroker struct {
	producer *kgo.Client
	brokers  []string
	log      logger.Logger

	mu        sync.Mutex
	consumers []*kgo.Client
	closed    bool
}

// NewRedpandaBroker connects a producer to brokers. No request is made until the
// first Publish or Ping.
func NewRedpandaBroker(brokers []string, log logger.Logger) (*RedpandaBroker, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one broker address is required")
	}

	producer, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.AllowAutoTopicCreation(),
		kgo.ProducerLinger(0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create redpanda producer: %w", err)
	}

	return &RedpandaBroker{
		producer: producer,
		brokers:  brokers,
		log:      logger.OrSilent(log),
	}, nil
}

// Ping checks that at least one seed broker answers.
func (b *RedpandaBroker) Ping(ctx context.Context) error {
	if err := b.producer.Ping(ctx); err != nil {
		return fmt.Errorf("redpanda unreachable at %v: %w", b.brokers, err)
	}
	return nil
}

// Publish produces one record and waits for the ack. Records carry a content-type
// header so other consumers can tell dashboard events apart.
func (b *RedpandaBroker) Publish(ctx context.Context, topic string, key string, value []byte) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrClosed
	}

	record := &kgo.Record{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "source", Value: []byte(clientID)},
		},
	}
	if err := b.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to produce %s event: %w", topic, err)
	}
	return nil
}

// Subscribe tails topic from its current end. With a groupID the consumer joins
// that group; without one it reads every partition directly, so several watchers
// each see every event.
func (b *RedpandaBroker) Subscribe(ctx context.Context, topic string, groupID string) (<-chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(b.brokers...),
		kgo.ClientID(clientID),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
	}
	if groupID != "" {
		opts = append(opts, kgo.ConsumerGroup(groupID))
	}
	consumer, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create redpanda consumer: %w", err)
	}
	b.consumers = append(b.consumers, consumer)

	out := make(chan Message, subscriberBuffer)
	go b.poll(ctx, consumer, out)
	return out, nil
}

func (b *RedpandaBroker) poll(ctx context.Context, consumer *kgo.Client, out chan<- Message) {
	defer close(out)

	for ctx.Err() == nil {
		fetches := consumer.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			if ctx.Err() == nil {
				b.log.Error("[events] fetch %s/%d: %v", topic, partition, err)
			}
		})

		iter := fetches.RecordIter()
		for !iter.Done() {
			r := iter.Next()
			msg := Message{
				Topic:     r.Topic,
				Key:       string(r.Key),
				Value:     r.Value,
				Offset:    r.Offset,
				Partition: r.Partition,
				Timestamp: r.Timestamp.UnixMilli(),
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Close stops every consumer, then flushes and closes the producer.
func (b *RedpandaBroker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	consumers := b.consumers
	b.consumers = nil
	b.mu.Unlock()

	for _, c := range consumers {
		c.Close()
	}
	b.producer.Close()
	return nil
}
