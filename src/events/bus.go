package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"copilot-dash/src/logger"
)

// mirrorQueue bounds how many events wait for the remote mirror.
const mirrorQueue = 256

// Bus encodes events as JSON and publishes them on a local broker. An optional mirror
// broker receives the same messages from a background goroutine so a slow or
// unreachable mirror never stalls the emitter.
type Bus struct {
	topic  string
	local  Broker
	mirror Broker
	log    logger.Logger
	now    func() time.Time

	mu     sync.RWMutex
	closed bool
	queue  chan Message
	wg     sync.WaitGroup
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithMirror forwards every event to m. The bus closes m on Close.
func WithMirror(m Broker) BusOption {
	return func(b *Bus) { b.mirror = m }
}

// WithLogger sets the logger used for publish failures.
func WithLogger(l logger.Logger) BusOption {
	return func(b *Bus) { b.log = l }
}

// NewBus creates a bus publishing to topic on local.
func NewBus(topic string, local Broker, opts ...BusOption) *Bus {
	b := &Bus{
		topic: topic,
		local: local,
		log:   logger.NewSilentLogger(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.log = logger.OrSilent(b.log)

	if b.mirror != nil {
		b.queue = make(chan Message, mirrorQueue)
		b.wg.Add(1)
		go b.forward()
	}
	return b
}

// Topic returns the topic events are published on.
func (b *Bus) Topic() string { return b.topic }

// Emit publishes ev. Failures are logged, never returned.
func (b *Bus) Emit(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = b.now()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		b.log.Error("[events] encode %s: %v", ev.Type, err)
		return
	}

	if err := b.local.Publish(ctx, b.topic, ev.Key(), data); err != nil {
		b.log.Debug("[events] publish %s: %v", ev.Type, err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.queue == nil || b.closed {
		return
	}
	select {
	case b.queue <- Message{Topic: b.topic, Key: ev.Key(), Value: data}:
	default:
		b.log.Error("[events] mirror queue full, dropped %s", ev.Type)
	}
}

// Subscribe decodes events published on the local broker.
func (b *Bus) Subscribe(ctx context.Context, groupID string) (<-chan Event, error) {
	msgs, err := b.local.Subscribe(ctx, b.topic, groupID)
	if err != nil {
		return nil, err
	}
	return Decode(ctx, msgs, b.log), nil
}

// Decode turns broker messages into Events until msgs closes or ctx is done.
// Messages that are not events are logged and skipped.
func Decode(ctx context.Context, msgs <-chan Message, log logger.Logger) <-chan Event {
	log = logger.OrSilent(log)
	out := make(chan Event, subscriberBuffer)
	go func() {
		defer close(out)
		for msg := range msgs {
			var ev Event
			if err := json.Unmarshal(msg.Value, &ev); err != nil || ev.Type == "" {
				log.Error("[events] skipping non-event message at %s/%d offset %d", msg.Topic, msg.Partition, msg.Offset)
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Close drains the mirror queue, then closes the mirror and the local broker.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	if b.queue != nil {
		close(b.queue)
	}
	b.mu.Unlock()

	if b.queue != nil {
		b.wg.Wait()
		if err := b.mirror.Close(); err != nil {
			b.log.Error("[events] close mirror: %v", err)
		}
	}
	return b.local.Close()
}

func (b *Bus) forward() {
	defer b.wg.Done()
	for msg := range b.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := b.mirror.Publish(ctx, msg.Topic, msg.Key, msg.Value); err != nil {
			b.log.Error("[events] mirror publish: %v", err)
		}
		cancel()
	}
}
