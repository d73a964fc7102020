// Package events carries dashboard state changes to observers.
//
// Components emit Events onto a Bus. The bus publishes them on an in-process broker
// (which the TUI subscribes to) and, when configured, mirrors them to Redpanda so
// operators can follow a session from outside the terminal.
package events

import "context"

// Broker moves encoded events between a Bus and its observers. InMemoryBroker
// serves the local session; RedpandaBroker mirrors it to a cluster.
type Broker interface {
	// Publish sends value on topic. key picks the partition where the broker has
	// partitions.
	Publish(ctx context.Context, topic string, key string, value []byte) error

	// Subscribe streams messages on topic until ctx is done or the broker closes.
	// groupID joins a consumer group where supported; InMemoryBroker ignores it.
	Subscribe(ctx context.Context, topic string, groupID string) (<-chan Message, error)

	// Close releases the broker. Open subscriptions are closed.
	Close() error
}

// Message is one record read from a broker.
type Message struct {
	Topic     string
	Key       string
	Value     []byte
	Offset    int64
	Partition int32
	// Timestamp is in Unix milliseconds.
	Timestamp int64
}
