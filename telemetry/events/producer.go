// Package events is a lightweight, fire-and-forget publisher for sampled
// allocator statistics, separate from the durable outbox/broadcaster path
// since a dropped stats sample is never a correctness problem.
package events

import (
	"context"
	"encoding/json"
	"time"

	"vaultmem/alloc"

	"github.com/segmentio/kafka-go"
)

// Producer wraps a single-topic kafka-go writer.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer constructs a synchronous, fully-acknowledged writer to
// topic across brokers.
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Sample is one point-in-time snapshot of an Allocator's Stats, as
// published to the stats topic.
type Sample struct {
	Timestamp      int64  `json:"ts"`
	NumHandles     uint32 `json:"num_handles"`
	NumRegions     int    `json:"num_regions"`
	LiveThreads    int    `json:"live_threads"`
	GraveyardSlots int    `json:"graveyard_slots"`
}

// SendStats samples stats now and publishes it under key.
func (p *Producer) SendStats(ctx context.Context, key []byte, stats alloc.Stats) error {
	sample := Sample{
		Timestamp:      time.Now().UnixNano(),
		NumHandles:     stats.NumHandles,
		NumRegions:     stats.NumRegions,
		LiveThreads:    stats.LiveThreads,
		GraveyardSlots: stats.GraveyardSlots,
	}
	value, err := json.Marshal(sample)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: value})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
