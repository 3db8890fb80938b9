// Package broadcaster drains the telemetry outbox and publishes each
// pending event to Kafka via sarama's synchronous producer, the same
// mark-sent/publish/mark-acked replay discipline the engine's own exit
// broadcaster uses for order events.
package broadcaster

import (
	"context"
	"log"
	"time"

	"vaultmem/telemetry/outbox"

	"github.com/IBM/sarama"
)

// Broadcaster is a single-topic publisher loop over an Outbox.
type Broadcaster struct {
	box      *outbox.Outbox
	producer sarama.SyncProducer
	topic    string
}

// New constructs a Broadcaster connected to brokers, requiring full ISR
// acknowledgment before a publish is considered durable.
func New(box *outbox.Outbox, brokers []string, topic string) (*Broadcaster, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	return &Broadcaster{box: box, producer: producer, topic: topic}, nil
}

// Start launches the background replay loop; it returns immediately.
func (b *Broadcaster) Start(ctx context.Context) {
	log.Println("[telemetry/broadcaster] started")

	go func() {
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.replayOnce()
			}
		}
	}()
}

// replayOnce sweeps every StateSent event (one left mid-publish by an
// earlier run) and then every StateNew event, publishes it, and advances
// its state — marking SENT before the publish attempt so a crash
// mid-publish never loses an event's intent, only possibly double-publishes
// it.
func (b *Broadcaster) replayOnce() {
	publish := func(id uint64, rec outbox.Record) error {
		_ = b.box.UpdateState(id, outbox.StateSent, rec.Retries)

		msg := &sarama.ProducerMessage{
			Topic: b.topic,
			Value: sarama.ByteEncoder(rec.Payload),
		}

		if _, _, err := b.producer.SendMessage(msg); err != nil {
			_ = b.box.UpdateState(id, outbox.StateFailed, rec.Retries+1)
			return nil
		}

		_ = b.box.UpdateState(id, outbox.StateAcked, rec.Retries)
		return nil
	}
	_ = b.box.ScanByState(outbox.StateSent, publish)
	_ = b.box.ScanByState(outbox.StateNew, publish)
}

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
