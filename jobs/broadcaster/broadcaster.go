// Package broadcaster replays the trade-report outbox into Kafka.
// Records advance NEW -> SENT -> ACKED; a record whose send attempt
// died before the ack was persisted is retried on a later pass, so
// delivery to the reporting topic is at-least-once at the broker and
// exactly-once to consumers keyed by report sequence.
package broadcaster

import (
	"context"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"fenrir/infra/codec"
	"fenrir/infra/outbox"
)

type Broadcaster struct {
	ob          *outbox.Outbox
	producer    sarama.SyncProducer
	topic       string
	interval    time.Duration
	resendAfter time.Duration
	log         *zap.Logger
}

func New(
	ob *outbox.Outbox,
	brokers []string,
	topic string,
	interval time.Duration,
	resendAfter time.Duration,
	log *zap.Logger,
) (*Broadcaster, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return &Broadcaster{
		ob:          ob,
		producer:    producer,
		topic:       topic,
		interval:    interval,
		resendAfter: resendAfter,
		log:         log,
	}, nil
}

// Start runs the replay loop until ctx is canceled.
func (b *Broadcaster) Start(ctx context.Context) {
	b.log.Info("broadcaster started",
		zap.String("topic", b.topic),
		zap.Duration("interval", b.interval),
	)
	go func() {
		ticker := time.NewTicker(b.interval)
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

// replayOnce walks pending records in report-sequence order. Publish
// failures leave the record SENT; the resend window picks it up on a
// later pass.
func (b *Broadcaster) replayOnce() {
	err := b.ob.ScanPending(b.resendAfter, func(rec outbox.Record) error {
		if err := b.ob.MarkSent(rec.Seq); err != nil {
			return err
		}

		// The payload carries its symbol; key on it so the reports
		// topic preserves per-symbol order across partitions.
		ev, err := codec.DecodeTrade(rec.Payload)
		if err != nil {
			b.log.Error("undecodable outbox record, purging",
				zap.Uint64("seq", rec.Seq), zap.Error(err))
			return b.ob.Purge(rec.Seq)
		}

		msg := &sarama.ProducerMessage{
			Topic: b.topic,
			Key:   sarama.StringEncoder(ev.Symbol),
			Value: sarama.ByteEncoder(rec.Payload),
		}
		if _, _, err := b.producer.SendMessage(msg); err != nil {
			b.log.Warn("publish failed, will retry",
				zap.Uint64("seq", rec.Seq), zap.Error(err))
			return nil
		}

		if err := b.ob.MarkAcked(rec.Seq); err != nil {
			return err
		}
		return b.ob.Purge(rec.Seq)
	})
	if err != nil {
		b.log.Error("outbox replay failed", zap.Error(err))
	}
}

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
