// Package nats carries the assessment lifecycle events over JetStream and
// hosts the KV bucket behind the shared ops-data cache tier.
package nats

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/skywise-ai/irops/internal/port/messagequeue"
)

// All lifecycle subjects (assessments.submitted and friends) live on one
// stream so downstream consumers replay them in submission order.
const streamName = "IROPS"

// Queue implements the message queue port on JetStream.
type Queue struct {
	conn *nats.Conn
	js   jetstream.JetStream
}

// Connect dials NATS and makes sure the lifecycle stream exists.
func Connect(ctx context.Context, url string) (*Queue, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{"assessments.>"},
	}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ensure stream %s: %w", streamName, err)
	}

	slog.Info("nats connected", "url", url, "stream", streamName)
	return &Queue{conn: conn, js: js}, nil
}

// KeyValue returns the named KV bucket, creating it on first use.
func (q *Queue) KeyValue(ctx context.Context, bucket string) (jetstream.KeyValue, error) {
	kv, err := q.js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: bucket})
	if err != nil {
		return nil, fmt.Errorf("ensure kv bucket %s: %w", bucket, err)
	}
	return kv, nil
}

func (q *Queue) Publish(ctx context.Context, subject string, data []byte) error {
	if _, err := q.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe consumes subject with explicit acks. A handler error naks the
// message so JetStream redelivers it. The returned func stops consumption.
func (q *Queue) Subscribe(ctx context.Context, subject string, handler messagequeue.Handler) (func(), error) {
	consumer, err := q.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("create consumer for %s: %w", subject, err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		if err := handler(context.Background(), msg.Subject(), msg.Data()); err != nil {
			slog.Error("message handler failed", "subject", msg.Subject(), "error", err)
			if err := msg.Nak(); err != nil {
				slog.Error("nak failed", "subject", msg.Subject(), "error", err)
			}
			return
		}
		if err := msg.Ack(); err != nil {
			slog.Error("ack failed", "subject", msg.Subject(), "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", subject, err)
	}
	return cc.Stop, nil
}

func (q *Queue) Close() error {
	q.conn.Close()
	return nil
}
