package kfka

import (
	"context"
	"edu-go/pkg/logger"
	"errors"
	"github.com/segmentio/kafka-go"
)

type Handler func(ctx context.Context, e Event) error

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	reader messageReader
	log    *logger.Logger
}

func NewConsumer(brokers []string, topic, group string, log *logger.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: group,
		}),
		log: log,
	}
}

// Run reads until ctx is cancelled. Undecodable messages and handler failures are logged and skipped.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	defer c.reader.Close()
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			c.log.Error("read kafka message", "error", err)
			return err
		}
		e, err := Decode(m)
		if err != nil {
			c.log.Warn("decode kafka message", "key", string(m.Key), "error", err)
			continue
		}
		if err := handle(ctx, e); err != nil {
			c.log.Error("handle event", "type", e.Type, "id", e.ID, "error", err)
		}
	}
}
