package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer 把订单事件写入 Kafka，通知消费者按 order_id 分区顺序读取。
type Producer struct {
	w *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:  kafka.TCP(brokers...),
			Topic: topic,
			// 同一订单的事件进同一分区
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			MaxAttempts:            5,
			WriteTimeout:           5 * time.Second,
			ReadTimeout:            5 * time.Second,
			BatchTimeout:           20 * time.Millisecond,
		},
	}
}

func (p *Producer) Close() error { return p.w.Close() }

// Publish 同步写入，Relay 只有在这里成功后才 ACK outbox。
func (p *Producer) Publish(ctx context.Context, ev OrderEvent) error {
	msg, err := encodeEvent(ev)
	if err != nil {
		return err
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s for order %s: %w", ev.Event, ev.OrderID, err)
	}
	return nil
}

// encodeEvent 事件名和 event_id 也放进 header，消费端不解 JSON 就能过滤。
func encodeEvent(ev OrderEvent) (kafka.Message, error) {
	if err := ev.Validate(); err != nil {
		return kafka.Message{}, fmt.Errorf("invalid order event: %w", err)
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(ev.OrderID),
		Value: b,
		Time:  ev.At,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(ev.Event)},
			{Key: "event_id", Value: []byte(ev.EventID)},
		},
	}, nil
}
