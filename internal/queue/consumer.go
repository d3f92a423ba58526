package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Notifier 处理一条订单事件（发送通知）。
type Notifier interface {
	Notify(ctx context.Context, ev OrderEvent) error
}

// messageReader 是 kafka.Reader 中用到的部分。
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	r        messageReader
	notifier Notifier
	logger   *zap.Logger

	// 读失败后的退避区间
	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewConsumer(brokers []string, topic, groupID string, notifier Notifier, logger *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1e3,
		MaxBytes: 1e6,
	})
	return newConsumer(r, notifier, logger)
}

func newConsumer(r messageReader, notifier Notifier, logger *zap.Logger) *Consumer {
	return &Consumer{
		r:          r,
		notifier:   notifier,
		logger:     logger,
		minBackoff: 500 * time.Millisecond,
		maxBackoff: 30 * time.Second,
	}
}

func (c *Consumer) Close() error { return c.r.Close() }

// Run 只在 ctx 结束时返回；broker 暂时不可用时指数退避后重试。
func (c *Consumer) Run(ctx context.Context) {
	backoff := c.minBackoff
	for {
		m, err := c.r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("consumer read", zap.Error(err), zap.Duration("retry_in", backoff))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, c.maxBackoff)
			continue
		}
		backoff = c.minBackoff
		c.handle(ctx, m.Value)
	}
}

func (c *Consumer) handle(ctx context.Context, value []byte) {
	var ev OrderEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		c.logger.Warn("consumer unmarshal", zap.Error(err))
		return
	}
	if err := ev.Validate(); err != nil {
		c.logger.Warn("consumer invalid event", zap.Error(err))
		return
	}
	if err := c.notifier.Notify(ctx, ev); err != nil {
		c.logger.Error("consumer notify",
			zap.String("event", ev.Event),
			zap.String("order_id", ev.OrderID),
			zap.Error(err))
	}
}
