package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hookah_delivery/internal/lifecycle"

	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Publisher 事件发布端（Kafka Producer 实现）。
type Publisher interface {
	Publish(ctx context.Context, msg OrderEvent) error
}

// Relay 将 Redis Stream 事件异步转发到 Kafka。
// 语义：发布 Kafka 成功后才 ACK Stream，失败则保留消息等待重试。
type Relay struct {
	rdb       *rd.Client
	publisher Publisher
	logger    *zap.Logger

	stream   string
	group    string
	consumer string
}

func NewRelay(rdb *rd.Client, publisher Publisher, stream, group, consumer string, logger *zap.Logger) *Relay {
	return &Relay{
		rdb:       rdb,
		publisher: publisher,
		logger:    logger,
		stream:    stream,
		group:     group,
		consumer:  consumer,
	}
}

func (r *Relay) Run(ctx context.Context) {
	if err := r.ensureGroup(ctx); err != nil {
		r.logger.Error("relay ensure group", zap.Error(err))
		return
	}

	for {
		if ctx.Err() != nil {
			return
		}
		if _, err := r.Drain(ctx, 2*time.Second); err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			r.logger.Warn("relay drain", zap.Error(err))
			time.Sleep(300 * time.Millisecond)
		}
	}
}

// Drain 先处理本消费者历史 pending，再读新消息，返回成功转发条数。
// block < 0 表示不阻塞。
func (r *Relay) Drain(ctx context.Context, block time.Duration) (int, error) {
	msgs, err := r.readGroup(ctx, "0", -1)
	if err != nil {
		return 0, fmt.Errorf("read pending: %w", err)
	}
	if len(msgs) == 0 {
		msgs, err = r.readGroup(ctx, ">", block)
		if err != nil {
			return 0, fmt.Errorf("read new: %w", err)
		}
	}

	n := 0
	for _, xm := range msgs {
		if err := r.processOne(ctx, xm); err != nil {
			// 发布失败不 ACK，消息会继续保留用于重试。
			return n, fmt.Errorf("process message id=%s: %w", xm.ID, err)
		}
		n++
	}
	return n, nil
}

func (r *Relay) ensureGroup(ctx context.Context) error {
	err := r.rdb.XGroupCreateMkStream(ctx, r.stream, r.group, "0").Err()
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return err
}

func (r *Relay) readGroup(ctx context.Context, streamID string, block time.Duration) ([]rd.XMessage, error) {
	streams, err := r.rdb.XReadGroup(ctx, &rd.XReadGroupArgs{
		Group:    r.group,
		Consumer: r.consumer,
		Streams:  []string{r.stream, streamID},
		Count:    16,
		Block:    block,
		NoAck:    false,
	}).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]rd.XMessage, 0, 16)
	for _, s := range streams {
		out = append(out, s.Messages...)
	}
	return out, nil
}

func (r *Relay) processOne(ctx context.Context, xm rd.XMessage) error {
	msg, err := parseOrderEvent(xm.Values)
	if err != nil {
		// 脏消息直接 ACK 丢弃，避免阻塞队列。
		r.logger.Warn("relay drop malformed event", zap.String("id", xm.ID), zap.Error(err))
		if ackErr := r.ackAndDelete(ctx, xm.ID); ackErr != nil {
			return fmt.Errorf("parse failed: %v, ack failed: %w", err, ackErr)
		}
		return nil
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.publisher.Publish(pubCtx, msg); err != nil {
		return err
	}
	return r.ackAndDelete(ctx, xm.ID)
}

func (r *Relay) ackAndDelete(ctx context.Context, id string) error {
	pipe := r.rdb.TxPipeline()
	pipe.XAck(ctx, r.stream, r.group, id)
	pipe.XDel(ctx, r.stream, id)
	_, err := pipe.Exec(ctx)
	return err
}

func parseOrderEvent(values map[string]interface{}) (OrderEvent, error) {
	fields := map[string]string{}
	for _, k := range []string{"event_id", "order_id", "identity", "event", "status", "at"} {
		v, err := getStreamString(values, k)
		if err != nil {
			return OrderEvent{}, err
		}
		fields[k] = v
	}

	at, err := time.Parse(time.RFC3339Nano, fields["at"])
	if err != nil {
		return OrderEvent{}, fmt.Errorf("invalid at %q", fields["at"])
	}

	msg := OrderEvent{
		EventID:  fields["event_id"],
		OrderID:  fields["order_id"],
		Identity: fields["identity"],
		Event:    fields["event"],
		Status:   lifecycle.Status(fields["status"]),
		At:       at,
	}
	if err := msg.Validate(); err != nil {
		return OrderEvent{}, err
	}
	return msg, nil
}

func getStreamString(values map[string]interface{}, key string) (string, error) {
	v, ok := values[key]
	if !ok {
		return "", fmt.Errorf("missing field %s", key)
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	default:
		return "", fmt.Errorf("unsupported field type %s: %T", key, v)
	}
}
