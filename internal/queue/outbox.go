package queue

import (
	"context"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// Outbox 把订单事件追加到 Redis Stream，由 Relay 异步转发 Kafka。
type Outbox struct {
	rdb    *rd.Client
	stream string
}

func NewOutbox(rdb *rd.Client, stream string) *Outbox {
	return &Outbox{rdb: rdb, stream: stream}
}

// Append XADD 一条事件。
func (o *Outbox) Append(ctx context.Context, ev OrderEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	return o.rdb.XAdd(ctx, &rd.XAddArgs{
		Stream: o.stream,
		Values: map[string]any{
			"event_id": ev.EventID,
			"order_id": ev.OrderID,
			"identity": ev.Identity,
			"event":    ev.Event,
			"status":   string(ev.Status),
			"at":       ev.At.UTC().Format(time.RFC3339Nano),
		},
	}).Err()
}
