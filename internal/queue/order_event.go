package queue

import (
	"fmt"
	"time"

	"hookah_delivery/internal/lifecycle"
)

// 订单事件名，对应通知模板。
const (
	EventOrderCreated    = "ORDER_CREATED"
	EventOrderConfirmed  = "ORDER_CONFIRMED"
	EventOnTheWay        = "ON_THE_WAY"
	EventDelivered       = "DELIVERED"
	EventSessionStarted  = "SESSION_STARTED"
	EventSessionEnding   = "SESSION_ENDING"
	EventPickupRequested = "PICKUP_REQUESTED"
	EventOrderCompleted  = "ORDER_COMPLETED"
	EventOrderCanceled   = "ORDER_CANCELED"
	EventFreeExtension   = "FREE_EXTENSION"
	EventTimerAdjusted   = "TIMER_ADJUSTED"

	EventRebowlRequested  = "REBOWL_REQUESTED"
	EventRebowlInProgress = "REBOWL_IN_PROGRESS"
	EventRebowlDone       = "REBOWL_DONE"
	EventRebowlCanceled   = "REBOWL_CANCELED"
)

// OrderEvent 是写入 Stream/Kafka 的订单状态事件。
type OrderEvent struct {
	EventID  string           `json:"event_id"`
	OrderID  string           `json:"order_id"`
	Identity string           `json:"identity"`
	Event    string           `json:"event"`
	Status   lifecycle.Status `json:"status"`
	At       time.Time        `json:"at"`
}

// Validate 做最小字段校验，防止消费者处理脏消息。
func (m OrderEvent) Validate() error {
	if m.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if m.OrderID == "" {
		return fmt.Errorf("order_id is required")
	}
	if m.Identity == "" {
		return fmt.Errorf("identity is required")
	}
	if m.Event == "" {
		return fmt.Errorf("event is required")
	}
	if _, err := lifecycle.ParseStatus(string(m.Status)); err != nil {
		return err
	}
	if m.At.IsZero() {
		return fmt.Errorf("at is required")
	}
	return nil
}

// EventForStatus 状态 -> 事件名。
func EventForStatus(s lifecycle.Status) string {
	switch s {
	case lifecycle.StatusNew:
		return EventOrderCreated
	case lifecycle.StatusConfirmed:
		return EventOrderConfirmed
	case lifecycle.StatusOnTheWay:
		return EventOnTheWay
	case lifecycle.StatusDelivered:
		return EventDelivered
	case lifecycle.StatusSessionActive:
		return EventSessionStarted
	case lifecycle.StatusSessionEnding:
		return EventSessionEnding
	case lifecycle.StatusWaitingForPickup:
		return EventPickupRequested
	case lifecycle.StatusCompleted:
		return EventOrderCompleted
	case lifecycle.StatusCanceled:
		return EventOrderCanceled
	}
	return ""
}

// EventForRebowl 换碗状态 -> 事件名。
func EventForRebowl(s lifecycle.RebowlStatus) string {
	switch s {
	case lifecycle.RebowlRequested:
		return EventRebowlRequested
	case lifecycle.RebowlInProgress:
		return EventRebowlInProgress
	case lifecycle.RebowlDone:
		return EventRebowlDone
	case lifecycle.RebowlCanceled:
		return EventRebowlCanceled
	}
	return ""
}
