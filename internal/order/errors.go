package order

import (
	"errors"
	"fmt"

	"hookah_delivery/internal/lifecycle"
)

var (
	ErrNotFound = errors.New("order not found")
	// ErrCapacityExceeded 提交时设备池已被其他订单占用，客户端需刷新可用数后调整。
	ErrCapacityExceeded  = errors.New("not enough free units, please adjust the order")
	ErrActiveOrderExists = errors.New("an active order already exists")
	ErrOrdersPaused      = errors.New("orders are paused")
	ErrPromoInvalid      = errors.New("promo code is not valid")
)

// ValidationError 请求字段校验失败。
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// TransitionError 状态转换被拒绝，订单保持原状态。Reason 原样返回给用户。
type TransitionError struct {
	OrderID string
	From    lifecycle.Status
	To      lifecycle.Status
	Reason  string
}

func (e *TransitionError) Error() string {
	return e.Reason
}
