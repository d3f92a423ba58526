package gateway

import (
	"errors"
	"fmt"

	"hookah_delivery/internal/lifecycle"
)

// 服务端错误类型对应的哨兵错误，配合 errors.Is 使用。
var (
	ErrValidation         = errors.New("validation failed")
	ErrCapacityExceeded   = errors.New("capacity exceeded")
	ErrActiveOrderExists  = errors.New("active order exists")
	ErrOrdersPaused       = errors.New("orders paused")
	ErrPromoInvalid       = errors.New("promo code invalid")
	ErrTransitionRejected = errors.New("transition rejected")
	ErrNotFound           = errors.New("not found")
	ErrRateLimited        = errors.New("rate limited")
)

var kindSentinels = map[string]error{
	"validation_failed":   ErrValidation,
	"capacity_exceeded":   ErrCapacityExceeded,
	"active_order_exists": ErrActiveOrderExists,
	"orders_paused":       ErrOrdersPaused,
	"promo_invalid":       ErrPromoInvalid,
	"transition_rejected": ErrTransitionRejected,
	"not_found":           ErrNotFound,
	"rate_limited":        ErrRateLimited,
}

// APIError 服务端明确拒绝的请求。Msg 是服务端原文，直接展示给用户。
type APIError struct {
	HTTPStatus int
	Kind       string
	Msg        string
	// Field 校验失败的字段
	Field string
	// Status 转换被拒时订单的当前状态
	Status lifecycle.Status
}

func (e *APIError) Error() string {
	return e.Msg
}

func (e *APIError) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

// TransportError 网络或后端不可用。请求结果未知，可以重试，绝不当作成功。
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Retryable 传输错误总是可以重试。
func (e *TransportError) Retryable() bool { return true }

// IsTransport 判断 err 链上是否有 TransportError。
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

func lifecycleStatus(s string) lifecycle.Status {
	st, err := lifecycle.ParseStatus(s)
	if err != nil {
		return ""
	}
	return st
}
