package router

import (
	"errors"
	"net/http"

	"hookah_delivery/internal/order"

	"github.com/gin-gonic/gin"
)

// 错误类型，客户端据此区分处理（容量不足需要刷新可用数，转换被拒保持原状态）。
const (
	KindValidation         = "validation_failed"
	KindCapacityExceeded   = "capacity_exceeded"
	KindActiveOrderExists  = "active_order_exists"
	KindOrdersPaused       = "orders_paused"
	KindPromoInvalid       = "promo_invalid"
	KindTransitionRejected = "transition_rejected"
	KindNotFound           = "not_found"
	KindInternal           = "internal"
)

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"code": 0, "data": data})
}

func badRequest(c *gin.Context, err error) {
	abort(c, http.StatusBadRequest, KindValidation, err.Error(), nil)
}

func abort(c *gin.Context, status int, kind, msg string, data any) {
	body := gin.H{"code": status, "error": kind, "msg": msg}
	if data != nil {
		body["data"] = data
	}
	c.AbortWithStatusJSON(status, body)
}

// fail 把 service 错误映射为 HTTP 状态码与错误类型。
func fail(c *gin.Context, err error) {
	var (
		ve *order.ValidationError
		te *order.TransitionError
	)
	switch {
	case errors.As(err, &ve):
		abort(c, http.StatusBadRequest, KindValidation, ve.Error(), gin.H{"field": ve.Field})
	case errors.As(err, &te):
		abort(c, http.StatusConflict, KindTransitionRejected, te.Reason, gin.H{"status": te.From})
	case errors.Is(err, order.ErrCapacityExceeded):
		abort(c, http.StatusConflict, KindCapacityExceeded, err.Error(), nil)
	case errors.Is(err, order.ErrActiveOrderExists):
		abort(c, http.StatusConflict, KindActiveOrderExists, err.Error(), nil)
	case errors.Is(err, order.ErrOrdersPaused):
		abort(c, http.StatusServiceUnavailable, KindOrdersPaused, err.Error(), nil)
	case errors.Is(err, order.ErrPromoInvalid):
		abort(c, http.StatusBadRequest, KindPromoInvalid, err.Error(), nil)
	case errors.Is(err, order.ErrNotFound):
		abort(c, http.StatusNotFound, KindNotFound, err.Error(), nil)
	default:
		_ = c.Error(err)
		abort(c, http.StatusInternalServerError, KindInternal, "internal error", nil)
	}
}
