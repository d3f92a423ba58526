package router

import (
	"net/http"

	"hookah_delivery/internal/lifecycle"
	"hookah_delivery/internal/model"
	"hookah_delivery/internal/order"

	"github.com/gin-gonic/gin"
)

// orderView 订单 + 展示分类 + 客户端当前可用动作。
type orderView struct {
	*model.Order
	Category lifecycle.Category `json:"category"`
	Actions  []lifecycle.Action `json:"actions"`
	Rebowl   bool               `json:"can_rebowl"`
}

func viewOf(o *model.Order) *orderView {
	if o == nil {
		return nil
	}
	actions := lifecycle.ClientActions(o.Status)
	if actions == nil {
		actions = []lifecycle.Action{}
	}
	return &orderView{
		Order:    o,
		Category: o.Status.Category(),
		Actions:  actions,
		Rebowl:   lifecycle.RebowlAllowed(o.Status),
	}
}

// createOrder 下单入口，返回服务端计算的金额与 NEW 状态。
func createOrder(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req order.CreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := svc.Create(c.Request.Context(), req)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"code": 0, "data": res})
	}
}

// listOrders 查询某身份的进行中订单与历史。
func listOrders(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		got, err := svc.List(c.Request.Context(), c.Query("identity"))
		if err != nil {
			fail(c, err)
			return
		}
		history := make([]*orderView, 0, len(got.History))
		for i := range got.History {
			history = append(history, viewOf(&got.History[i]))
		}
		ok(c, gin.H{"active": viewOf(got.Active), "history": history})
	}
}

type clientActionRequest struct {
	Identity string `json:"identity" binding:"required"`
}

func cancelOrder(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req clientActionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		o, err := svc.Cancel(c.Request.Context(), c.Param("id"), req.Identity)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, viewOf(o))
	}
}

func readyForPickup(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req clientActionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		o, err := svc.ReadyForPickup(c.Request.Context(), c.Param("id"), req.Identity)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, viewOf(o))
	}
}

// advanceOrder 管理端推进状态（确认、出发、送达、开始会话、完成、取消）。
func advanceOrder(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Status string `json:"status" binding:"required"`
			Reason string `json:"reason"`
			Actor  string `json:"actor"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		o, err := svc.Advance(c.Request.Context(), c.Param("id"), lifecycle.Status(req.Status), req.Reason, req.Actor)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, viewOf(o))
	}
}

func freeExtension(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, err := svc.FreeExtension(c.Request.Context(), c.Param("id"), "admin")
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, viewOf(o))
	}
}

// resyncPool 用数据库重算 Redis 设备占用。
func resyncPool(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := svc.ResyncPool(c.Request.Context())
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, gin.H{"units_in_use": n})
	}
}
