package router

import (
	"net/http"

	"hookah_delivery/internal/lifecycle"
	"hookah_delivery/internal/order"

	"github.com/gin-gonic/gin"
)

// requestRebowl 会话中申请换碗，mix_id 为空沿用原口味。
func requestRebowl(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Identity string `json:"identity" binding:"required"`
			MixID    string `json:"mix_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		r, err := svc.RequestRebowl(c.Request.Context(), c.Param("id"), req.Identity, req.MixID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"code": 0, "data": r})
	}
}

func listRebowls(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.Rebowls(c.Request.Context(), c.Param("id"), c.Query("identity"))
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, list)
	}
}

func advanceRebowl(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Status string `json:"status" binding:"required"`
			Note   string `json:"note"`
			Actor  string `json:"actor"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		r, err := svc.AdvanceRebowl(c.Request.Context(), c.Param("id"),
			lifecycle.RebowlStatus(req.Status), req.Note, req.Actor)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, r)
	}
}

// adjustTimer 手动加减会话分钟数。
func adjustTimer(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Minutes int    `json:"minutes" binding:"required"`
			Actor   string `json:"actor"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		o, err := svc.AdjustTimer(c.Request.Context(), c.Param("id"), req.Minutes, req.Actor)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, viewOf(o))
	}
}
