package router

import (
	"net/http"

	"hookah_delivery/internal/catalog"
	"hookah_delivery/internal/config"
	"hookah_delivery/internal/metrics"
	"hookah_delivery/internal/middleware"
	"hookah_delivery/internal/order"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deps 路由依赖。
type Deps struct {
	Orders  *order.Service
	Catalog *catalog.Repository
	Redis   *rd.Client
	Metrics *metrics.Metrics
	Config  config.AppConfig
	Logger  *zap.Logger
}

// Setup 注册全部 HTTP 路由。
func Setup(r *gin.Engine, d Deps) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "pong"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	// Catalog
	api.GET("/availability", getAvailability(d.Orders, d.Config))
	api.GET("/mixes", listMixes(d.Catalog))
	api.GET("/mixes/featured", getFeatured(d.Catalog))
	api.GET("/drinks", listDrinks(d.Catalog))
	api.POST("/promo/validate", validatePromo(d.Orders))

	// Orders
	api.POST("/orders",
		middleware.RedisRateLimit(d.Redis, d.Config.OrderRateLimit, d.Config.OrderRateWindow, d.Logger),
		createOrder(d.Orders))
	api.GET("/orders", listOrders(d.Orders))
	api.POST("/orders/:id/cancel", cancelOrder(d.Orders))
	api.POST("/orders/:id/ready-for-pickup", readyForPickup(d.Orders))
	api.POST("/orders/:id/rebowl", requestRebowl(d.Orders))
	api.GET("/orders/:id/rebowls", listRebowls(d.Orders))

	// Admin
	admin := api.Group("/admin", middleware.AdminToken(d.Config.AdminToken))
	admin.POST("/orders/:id/status", advanceOrder(d.Orders))
	admin.POST("/orders/:id/free-extension", freeExtension(d.Orders))
	admin.POST("/orders/:id/timer", adjustTimer(d.Orders))
	admin.POST("/rebowls/:id/status", advanceRebowl(d.Orders))
	admin.POST("/pool/resync", resyncPool(d.Orders))
}

// getAvailability 设备池读数，cap 与 sold_out 一并返回。
func getAvailability(svc *order.Service, cfg config.AppConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := svc.Availability(c.Request.Context())
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, gin.H{
			"available":     snap.Available,
			"max_per_order": snap.MaxPerOrder,
			"cap":           snap.Cap(),
			"sold_out":      snap.SoldOut(),
			"paused":        cfg.OrdersPaused,
			"pause_reason":  cfg.PauseReason,
		})
	}
}

func listMixes(repo *catalog.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := repo.Mixes(c.Request.Context())
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, list)
	}
}

// getFeatured 没有推荐时 data 为 null。
func getFeatured(repo *catalog.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		m, err := repo.Featured(c.Request.Context())
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, m)
	}
}

func listDrinks(repo *catalog.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := repo.Drinks(c.Request.Context())
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, list)
	}
}

func validatePromo(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Code  string `json:"code" binding:"required"`
			Phone string `json:"phone"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		percent, err := svc.ValidatePromo(c.Request.Context(), req.Code, req.Phone)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, gin.H{"code": req.Code, "percent": percent})
	}
}
