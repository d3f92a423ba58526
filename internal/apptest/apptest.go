// Package apptest 在内存中拉起完整的服务端（sqlite + miniredis + gin），供各包的测试使用。
package apptest

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hookah_delivery/internal/catalog"
	"hookah_delivery/internal/config"
	"hookah_delivery/internal/metrics"
	"hookah_delivery/internal/model"
	"hookah_delivery/internal/order"
	"hookah_delivery/internal/queue"
	"hookah_delivery/internal/router"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const AdminToken = "test-admin-token"

// Env 一套完整的服务端。
type Env struct {
	Server    *httptest.Server
	Engine    *gin.Engine
	Orders    *order.Service
	Catalog   *catalog.Repository
	Outbox    *queue.Outbox
	Metrics   *metrics.Metrics
	DB        *gorm.DB
	Redis     *rd.Client
	Miniredis *miniredis.Miniredis
	Config    config.AppConfig
}

// Config 默认配置：5 台设备，每单最多 3 台。
func Config() config.AppConfig {
	return config.AppConfig{
		OrderEventStream:   "hookah:order_events",
		OrderEventGroup:    "relay",
		OrderEventConsumer: "relay-1",
		OrderRateLimit:     100,
		OrderRateWindow:    time.Second,
		AdminToken:         AdminToken,
		TotalUnits:         5,
		MaxPerOrder:        3,
		MaxAddOns:          8,
		BaseUnitPrice:      70,
		DepositAmount:      100,
		RebowlPrice:        50,
		SessionDuration:    120 * time.Minute,
		FreeExtension:      60 * time.Minute,
		RebowlDuration:     120 * time.Minute,
		EndingWarning:      30 * time.Minute,
		SweepInterval:      time.Minute,
		Timezone:           "UTC",
		LateOrderCutoff:    "01:30",
		AfterHoursStart:    "02:00",
		AfterHoursEnd:      "02:01",
	}
}

// New 启动服务端；mutate 可以在启动前修改配置。
func New(t testing.TB, mutate ...func(*config.AppConfig)) *Env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := Config()
	for _, fn := range mutate {
		fn(&cfg)
	}

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(model.All()...))

	cat := catalog.NewRepository(db)
	require.NoError(t, cat.SeedDefaults(context.Background(), cfg.BaseUnitPrice))

	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	hours, err := cfg.Hours()
	require.NoError(t, err)

	m := metrics.New()
	outbox := queue.NewOutbox(rdb, cfg.OrderEventStream)
	svc := order.NewService(db, rdb, cat, outbox, m, hours, order.OptionsFromConfig(cfg), zap.NewNop())

	r := gin.New()
	router.Setup(r, router.Deps{
		Orders:  svc,
		Catalog: cat,
		Redis:   rdb,
		Metrics: m,
		Config:  cfg,
		Logger:  zap.NewNop(),
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &Env{
		Server:    srv,
		Engine:    r,
		Orders:    svc,
		Catalog:   cat,
		Outbox:    outbox,
		Metrics:   m,
		DB:        db,
		Redis:     rdb,
		Miniredis: mr,
		Config:    cfg,
	}
}
