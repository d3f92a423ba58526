package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hookah_delivery/internal/catalog"
	"hookah_delivery/internal/config"
	"hookah_delivery/internal/lifecycle"
	"hookah_delivery/internal/metrics"
	"hookah_delivery/internal/middleware"
	"hookah_delivery/internal/model"
	"hookah_delivery/internal/order"
	"hookah_delivery/internal/queue"
	"hookah_delivery/internal/router"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("config: " + err.Error())
	}
	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := zc.Build()
	if err != nil {
		panic("logger: " + err.Error())
	}
	return logger
}

func run(cfg config.AppConfig, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. 连接 SQLite，自动建表，写入演示目录
	db, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{})
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(model.All()...); err != nil {
		return err
	}
	cat := catalog.NewRepository(db)
	if err := cat.SeedDefaults(ctx, cfg.BaseUnitPrice); err != nil {
		return err
	}

	// 2. Redis：设备池计数、身份锁、限流、事件 outbox
	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return err
	}

	hours, err := cfg.Hours()
	if err != nil {
		return err
	}
	m := metrics.New()
	outbox := queue.NewOutbox(rdb, cfg.OrderEventStream)
	svc := order.NewService(db, rdb, cat, outbox, m, hours, order.OptionsFromConfig(cfg), logger.Named("order"))

	// 启动时以数据库为准重算设备占用
	if _, err := svc.ResyncPool(ctx); err != nil {
		return err
	}

	// 3. Kafka：Relay 把 outbox 转发到 Kafka，Consumer 发送通知
	producer := queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer producer.Close()
	relay := queue.NewRelay(rdb, producer, cfg.OrderEventStream, cfg.OrderEventGroup, cfg.OrderEventConsumer, logger.Named("relay"))
	notifier := queue.NewLogNotifier(db, hours, lifecycle.DefaultLanguage, logger.Named("notifier"))
	consumer := queue.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, notifier, logger.Named("consumer"))
	defer consumer.Close()

	sweeper := order.NewSweeper(svc, cfg.SweepInterval, logger.Named("sweeper"))

	// 4. HTTP
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger.Named("http")))
	router.Setup(r, router.Deps{
		Orders:  svc,
		Catalog: cat,
		Redis:   rdb,
		Metrics: m,
		Config:  cfg,
		Logger:  logger,
	})
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { relay.Run(gctx); return nil })
	g.Go(func() error { consumer.Run(gctx); return nil })
	g.Go(func() error { sweeper.Run(gctx); return nil })
	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr),
			zap.Int("total_units", cfg.TotalUnits), zap.Bool("paused", cfg.OrdersPaused))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
