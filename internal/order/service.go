package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hookah_delivery/internal/capacity"
	"hookah_delivery/internal/catalog"
	"hookah_delivery/internal/config"
	"hookah_delivery/internal/lifecycle"
	"hookah_delivery/internal/metrics"
	"hookah_delivery/internal/model"
	"hookah_delivery/internal/policy"
	"hookah_delivery/internal/queue"
	rediskey "hookah_delivery/pkg/redis"

	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EventSink 订单事件出口（Redis Stream outbox）。
type EventSink interface {
	Append(ctx context.Context, ev queue.OrderEvent) error
}

// Options 设备池与会话策略参数。
type Options struct {
	TotalUnits      int
	MaxPerOrder     int
	MaxAddOns       int
	DepositAmount   int64
	RebowlPrice     int64
	SessionDuration time.Duration
	FreeExtension   time.Duration
	RebowlDuration  time.Duration
	EndingWarning   time.Duration
	Paused          bool
	PauseReason     string
}

func OptionsFromConfig(cfg config.AppConfig) Options {
	return Options{
		TotalUnits:      cfg.TotalUnits,
		MaxPerOrder:     cfg.MaxPerOrder,
		MaxAddOns:       cfg.MaxAddOns,
		DepositAmount:   cfg.DepositAmount,
		RebowlPrice:     cfg.RebowlPrice,
		SessionDuration: cfg.SessionDuration,
		FreeExtension:   cfg.FreeExtension,
		RebowlDuration:  cfg.RebowlDuration,
		EndingWarning:   cfg.EndingWarning,
		Paused:          cfg.OrdersPaused,
		PauseReason:     cfg.PauseReason,
	}
}

// Service 订单准入、定价与生命周期，服务端权威。
type Service struct {
	db      *gorm.DB
	rdb     *rd.Client
	catalog *catalog.Repository
	events  EventSink
	metrics *metrics.Metrics
	hours   policy.Hours
	opts    Options
	logger  *zap.Logger
	now     func() time.Time
}

func NewService(db *gorm.DB, rdb *rd.Client, cat *catalog.Repository, events EventSink,
	m *metrics.Metrics, hours policy.Hours, opts Options, logger *zap.Logger) *Service {
	return &Service{
		db:      db,
		rdb:     rdb,
		catalog: cat,
		events:  events,
		metrics: m,
		hours:   hours,
		opts:    opts,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Availability 当前可用设备数与单笔上限；暂停接单时可用数为 0。
func (s *Service) Availability(ctx context.Context) (capacity.Snapshot, error) {
	snap := capacity.Snapshot{MaxPerOrder: uint(s.opts.MaxPerOrder)}
	if s.opts.Paused {
		return snap, nil
	}
	inUse, err := rediskey.UnitsInUse(ctx, s.rdb)
	if err != nil {
		return snap, err
	}
	s.metrics.UnitsInUse.Set(float64(inUse))
	if free := int64(s.opts.TotalUnits) - inUse; free > 0 {
		snap.Available = uint(free)
	}
	return snap, nil
}

// Orders 某身份的进行中订单与历史。
type Orders struct {
	Active  *model.Order  `json:"active"`
	History []model.Order `json:"history"`
}

func (s *Service) List(ctx context.Context, identity string) (Orders, error) {
	if identity == "" {
		return Orders{}, &ValidationError{Field: "identity", Msg: "required"}
	}
	var list []model.Order
	err := s.db.WithContext(ctx).
		Preload("Items").
		Where("identity = ?", identity).
		Order("created_at DESC").
		Limit(50).
		Find(&list).Error
	if err != nil {
		return Orders{}, err
	}
	out := Orders{History: make([]model.Order, 0, len(list))}
	for i := range list {
		if out.Active == nil && !list[i].Status.IsTerminal() {
			out.Active = &list[i]
			continue
		}
		out.History = append(out.History, list[i])
	}
	return out, nil
}

// Get 按 ID 取订单（含订单行）。
func (s *Service) Get(ctx context.Context, id string) (*model.Order, error) {
	var o model.Order
	err := s.db.WithContext(ctx).Preload("Items").Where("id = ?", id).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ResyncPool 用数据库中非终态订单重算 Redis 占用数与身份锁。
func (s *Service) ResyncPool(ctx context.Context) (int64, error) {
	var active []model.Order
	err := s.db.WithContext(ctx).
		Select("id", "identity", "units", "status").
		Where("status IN ?", lifecycle.UnitHolding()).
		Find(&active).Error
	if err != nil {
		return 0, err
	}
	var inUse int64
	holders := make(map[string]string, len(active))
	for _, o := range active {
		inUse += int64(o.Units)
		holders[o.Identity] = o.ID
		if err := rediskey.ForceActiveOrderLock(ctx, s.rdb, o.Identity, o.ID); err != nil {
			return 0, err
		}
	}
	// 清掉没有对应进行中订单的残留锁
	locks, err := rediskey.ActiveOrderLocks(ctx, s.rdb)
	if err != nil {
		return 0, err
	}
	for identity, orderID := range locks {
		if holders[identity] == orderID {
			continue
		}
		removed, err := rediskey.ReclaimActiveOrderLock(ctx, s.rdb, identity, orderID)
		if err != nil {
			return 0, err
		}
		if removed {
			s.logger.Warn("dropped stale active order lock",
				zap.String("identity", identity),
				zap.String("order_id", orderID))
		}
	}
	if err := rediskey.SetUnitsInUse(ctx, s.rdb, inUse); err != nil {
		return 0, err
	}
	s.metrics.UnitsInUse.Set(float64(inUse))
	s.logger.Info("unit pool resynced", zap.Int64("in_use", inUse), zap.Int("active_orders", len(active)))
	return inUse, nil
}

// release 订单终结时归还设备并释放身份锁，重复调用无副作用。
func (s *Service) release(ctx context.Context, o *model.Order) {
	if _, err := rediskey.ReleaseUnitsOnce(ctx, s.rdb, o.ID, o.Units); err != nil {
		s.logger.Error("release units", zap.String("order_id", o.ID), zap.Error(err))
	}
	if err := rediskey.ReleaseActiveOrderLockIfMatch(ctx, s.rdb, o.Identity, o.ID); err != nil {
		s.logger.Error("release active order lock", zap.String("order_id", o.ID), zap.Error(err))
	}
}

// emit 事件写入 outbox；失败只记日志，不影响已提交的状态。
func (s *Service) emit(ctx context.Context, o *model.Order, event string, status lifecycle.Status) {
	if s.events == nil {
		return
	}
	ev := queue.OrderEvent{
		EventID:  uuid.New().String(),
		OrderID:  o.ID,
		Identity: o.Identity,
		Event:    event,
		Status:   status,
		At:       s.now(),
	}
	if err := s.events.Append(ctx, ev); err != nil {
		s.logger.Error("append order event",
			zap.String("order_id", o.ID),
			zap.String("event", event),
			zap.Error(err))
	}
}

func audit(tx *gorm.DB, orderID, action, actor, details string) error {
	return tx.Create(&model.AuditLog{
		EntityType: "order",
		EntityID:   orderID,
		Action:     action,
		Actor:      actor,
		Details:    details,
	}).Error
}

func clientActor(identity string) string {
	return fmt.Sprintf("client:%s", identity)
}
