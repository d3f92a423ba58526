package order

import (
	"context"
	"time"

	"hookah_delivery/internal/lifecycle"
	"hookah_delivery/internal/model"
	"hookah_delivery/internal/queue"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const sweeperActor = "system:sweeper"

// SweepExpiring 把即将结束的会话（剩余 <= ENDING_WARNING）标记为 SESSION_ENDING，返回被标记的订单 ID。
func (s *Service) SweepExpiring(ctx context.Context) ([]string, error) {
	now := s.now()
	var due []model.Order
	err := s.db.WithContext(ctx).
		Where("status = ? AND session_ends_at IS NOT NULL AND session_ends_at <= ?",
			lifecycle.StatusSessionActive, now.Add(s.opts.EndingWarning)).
		Find(&due).Error
	if err != nil {
		return nil, err
	}

	var swept []string
	for i := range due {
		o := &due[i]
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&model.Order{}).
				Where("id = ? AND status = ?", o.ID, lifecycle.StatusSessionActive).
				Update("status", lifecycle.StatusSessionEnding)
			if res.Error != nil || res.RowsAffected == 0 {
				return res.Error
			}
			o.Status = lifecycle.StatusSessionEnding
			return audit(tx, o.ID, "status_changed", sweeperActor,
				string(lifecycle.StatusSessionActive)+" -> "+string(lifecycle.StatusSessionEnding))
		})
		if err != nil {
			s.logger.Error("sweep order", zap.String("order_id", o.ID), zap.Error(err))
			continue
		}
		if o.Status != lifecycle.StatusSessionEnding {
			continue
		}
		swept = append(swept, o.ID)
		s.metrics.SweptOrders.Inc()
		s.metrics.Transitions.WithLabelValues(string(o.Status), "system").Inc()
		s.emit(ctx, o, queue.EventSessionEnding, o.Status)
	}
	if len(swept) > 0 {
		s.logger.Info("sessions ending", zap.Strings("order_ids", swept))
	}
	return swept, nil
}

// Sweeper 定时执行 SweepExpiring。
type Sweeper struct {
	svc      *Service
	interval time.Duration
	logger   *zap.Logger
}

func NewSweeper(svc *Service, interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{svc: svc, interval: interval, logger: logger}
}

func (w *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := w.svc.SweepExpiring(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error("session sweep failed", zap.Error(err))
			}
		}
	}
}
