package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hookah_delivery/internal/lifecycle"
	"hookah_delivery/internal/model"
	"hookah_delivery/internal/queue"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 客户端动作被拒绝时返回给用户的说明。
var rejectReasons = map[lifecycle.Action]string{
	lifecycle.ActionCancel:         "cancel is only possible before delivery",
	lifecycle.ActionReadyForPickup: "pickup can only be requested during an active session",
}

// Cancel 客户端取消，仅 NEW/CONFIRMED/ON_THE_WAY。
func (s *Service) Cancel(ctx context.Context, id, identity string) (*model.Order, error) {
	return s.clientAction(ctx, id, identity, lifecycle.ActionCancel)
}

// ReadyForPickup 客户端请求取回设备，仅 SESSION_ACTIVE/SESSION_ENDING。
func (s *Service) ReadyForPickup(ctx context.Context, id, identity string) (*model.Order, error) {
	return s.clientAction(ctx, id, identity, lifecycle.ActionReadyForPickup)
}

// clientAction 条件更新：WHERE status IN (允许集合)，并发下只有一个请求生效。
func (s *Service) clientAction(ctx context.Context, id, identity string, action lifecycle.Action) (*model.Order, error) {
	if strings.TrimSpace(identity) == "" {
		return nil, &ValidationError{Field: "identity", Msg: "required"}
	}
	to, ok := lifecycle.Target(action)
	if !ok {
		return nil, &ValidationError{Field: "action", Msg: fmt.Sprintf("unknown action %q", action)}
	}
	now := s.now()
	updates := stampUpdates(to, now)
	if action == lifecycle.ActionCancel {
		updates["cancel_reason"] = "canceled by client"
	}

	var o model.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Order{}).
			Where("id = ? AND identity = ? AND status IN ?", id, identity, lifecycle.AllowedFrom(action)).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return s.rejection(tx, id, identity, to, rejectReasons[action])
		}
		if err := tx.Preload("Items").Where("id = ?", id).First(&o).Error; err != nil {
			return err
		}
		return audit(tx, id, string(action), clientActor(identity), fmt.Sprintf("-> %s", to))
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, &o, "client")
	return &o, nil
}

// rejection 区分「订单不存在」和「状态不允许」。
func (s *Service) rejection(tx *gorm.DB, id, identity string, to lifecycle.Status, reason string) error {
	var cur model.Order
	q := tx.Select("id", "status").Where("id = ?", id)
	if identity != "" {
		q = q.Where("identity = ?", identity)
	}
	err := q.First(&cur).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return &TransitionError{OrderID: id, From: cur.Status, To: to, Reason: reason}
}

// Advance 管理端推进状态，受服务端转换表约束。
func (s *Service) Advance(ctx context.Context, id string, to lifecycle.Status, reason, actor string) (*model.Order, error) {
	if _, err := lifecycle.ParseStatus(string(to)); err != nil {
		return nil, &ValidationError{Field: "status", Msg: err.Error()}
	}
	if actor == "" {
		actor = "admin"
	}

	var o model.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur model.Order
		err := tx.Where("id = ?", id).First(&cur).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if !lifecycle.CanTransition(cur.Status, to) {
			return &TransitionError{OrderID: id, From: cur.Status, To: to,
				Reason: fmt.Sprintf("transition %s -> %s is not allowed", cur.Status, to)}
		}

		now := s.now()
		updates := stampUpdates(to, now)
		if to == lifecycle.StatusSessionActive {
			// 从 WAITING_FOR_PICKUP 或 SESSION_ENDING 回到进行中时同样重新计一个完整会话
			restartSession(updates, now, s.opts.SessionDuration)
		}
		if to == lifecycle.StatusCanceled {
			if reason == "" {
				reason = "canceled by operator"
			}
			updates["cancel_reason"] = reason
		}

		res := tx.Model(&model.Order{}).
			Where("id = ? AND status = ?", id, cur.Status).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return s.rejection(tx, id, "", to, "order status changed concurrently")
		}
		if err := tx.Preload("Items").Where("id = ?", id).First(&o).Error; err != nil {
			return err
		}
		details := fmt.Sprintf("%s -> %s", cur.Status, to)
		if reason != "" {
			details += ": " + reason
		}
		return audit(tx, id, "status_changed", actor, details)
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, &o, "admin")
	return &o, nil
}

// FreeExtension 免费续时：仅 SESSION_ENDING、每单一次、非深夜时段。
func (s *Service) FreeExtension(ctx context.Context, id, actor string) (*model.Order, error) {
	if actor == "" {
		actor = "admin"
	}
	now := s.now()
	if s.hours.IsAfterHours(now) {
		return nil, &TransitionError{OrderID: id, To: lifecycle.StatusSessionActive,
			Reason: "free extension is not available after hours"}
	}

	var o model.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur model.Order
		err := tx.Where("id = ?", id).First(&cur).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		reject := func(reason string) error {
			return &TransitionError{OrderID: id, From: cur.Status, To: lifecycle.StatusSessionActive, Reason: reason}
		}
		switch {
		case cur.Status != lifecycle.StatusSessionEnding:
			return reject("free extension is only available while the session is ending")
		case cur.FreeExtensionUsed:
			return reject("free extension was already used")
		case cur.SessionEndsAt == nil:
			return reject("session has no end time")
		}

		ends := cur.SessionEndsAt.Add(s.opts.FreeExtension)
		res := tx.Model(&model.Order{}).
			Where("id = ? AND status = ? AND free_extension_used = ?", id, lifecycle.StatusSessionEnding, false).
			Updates(map[string]any{
				"status":              lifecycle.StatusSessionActive,
				"session_ends_at":     ends,
				"free_extension_used": true,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return reject("order status changed concurrently")
		}
		if err := tx.Preload("Items").Where("id = ?", id).First(&o).Error; err != nil {
			return err
		}
		return audit(tx, id, "free_extension", actor, fmt.Sprintf("session_ends_at=%s", ends.Format(time.RFC3339)))
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Transitions.WithLabelValues(string(o.Status), "admin").Inc()
	s.emit(ctx, &o, queue.EventFreeExtension, o.Status)
	s.logger.Info("free extension applied", zap.String("order_id", o.ID))
	return &o, nil
}

// afterTransition 提交后的副作用：终态归还设备，记指标，写事件。
func (s *Service) afterTransition(ctx context.Context, o *model.Order, actor string) {
	if o.Status.IsTerminal() {
		s.release(ctx, o)
	}
	s.metrics.Transitions.WithLabelValues(string(o.Status), actor).Inc()
	if ev := queue.EventForStatus(o.Status); ev != "" {
		s.emit(ctx, o, ev, o.Status)
	}
	s.logger.Info("order status changed",
		zap.String("order_id", o.ID),
		zap.String("status", string(o.Status)),
		zap.String("actor", actor))
}

// restartSession 会话从 now 起重新计时 d，送达开始会话和换碗完成共用。
func restartSession(updates map[string]any, now time.Time, d time.Duration) {
	updates["status"] = lifecycle.StatusSessionActive
	updates["session_started_at"] = now
	updates["session_ends_at"] = now.Add(d)
}

// stampUpdates 目标状态对应的时间戳字段。
func stampUpdates(to lifecycle.Status, now time.Time) map[string]any {
	updates := map[string]any{"status": to}
	switch to {
	case lifecycle.StatusConfirmed:
		updates["confirmed_at"] = now
	case lifecycle.StatusOnTheWay:
		updates["departed_at"] = now
	case lifecycle.StatusDelivered:
		updates["delivered_at"] = now
	case lifecycle.StatusWaitingForPickup:
		updates["pickup_requested_at"] = now
	case lifecycle.StatusCompleted:
		updates["completed_at"] = now
	case lifecycle.StatusCanceled:
		updates["canceled_at"] = now
	}
	return updates
}
