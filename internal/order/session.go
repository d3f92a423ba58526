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

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 单次调时上限（分钟）。
const maxTimerAdjust = 24 * 60

// RequestRebowl 客户端在会话中申请换一碗。
// mixID 为空时沿用订单里的口味；每个订单同时只能有一个未结束的请求。
func (s *Service) RequestRebowl(ctx context.Context, orderID, identity, mixID string) (*model.RebowlRequest, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, &ValidationError{Field: "identity", Msg: "required"}
	}
	o, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Identity != identity {
		return nil, ErrNotFound
	}
	reject := func(from lifecycle.Status, reason string) error {
		return &TransitionError{OrderID: orderID, From: from, To: from, Reason: reason}
	}
	if !lifecycle.RebowlAllowed(o.Status) {
		return nil, reject(o.Status, "a new bowl can only be requested during an active session")
	}
	if s.hours.IsAfterHours(s.now()) {
		return nil, reject(o.Status, "a new bowl is not available after hours")
	}

	mixID = strings.TrimSpace(mixID)
	if mixID == "" {
		for _, it := range o.Items {
			if it.Kind == model.ItemUnit {
				mixID = it.ProductID
				break
			}
		}
	}
	mixes, err := s.catalog.MixesByID(ctx, []string{mixID})
	if err != nil {
		return nil, err
	}
	mix, ok := mixes[mixID]
	if !ok {
		return nil, &ValidationError{Field: "mix_id", Msg: fmt.Sprintf("unknown mix %q", mixID)}
	}

	r := &model.RebowlRequest{
		ID:         uuid.New().String(),
		OrderID:    o.ID,
		Identity:   identity,
		MixID:      mix.ID,
		MixName:    mix.Name,
		Price:      decimal.NewFromInt(s.opts.RebowlPrice),
		AddMinutes: int(s.opts.RebowlDuration / time.Minute),
		Status:     lifecycle.RebowlRequested,
	}
	var status lifecycle.Status
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur model.Order
		if err := tx.Select("id", "status").Where("id = ?", o.ID).First(&cur).Error; err != nil {
			return err
		}
		if !lifecycle.RebowlAllowed(cur.Status) {
			return reject(cur.Status, "a new bowl can only be requested during an active session")
		}
		var open int64
		if err := tx.Model(&model.RebowlRequest{}).
			Where("order_id = ? AND status IN ?", o.ID, lifecycle.OpenRebowl()).
			Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return reject(cur.Status, "a new bowl was already requested")
		}
		if err := tx.Create(r).Error; err != nil {
			return err
		}
		status = cur.Status
		return audit(tx, o.ID, "rebowl_requested", clientActor(identity),
			fmt.Sprintf("rebowl=%s mix=%s", r.ID, r.MixID))
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Rebowls.WithLabelValues(string(r.Status)).Inc()
	s.emit(ctx, o, queue.EventRebowlRequested, status)
	s.logger.Info("rebowl requested", zap.String("order_id", o.ID), zap.String("rebowl_id", r.ID))
	return r, nil
}

// Rebowls 某订单的换碗请求，新的在前。
func (s *Service) Rebowls(ctx context.Context, orderID, identity string) ([]model.RebowlRequest, error) {
	if strings.TrimSpace(identity) == "" {
		return nil, &ValidationError{Field: "identity", Msg: "required"}
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND identity = ?", orderID, identity).
		Count(&n).Error; err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	list := []model.RebowlRequest{}
	err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}

// AdvanceRebowl 管理端推进换碗请求：REQUESTED -> IN_PROGRESS -> DONE，未完成前可 CANCELED。
// DONE 时订单回到 SESSION_ACTIVE，会话从现在起重新计时。
func (s *Service) AdvanceRebowl(ctx context.Context, rebowlID string, to lifecycle.RebowlStatus, note, actor string) (*model.RebowlRequest, error) {
	if _, err := lifecycle.ParseRebowlStatus(string(to)); err != nil {
		return nil, &ValidationError{Field: "status", Msg: err.Error()}
	}
	if actor == "" {
		actor = "admin"
	}

	var (
		r model.RebowlRequest
		o model.Order
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ?", rebowlID).First(&r).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if err := tx.Select("id", "status").Where("id = ?", r.OrderID).First(&o).Error; err != nil {
			return err
		}
		from := r.Status
		if !lifecycle.CanTransitionRebowl(from, to) {
			return &TransitionError{OrderID: r.OrderID, From: o.Status, To: o.Status,
				Reason: fmt.Sprintf("new bowl request cannot move from %s to %s", from, to)}
		}

		now := s.now()
		updates := map[string]any{"status": to}
		switch to {
		case lifecycle.RebowlInProgress:
			updates["in_progress_at"] = now
		case lifecycle.RebowlDone:
			updates["done_at"] = now
		case lifecycle.RebowlCanceled:
			updates["canceled_at"] = now
			updates["admin_note"] = note
		}
		res := tx.Model(&model.RebowlRequest{}).
			Where("id = ? AND status = ?", rebowlID, from).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &TransitionError{OrderID: r.OrderID, From: o.Status, To: o.Status,
				Reason: "new bowl request changed concurrently"}
		}

		if to == lifecycle.RebowlDone {
			session := map[string]any{}
			restartSession(session, now, time.Duration(r.AddMinutes)*time.Minute)
			res := tx.Model(&model.Order{}).
				Where("id = ? AND status IN ?", r.OrderID,
					[]lifecycle.Status{lifecycle.StatusSessionActive, lifecycle.StatusSessionEnding}).
				Updates(session)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return s.rejection(tx, r.OrderID, "", lifecycle.StatusSessionActive, "session is no longer active")
			}
		}

		if err := tx.Where("id = ?", rebowlID).First(&r).Error; err != nil {
			return err
		}
		if err := tx.Preload("Items").Where("id = ?", r.OrderID).First(&o).Error; err != nil {
			return err
		}
		details := fmt.Sprintf("rebowl=%s %s -> %s", rebowlID, from, to)
		if note != "" {
			details += ": " + note
		}
		return audit(tx, r.OrderID, "rebowl_status_changed", actor, details)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Rebowls.WithLabelValues(string(r.Status)).Inc()
	if r.Status == lifecycle.RebowlDone {
		s.metrics.Transitions.WithLabelValues(string(o.Status), "admin").Inc()
	}
	s.emit(ctx, &o, queue.EventForRebowl(r.Status), o.Status)
	s.logger.Info("rebowl status changed",
		zap.String("order_id", r.OrderID),
		zap.String("rebowl_id", r.ID),
		zap.String("status", string(r.Status)))
	return &r, nil
}

// AdjustTimer 管理端手动调整会话结束时间（可为负）。
// 结果不早于当前时刻；SESSION_ENDING 被延长到提醒窗口之外时回到 SESSION_ACTIVE。
func (s *Service) AdjustTimer(ctx context.Context, orderID string, minutes int, actor string) (*model.Order, error) {
	if minutes == 0 || minutes > maxTimerAdjust || minutes < -maxTimerAdjust {
		return nil, &ValidationError{Field: "minutes",
			Msg: fmt.Sprintf("must be non-zero and within ±%d", maxTimerAdjust)}
	}
	if actor == "" {
		actor = "admin"
	}

	var o model.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur model.Order
		err := tx.Where("id = ?", orderID).First(&cur).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if !cur.Status.IsTimed() || cur.SessionEndsAt == nil {
			return &TransitionError{OrderID: orderID, From: cur.Status, To: cur.Status,
				Reason: "timer can only be adjusted during a session"}
		}

		now := s.now()
		ends := cur.SessionEndsAt.Add(time.Duration(minutes) * time.Minute)
		if ends.Before(now) {
			ends = now
		}
		updates := map[string]any{"session_ends_at": ends}
		if cur.Status == lifecycle.StatusSessionEnding && ends.After(now.Add(s.opts.EndingWarning)) {
			updates["status"] = lifecycle.StatusSessionActive
		}
		res := tx.Model(&model.Order{}).
			Where("id = ? AND status = ?", orderID, cur.Status).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return s.rejection(tx, orderID, "", cur.Status, "order status changed concurrently")
		}
		if err := tx.Preload("Items").Where("id = ?", orderID).First(&o).Error; err != nil {
			return err
		}
		return audit(tx, orderID, "timer_adjusted", actor,
			fmt.Sprintf("minutes=%+d session_ends_at=%s", minutes, ends.Format(time.RFC3339)))
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, &o, queue.EventTimerAdjusted, o.Status)
	s.logger.Info("session timer adjusted",
		zap.String("order_id", o.ID),
		zap.Int("minutes", minutes),
		zap.String("status", string(o.Status)))
	return &o, nil
}
