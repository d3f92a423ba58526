package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"hookah_delivery/internal/lifecycle"
	"hookah_delivery/internal/model"
	"hookah_delivery/internal/pricing"
	"hookah_delivery/internal/queue"
	rediskey "hookah_delivery/pkg/redis"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Selection 购物车中的一行（商品 ID + 数量）。
type Selection struct {
	ID  string `json:"id"`
	Qty int    `json:"qty"`
}

// CreateRequest 下单请求体。
type CreateRequest struct {
	Identity        string            `json:"identity"`
	BaseSelections  []Selection       `json:"base_selections"`
	AddOnSelections []Selection       `json:"addon_selections"`
	Phone           string            `json:"phone"`
	Address         string            `json:"address"`
	Entrance        string            `json:"entrance"`
	Floor           string            `json:"floor"`
	Apartment       string            `json:"apartment"`
	DoorCode        string            `json:"door_code"`
	Comment         string            `json:"comment"`
	DepositType     model.DepositType `json:"deposit_type"`
	PromoCode       string            `json:"promo_code"`
	RulesAccepted   bool              `json:"rules_accepted"`
}

// CreateResult 下单成功返回值，金额为服务端计算结果。
type CreateResult struct {
	OrderID         string           `json:"order_id"`
	Status          lifecycle.Status `json:"status"`
	UnitPrice       decimal.Decimal  `json:"unit_price"`
	AddOnsTotal     decimal.Decimal  `json:"addons_total"`
	Discount        decimal.Decimal  `json:"discount"`
	DiscountPercent int              `json:"discount_percent"`
	Total           decimal.Decimal  `json:"total"`
	IsLateOrder     bool             `json:"is_late_order"`
}

// Create 下单主流程：
// 1) 校验请求并捕获目录价格
// 2) 折扣码校验
// 3) 身份锁（每个身份一个进行中订单）
// 4) Lua 原子占用设备（权威上限）
// 5) 事务写订单、订单行、折扣码使用记录、审计日志
// 3/4 之后任何失败都要归还设备并释放锁。
func (s *Service) Create(ctx context.Context, req CreateRequest) (CreateResult, error) {
	if s.opts.Paused {
		s.metrics.Admissions.WithLabelValues("paused").Inc()
		if s.opts.PauseReason != "" {
			return CreateResult{}, fmt.Errorf("%w: %s", ErrOrdersPaused, s.opts.PauseReason)
		}
		return CreateResult{}, ErrOrdersPaused
	}

	req, err := s.normalize(req)
	if err != nil {
		s.metrics.Admissions.WithLabelValues("invalid").Inc()
		return CreateResult{}, err
	}
	units := sumQty(req.BaseSelections)

	items, unitPrice, addOnsTotal, err := s.priceItems(ctx, req)
	if err != nil {
		s.metrics.Admissions.WithLabelValues("invalid").Inc()
		return CreateResult{}, err
	}

	var promo *model.PromoCode
	if req.PromoCode != "" {
		promo, err = s.findUsablePromo(ctx, s.db.WithContext(ctx), req.PromoCode, req.Phone)
		if err != nil {
			s.metrics.Admissions.WithLabelValues("promo_invalid").Inc()
			return CreateResult{}, err
		}
	}
	percent := 0
	if promo != nil {
		percent = promo.Percent
	}
	draft := pricing.Compute(unitPrice, addOnsTotal, percent)

	// 应用层快速检查，Redis 锁丢失（重启、清库）时仍能拒绝
	var activeCount int64
	if err := s.db.WithContext(ctx).Model(&model.Order{}).
		Where("identity = ? AND status IN ?", req.Identity, lifecycle.UnitHolding()).
		Count(&activeCount).Error; err != nil {
		return CreateResult{}, err
	}
	if activeCount > 0 {
		s.metrics.Admissions.WithLabelValues("active_order").Inc()
		return CreateResult{}, ErrActiveOrderExists
	}

	now := s.now()
	o := &model.Order{
		ID:              uuid.New().String(),
		Identity:        req.Identity,
		Status:          lifecycle.StatusNew,
		Units:           units,
		Phone:           req.Phone,
		Address:         req.Address,
		Entrance:        req.Entrance,
		Floor:           req.Floor,
		Apartment:       req.Apartment,
		DoorCode:        req.DoorCode,
		Comment:         req.Comment,
		DepositType:     req.DepositType,
		DiscountPercent: draft.DiscountPercent,
		UnitPrice:       draft.UnitPrice,
		AddOnsTotal:     draft.AddOnsTotal,
		Discount:        draft.Discount,
		Total:           draft.Total,
		IsLateOrder:     s.hours.IsLateOrder(now),
		Items:           items,
	}
	if o.DepositType != model.DepositNone {
		o.DepositAmount = s.opts.DepositAmount
	}
	if promo != nil {
		code := promo.Code
		o.PromoCode = &code
	}

	ok, err := s.acquireActiveLock(ctx, o.Identity, o.ID)
	if err != nil {
		return CreateResult{}, err
	}
	if !ok {
		s.metrics.Admissions.WithLabelValues("active_order").Inc()
		return CreateResult{}, ErrActiveOrderExists
	}

	if _, err := rediskey.AcquireUnits(ctx, s.rdb, units, s.opts.TotalUnits, s.opts.MaxPerOrder); err != nil {
		_ = rediskey.ReleaseActiveOrderLockIfMatch(ctx, s.rdb, o.Identity, o.ID)
		if errors.Is(err, rediskey.ErrPoolExhausted) || errors.Is(err, rediskey.ErrOverPerOrderCap) {
			s.metrics.Admissions.WithLabelValues("capacity").Inc()
			return CreateResult{}, ErrCapacityExceeded
		}
		return CreateResult{}, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(o).Error; err != nil {
			return err
		}
		if promo != nil {
			if err := s.consumePromo(tx, promo, o); err != nil {
				return err
			}
		}
		return audit(tx, o.ID, "order_created", clientActor(o.Identity),
			fmt.Sprintf("units=%d total=%s", o.Units, o.Total.StringFixed(2)))
	})
	if err != nil {
		// 补偿：归还设备 + 释放锁
		s.release(ctx, o)
		if errors.Is(err, ErrPromoInvalid) {
			s.metrics.Admissions.WithLabelValues("promo_invalid").Inc()
			return CreateResult{}, err
		}
		s.logger.Error("persist order", zap.String("order_id", o.ID), zap.Error(err))
		return CreateResult{}, err
	}

	s.metrics.Admissions.WithLabelValues("accepted").Inc()
	s.metrics.Transitions.WithLabelValues(string(lifecycle.StatusNew), "client").Inc()
	s.emit(ctx, o, queue.EventOrderCreated, o.Status)
	s.logger.Info("order created",
		zap.String("order_id", o.ID),
		zap.Int("units", o.Units),
		zap.String("total", o.Total.StringFixed(2)),
		zap.Bool("late", o.IsLateOrder))

	return CreateResult{
		OrderID:         o.ID,
		Status:          o.Status,
		UnitPrice:       o.UnitPrice,
		AddOnsTotal:     o.AddOnsTotal,
		Discount:        o.Discount,
		DiscountPercent: o.DiscountPercent,
		Total:           o.Total,
		IsLateOrder:     o.IsLateOrder,
	}, nil
}

// normalize 合并重复行并校验字段。
func (s *Service) normalize(req CreateRequest) (CreateRequest, error) {
	req.Identity = strings.TrimSpace(req.Identity)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Address = strings.TrimSpace(req.Address)
	req.PromoCode = normalizeCode(req.PromoCode)
	if req.DepositType == "" {
		req.DepositType = model.DepositCash
	}

	switch {
	case req.Identity == "":
		return req, &ValidationError{Field: "identity", Msg: "required"}
	case req.Phone == "":
		return req, &ValidationError{Field: "phone", Msg: "required"}
	case req.Address == "":
		return req, &ValidationError{Field: "address", Msg: "required"}
	case !req.DepositType.Valid():
		return req, &ValidationError{Field: "deposit_type", Msg: "must be one of cash, passport, none"}
	case !req.RulesAccepted:
		return req, &ValidationError{Field: "rules_accepted", Msg: "rules must be accepted"}
	}

	var err error
	if req.BaseSelections, err = mergeSelections("base_selections", req.BaseSelections); err != nil {
		return req, err
	}
	if req.AddOnSelections, err = mergeSelections("addon_selections", req.AddOnSelections); err != nil {
		return req, err
	}
	units := sumQty(req.BaseSelections)
	if units == 0 {
		return req, &ValidationError{Field: "base_selections", Msg: "at least one unit is required"}
	}
	if units > s.opts.MaxPerOrder {
		return req, &ValidationError{Field: "base_selections",
			Msg: fmt.Sprintf("at most %d units per order", s.opts.MaxPerOrder)}
	}
	if addOns := sumQty(req.AddOnSelections); addOns > s.opts.MaxAddOns {
		return req, &ValidationError{Field: "addon_selections",
			Msg: fmt.Sprintf("at most %d add-ons per order", s.opts.MaxAddOns)}
	}
	return req, nil
}

func mergeSelections(field string, in []Selection) ([]Selection, error) {
	qty := make(map[string]int, len(in))
	for _, sel := range in {
		id := strings.TrimSpace(sel.ID)
		if id == "" {
			return nil, &ValidationError{Field: field, Msg: "id is required"}
		}
		if sel.Qty <= 0 {
			return nil, &ValidationError{Field: field, Msg: "qty must be positive"}
		}
		qty[id] += sel.Qty
	}
	out := make([]Selection, 0, len(qty))
	for id, q := range qty {
		out = append(out, Selection{ID: id, Qty: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func sumQty(list []Selection) int {
	n := 0
	for _, sel := range list {
		n += sel.Qty
	}
	return n
}

func selectionIDs(list []Selection) []string {
	ids := make([]string, 0, len(list))
	for _, sel := range list {
		ids = append(ids, sel.ID)
	}
	return ids
}

// priceItems 按目录当前价格生成订单行，返回设备总价与加购总价。
func (s *Service) priceItems(ctx context.Context, req CreateRequest) ([]model.OrderItem, decimal.Decimal, decimal.Decimal, error) {
	mixes, err := s.catalog.MixesByID(ctx, selectionIDs(req.BaseSelections))
	if err != nil {
		return nil, decimal.Zero, decimal.Zero, err
	}
	drinks, err := s.catalog.DrinksByID(ctx, selectionIDs(req.AddOnSelections))
	if err != nil {
		return nil, decimal.Zero, decimal.Zero, err
	}

	items := make([]model.OrderItem, 0, len(req.BaseSelections)+len(req.AddOnSelections))
	unitPrice, addOnsTotal := decimal.Zero, decimal.Zero
	for _, sel := range req.BaseSelections {
		m, ok := mixes[sel.ID]
		if !ok {
			return nil, decimal.Zero, decimal.Zero, &ValidationError{Field: "base_selections",
				Msg: fmt.Sprintf("unknown mix %q", sel.ID)}
		}
		price := decimal.NewFromInt(m.Price)
		line := pricing.LineTotal(price, uint(sel.Qty))
		unitPrice = unitPrice.Add(line)
		items = append(items, model.OrderItem{
			Kind: model.ItemUnit, ProductID: m.ID, Name: m.Name,
			Quantity: sel.Qty, UnitPrice: price, TotalPrice: line,
		})
	}
	for _, sel := range req.AddOnSelections {
		d, ok := drinks[sel.ID]
		if !ok {
			return nil, decimal.Zero, decimal.Zero, &ValidationError{Field: "addon_selections",
				Msg: fmt.Sprintf("unknown drink %q", sel.ID)}
		}
		price := decimal.NewFromInt(d.Price)
		line := pricing.LineTotal(price, uint(sel.Qty))
		addOnsTotal = addOnsTotal.Add(line)
		items = append(items, model.OrderItem{
			Kind: model.ItemAddOn, ProductID: d.ID, Name: d.Name,
			Quantity: sel.Qty, UnitPrice: price, TotalPrice: line,
		})
	}
	return items, unitPrice, addOnsTotal, nil
}

// acquireActiveLock 数据库里已没有进行中的订单时调用。
// 锁的持有者若已是终态订单（释放失败残留），用 compare-and-delete 回收后重试一次；
// 持有者查不到时可能是并发下单尚未提交，不回收。
func (s *Service) acquireActiveLock(ctx context.Context, identity, orderID string) (bool, error) {
	for attempt := 0; attempt < 2; attempt++ {
		ok, holder, err := rediskey.AcquireActiveOrderLock(ctx, s.rdb, identity, orderID)
		if err != nil || ok {
			return ok, err
		}
		if holder == "" {
			continue
		}
		var prev model.Order
		err = s.db.WithContext(ctx).Select("id", "status").Where("id = ?", holder).First(&prev).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !prev.Status.IsTerminal()) {
			s.logger.Info("active order lock held",
				zap.String("identity", identity),
				zap.String("holder", holder))
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if _, err := rediskey.ReclaimActiveOrderLock(ctx, s.rdb, identity, holder); err != nil {
			return false, err
		}
		s.logger.Warn("reclaimed stale active order lock",
			zap.String("identity", identity),
			zap.String("holder", holder),
			zap.String("holder_status", string(prev.Status)))
	}
	return false, nil
}
