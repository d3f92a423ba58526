package storefront

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hookah_delivery/internal/gateway"
	"hookah_delivery/internal/lifecycle"
	"hookah_delivery/internal/sessiontimer"

	"go.uber.org/zap"
)

var (
	// ErrActionNotAllowed 当前状态不允许该动作，请求不会发出。
	ErrActionNotAllowed = errors.New("action not allowed in current status")
	ErrActionInFlight   = errors.New("a request for this order is already in progress")
	ErrNotTimed         = errors.New("order has no running session")
)

// ActionError 本地动作表拒绝。
type ActionError struct {
	Action lifecycle.Action
	Status lifecycle.Status
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s is not available while order is %s", e.Action, e.Status)
}

func (e *ActionError) Unwrap() error { return ErrActionNotAllowed }

// Orders 当前身份的进行中订单与历史。
func (s *Session) Orders(ctx context.Context) (gateway.Orders, error) {
	return s.backend.Orders(ctx, s.Identity)
}

// Cancel 请求取消。被拒绝时返回原订单与服务端原因。
func (s *Session) Cancel(ctx context.Context, o gateway.Order) (gateway.Order, error) {
	return s.request(ctx, o, lifecycle.ActionCancel, s.backend.Cancel)
}

// ReadyForPickup 请求提前取回设备。
func (s *Session) ReadyForPickup(ctx context.Context, o gateway.Order) (gateway.Order, error) {
	return s.request(ctx, o, lifecycle.ActionReadyForPickup, s.backend.ReadyForPickup)
}

func (s *Session) request(ctx context.Context, o gateway.Order, action lifecycle.Action,
	call func(ctx context.Context, orderID, identity string) (gateway.Order, error)) (gateway.Order, error) {
	if !lifecycle.ClientAllows(o.Status, action) {
		return o, &ActionError{Action: action, Status: o.Status}
	}

	done, err := s.begin(o.ID, action)
	if err != nil {
		return o, err
	}
	defer done()

	updated, err := call(ctx, o.ID, s.Identity)
	if err != nil {
		s.logger.Warn("order action failed",
			zap.String("order_id", o.ID),
			zap.String("action", string(action)),
			zap.Error(err))
		return o, err
	}
	return updated, nil
}

// begin 每个订单同一时间只允许一个请求在途。
func (s *Session) begin(orderID string, action lifecycle.Action) (done func(), err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[orderID]; busy {
		return nil, ErrActionInFlight
	}
	s.inFlight[orderID] = action
	return func() {
		s.mu.Lock()
		delete(s.inFlight, orderID)
		s.mu.Unlock()
	}, nil
}

// actionRebowl 换碗不在订单状态转换表里，只占用在途锁。
const actionRebowl lifecycle.Action = "rebowl"

// RequestRebowl 会话中换一碗，mixID 为空沿用原口味。非计时状态本地直接拒绝。
func (s *Session) RequestRebowl(ctx context.Context, o gateway.Order, mixID string) (gateway.Rebowl, error) {
	if !lifecycle.RebowlAllowed(o.Status) {
		return gateway.Rebowl{}, &ActionError{Action: actionRebowl, Status: o.Status}
	}
	done, err := s.begin(o.ID, actionRebowl)
	if err != nil {
		return gateway.Rebowl{}, err
	}
	defer done()

	r, err := s.backend.RequestRebowl(ctx, o.ID, s.Identity, mixID)
	if err != nil {
		s.logger.Warn("rebowl request failed", zap.String("order_id", o.ID), zap.Error(err))
		return gateway.Rebowl{}, err
	}
	return r, nil
}

func (s *Session) Rebowls(ctx context.Context, o gateway.Order) ([]gateway.Rebowl, error) {
	return s.backend.Rebowls(ctx, o.ID, s.Identity)
}

// Pending 某订单是否有请求在途（对应按钮显示加载）。
func (s *Session) Pending(orderID string) (lifecycle.Action, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.inFlight[orderID]
	return a, ok
}

// OrderView 订单卡片，只由状态（以及计时状态的会话窗口）决定。
type OrderView struct {
	ID       string              `json:"id"`
	Status   lifecycle.Status    `json:"status"`
	Label    string              `json:"label"`
	Category lifecycle.Category  `json:"category"`
	Actions  []lifecycle.Action  `json:"actions"`
	Rebowl   bool                `json:"can_rebowl"`
	Timer    *sessiontimer.Tick  `json:"timer,omitempty"`
	Policy   sessiontimer.Policy `json:"policy"`
	Units    int                 `json:"units"`
	Total    string              `json:"total"`
}

// RenderOrder 纯函数。倒计时归零也不会改变状态，SESSION_ENDING 由服务端推进。
func RenderOrder(o gateway.Order, lang string, now time.Time) OrderView {
	v := OrderView{
		ID:       o.ID,
		Status:   o.Status,
		Label:    o.Status.Label(lang),
		Category: o.Status.Category(),
		Actions:  lifecycle.ClientActions(o.Status),
		Rebowl:   lifecycle.RebowlAllowed(o.Status),
		Policy:   policyOf(o),
		Units:    o.Units,
		Total:    o.Total.StringFixed(2),
	}
	if o.Status.IsTimed() && o.SessionEndsAt != nil {
		tick := sessiontimer.Compute(*o.SessionEndsAt, now, v.Policy)
		v.Timer = &tick
	}
	return v
}

func (s *Session) RenderOrder(o gateway.Order) OrderView {
	return RenderOrder(o, s.Language, s.now())
}

// WatchSession 1Hz 回调剩余时间，直到 ctx 结束。非计时状态返回 ErrNotTimed。
func (s *Session) WatchSession(ctx context.Context, o gateway.Order, onTick func(sessiontimer.Tick)) error {
	if !o.Status.IsTimed() || o.SessionEndsAt == nil {
		return ErrNotTimed
	}
	t := sessiontimer.New(*o.SessionEndsAt, policyOf(o))
	t.Run(ctx, onTick)
	return nil
}

func policyOf(o gateway.Order) sessiontimer.Policy {
	return sessiontimer.Policy{FreeExtensionUsed: o.FreeExtensionUsed, IsLateOrder: o.IsLateOrder}
}
